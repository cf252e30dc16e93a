// Copyright (c) 2025 BVK Chaitanya

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/kvutil"
	"github.com/bvkgo/kv"
)

// InsertOrderMap saves the replication record for one (master-order,
// follower-user) pair. An existing SUCCESS record is never downgraded, so
// redeliveries cannot turn a completed replication into a failed one.
func (s *Store) InsertOrderMap(ctx context.Context, m *gobs.OrderMap) (int64, error) {
	if m.MasterOrderID == 0 || m.FollowerUserID == 0 {
		return 0, os.ErrInvalid
	}
	var id int64
	insert := func(ctx context.Context, rw kv.ReadWriter) error {
		key := orderMapKey(m.MasterOrderID, m.FollowerUserID)
		if old, err := kvutil.Get[gobs.OrderMap](ctx, rw, key); err == nil {
			if old.Status == gobs.ReplicationSuccess {
				id = old.ID
				return nil
			}
			m.ID = old.ID
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if m.ID == 0 {
			v, err := nextID(ctx, rw, nextIDKey)
			if err != nil {
				return err
			}
			m.ID = v
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		id = m.ID
		return kvutil.Set(ctx, rw, key, m)
	}
	if err := kv.WithReadWriter(ctx, s.db, insert); err != nil {
		return 0, err
	}
	return id, nil
}

// OrderMapsForMaster returns every replication record of the master order.
func (s *Store) OrderMapsForMaster(ctx context.Context, masterOrderID int64) ([]*gobs.OrderMap, error) {
	var maps []*gobs.OrderMap
	begin, end := kvutil.PathRange(fmt.Sprintf("%s/%012d", OrderMapsKeyspace, masterOrderID))
	collect := func(ctx context.Context, r kv.Reader, k string, m *gobs.OrderMap) error {
		maps = append(maps, m)
		return nil
	}
	if err := kvutil.AscendDB(ctx, s.db, begin, end, collect); err != nil {
		return nil, err
	}
	return maps, nil
}

// GetOrderMap returns the replication record for one follower of a master
// order.
func (s *Store) GetOrderMap(ctx context.Context, masterOrderID, followerUserID int64) (*gobs.OrderMap, error) {
	return kvutil.GetDB[gobs.OrderMap](ctx, s.db, orderMapKey(masterOrderID, followerUserID))
}
