// Copyright (c) 2025 BVK Chaitanya

// Package ordermap caches the master-order to follower-order id mapping that
// modify and cancel replication needs. The cache is backed by the database
// with a long expiry; on a miss it is repopulated from the persistent
// order-map records.
package ordermap

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

const Keyspace = "/mapcache"

// TTL is how long a cached mapping lives. Orders don't outlive a week, so
// expired entries are only ever garbage.
const TTL = 7 * 24 * time.Hour

// Fallback loads replication records from the persistent store when the
// cache has no usable entry.
type Fallback interface {
	OrderMapsForMaster(ctx context.Context, masterOrderID int64) ([]*gobs.OrderMap, error)
}

type Cache struct {
	db kv.Database

	fallback Fallback
}

func New(db kv.Database, fallback Fallback) *Cache {
	return &Cache{db: db, fallback: fallback}
}

func mapKey(masterOrderID int64) string {
	return fmt.Sprintf("%s/%012d", Keyspace, masterOrderID)
}

// Put merges follower entries into the mapping of the master order. The
// merge runs in a single transaction so concurrent fan-out workers never
// clobber one another's entries.
func (c *Cache) Put(ctx context.Context, masterOrderID int64, entries map[int64]gobs.OrderMappingEntry) error {
	if len(entries) == 0 {
		return nil
	}
	merge := func(ctx context.Context, rw kv.ReadWriter) error {
		key := mapKey(masterOrderID)
		m, err := kvutil.Get[gobs.OrderMapping](ctx, rw, key)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			m = &gobs.OrderMapping{
				MasterOrderID: masterOrderID,
				Followers:     make(map[int64]gobs.OrderMappingEntry),
			}
		}
		if m.Expired(time.Now()) {
			m.Followers = make(map[int64]gobs.OrderMappingEntry)
		}
		for uid, e := range entries {
			m.Followers[uid] = e
		}
		m.ExpiresAt = time.Now().Add(TTL)
		return kvutil.Set(ctx, rw, key, m)
	}
	return kv.WithReadWriter(ctx, c.db, merge)
}

// Get returns the follower mapping of the master order. A missing or expired
// cache entry is rebuilt from the persistent records; when those have
// nothing either, the result is an empty map.
func (c *Cache) Get(ctx context.Context, masterOrderID int64) (map[int64]gobs.OrderMappingEntry, error) {
	m, err := kvutil.GetDB[gobs.OrderMapping](ctx, c.db, mapKey(masterOrderID))
	if err == nil && !m.Expired(time.Now()) {
		return m.Followers, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	maps, err := c.fallback.OrderMapsForMaster(ctx, masterOrderID)
	if err != nil {
		return nil, err
	}
	entries := make(map[int64]gobs.OrderMappingEntry)
	for _, om := range maps {
		if om.Status != gobs.ReplicationSuccess {
			continue
		}
		entries[om.FollowerUserID] = gobs.OrderMappingEntry{
			FollowerOrderID:       om.FollowerOrderID,
			FollowerBrokerOrderID: om.FollowerBrokerOrderID,
		}
	}
	if len(entries) > 0 {
		if err := c.Put(ctx, masterOrderID, entries); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// GetFor returns the mapping entry of one follower of the master order.
func (c *Cache) GetFor(ctx context.Context, masterOrderID, followerUserID int64) (gobs.OrderMappingEntry, error) {
	entries, err := c.Get(ctx, masterOrderID)
	if err != nil {
		return gobs.OrderMappingEntry{}, err
	}
	e, ok := entries[followerUserID]
	if !ok {
		return gobs.OrderMappingEntry{}, fmt.Errorf("no mapping for follower %d of master order %d: %w", followerUserID, masterOrderID, os.ErrNotExist)
	}
	return e, nil
}

// Delete drops the cached mapping of the master order.
func (c *Cache) Delete(ctx context.Context, masterOrderID int64) error {
	drop := func(ctx context.Context, rw kv.ReadWriter) error {
		if err := rw.Delete(ctx, mapKey(masterOrderID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return kv.WithReadWriter(ctx, c.db, drop)
}
