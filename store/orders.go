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

// UpsertMasterOrder creates the master order row on first sight of its
// broker-order-id and updates the fill fields on every later sighting. The
// template's Status field, when non-empty, carries the mapped broker status;
// when empty the stored status is left as-is. Returns the stored order and
// whether it was created.
func (s *Store) UpsertMasterOrder(ctx context.Context, template *gobs.Order) (*gobs.Order, bool, error) {
	if template.UserID == 0 || len(template.BrokerOrderID) == 0 {
		return nil, false, os.ErrInvalid
	}

	var order *gobs.Order
	var created bool

	upsert := func(ctx context.Context, rw kv.ReadWriter) error {
		idxKey := orderIdxKey(template.UserID, template.BrokerOrderID)
		id, err := kvutil.Get[int64](ctx, rw, idxKey)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			// First sighting.
			v, err := nextID(ctx, rw, nextIDKey)
			if err != nil {
				return err
			}
			o := *template
			o.ID = v
			o.IsMaster = true
			o.MasterOrderID = 0
			if len(o.Status) == 0 {
				o.Status = gobs.OrderPending
			}
			now := time.Now()
			o.CreatedAt, o.UpdatedAt = now, now
			if o.FilledQuantity > o.Quantity {
				return fmt.Errorf("filled quantity %d exceeds order quantity %d: %w", o.FilledQuantity, o.Quantity, os.ErrInvalid)
			}
			if err := kvutil.Set(ctx, rw, orderKey(o.ID), &o); err != nil {
				return err
			}
			if err := kvutil.Set(ctx, rw, idxKey, &o.ID); err != nil {
				return err
			}
			order, created = &o, true
			return nil
		}

		o, err := kvutil.Get[gobs.Order](ctx, rw, orderKey(*id))
		if err != nil {
			return err
		}
		if template.FilledQuantity > 0 {
			if template.FilledQuantity > o.Quantity {
				return fmt.Errorf("filled quantity %d exceeds order quantity %d: %w", template.FilledQuantity, o.Quantity, os.ErrInvalid)
			}
			o.FilledQuantity = template.FilledQuantity
		}
		if template.AveragePrice.IsPositive() {
			o.AveragePrice = template.AveragePrice
		}
		if len(template.ExchangeOrderID) > 0 {
			o.ExchangeOrderID = template.ExchangeOrderID
		}
		if len(template.Status) > 0 {
			o.Status = template.Status
		}
		o.UpdatedAt = time.Now()
		if err := kvutil.Set(ctx, rw, orderKey(o.ID), o); err != nil {
			return err
		}
		order, created = o, false
		return nil
	}

	if err := kv.WithReadWriter(ctx, s.db, upsert); err != nil {
		return nil, false, err
	}
	return order, created, nil
}

// InsertFollowerOrder assigns an id to the follower order and saves it. The
// parent master order must exist.
func (s *Store) InsertFollowerOrder(ctx context.Context, o *gobs.Order) (int64, error) {
	if o.MasterOrderID == 0 {
		return 0, fmt.Errorf("follower order must reference a master order: %w", os.ErrInvalid)
	}
	if o.FilledQuantity > o.Quantity {
		return 0, fmt.Errorf("filled quantity %d exceeds order quantity %d: %w", o.FilledQuantity, o.Quantity, os.ErrInvalid)
	}
	var id int64
	insert := func(ctx context.Context, rw kv.ReadWriter) error {
		if _, err := kvutil.Get[gobs.Order](ctx, rw, orderKey(o.MasterOrderID)); err != nil {
			return fmt.Errorf("could not load master order %d: %w", o.MasterOrderID, err)
		}
		v, err := nextID(ctx, rw, nextIDKey)
		if err != nil {
			return err
		}
		id = v
		o.ID = id
		o.IsMaster = false
		now := time.Now()
		o.CreatedAt, o.UpdatedAt = now, now
		if err := kvutil.Set(ctx, rw, orderKey(id), o); err != nil {
			return err
		}
		if len(o.BrokerOrderID) > 0 {
			if err := kvutil.Set(ctx, rw, orderIdxKey(o.UserID, o.BrokerOrderID), &id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := kv.WithReadWriter(ctx, s.db, insert); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*gobs.Order, error) {
	return kvutil.GetDB[gobs.Order](ctx, s.db, orderKey(id))
}

// UpdateOrder applies fn to the order row inside a read-modify-write
// transaction.
func (s *Store) UpdateOrder(ctx context.Context, id int64, fn func(*gobs.Order) error) error {
	update := func(ctx context.Context, rw kv.ReadWriter) error {
		o, err := kvutil.Get[gobs.Order](ctx, rw, orderKey(id))
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		if o.FilledQuantity > o.Quantity {
			return fmt.Errorf("filled quantity %d exceeds order quantity %d: %w", o.FilledQuantity, o.Quantity, os.ErrInvalid)
		}
		o.UpdatedAt = time.Now()
		return kvutil.Set(ctx, rw, orderKey(id), o)
	}
	return kv.WithReadWriter(ctx, s.db, update)
}

// FollowerOrdersOf returns follower orders whose parent is the given master
// order.
func (s *Store) FollowerOrdersOf(ctx context.Context, masterOrderID int64) ([]*gobs.Order, error) {
	var orders []*gobs.Order
	begin, end := kvutil.PathRange(OrdersKeyspace)
	collect := func(ctx context.Context, r kv.Reader, k string, o *gobs.Order) error {
		if !o.IsMaster && o.MasterOrderID == masterOrderID {
			orders = append(orders, o)
		}
		return nil
	}
	if err := kvutil.AscendDB(ctx, s.db, begin, end, collect); err != nil {
		return nil, err
	}
	return orders, nil
}
