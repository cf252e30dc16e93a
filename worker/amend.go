// Copyright (c) 2025 BVK Chaitanya

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bvk/replicon/event"
	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/iifl"
)

// handleModify propagates a master order's price change to the follower
// orders. Modify never creates orders: followers without a mapping are left
// alone.
func (w *Worker) handleModify(ctx context.Context, ev *event.NormalizedOrderEvent) error {
	return w.amend(ctx, event.Modify, ev)
}

// handleCancel cancels the follower orders mapped to the master order.
func (w *Worker) handleCancel(ctx context.Context, ev *event.NormalizedOrderEvent) error {
	return w.amend(ctx, event.Cancel, ev)
}

func (w *Worker) amend(ctx context.Context, kind event.Kind, ev *event.NormalizedOrderEvent) error {
	entries, err := w.maps.Get(ctx, ev.MasterOrderID)
	if err != nil {
		return fmt.Errorf("could not load the order mapping of %d: %w", ev.MasterOrderID, err)
	}
	if len(entries) == 0 {
		// Out-of-order delivery or a master with no successful fan-out.
		w.audit(ctx, gobs.AuditReplicationCompleted, ev.MasterUserID, ev.MasterOrderID, fmt.Sprintf("kind=%s no mapped follower orders", kind))
		slog.Info("no follower orders to amend", "kind", kind, "master_order", ev.MasterOrderID)
		return nil
	}

	type pending struct {
		uid   int64
		entry gobs.OrderMappingEntry
	}
	var todo []pending
	for uid, e := range entries {
		todo = append(todo, pending{uid, e})
	}

	results := make([]*Result, len(todo))
	var wg sync.WaitGroup
	for i, p := range todo {
		wg.Add(1)
		go func(i int, p pending) {
			defer wg.Done()
			w.sem <- struct{}{}
			defer func() { <-w.sem }()
			results[i] = w.amendOne(ctx, kind, ev, p.uid, p.entry)
		}(i, p)
	}
	wg.Wait()

	var nok, nfail, nskip int
	for _, res := range results {
		switch {
		case res.Skipped:
			nskip++
		case res.Err != nil:
			nfail++
		default:
			nok++
		}
		w.results.Send(res)
	}
	slog.Info("amend complete", "kind", kind, "master_order", ev.MasterOrderID, "ok", nok, "failed", nfail, "skipped", nskip)
	return nil
}

func (w *Worker) amendOne(ctx context.Context, kind event.Kind, ev *event.NormalizedOrderEvent, followerUserID int64, e gobs.OrderMappingEntry) *Result {
	start := time.Now()
	res := &Result{
		Kind:           kind,
		MasterOrderID:  ev.MasterOrderID,
		MasterUserID:   ev.MasterUserID,
		FollowerUserID: followerUserID,
	}
	fail := func(err error) *Result {
		res.Err = err
		res.Latency = time.Since(start)
		slog.Warn("amend failed", "kind", kind, "master_order", ev.MasterOrderID, "follower", followerUserID, "err", err)
		return res
	}

	u, err := w.store.GetUser(ctx, followerUserID)
	if err != nil {
		return fail(fmt.Errorf("could not load follower %d: %w", followerUserID, err))
	}
	order, err := w.store.GetOrder(ctx, e.FollowerOrderID)
	if err != nil {
		return fail(fmt.Errorf("could not load follower order %d: %w", e.FollowerOrderID, err))
	}
	if order.Status.Done() {
		res.Skipped = true
		slog.Info("follower order already finished", "kind", kind, "order", order.ID, "status", order.Status)
		return res
	}

	req := &iifl.OrderRequest{
		ClientCode:    u.BrokerAccountCode,
		Exchange:      order.Exchange,
		ExchangeType:  order.ExchangeType,
		ScripCode:     order.ScripCode,
		BuySell:       buySell(string(order.Side)),
		Qty:           order.Quantity,
		Price:         order.Price.InexactFloat64(),
		IsIntraday:    order.IsIntraday,
		BrokerOrderID: e.FollowerBrokerOrderID,
	}

	switch kind {
	case event.Modify:
		// Only the price moves; the follower keeps its scaled quantity.
		req.Price = ev.Price.InexactFloat64()
		_, err = w.withAuthRetry(ctx, u, func(token string) (*iifl.OrderResponse, error) {
			return w.broker.ModifyOrder(ctx, token, req)
		})
	case event.Cancel:
		_, err = w.withAuthRetry(ctx, u, func(token string) (*iifl.OrderResponse, error) {
			return w.broker.CancelOrder(ctx, token, req)
		})
	}
	if err != nil {
		return fail(err)
	}

	update := func(o *gobs.Order) error {
		if kind == event.Cancel {
			o.Status = gobs.OrderCancelled
			return nil
		}
		o.Price = ev.Price
		return nil
	}
	if err := w.store.UpdateOrder(ctx, order.ID, update); err != nil {
		return fail(fmt.Errorf("could not update follower order %d: %w", order.ID, err))
	}

	action := gobs.AuditOrderModified
	if kind == event.Cancel {
		action = gobs.AuditOrderCancelled
	}
	w.audit(ctx, action, u.ID, order.ID, fmt.Sprintf("master_order=%d broker_order=%s", ev.MasterOrderID, e.FollowerBrokerOrderID))
	res.Latency = time.Since(start)
	return res
}

// handleFill records the master order's fill progress. Follower orders fill
// on their own at the broker; nothing is placed or cancelled here.
func (w *Worker) handleFill(ctx context.Context, ev *event.NormalizedOrderEvent) error {
	update := func(o *gobs.Order) error {
		if ev.FilledQuantity > 0 {
			o.FilledQuantity = ev.FilledQuantity
		}
		if ev.AveragePrice.IsPositive() {
			o.AveragePrice = ev.AveragePrice
		}
		if len(ev.Status) > 0 {
			o.Status = gobs.OrderStatus(ev.Status)
		} else if o.FilledQuantity == o.Quantity {
			o.Status = gobs.OrderFilled
		} else if o.FilledQuantity > 0 {
			o.Status = gobs.OrderPartiallyFilled
		}
		return nil
	}
	if err := w.store.UpdateOrder(ctx, ev.MasterOrderID, update); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("fill event for an unknown master order", "master_order", ev.MasterOrderID)
			return nil
		}
		return err
	}
	slog.Info("recorded master fill", "master_order", ev.MasterOrderID, "filled", ev.FilledQuantity)
	return nil
}
