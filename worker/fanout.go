// Copyright (c) 2025 BVK Chaitanya

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bvk/replicon/event"
	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/idgen"
	"github.com/bvk/replicon/iifl"
	"github.com/bvk/replicon/store"
	"github.com/shopspring/decimal"
)

// handleNew fans the master order out to every active follower. Followers
// fail independently; one follower's rejection never blocks the rest.
func (w *Worker) handleNew(ctx context.Context, ev *event.NormalizedOrderEvent) error {
	if ev.Quantity <= 0 {
		slog.Info("skipping master order with no quantity", "master_order", ev.MasterOrderID)
		return nil
	}

	// The ingress records the master order before publishing, so a missing
	// row means a stale or forged event; erroring out lets the bus retry and
	// dead-letter it instead of placing orphan follower orders.
	if _, err := w.store.GetOrder(ctx, ev.MasterOrderID); err != nil {
		return fmt.Errorf("could not load master order %d: %w", ev.MasterOrderID, err)
	}

	pairs, err := w.store.ActiveFollowersOf(ctx, ev.MasterUserID)
	if err != nil {
		return fmt.Errorf("could not list followers of user %d: %w", ev.MasterUserID, err)
	}
	if len(pairs) == 0 {
		slog.Info("master has no active followers", "master", ev.MasterUserID, "master_order", ev.MasterOrderID)
		return nil
	}

	w.audit(ctx, gobs.AuditReplicationStarted, ev.MasterUserID, ev.MasterOrderID,
		fmt.Sprintf("followers=%d qty=%d", len(pairs), ev.Quantity))

	results := make([]*Result, len(pairs))
	var wg sync.WaitGroup
	for i, pair := range pairs {
		wg.Add(1)
		go func(i int, pair *store.FollowerPair) {
			defer wg.Done()
			w.sem <- struct{}{}
			defer func() { <-w.sem }()
			results[i] = w.replicateOne(ctx, ev, pair)
		}(i, pair)
	}
	wg.Wait()

	var nok, nfail, nskip int
	entries := make(map[int64]gobs.OrderMappingEntry)
	for _, res := range results {
		switch {
		case res.Skipped:
			nskip++
		case res.Err != nil:
			nfail++
		default:
			nok++
			if e, ok := res.entry(); ok {
				entries[res.FollowerUserID] = e
			}
		}
		w.results.Send(res)
	}
	if err := w.maps.Put(ctx, ev.MasterOrderID, entries); err != nil {
		slog.Error("could not cache the order mapping", "master_order", ev.MasterOrderID, "err", err)
	}

	action := gobs.AuditReplicationCompleted
	if nok == 0 && nfail > 0 {
		action = gobs.AuditReplicationFailed
	}
	w.audit(ctx, action, ev.MasterUserID, ev.MasterOrderID,
		fmt.Sprintf("ok=%d failed=%d skipped=%d", nok, nfail, nskip))
	slog.Info("fan-out complete", "master_order", ev.MasterOrderID, "ok", nok, "failed", nfail, "skipped", nskip)
	return nil
}

// replicateOne places the scaled order for a single follower and records the
// outcome in the order map.
func (w *Worker) replicateOne(ctx context.Context, ev *event.NormalizedOrderEvent, pair *store.FollowerPair) *Result {
	start := time.Now()
	res := &Result{
		Kind:           event.New,
		MasterOrderID:  ev.MasterOrderID,
		MasterUserID:   ev.MasterUserID,
		FollowerUserID: pair.User.ID,
	}
	fail := func(err error) *Result {
		res.Err = err
		res.Latency = time.Since(start)
		m := &gobs.OrderMap{
			MasterOrderID:       ev.MasterOrderID,
			FollowerUserID:      pair.User.ID,
			MasterBrokerOrderID: ev.BrokerOrderID,
			OriginalQuantity:    ev.Quantity,
			Status:              gobs.ReplicationFailed,
			Latency:             res.Latency,
			ErrorMessage:        err.Error(),
		}
		if _, serr := w.store.InsertOrderMap(ctx, m); serr != nil {
			slog.Error("could not record failed replication", "master_order", ev.MasterOrderID, "follower", pair.User.ID, "err", serr)
		}
		slog.Warn("replication failed", "master_order", ev.MasterOrderID, "follower", pair.User.ID, "err", err)
		return res
	}

	// A redelivered event must not place a second broker order for a
	// follower that already replicated successfully.
	if old, err := w.store.GetOrderMap(ctx, ev.MasterOrderID, pair.User.ID); err == nil && old.Status == gobs.ReplicationSuccess {
		res.Skipped = true
		res.followerOrderID = old.FollowerOrderID
		res.followerBrokerOrderID = old.FollowerBrokerOrderID
		slog.Info("follower already replicated", "master_order", ev.MasterOrderID, "follower", pair.User.ID)
		return res
	}

	qty := FollowerQuantity(pair.Relationship, pair.User, ev)
	if qty <= 0 {
		res.Skipped = true
		slog.Info("skipping follower with zero scaled quantity", "master_order", ev.MasterOrderID, "follower", pair.User.ID)
		return res
	}
	if v := pair.Relationship.MaxOrderValue; v.IsPositive() && orderValue(qty, ev.Price).GreaterThan(v) {
		res.Skipped = true
		slog.Info("skipping follower above max order value", "master_order", ev.MasterOrderID, "follower", pair.User.ID, "qty", qty)
		return res
	}

	resp, err := w.placeWithAuthRetry(ctx, pair.User, ev, qty)
	if err != nil {
		return fail(err)
	}

	order := &gobs.Order{
		UserID:        pair.User.ID,
		MasterOrderID: ev.MasterOrderID,
		Symbol:        ev.Symbol,
		ScripCode:     ev.ScripCode,
		Exchange:      ev.Exchange,
		ExchangeType:  ev.ExchangeType,
		Side:          gobs.OrderSide(ev.Side),
		Type:          gobs.OrderType(ev.OrderType),
		Quantity:      qty,
		Price:         ev.Price,
		TriggerPrice:  ev.TriggerPrice,
		Status:        gobs.OrderSubmitted,
		BrokerOrderID: resp.BrokerOrderID,
		IsIntraday:    ev.IsIntraday,
	}
	res.Latency = time.Since(start)
	order.ReplicationLatency = res.Latency
	orderID, err := w.store.InsertFollowerOrder(ctx, order)
	if err != nil {
		return fail(fmt.Errorf("could not record follower order: %w", err))
	}
	res.followerOrderID = orderID
	res.followerBrokerOrderID = resp.BrokerOrderID

	m := &gobs.OrderMap{
		MasterOrderID:         ev.MasterOrderID,
		FollowerUserID:        pair.User.ID,
		FollowerOrderID:       orderID,
		MasterBrokerOrderID:   ev.BrokerOrderID,
		FollowerBrokerOrderID: resp.BrokerOrderID,
		ScalingFactor:         scalingFactor(pair.Relationship),
		OriginalQuantity:      ev.Quantity,
		FollowerQuantity:      qty,
		Status:                gobs.ReplicationSuccess,
		Latency:               res.Latency,
	}
	if _, err := w.store.InsertOrderMap(ctx, m); err != nil {
		slog.Error("could not record successful replication", "master_order", ev.MasterOrderID, "follower", pair.User.ID, "err", err)
	}

	w.audit(ctx, gobs.AuditOrderPlaced, pair.User.ID, orderID,
		fmt.Sprintf("master_order=%d broker_order=%s qty=%d", ev.MasterOrderID, resp.BrokerOrderID, qty))
	slog.Info("replicated order", "master_order", ev.MasterOrderID, "follower", pair.User.ID, "qty", qty, "latency", res.Latency)
	return res
}

// placeWithAuthRetry places the order, refreshing the session token once if
// the broker says it has gone stale.
func (w *Worker) placeWithAuthRetry(ctx context.Context, u *gobs.User, ev *event.NormalizedOrderEvent, qty int64) (*iifl.OrderResponse, error) {
	return w.withAuthRetry(ctx, u, func(token string) (*iifl.OrderResponse, error) {
		return w.broker.PlaceOrder(ctx, token, w.orderRequest(u, ev, qty))
	})
}

// withAuthRetry runs one broker operation, refreshing the session token and
// retrying once when the broker rejects it as stale.
func (w *Worker) withAuthRetry(ctx context.Context, u *gobs.User, fn func(token string) (*iifl.OrderResponse, error)) (*iifl.OrderResponse, error) {
	token, err := w.tokens.GetOrRefresh(ctx, u)
	if err != nil {
		w.audit(ctx, gobs.AuditAuthFailed, u.ID, 0, err.Error())
		return nil, fmt.Errorf("could not get a session token: %w", err)
	}

	resp, err := fn(token)
	if err == nil || !errors.Is(err, iifl.ErrAuth) {
		return resp, err
	}

	if terr := w.tokens.Invalidate(ctx, u.ID); terr != nil {
		slog.Warn("could not invalidate a stale token", "user", u.ID, "err", terr)
	}
	if token, err = w.tokens.GetOrRefresh(ctx, u); err != nil {
		w.audit(ctx, gobs.AuditAuthFailed, u.ID, 0, err.Error())
		return nil, fmt.Errorf("could not refresh a stale token: %w", err)
	}
	return fn(token)
}

func (w *Worker) orderRequest(u *gobs.User, ev *event.NormalizedOrderEvent, qty int64) *iifl.OrderRequest {
	req := &iifl.OrderRequest{
		ClientCode:    u.BrokerAccountCode,
		Exchange:      ev.Exchange,
		ExchangeType:  ev.ExchangeType,
		ScripCode:     ev.ScripCode,
		BuySell:       buySell(ev.Side),
		Qty:           qty,
		DisQty:        scaledDisclosure(ev, qty),
		Price:         ev.Price.InexactFloat64(),
		IsIntraday:    ev.IsIntraday,
		RemoteOrderID: idgen.ClientOrderID(ev.MasterOrderID, u.ID),
	}
	switch gobs.OrderType(ev.OrderType) {
	case gobs.Market:
		req.AtMarket = true
		req.Price = 0
	case gobs.StopLoss:
		req.WithTrigger = true
		req.TriggerPrice = ev.TriggerPrice.InexactFloat64()
	case gobs.StopLossMarket:
		req.AtMarket = true
		req.Price = 0
		req.WithTrigger = true
		req.TriggerPrice = ev.TriggerPrice.InexactFloat64()
	}
	return req
}

func buySell(side string) string {
	if side == string(gobs.Sell) {
		return "S"
	}
	return "B"
}

func scalingFactor(rel *gobs.FollowerRelationship) decimal.Decimal {
	switch rel.Strategy {
	case gobs.FixedRatio:
		return rel.Ratio
	case gobs.Percentage:
		return rel.Percent
	case gobs.FixedQuantity:
		return decimal.NewFromInt(rel.FixedQuantity)
	}
	return decimal.Decimal{}
}
