// Copyright (c) 2025 BVK Chaitanya

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bvk/replicon/event"
	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/iifl"
	"github.com/bvk/replicon/ordermap"
	"github.com/bvk/replicon/store"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"
)

type fakeTokens struct {
	mu          sync.Mutex
	invalidated map[int64]int
}

func (f *fakeTokens) GetOrRefresh(ctx context.Context, u *gobs.User) (string, error) {
	return fmt.Sprintf("tok-%d", u.ID), nil
}

func (f *fakeTokens) Invalidate(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalidated == nil {
		f.invalidated = make(map[int64]int)
	}
	f.invalidated[userID]++
	return nil
}

type fakeBroker struct {
	mu sync.Mutex

	placed    []*iifl.OrderRequest
	modified  []*iifl.OrderRequest
	cancelled []*iifl.OrderRequest

	// failFor fails every operation of a client code.
	failFor map[string]error

	// authFailOnce fails the first operation of a client code with
	// ErrAuth.
	authFailOnce map[string]bool

	nextID int
}

func (f *fakeBroker) check(clientCode string) error {
	if err := f.failFor[clientCode]; err != nil {
		return err
	}
	if f.authFailOnce[clientCode] {
		delete(f.authFailOnce, clientCode)
		return fmt.Errorf("stale token: %w", iifl.ErrAuth)
	}
	return nil
}

func (f *fakeBroker) respond() *iifl.OrderResponse {
	f.nextID++
	return &iifl.OrderResponse{BrokerOrderID: fmt.Sprintf("FB%d", f.nextID)}
}

func (f *fakeBroker) PlaceOrder(ctx context.Context, token string, req *iifl.OrderRequest) (*iifl.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(req.ClientCode); err != nil {
		return nil, err
	}
	f.placed = append(f.placed, req)
	return f.respond(), nil
}

func (f *fakeBroker) ModifyOrder(ctx context.Context, token string, req *iifl.OrderRequest) (*iifl.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(req.ClientCode); err != nil {
		return nil, err
	}
	f.modified = append(f.modified, req)
	return f.respond(), nil
}

func (f *fakeBroker) CancelOrder(ctx context.Context, token string, req *iifl.OrderRequest) (*iifl.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(req.ClientCode); err != nil {
		return nil, err
	}
	f.cancelled = append(f.cancelled, req)
	return f.respond(), nil
}

type fixture struct {
	s      *store.Store
	maps   *ordermap.Cache
	broker *fakeBroker
	tokens *fakeTokens
	w      *Worker

	master *gobs.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := kvmemdb.New()
	s := store.New(db)
	f := &fixture{
		s:      s,
		maps:   ordermap.New(db, s),
		broker: &fakeBroker{failFor: make(map[string]error), authFailOnce: make(map[string]bool)},
		tokens: &fakeTokens{},
	}
	f.w = New(f.s, f.maps, f.tokens, f.broker, nil)
	t.Cleanup(f.w.Close)

	f.master = &gobs.User{
		Role:              gobs.RoleMaster,
		Active:            true,
		BrokerAccountCode: "MASTER001",
		Balance:           decimal.NewFromInt(1000000),
	}
	if _, err := s.AddUser(context.Background(), f.master); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) addFollower(t *testing.T, code string, rel *gobs.FollowerRelationship, balance int64) *gobs.User {
	t.Helper()
	u := &gobs.User{
		Role:              gobs.RoleFollower,
		Active:            true,
		BrokerAccountCode: code,
		Balance:           decimal.NewFromInt(balance),
	}
	if _, err := f.s.AddUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	rel.MasterID = f.master.ID
	rel.FollowerID = u.ID
	rel.Active = true
	if _, err := f.s.LinkFollower(context.Background(), rel); err != nil {
		t.Fatal(err)
	}
	return u
}

// masterEvent records a master order row and returns the normalized event
// the ingress would publish for it.
func (f *fixture) masterEvent(t *testing.T, kind event.Kind, qty int64, price string) *event.NormalizedOrderEvent {
	t.Helper()
	template := &gobs.Order{
		UserID:        f.master.ID,
		BrokerOrderID: "MB100",
		Symbol:        "RELIANCE",
		ScripCode:     2885,
		Exchange:      "N",
		ExchangeType:  "C",
		Side:          gobs.Buy,
		Type:          gobs.Limit,
		Quantity:      qty,
		Price:         decimal.RequireFromString(price),
	}
	order, _, err := f.s.UpsertMasterOrder(context.Background(), template)
	if err != nil {
		t.Fatal(err)
	}
	return &event.NormalizedOrderEvent{
		Kind:          kind,
		MasterOrderID: order.ID,
		MasterUserID:  f.master.ID,
		BrokerOrderID: "MB100",
		Symbol:        "RELIANCE",
		ScripCode:     2885,
		Exchange:      "N",
		ExchangeType:  "C",
		Side:          string(gobs.Buy),
		OrderType:     string(gobs.Limit),
		Quantity:      qty,
		Price:         decimal.RequireFromString(price),
		Timestamp:     time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
	}
}

func (f *fixture) deliver(t *testing.T, ev *event.NormalizedOrderEvent) error {
	t.Helper()
	env := event.NewEnvelope(ev, ev.Timestamp)
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	return f.w.Handle(context.Background(), ev.Kind.Subject(), body)
}

func TestFixedRatioFanOut(t *testing.T) {
	f := setup(t)
	follower := f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy: gobs.FixedRatio,
		Ratio:    decimal.RequireFromString("0.5"),
	}, 500000)

	ev := f.masterEvent(t, event.New, 100, "250")
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}

	if len(f.broker.placed) != 1 {
		t.Fatalf("wanted 1 broker order, got %d", len(f.broker.placed))
	}
	req := f.broker.placed[0]
	if req.Qty != 50 {
		t.Fatalf("wanted scaled qty 50, got %d", req.Qty)
	}
	if req.ClientCode != "FOLLOW001" || req.BuySell != "B" {
		t.Fatalf("bad broker request: %+v", req)
	}
	if len(req.RemoteOrderID) == 0 {
		t.Fatalf("broker request has no idempotent client order id")
	}

	m, err := f.s.GetOrderMap(context.Background(), ev.MasterOrderID, follower.ID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != gobs.ReplicationSuccess || m.FollowerQuantity != 50 {
		t.Fatalf("bad order map: %+v", m)
	}

	orders, err := f.s.FollowerOrdersOf(context.Background(), ev.MasterOrderID)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 || orders[0].Status != gobs.OrderSubmitted {
		t.Fatalf("bad follower orders: %+v", orders)
	}

	entries, err := f.maps.Get(context.Background(), ev.MasterOrderID)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := entries[follower.ID]; !ok {
		t.Fatalf("mapping cache has no entry for follower %d", follower.ID)
	}
}

func TestPercentageScaling(t *testing.T) {
	f := setup(t)
	f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy: gobs.Percentage,
		Percent:  decimal.NewFromInt(10),
	}, 100000)

	// floor((100000 * 10%) / 250) = 40
	ev := f.masterEvent(t, event.New, 100, "250")
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}
	if len(f.broker.placed) != 1 || f.broker.placed[0].Qty != 40 {
		t.Fatalf("wanted qty 40, got %+v", f.broker.placed)
	}
}

func TestPercentageWithoutPriceMirrorsQuantity(t *testing.T) {
	f := setup(t)
	f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy: gobs.Percentage,
		Percent:  decimal.NewFromInt(10),
	}, 100000)

	ev := f.masterEvent(t, event.New, 75, "0")
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}
	if len(f.broker.placed) != 1 || f.broker.placed[0].Qty != 75 {
		t.Fatalf("wanted master qty 75, got %+v", f.broker.placed)
	}
}

func TestFixedQuantityScaling(t *testing.T) {
	f := setup(t)
	f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy:      gobs.FixedQuantity,
		FixedQuantity: 7,
	}, 100000)

	ev := f.masterEvent(t, event.New, 100, "250")
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}
	if len(f.broker.placed) != 1 || f.broker.placed[0].Qty != 7 {
		t.Fatalf("wanted qty 7, got %+v", f.broker.placed)
	}
}

func TestUnknownMasterOrderPlacesNothing(t *testing.T) {
	f := setup(t)
	f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy: gobs.FixedRatio,
		Ratio:    decimal.NewFromInt(1),
	}, 100000)

	// A stale or forged event whose master order row does not exist must be
	// re-queued, not replicated.
	ev := f.masterEvent(t, event.New, 10, "250")
	ev.MasterOrderID += 1000
	if err := f.deliver(t, ev); err == nil {
		t.Fatalf("event for a missing master order was accepted")
	}
	if len(f.broker.placed) != 0 {
		t.Fatalf("missing master order must not reach the broker; got %d orders", len(f.broker.placed))
	}
}

func TestScaledDisclosure(t *testing.T) {
	cases := []struct {
		masterQty, disclosed, followerQty, want int64
	}{
		{100, 20, 50, 10},
		{100, 20, 200, 40},
		{100, 0, 50, 0},
		{10, 3, 1, 0},
		{10, 10, 5, 5},
	}
	for _, c := range cases {
		ev := &event.NormalizedOrderEvent{Quantity: c.masterQty, DisclosedQuantity: c.disclosed}
		if got := scaledDisclosure(ev, c.followerQty); got != c.want {
			t.Errorf("scaledDisclosure(%d/%d, %d): wanted %d, got %d", c.disclosed, c.masterQty, c.followerQty, c.want, got)
		}
	}
}

func TestZeroScaledQuantitySkips(t *testing.T) {
	f := setup(t)
	follower := f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy: gobs.FixedRatio,
		Ratio:    decimal.RequireFromString("0.001"),
	}, 100000)

	ev := f.masterEvent(t, event.New, 100, "250")
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}

	if len(f.broker.placed) != 0 {
		t.Fatalf("zero quantity must not reach the broker; got %d orders", len(f.broker.placed))
	}
	// Skipped is not failed: no order map row is written.
	if _, err := f.s.GetOrderMap(context.Background(), ev.MasterOrderID, follower.ID); err == nil {
		t.Fatalf("skip must not create an order map row")
	}
}

func TestFollowerFailureIsolation(t *testing.T) {
	f := setup(t)
	bad := f.addFollower(t, "BAD00001", &gobs.FollowerRelationship{
		Strategy: gobs.FixedRatio,
		Ratio:    decimal.NewFromInt(1),
	}, 100000)
	good := f.addFollower(t, "GOOD0001", &gobs.FollowerRelationship{
		Strategy: gobs.FixedRatio,
		Ratio:    decimal.NewFromInt(1),
	}, 100000)
	f.broker.failFor["BAD00001"] = fmt.Errorf("no margin: %w", iifl.ErrRejected)

	ev := f.masterEvent(t, event.New, 10, "250")
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}

	if len(f.broker.placed) != 1 || f.broker.placed[0].ClientCode != "GOOD0001" {
		t.Fatalf("wanted one order for GOOD0001, got %+v", f.broker.placed)
	}

	bm, err := f.s.GetOrderMap(context.Background(), ev.MasterOrderID, bad.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bm.Status != gobs.ReplicationFailed || len(bm.ErrorMessage) == 0 {
		t.Fatalf("bad follower's order map: %+v", bm)
	}
	gm, err := f.s.GetOrderMap(context.Background(), ev.MasterOrderID, good.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gm.Status != gobs.ReplicationSuccess {
		t.Fatalf("good follower's order map: %+v", gm)
	}
}

func TestRedeliveryPlacesNoSecondOrder(t *testing.T) {
	f := setup(t)
	f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy: gobs.FixedRatio,
		Ratio:    decimal.NewFromInt(1),
	}, 100000)

	ev := f.masterEvent(t, event.New, 10, "250")
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}

	if len(f.broker.placed) != 1 {
		t.Fatalf("redelivery placed a second broker order; got %d", len(f.broker.placed))
	}
	orders, err := f.s.FollowerOrdersOf(context.Background(), ev.MasterOrderID)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("wanted 1 follower order, got %d", len(orders))
	}
}

func TestAuthRetry(t *testing.T) {
	f := setup(t)
	follower := f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy: gobs.FixedRatio,
		Ratio:    decimal.NewFromInt(1),
	}, 100000)
	f.broker.authFailOnce["FOLLOW001"] = true

	ev := f.masterEvent(t, event.New, 10, "250")
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}

	if len(f.broker.placed) != 1 {
		t.Fatalf("wanted a successful retry after auth failure, got %d orders", len(f.broker.placed))
	}
	if n := f.tokens.invalidated[follower.ID]; n != 1 {
		t.Fatalf("wanted 1 token invalidation, got %d", n)
	}
}

func TestModifyPropagatesPriceOnly(t *testing.T) {
	f := setup(t)
	f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy: gobs.FixedRatio,
		Ratio:    decimal.RequireFromString("0.5"),
	}, 100000)

	ev := f.masterEvent(t, event.New, 100, "250")
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}

	// Master modifies both price and quantity; only the price propagates.
	mod := f.masterEvent(t, event.Modify, 200, "260")
	if err := f.deliver(t, mod); err != nil {
		t.Fatal(err)
	}

	if len(f.broker.modified) != 1 {
		t.Fatalf("wanted 1 modify, got %d", len(f.broker.modified))
	}
	req := f.broker.modified[0]
	if req.Qty != 50 {
		t.Fatalf("modify must keep the scaled qty 50, got %d", req.Qty)
	}
	if req.Price != 260 {
		t.Fatalf("wanted new price 260, got %v", req.Price)
	}
	if len(req.BrokerOrderID) == 0 {
		t.Fatalf("modify request has no broker order id")
	}
	if len(f.broker.placed) != 1 {
		t.Fatalf("modify must not place orders; got %d", len(f.broker.placed))
	}

	orders, err := f.s.FollowerOrdersOf(context.Background(), ev.MasterOrderID)
	if err != nil {
		t.Fatal(err)
	}
	if !orders[0].Price.Equal(decimal.RequireFromString("260")) || orders[0].Quantity != 50 {
		t.Fatalf("bad follower order after modify: %+v", orders[0])
	}
}

func TestModifyWithoutMappingDoesNothing(t *testing.T) {
	f := setup(t)
	f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy: gobs.FixedRatio,
		Ratio:    decimal.NewFromInt(1),
	}, 100000)

	// No NEW event was ever delivered for this order.
	mod := f.masterEvent(t, event.Modify, 10, "260")
	if err := f.deliver(t, mod); err != nil {
		t.Fatal(err)
	}
	if len(f.broker.modified) != 0 || len(f.broker.placed) != 0 {
		t.Fatalf("modify without a mapping must be a no-op")
	}
}

func TestCancelFollowerOrders(t *testing.T) {
	f := setup(t)
	f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy: gobs.FixedRatio,
		Ratio:    decimal.NewFromInt(1),
	}, 100000)

	ev := f.masterEvent(t, event.New, 10, "250")
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}
	cancel := f.masterEvent(t, event.Cancel, 10, "250")
	if err := f.deliver(t, cancel); err != nil {
		t.Fatal(err)
	}

	if len(f.broker.cancelled) != 1 {
		t.Fatalf("wanted 1 cancel, got %d", len(f.broker.cancelled))
	}
	orders, err := f.s.FollowerOrdersOf(context.Background(), ev.MasterOrderID)
	if err != nil {
		t.Fatal(err)
	}
	if orders[0].Status != gobs.OrderCancelled {
		t.Fatalf("wanted CANCELLED, got %s", orders[0].Status)
	}

	// A second cancel is a no-op because the order is finished.
	if err := f.deliver(t, cancel); err != nil {
		t.Fatal(err)
	}
	if len(f.broker.cancelled) != 1 {
		t.Fatalf("cancel of a finished order reached the broker")
	}
}

func TestFillUpdatesMasterOrder(t *testing.T) {
	f := setup(t)

	ev := f.masterEvent(t, event.New, 10, "250")
	fill := f.masterEvent(t, event.Fill, 10, "250")
	fill.FilledQuantity = 10
	fill.AveragePrice = decimal.RequireFromString("249.75")
	fill.Status = string(gobs.OrderFilled)
	if err := f.deliver(t, fill); err != nil {
		t.Fatal(err)
	}

	order, err := f.s.GetOrder(context.Background(), ev.MasterOrderID)
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != gobs.OrderFilled || order.FilledQuantity != 10 {
		t.Fatalf("bad master order after fill: %+v", order)
	}
	if len(f.broker.placed)+len(f.broker.cancelled)+len(f.broker.modified) != 0 {
		t.Fatalf("fill must not touch the broker")
	}
}

func TestMaxOrderValueSkips(t *testing.T) {
	f := setup(t)
	follower := f.addFollower(t, "FOLLOW001", &gobs.FollowerRelationship{
		Strategy:      gobs.FixedRatio,
		Ratio:         decimal.NewFromInt(1),
		MaxOrderValue: decimal.NewFromInt(1000),
	}, 100000)

	// 10 * 250 = 2500 > 1000.
	ev := f.masterEvent(t, event.New, 10, "250")
	if err := f.deliver(t, ev); err != nil {
		t.Fatal(err)
	}
	if len(f.broker.placed) != 0 {
		t.Fatalf("order above max value reached the broker")
	}
	if _, err := f.s.GetOrderMap(context.Background(), ev.MasterOrderID, follower.ID); err == nil {
		t.Fatalf("skip must not create an order map row")
	}
}
