// Copyright (c) 2025 BVK Chaitanya

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bvk/replicon/api"
	"github.com/bvk/replicon/event"
	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/store"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"
)

type fakePublisher struct {
	envs []*event.Envelope
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, env *event.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.envs = append(f.envs, env)
	return nil
}

func setupHandler(t *testing.T, pub Publisher) (*store.Store, *Handler) {
	t.Helper()
	s := store.New(kvmemdb.New())
	master := &gobs.User{
		Role:              gobs.RoleMaster,
		Active:            true,
		BrokerAccountCode: "MASTER001",
		Balance:           decimal.NewFromInt(1000000),
	}
	if _, err := s.AddUser(context.Background(), master); err != nil {
		t.Fatal(err)
	}
	follower := &gobs.User{
		Role:              gobs.RoleFollower,
		Active:            true,
		BrokerAccountCode: "FOLLOW001",
		Balance:           decimal.NewFromInt(500000),
	}
	if _, err := s.AddUser(context.Background(), follower); err != nil {
		t.Fatal(err)
	}
	rel := &gobs.FollowerRelationship{
		MasterID:   master.ID,
		FollowerID: follower.ID,
		Active:     true,
		Strategy:   gobs.FixedRatio,
		Ratio:      decimal.NewFromInt(1),
	}
	if _, err := s.LinkFollower(context.Background(), rel); err != nil {
		t.Fatal(err)
	}
	return s, NewHandler(s, pub)
}

func postPayload(t *testing.T, h *Handler, p *Payload) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, api.WebhookPath, bytes.NewReader(data))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandlerAcceptsOrder(t *testing.T) {
	pub := &fakePublisher{}
	s, h := setupHandler(t, pub)

	w := postPayload(t, h, testPayload())
	if w.Code != http.StatusOK {
		t.Fatalf("wanted 200, got %d: %s", w.Code, w.Body)
	}
	var resp api.WebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || !resp.ReplicationInitiated || resp.FollowerCount != 1 {
		t.Fatalf("bad response: %+v", resp)
	}

	if len(pub.envs) != 1 {
		t.Fatalf("wanted 1 published event, got %d", len(pub.envs))
	}
	env := pub.envs[0]
	if env.EventType != event.New {
		t.Fatalf("wanted NEW event, got %s", env.EventType)
	}
	if env.MasterOrderID == 0 {
		t.Fatalf("event was published without a master order id")
	}

	order, err := s.GetOrder(context.Background(), env.MasterOrderID)
	if err != nil {
		t.Fatal(err)
	}
	if !order.IsMaster || order.BrokerOrderID != "B100" {
		t.Fatalf("bad master order row: %+v", order)
	}

	recs, err := s.ListAudit(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Action != gobs.AuditWebhookReceived {
		t.Fatalf("wanted one WEBHOOK_RECEIVED audit record, got %+v", recs)
	}
}

func TestHandlerRetransmission(t *testing.T) {
	pub := &fakePublisher{}
	s, h := setupHandler(t, pub)

	if w := postPayload(t, h, testPayload()); w.Code != http.StatusOK {
		t.Fatalf("wanted 200, got %d", w.Code)
	}
	if w := postPayload(t, h, testPayload()); w.Code != http.StatusOK {
		t.Fatalf("wanted 200, got %d", w.Code)
	}

	// Both events carry the same idempotency key and order id; the bus
	// dedup drops the second one downstream.
	if len(pub.envs) != 2 {
		t.Fatalf("wanted 2 published events, got %d", len(pub.envs))
	}
	if pub.envs[0].IdempotencyKey != pub.envs[1].IdempotencyKey {
		t.Fatalf("retransmission changed the idempotency key: %q vs %q", pub.envs[0].IdempotencyKey, pub.envs[1].IdempotencyKey)
	}
	if pub.envs[0].MasterOrderID != pub.envs[1].MasterOrderID {
		t.Fatalf("retransmission created a second master order")
	}

	orders, err := s.FollowerOrdersOf(context.Background(), pub.envs[0].MasterOrderID)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 0 {
		t.Fatalf("webhook ingress must not create follower orders; got %d", len(orders))
	}
}

func TestHandlerUnknownAccount(t *testing.T) {
	_, h := setupHandler(t, &fakePublisher{})

	p := testPayload()
	p.AccountCode = "NOBODY"
	if w := postPayload(t, h, p); w.Code != http.StatusNotFound {
		t.Fatalf("wanted 404, got %d", w.Code)
	}
}

func TestHandlerBadPayload(t *testing.T) {
	_, h := setupHandler(t, &fakePublisher{})

	p := testPayload()
	p.Side = "HOLD"
	if w := postPayload(t, h, p); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("wanted 422, got %d", w.Code)
	}

	r := httptest.NewRequest(http.MethodGet, api.WebhookPath, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wanted 405, got %d", w.Code)
	}
}

func TestHandlerPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unreachable")}
	_, h := setupHandler(t, pub)

	if w := postPayload(t, h, testPayload()); w.Code != http.StatusBadGateway {
		t.Fatalf("wanted 502, got %d", w.Code)
	}
}
