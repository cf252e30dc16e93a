// Copyright (c) 2025 BVK Chaitanya

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bvk/replicon/api"
	"github.com/bvk/replicon/event"
	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/store"
)

// Publisher sends normalized events to the bus.
type Publisher interface {
	Publish(ctx context.Context, env *event.Envelope) error
}

type Handler struct {
	store *store.Store

	pub Publisher
}

func NewHandler(s *store.Store, pub Publisher) *Handler {
	return &Handler{store: s, pub: pub}
}

// ServeHTTP handles one vendor webhook. The master order is recorded before
// the event is published, so the bus only ever carries order ids that exist
// in the database.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p := new(Payload)
	if err := json.NewDecoder(r.Body).Decode(p); err != nil {
		http.Error(w, fmt.Sprintf("could not decode payload: %v", err), http.StatusBadRequest)
		return
	}
	if err := p.Check(); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusUnprocessableEntity)
		return
	}

	resp, err := h.handle(r.Context(), p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, fmt.Sprintf("unknown master account: %v", err), http.StatusNotFound)
			return
		}
		if errors.Is(err, errPublish) {
			http.Error(w, fmt.Sprintf("could not queue the event: %v", err), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

var errPublish = errors.New("publish failed")

func (h *Handler) handle(ctx context.Context, p *Payload) (*api.WebhookResponse, error) {
	master, err := h.store.FindActiveMasterByBrokerCode(ctx, p.AccountCode)
	if err != nil {
		return nil, fmt.Errorf("could not resolve master account %q: %w", p.AccountCode, err)
	}

	ev, err := Normalize(p)
	if err != nil {
		return nil, err
	}

	template := &gobs.Order{
		UserID:          master.ID,
		BrokerOrderID:   ev.BrokerOrderID,
		ExchangeOrderID: ev.ExchangeOrderID,
		Symbol:          ev.Symbol,
		ScripCode:       ev.ScripCode,
		Exchange:        ev.Exchange,
		ExchangeType:    ev.ExchangeType,
		Side:            gobs.OrderSide(ev.Side),
		Type:            gobs.OrderType(ev.OrderType),
		Quantity:        ev.Quantity,
		Price:           ev.Price,
		TriggerPrice:    ev.TriggerPrice,
		FilledQuantity:  ev.FilledQuantity,
		AveragePrice:    ev.AveragePrice,
		Status:          gobs.OrderStatus(ev.Status),
		IsIntraday:      ev.IsIntraday,
	}
	order, created, err := h.store.UpsertMasterOrder(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("could not record master order: %w", err)
	}
	ev.MasterOrderID = order.ID
	ev.MasterUserID = master.ID

	followers, err := h.store.ActiveFollowersOf(ctx, master.ID)
	if err != nil {
		return nil, fmt.Errorf("could not list followers: %w", err)
	}

	env := event.NewEnvelope(ev, ev.Timestamp)
	if err := h.pub.Publish(ctx, env); err != nil {
		return nil, fmt.Errorf("%w: %v", errPublish, err)
	}

	rec := &gobs.AuditRecord{
		Action:  gobs.AuditWebhookReceived,
		UserID:  master.ID,
		OrderID: order.ID,
		Details: fmt.Sprintf("event=%s broker_order=%s followers=%d created=%t", ev.Kind, ev.BrokerOrderID, len(followers), created),
	}
	if err := h.store.AppendAudit(ctx, rec); err != nil {
		slog.Warn("could not append audit record", "action", rec.Action, "err", err)
	}

	slog.Info("webhook accepted", "master", master.ID, "order", order.ID, "event", ev.Kind, "followers", len(followers))
	return &api.WebhookResponse{
		Success:              true,
		Message:              fmt.Sprintf("event %s accepted", ev.Kind),
		ProcessedAt:          time.Now().UTC(),
		ReplicationInitiated: len(followers) > 0 && ev.Kind == event.New,
		FollowerCount:        len(followers),
	}, nil
}
