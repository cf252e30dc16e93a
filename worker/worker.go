// Copyright (c) 2025 BVK Chaitanya

// Package worker consumes normalized order events from the bus and
// replicates them into the follower accounts. New orders fan out
// concurrently with per-follower failure isolation; modify, cancel and fill
// events only touch orders that already exist.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bvk/replicon/event"
	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/iifl"
	"github.com/bvk/replicon/ordermap"
	"github.com/bvk/replicon/store"
	"github.com/visvasity/topic"
)

// Broker places, modifies and cancels orders on the brokerage backend.
type Broker interface {
	PlaceOrder(ctx context.Context, token string, req *iifl.OrderRequest) (*iifl.OrderResponse, error)
	ModifyOrder(ctx context.Context, token string, req *iifl.OrderRequest) (*iifl.OrderResponse, error)
	CancelOrder(ctx context.Context, token string, req *iifl.OrderRequest) (*iifl.OrderResponse, error)
}

// TokenSource supplies broker session tokens for users.
type TokenSource interface {
	GetOrRefresh(ctx context.Context, u *gobs.User) (string, error)
	Invalidate(ctx context.Context, userID int64) error
}

type Options struct {
	// MaxConcurrency bounds the number of in-flight follower operations
	// of a single fan-out.
	MaxConcurrency int
}

func (v *Options) setDefaults() {
	if v.MaxConcurrency == 0 {
		v.MaxConcurrency = 50
	}
}

// Result is the outcome of one follower operation, published on the results
// topic for alerting.
type Result struct {
	Kind event.Kind

	MasterOrderID  int64
	MasterUserID   int64
	FollowerUserID int64

	Skipped bool
	Err     error

	Latency time.Duration

	followerOrderID       int64
	followerBrokerOrderID string
}

// entry returns the order-map cache entry for a successful replication.
func (r *Result) entry() (gobs.OrderMappingEntry, bool) {
	if r.Skipped || r.Err != nil || r.followerOrderID == 0 {
		return gobs.OrderMappingEntry{}, false
	}
	return gobs.OrderMappingEntry{
		FollowerOrderID:       r.followerOrderID,
		FollowerBrokerOrderID: r.followerBrokerOrderID,
	}, true
}

type Worker struct {
	opts Options

	store *store.Store

	maps *ordermap.Cache

	tokens TokenSource

	broker Broker

	results *topic.Topic[*Result]

	sem chan struct{}
}

func New(s *store.Store, maps *ordermap.Cache, tokens TokenSource, broker Broker, opts *Options) *Worker {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	return &Worker{
		opts:    *opts,
		store:   s,
		maps:    maps,
		tokens:  tokens,
		broker:  broker,
		results: topic.New[*Result](),
		sem:     make(chan struct{}, opts.MaxConcurrency),
	}
}

func (w *Worker) Close() {
	w.results.Close()
}

// Results returns the topic carrying per-follower replication outcomes.
func (w *Worker) Results() *topic.Topic[*Result] {
	return w.results
}

// Handle processes one bus delivery. Per-follower broker failures are
// absorbed here; only infrastructure failures return an error, which makes
// the bus re-queue the delivery.
func (w *Worker) Handle(ctx context.Context, subject string, body []byte) error {
	kind, err := event.KindForSubject(subject)
	if err != nil {
		return err
	}
	env := new(event.Envelope)
	if err := json.Unmarshal(body, env); err != nil {
		return fmt.Errorf("could not decode envelope on %s: %w", subject, err)
	}
	ev := &env.OrderData
	if ev.MasterOrderID == 0 {
		return fmt.Errorf("envelope on %s has no master order id", subject)
	}

	switch kind {
	case event.New:
		return w.handleNew(ctx, ev)
	case event.Modify:
		return w.handleModify(ctx, ev)
	case event.Cancel:
		return w.handleCancel(ctx, ev)
	case event.Fill:
		return w.handleFill(ctx, ev)
	}
	return fmt.Errorf("unrecognized event kind %q", kind)
}

func (w *Worker) audit(ctx context.Context, action string, userID, orderID int64, details string) {
	rec := &gobs.AuditRecord{
		Action:  action,
		UserID:  userID,
		OrderID: orderID,
		Details: details,
	}
	if err := w.store.AppendAudit(ctx, rec); err != nil {
		slog.Warn("could not append audit record", "action", action, "err", err)
	}
}
