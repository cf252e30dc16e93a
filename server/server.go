// Copyright (c) 2025 BVK Chaitanya

// Package server wires the webhook ingress, the event bus consumer and the
// replication worker into one service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/bvk/replicon/api"
	"github.com/bvk/replicon/bus"
	"github.com/bvk/replicon/ctxutil"
	"github.com/bvk/replicon/iifl"
	"github.com/bvk/replicon/ordermap"
	"github.com/bvk/replicon/store"
	"github.com/bvk/replicon/telegram"
	"github.com/bvk/replicon/tokens"
	"github.com/bvk/replicon/webhook"
	"github.com/bvk/replicon/worker"
	"github.com/bvkgo/kv"
)

type Server struct {
	cg ctxutil.CloseGroup

	opts Options

	db kv.Database

	store *store.Store

	broker *iifl.Client

	tokens *tokens.Cache

	maps *ordermap.Cache

	bus *bus.Bus

	worker *worker.Worker

	webhook *webhook.Handler

	telegramClient *telegram.Client

	// alertFreezeDeadlineMap suppresses repeat alerts per master until
	// the deadline.
	alertFreezeDeadlineMap map[string]time.Time

	numOK     atomic.Int64
	numFailed atomic.Int64

	startedAt time.Time
}

func New(ctx context.Context, secrets *Secrets, db kv.Database, msgbus *bus.Bus, opts *Options) (_ *Server, status error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if err := secrets.Check(); err != nil {
		return nil, err
	}

	broker, err := iifl.New(secrets.IIFL, &opts.BrokerOptions)
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:                   *opts,
		db:                     db,
		store:                  store.New(db),
		broker:                 broker,
		bus:                    msgbus,
		alertFreezeDeadlineMap: make(map[string]time.Time),
		startedAt:              time.Now(),
	}
	s.tokens = tokens.New(db, broker)
	s.maps = ordermap.New(db, s.store)
	s.worker = worker.New(s.store, s.maps, s.tokens, broker, &opts.WorkerOptions)
	s.webhook = webhook.NewHandler(s.store, msgbus)

	if secrets.Telegram != nil && !opts.NoTelegram {
		tc, err := telegram.New(ctx, db, secrets.Telegram)
		if err != nil {
			s.worker.Close()
			return nil, err
		}
		s.telegramClient = tc
	}
	return s, nil
}

func (s *Server) Close() error {
	s.cg.Close()
	s.worker.Close()
	if s.telegramClient != nil {
		s.telegramClient.Close()
	}
	return nil
}

// Start begins consuming bus deliveries and watching replication outcomes.
func (s *Server) Start(ctx context.Context) error {
	s.cg.Go(func(ctx context.Context) {
		if err := s.bus.Consume(ctx, s.worker.Handle); err != nil && !errors.Is(err, os.ErrClosed) && !errors.Is(err, context.Canceled) {
			slog.Error("bus consumer has stopped", "err", err)
		}
	})
	s.cg.Go(s.watchForFailures)

	if s.telegramClient != nil {
		if err := s.AddTelegramCommand(ctx, "status", "Prints replicon status summary", s.statusTelegramCmd); err != nil {
			slog.Warn("could not add the status telegram command", "err", err)
		}
	}
	slog.Info("replication server started")
	return nil
}

// HandlerMap returns the http handlers of the service endpoints.
func (s *Server) HandlerMap() map[string]http.Handler {
	return map[string]http.Handler{
		api.WebhookPath: s.webhook,

		api.StatusPath: postHandler(s.doStatus),

		api.UserAddPath:  postHandler(s.doUserAdd),
		api.UserListPath: postHandler(s.doUserList),

		api.FollowerLinkPath:   postHandler(s.doFollowerLink),
		api.FollowerUnlinkPath: postHandler(s.doFollowerUnlink),
		api.FollowerListPath:   postHandler(s.doFollowerList),

		api.OrderMapGetPath: postHandler(s.doOrderMapGet),
	}
}

func (s *Server) AddTelegramCommand(ctx context.Context, name, purpose string, handler telegram.CmdFunc) error {
	if s.telegramClient != nil {
		return s.telegramClient.AddCommand(ctx, name, purpose, handler)
	}
	return nil // Ignored
}

// SendMessage notifies the configured telegram receivers.
func (s *Server) SendMessage(ctx context.Context, at time.Time, format string, args ...any) {
	if s.telegramClient == nil {
		return
	}
	if err := s.telegramClient.SendMessage(ctx, at, fmt.Sprintf(format, args...)); err != nil {
		slog.Warn("could not send telegram message", "err", err)
	}
}
