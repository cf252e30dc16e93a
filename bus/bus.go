// Copyright (c) 2025 BVK Chaitanya

// Package bus carries normalized order events from the webhook handler to
// the replication worker over RabbitMQ. A single durable queue preserves the
// arrival order of a master's events; failed deliveries are retried a few
// times and then dead-lettered.
package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bvk/replicon/ctxutil"
	"github.com/bvk/replicon/event"
	"github.com/bvkgo/kv"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange     = "replicon.orders"
	DeadExchange = "replicon.orders.dlx"

	WorkerQueue = "replicon.orders.worker"
	DeadQueue   = "replicon.orders.dead"
)

type Bus struct {
	opts Options

	cg ctxutil.CloseGroup

	conn *amqp.Connection
	ch   *amqp.Channel

	// db backs the idempotency-key dedup window.
	db kv.Database
}

// Dial connects to the broker at the amqp address and declares the exchange,
// queue and dead-letter topology.
func Dial(ctx context.Context, addr string, db kv.Database, opts *Options) (*Bus, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("could not dial message broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not open a channel: %w", err)
	}

	b := &Bus{
		opts: *opts,
		conn: conn,
		ch:   ch,
		db:   db,
	}

	if err := b.declareTopology(); err != nil {
		b.Close()
		return nil, err
	}
	if err := ch.Qos(b.opts.Prefetch, 0, false); err != nil {
		b.Close()
		return nil, fmt.Errorf("could not set channel qos: %w", err)
	}

	b.cg.Go(b.cleanDedupLoop)
	return b, nil
}

func (b *Bus) Close() {
	b.cg.Close()
	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Bus) declareTopology() error {
	if err := b.ch.ExchangeDeclare(Exchange, "direct", true /* durable */, false, false, false, nil); err != nil {
		return fmt.Errorf("could not declare exchange %s: %w", Exchange, err)
	}
	if err := b.ch.ExchangeDeclare(DeadExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("could not declare exchange %s: %w", DeadExchange, err)
	}

	if _, err := b.ch.QueueDeclare(DeadQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("could not declare queue %s: %w", DeadQueue, err)
	}
	if err := b.ch.QueueBind(DeadQueue, "", DeadExchange, false, nil); err != nil {
		return fmt.Errorf("could not bind queue %s: %w", DeadQueue, err)
	}

	args := amqp.Table{"x-dead-letter-exchange": DeadExchange}
	if _, err := b.ch.QueueDeclare(WorkerQueue, true, false, false, false, args); err != nil {
		return fmt.Errorf("could not declare queue %s: %w", WorkerQueue, err)
	}
	for _, subject := range event.Subjects() {
		if err := b.ch.QueueBind(WorkerQueue, subject, Exchange, false, nil); err != nil {
			return fmt.Errorf("could not bind %s to %s: %w", WorkerQueue, subject, err)
		}
	}
	slog.Info("declared message bus topology", "exchange", Exchange, "queue", WorkerQueue)
	return nil
}
