// Copyright (c) 2025 BVK Chaitanya

package bus

import (
	"context"
	"log/slog"
)

// Handler processes one delivery. A nil return acks the message; an error
// re-queues it until the retry budget runs out, after which the message is
// dead-lettered.
type Handler func(ctx context.Context, subject string, body []byte) error

// Consume receives deliveries from the worker queue and feeds them to the
// handler one at a time. It returns when the context is done or the channel
// is closed underneath us.
func (b *Bus) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := b.ch.Consume(WorkerQueue, "" /* consumer */, false /* autoAck */, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)

		case d, ok := <-deliveries:
			if !ok {
				return nil
			}

			seen, err := b.seen(ctx, d.MessageId)
			if err != nil {
				slog.Error("could not check the dedup window; processing anyway", "key", d.MessageId, "err", err)
			}
			if seen {
				slog.Info("dropping duplicate delivery", "subject", d.RoutingKey, "key", d.MessageId)
				d.Ack(false)
				continue
			}

			if err := handler(ctx, d.RoutingKey, d.Body); err != nil {
				retries := deliveryRetries(&d)
				if int(retries)+1 >= b.opts.MaxDeliveries {
					slog.Error("dead-lettering delivery", "subject", d.RoutingKey, "key", d.MessageId, "retries", retries, "err", err)
					d.Nack(false, false)
					continue
				}
				slog.Warn("re-queueing failed delivery", "subject", d.RoutingKey, "key", d.MessageId, "retries", retries, "err", err)
				if perr := b.republish(ctx, &d, retries); perr != nil {
					slog.Error("could not re-queue delivery", "key", d.MessageId, "err", perr)
					d.Nack(false, true /* requeue */)
					continue
				}
				d.Ack(false)
				continue
			}

			if err := b.markSeen(ctx, d.MessageId); err != nil {
				slog.Error("could not record the idempotency key", "key", d.MessageId, "err", err)
			}
			d.Ack(false)
		}
	}
}
