// Copyright (c) 2025 BVK Chaitanya

package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bvk/replicon/event"
	amqp "github.com/rabbitmq/amqp091-go"
)

const retryCountHeader = "x-retry-count"

// Publish sends the envelope to the exchange on the subject of its event
// kind. Messages are persistent so a broker restart doesn't lose them.
func (b *Bus) Publish(ctx context.Context, env *event.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	subject := env.EventType.Subject()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.IdempotencyKey,
		Timestamp:    env.Timestamp,
		Body:         data,
	}
	if err := b.ch.PublishWithContext(ctx, Exchange, subject, false, false, msg); err != nil {
		return fmt.Errorf("could not publish to %s: %w", subject, err)
	}
	slog.Info("published order event", "subject", subject, "master_order", env.MasterOrderID, "key", env.IdempotencyKey)
	return nil
}

// republish re-queues a failed delivery with a bumped retry counter.
func (b *Bus) republish(ctx context.Context, d *amqp.Delivery, retries int32) error {
	msg := amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    d.Timestamp,
		Headers:      amqp.Table{retryCountHeader: retries + 1},
		Body:         d.Body,
	}
	return b.ch.PublishWithContext(ctx, Exchange, d.RoutingKey, false, false, msg)
}

func deliveryRetries(d *amqp.Delivery) int32 {
	if d.Headers == nil {
		return 0
	}
	switch v := d.Headers[retryCountHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	}
	return 0
}
