// Copyright (c) 2025 BVK Chaitanya

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/bvkgo/kv/kvmemdb"
	amqp "github.com/rabbitmq/amqp091-go"
)

func testBus(t *testing.T, window time.Duration) *Bus {
	t.Helper()
	opts := &Options{DedupWindow: window}
	opts.setDefaults()
	return &Bus{opts: *opts, db: kvmemdb.New()}
}

func TestDedupWindow(t *testing.T) {
	ctx := context.Background()
	b := testBus(t, 2*time.Minute)

	key := "42_NEW_1700000000"
	if seen, err := b.seen(ctx, key); err != nil || seen {
		t.Fatalf("fresh key must not be seen: seen=%v err=%v", seen, err)
	}
	if err := b.markSeen(ctx, key); err != nil {
		t.Fatal(err)
	}
	if seen, err := b.seen(ctx, key); err != nil || !seen {
		t.Fatalf("marked key must be seen: seen=%v err=%v", seen, err)
	}

	// Another key is unaffected.
	if seen, err := b.seen(ctx, "43_NEW_1700000000"); err != nil || seen {
		t.Fatalf("unrelated key must not be seen: seen=%v err=%v", seen, err)
	}
}

func TestDedupExpiry(t *testing.T) {
	ctx := context.Background()
	b := testBus(t, time.Millisecond)

	key := "42_FILL_1700000000"
	if err := b.markSeen(ctx, key); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	if seen, err := b.seen(ctx, key); err != nil || seen {
		t.Fatalf("expired key must not be seen: seen=%v err=%v", seen, err)
	}

	if err := b.cleanDedup(ctx); err != nil {
		t.Fatal(err)
	}
	if seen, err := b.seen(ctx, key); err != nil || seen {
		t.Fatalf("cleaned key must not be seen: seen=%v err=%v", seen, err)
	}
}

func TestDedupCleanerStopsOnCancel(t *testing.T) {
	b := testBus(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.cleanDedupLoop(ctx)
		close(done)
	}()

	// The cleaner sleeps a full dedup window between passes; cancellation
	// must wake it up immediately.
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("dedup cleaner did not stop on cancellation")
	}
}

func TestEmptyKeyIsNeverSeen(t *testing.T) {
	ctx := context.Background()
	b := testBus(t, 2*time.Minute)

	if err := b.markSeen(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if seen, err := b.seen(ctx, ""); err != nil || seen {
		t.Fatalf("empty key must not dedup: seen=%v err=%v", seen, err)
	}
}

func TestDeliveryRetries(t *testing.T) {
	d := &amqp.Delivery{}
	if n := deliveryRetries(d); n != 0 {
		t.Fatalf("wanted 0 retries, got %d", n)
	}
	d.Headers = amqp.Table{retryCountHeader: int32(2)}
	if n := deliveryRetries(d); n != 2 {
		t.Fatalf("wanted 2 retries, got %d", n)
	}
	d.Headers = amqp.Table{retryCountHeader: int64(1)}
	if n := deliveryRetries(d); n != 1 {
		t.Fatalf("wanted 1 retry, got %d", n)
	}
}
