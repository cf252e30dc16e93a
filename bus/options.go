// Copyright (c) 2025 BVK Chaitanya

package bus

import (
	"fmt"
	"time"
)

type Options struct {
	// Prefetch bounds the number of unacked deliveries per consumer. One
	// keeps the per-master ordering of the queue.
	Prefetch int

	// MaxDeliveries is the number of handler attempts before a message is
	// dead-lettered.
	MaxDeliveries int

	// DedupWindow is how long an idempotency key is remembered. Webhook
	// retries from the broker arrive within seconds.
	DedupWindow time.Duration
}

func (v *Options) setDefaults() {
	if v.Prefetch == 0 {
		v.Prefetch = 1
	}
	if v.MaxDeliveries == 0 {
		v.MaxDeliveries = 3
	}
	if v.DedupWindow == 0 {
		v.DedupWindow = 2 * time.Minute
	}
}

func (v *Options) Check() error {
	if v.Prefetch < 0 {
		return fmt.Errorf("prefetch cannot be negative")
	}
	if v.MaxDeliveries < 1 {
		return fmt.Errorf("max deliveries must be at least one")
	}
	return nil
}
