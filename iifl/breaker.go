// Copyright (c) 2025 BVK Chaitanya

package iifl

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// breaker trips after a run of consecutive transient failures and blocks
// further broker calls for a cooldown period. After the cooldown one probe
// request is let through; its outcome decides whether the circuit closes
// again or stays open.
type breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{threshold: threshold, cooldown: cooldown}
}

// allow reports if a request may go out. When the circuit is open it returns
// an ErrTransient-classed error so callers treat it like any other transient
// broker failure.
func (b *breaker) allow(now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return nil
	}
	if now.Sub(b.openedAt) < b.cooldown {
		return fmt.Errorf("circuit open for %s more: %w", b.cooldown-now.Sub(b.openedAt), ErrTransient)
	}
	// Cooldown is over; let a single probe through.
	if b.probing {
		return fmt.Errorf("circuit probe in flight: %w", ErrTransient)
	}
	b.probing = true
	return nil
}

// record updates the failure run with the outcome of a request. Only
// transient failures count; rejections mean the broker is healthy.
func (b *breaker) record(err error, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil || !errors.Is(err, ErrTransient) {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = now
	}
}
