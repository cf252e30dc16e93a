// Copyright (c) 2025 BVK Chaitanya

package iifl

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Now()
	b := newBreaker(3, 30*time.Second)

	for i := 0; i < 3; i++ {
		if err := b.allow(now); err != nil {
			t.Fatalf("attempt %d should be allowed: %v", i, err)
		}
		b.record(ErrTransient, now)
	}

	if err := b.allow(now); !errors.Is(err, ErrTransient) {
		t.Fatalf("wanted the circuit open, got %v", err)
	}
}

func TestBreakerProbeAfterCooldown(t *testing.T) {
	now := time.Now()
	b := newBreaker(3, 30*time.Second)
	for i := 0; i < 3; i++ {
		b.record(ErrTransient, now)
	}

	later := now.Add(31 * time.Second)
	if err := b.allow(later); err != nil {
		t.Fatalf("probe should be allowed after cooldown: %v", err)
	}
	// Only one probe at a time.
	if err := b.allow(later); err == nil {
		t.Fatalf("second probe should be blocked while the first is in flight")
	}

	// A failed probe restarts the cooldown.
	b.record(ErrTransient, later)
	if err := b.allow(later.Add(time.Second)); err == nil {
		t.Fatalf("circuit should stay open after a failed probe")
	}

	// A successful probe closes the circuit.
	again := later.Add(31 * time.Second)
	if err := b.allow(again); err != nil {
		t.Fatalf("probe should be allowed after second cooldown: %v", err)
	}
	b.record(nil, again)
	if err := b.allow(again); err != nil {
		t.Fatalf("circuit should be closed after a successful probe: %v", err)
	}
}

func TestBreakerIgnoresRejections(t *testing.T) {
	now := time.Now()
	b := newBreaker(2, 30*time.Second)

	b.record(ErrTransient, now)
	b.record(ErrRejected, now)
	b.record(ErrTransient, now)

	if err := b.allow(now); err != nil {
		t.Fatalf("rejections must reset the failure run: %v", err)
	}
}
