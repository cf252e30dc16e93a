// Copyright (c) 2025 BVK Chaitanya

package iifl

import (
	"fmt"
	"time"
)

type Options struct {
	// RatePerSecond limits the number of outgoing broker requests.
	RatePerSecond int

	HttpClientTimeout time.Duration

	// OrderTimeout bounds a single order operation, including retries.
	OrderTimeout time.Duration

	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// BreakerThreshold is the number of consecutive failures after which
	// the circuit opens. BreakerCooldown is how long it stays open before
	// a probe request is allowed.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func (v *Options) setDefaults() {
	if v.RatePerSecond == 0 {
		v.RatePerSecond = 10
	}
	if v.HttpClientTimeout == 0 {
		v.HttpClientTimeout = 30 * time.Second
	}
	if v.OrderTimeout == 0 {
		v.OrderTimeout = 30 * time.Second
	}
	if v.MaxRetries == 0 {
		v.MaxRetries = 3
	}
	if v.RetryBaseDelay == 0 {
		v.RetryBaseDelay = 500 * time.Millisecond
	}
	if v.RetryMaxDelay == 0 {
		v.RetryMaxDelay = 30 * time.Second
	}
	if v.BreakerThreshold == 0 {
		v.BreakerThreshold = 5
	}
	if v.BreakerCooldown == 0 {
		v.BreakerCooldown = 30 * time.Second
	}
}

func (v *Options) Check() error {
	if v.RatePerSecond < 0 {
		return fmt.Errorf("rate per second cannot be negative")
	}
	if v.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if v.RetryBaseDelay > v.RetryMaxDelay && v.RetryMaxDelay != 0 {
		return fmt.Errorf("retry base delay cannot exceed the max delay")
	}
	return nil
}
