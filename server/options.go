// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"time"

	"github.com/bvk/replicon/iifl"
	"github.com/bvk/replicon/worker"
)

type Options struct {
	BrokerOptions iifl.Options

	WorkerOptions worker.Options

	// AlertFreeze is how long repeat replication-failure alerts of the
	// same master are suppressed.
	AlertFreeze time.Duration

	// NoTelegram disables the telegram bot even when its secrets are
	// configured.
	NoTelegram bool
}

func (v *Options) setDefaults() {
	if v.AlertFreeze == 0 {
		v.AlertFreeze = time.Hour
	}
}

func (v *Options) Check() error {
	return nil
}
