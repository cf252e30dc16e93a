// Copyright (c) 2025 BVK Chaitanya

package bus

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/bvk/replicon/ctxutil"
	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/kvutil"
	"github.com/bvkgo/kv"
)

const DedupKeyspace = "/dedup"

func dedupKey(key string) string {
	return path.Join(DedupKeyspace, key)
}

// seen reports if the idempotency key was already processed inside the dedup
// window. Keys are recorded by markSeen after successful handling, so a
// failed delivery is never treated as a duplicate.
func (b *Bus) seen(ctx context.Context, key string) (bool, error) {
	if len(key) == 0 {
		return false, nil
	}
	e, err := kvutil.GetDB[gobs.DedupEntry](ctx, b.db, dedupKey(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return e.ExpiresAt.After(time.Now()), nil
}

func (b *Bus) markSeen(ctx context.Context, key string) error {
	if len(key) == 0 {
		return nil
	}
	e := &gobs.DedupEntry{
		Key:       key,
		ExpiresAt: time.Now().Add(b.opts.DedupWindow),
	}
	return kvutil.SetDB(ctx, b.db, dedupKey(key), e)
}

// cleanDedupLoop drops expired dedup entries periodically.
func (b *Bus) cleanDedupLoop(ctx context.Context) {
	for ctx.Err() == nil {
		ctxutil.Sleep(ctx, b.opts.DedupWindow)
		if ctx.Err() != nil {
			return
		}
		if err := b.cleanDedup(ctx); err != nil {
			slog.Warn("could not clean up the dedup window", "err", err)
		}
	}
}

func (b *Bus) cleanDedup(ctx context.Context) error {
	now := time.Now()
	var expired []string
	begin, end := kvutil.PathRange(DedupKeyspace)
	collect := func(ctx context.Context, r kv.Reader, k string, e *gobs.DedupEntry) error {
		if e.ExpiresAt.Before(now) {
			expired = append(expired, k)
		}
		return nil
	}
	if err := kvutil.AscendDB(ctx, b.db, begin, end, collect); err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}
	drop := func(ctx context.Context, rw kv.ReadWriter) error {
		for _, k := range expired {
			if err := rw.Delete(ctx, k); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
		return nil
	}
	return kv.WithReadWriter(ctx, b.db, drop)
}
