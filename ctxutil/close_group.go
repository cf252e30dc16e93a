// Copyright (c) 2025 BVK Chaitanya

package ctxutil

import (
	"context"
	"os"
	"sync"
	"time"
)

// CloseGroup manages background goroutines whose lifetime ends together.
// Close cancels the group context with os.ErrClosed and waits for all
// goroutines to return.
type CloseGroup struct {
	closeCtx  context.Context
	causeFunc context.CancelCauseFunc

	wg sync.WaitGroup

	once sync.Once
}

func (cg *CloseGroup) init() {
	cg.closeCtx, cg.causeFunc = context.WithCancelCause(context.Background())
}

func (cg *CloseGroup) Close() {
	cg.once.Do(cg.init)
	cg.causeFunc(os.ErrClosed)
	cg.wg.Wait()
}

func (cg *CloseGroup) Context() context.Context {
	cg.once.Do(cg.init)
	return cg.closeCtx
}

func (cg *CloseGroup) Go(f func(ctx context.Context)) {
	cg.once.Do(cg.init)

	cg.wg.Add(1)
	go func() {
		defer cg.wg.Done()
		f(cg.closeCtx)
	}()
}

// AfterDurationFunc runs f after d unless the group is closed first.
func (cg *CloseGroup) AfterDurationFunc(d time.Duration, f func(ctx context.Context)) {
	cg.Go(func(ctx context.Context) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
			f(ctx)
		}
	})
}
