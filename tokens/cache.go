// Copyright (c) 2025 BVK Chaitanya

// Package tokens caches broker session tokens in the database so repeated
// order operations don't pay the two stage login cost every time.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/kvutil"
	"github.com/bvk/replicon/syncmap"
	"github.com/bvkgo/kv"
)

const Keyspace = "/tokens"

// TTL is how long a cached token is trusted. The broker session lasts an
// hour; we expire a little early so a token never dies mid-order.
const TTL = 3000 * time.Second

// Authenticator performs the broker login for a user.
type Authenticator interface {
	Login(ctx context.Context, clientCode, password, publicIP string) (string, error)
}

type call struct {
	done  chan struct{}
	token string
	err   error
}

type Cache struct {
	db kv.Database

	auth Authenticator

	// inflight collapses concurrent refreshes of the same user's token
	// into a single login request.
	inflight syncmap.Map[int64, *call]
}

func New(db kv.Database, auth Authenticator) *Cache {
	return &Cache{db: db, auth: auth}
}

func tokenKey(userID int64) string {
	return fmt.Sprintf("%s/%012d", Keyspace, userID)
}

// GetOrRefresh returns a valid session token for the user, logging in with
// the broker when the cached one is missing or expired.
func (c *Cache) GetOrRefresh(ctx context.Context, u *gobs.User) (string, error) {
	if tok, err := c.cached(ctx, u.ID); err == nil {
		return tok, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	nc := &call{done: make(chan struct{})}
	old, loaded := c.inflight.LoadOrStore(u.ID, nc)
	if loaded {
		select {
		case <-old.done:
			return old.token, old.err
		case <-ctx.Done():
			return "", context.Cause(ctx)
		}
	}

	nc.token, nc.err = c.refresh(ctx, u)
	c.inflight.Delete(u.ID)
	close(nc.done)
	return nc.token, nc.err
}

func (c *Cache) cached(ctx context.Context, userID int64) (string, error) {
	tok, err := kvutil.GetDB[gobs.SessionToken](ctx, c.db, tokenKey(userID))
	if err != nil {
		return "", err
	}
	if tok.Expired(time.Now()) {
		return "", os.ErrNotExist
	}
	return tok.Token, nil
}

func (c *Cache) refresh(ctx context.Context, u *gobs.User) (string, error) {
	token, err := c.auth.Login(ctx, u.BrokerAccountCode, u.BrokerPassword, u.PublicIP)
	if err != nil {
		return "", fmt.Errorf("could not login user %d: %w", u.ID, err)
	}
	v := &gobs.SessionToken{
		UserID:    u.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(TTL),
	}
	if err := kvutil.SetDB(ctx, c.db, tokenKey(u.ID), v); err != nil {
		return "", err
	}
	slog.Info("refreshed broker session token", "user", u.ID, "expires_at", v.ExpiresAt)
	return token, nil
}

// Invalidate drops the cached token of the user. Callers invoke this when
// the broker rejects a token so that the next operation logs in again.
func (c *Cache) Invalidate(ctx context.Context, userID int64) error {
	drop := func(ctx context.Context, rw kv.ReadWriter) error {
		if err := rw.Delete(ctx, tokenKey(userID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return kv.WithReadWriter(ctx, c.db, drop)
}
