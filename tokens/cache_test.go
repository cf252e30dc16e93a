// Copyright (c) 2025 BVK Chaitanya

package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/kvutil"
	"github.com/bvkgo/kv/kvmemdb"
)

type fakeAuth struct {
	logins atomic.Int64
	err    error
	delay  time.Duration
}

func (f *fakeAuth) Login(ctx context.Context, clientCode, password, publicIP string) (string, error) {
	n := f.logins.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("token-%s-%d", clientCode, n), nil
}

func testUser(id int64) *gobs.User {
	return &gobs.User{
		ID:                id,
		Role:              gobs.RoleFollower,
		Active:            true,
		BrokerAccountCode: fmt.Sprintf("ACC%03d", id),
		BrokerPassword:    "secret",
		PublicIP:          "1.2.3.4",
	}
}

func TestGetOrRefresh(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{}
	c := New(kvmemdb.New(), auth)

	u := testUser(1)
	tok, err := c.GetOrRefresh(ctx, u)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "token-ACC001-1" {
		t.Fatalf("wanted token-ACC001-1, got %q", tok)
	}

	// Second call must come from the cache.
	tok2, err := c.GetOrRefresh(ctx, u)
	if err != nil {
		t.Fatal(err)
	}
	if tok2 != tok {
		t.Fatalf("wanted cached token %q, got %q", tok, tok2)
	}
	if n := auth.logins.Load(); n != 1 {
		t.Fatalf("wanted 1 login, got %d", n)
	}
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{}
	db := kvmemdb.New()
	c := New(db, auth)

	u := testUser(1)
	stale := &gobs.SessionToken{
		UserID:    u.ID,
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := kvutil.SetDB(ctx, db, tokenKey(u.ID), stale); err != nil {
		t.Fatal(err)
	}

	tok, err := c.GetOrRefresh(ctx, u)
	if err != nil {
		t.Fatal(err)
	}
	if tok == "stale" {
		t.Fatalf("expired token was returned")
	}
	if n := auth.logins.Load(); n != 1 {
		t.Fatalf("wanted 1 login, got %d", n)
	}
}

func TestSingleFlightRefresh(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{delay: 50 * time.Millisecond}
	c := New(kvmemdb.New(), auth)

	u := testUser(1)
	var wg sync.WaitGroup
	tokens := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := c.GetOrRefresh(ctx, u)
			if err != nil {
				t.Errorf("concurrent refresh %d: %v", i, err)
				return
			}
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	if n := auth.logins.Load(); n != 1 {
		t.Fatalf("wanted 1 login for 10 concurrent callers, got %d", n)
	}
	for i, tok := range tokens {
		if tok != tokens[0] {
			t.Fatalf("caller %d got token %q, others got %q", i, tok, tokens[0])
		}
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{}
	c := New(kvmemdb.New(), auth)

	u := testUser(1)
	if _, err := c.GetOrRefresh(ctx, u); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrRefresh(ctx, u); err != nil {
		t.Fatal(err)
	}
	if n := auth.logins.Load(); n != 2 {
		t.Fatalf("wanted 2 logins after invalidate, got %d", n)
	}
}

func TestLoginFailure(t *testing.T) {
	ctx := context.Background()
	authErr := errors.New("login refused")
	c := New(kvmemdb.New(), &fakeAuth{err: authErr})

	if _, err := c.GetOrRefresh(ctx, testUser(1)); !errors.Is(err, authErr) {
		t.Fatalf("wanted %v, got %v", authErr, err)
	}
}
