// Copyright (c) 2025 BVK Chaitanya

package iifl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testOptions() *Options {
	return &Options{
		RatePerSecond:  1000,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
	}
}

func testCredentials(baseURL string) *Credentials {
	return &Credentials{
		BaseURL:      baseURL,
		VendorKey:    "test-vendor-key",
		VendorCode:   "test-vendor",
		VendorSecret: "test-secret",
	}
}

func reply(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"head":{},"body":%s}`, body)
}

func TestLoginFlow(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("/LoginRequestMobileNewbyVendor", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Head requestHead        `json:"head"`
			Body vendorLoginRequest `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("could not decode vendor login request: %v", err)
		}
		if req.Head.Key != "test-vendor-key" {
			t.Errorf("wanted vendor key in head, got %q", req.Head.Key)
		}
		reply(w, `{"Success":true,"EncryptionKey":"ekey123"}`)
	})
	mux.HandleFunc("/LoginRequestMobileNew", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Head requestHead        `json:"head"`
			Body clientLoginRequest `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("could not decode client login request: %v", err)
		}
		if req.Body.EncryptionKey != "ekey123" {
			t.Errorf("wanted encryption key from stage one, got %q", req.Body.EncryptionKey)
		}
		reply(w, `{"Success":true,"ClientToken":"tok456"}`)
	})
	s := httptest.NewServer(mux)
	defer s.Close()

	c, err := New(testCredentials(s.URL), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	token, err := c.Login(ctx, "CLIENT1", "password", "1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	if token != "tok456" {
		t.Fatalf("wanted token tok456, got %q", token)
	}
}

func TestLoginRejected(t *testing.T) {
	ctx := context.Background()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"Success":false,"Message":"Invalid vendor credentials"}`)
	}))
	defer s.Close()

	c, err := New(testCredentials(s.URL), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Login(ctx, "CLIENT1", "bad-password", "1.2.3.4"); !errors.Is(err, ErrAuth) {
		t.Fatalf("wanted %v, got %v", ErrAuth, err)
	}
}

func TestPlaceOrderRetriesTransient(t *testing.T) {
	ctx := context.Background()

	var attempts int
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("wanted bearer token header, got %q", got)
		}
		reply(w, `{"Success":true,"BrokerOrderID":"B100","ExchOrderID":"E200"}`)
	}))
	defer s.Close()

	c, err := New(testCredentials(s.URL), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	req := &OrderRequest{ClientCode: "CLIENT1", Exchange: "N", ExchangeType: "C", ScripCode: 2885, BuySell: "B", Qty: 10, Price: 2500.5, RemoteOrderID: "r1"}
	resp, err := c.PlaceOrder(ctx, "tok", req)
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 3 {
		t.Fatalf("wanted 3 attempts, got %d", attempts)
	}
	if resp.BrokerOrderID != "B100" {
		t.Fatalf("wanted broker order id B100, got %q", resp.BrokerOrderID)
	}
	if req.OrderFor != "P" {
		t.Fatalf("wanted OrderFor P, got %q", req.OrderFor)
	}
}

func TestPlaceOrderNoRetryOnRejection(t *testing.T) {
	ctx := context.Background()

	var attempts int
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		reply(w, `{"Success":false,"Message":"Insufficient margin"}`)
	}))
	defer s.Close()

	c, err := New(testCredentials(s.URL), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	req := &OrderRequest{ClientCode: "CLIENT1", ScripCode: 2885, BuySell: "B", Qty: 10}
	if _, err := c.PlaceOrder(ctx, "tok", req); !errors.Is(err, ErrRejected) {
		t.Fatalf("wanted %v, got %v", ErrRejected, err)
	}
	if attempts != 1 {
		t.Fatalf("rejections must not be retried; got %d attempts", attempts)
	}
}

func TestRateLimitedExhaustsRetries(t *testing.T) {
	ctx := context.Background()

	var attempts int
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer s.Close()

	c, err := New(testCredentials(s.URL), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	req := &OrderRequest{ClientCode: "CLIENT1", ScripCode: 2885, BuySell: "S", Qty: 5, BrokerOrderID: "B100"}
	if _, err := c.CancelOrder(ctx, "tok", req); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("wanted %v, got %v", ErrRateLimited, err)
	}
	if attempts != 3 {
		t.Fatalf("wanted 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		cancel()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer s.Close()

	opts := testOptions()
	opts.RetryBaseDelay = time.Minute
	opts.RetryMaxDelay = time.Minute
	c, err := New(testCredentials(s.URL), opts)
	if err != nil {
		t.Fatal(err)
	}
	req := &OrderRequest{ClientCode: "CLIENT1", ScripCode: 2885, BuySell: "B", Qty: 10}
	// The backoff sleep must wake up on cancellation and surface the broker
	// error instead of blocking for the full delay.
	if _, err := c.PlaceOrder(ctx, "tok", req); !errors.Is(err, ErrTransient) {
		t.Fatalf("wanted %v, got %v", ErrTransient, err)
	}
	if attempts != 1 {
		t.Fatalf("canceled context must stop the retries; got %d attempts", attempts)
	}
}

func TestAuthFailureIsNotRetried(t *testing.T) {
	ctx := context.Background()

	var attempts int
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer s.Close()

	c, err := New(testCredentials(s.URL), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.OrderStatus(ctx, "stale-token", "CLIENT1", "B100"); !errors.Is(err, ErrAuth) {
		t.Fatalf("wanted %v, got %v", ErrAuth, err)
	}
	if attempts != 1 {
		t.Fatalf("auth failures must not be retried; got %d attempts", attempts)
	}
}

func TestModifyNeedsBrokerOrderID(t *testing.T) {
	c, err := New(testCredentials("http://localhost:0"), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ModifyOrder(context.Background(), "tok", &OrderRequest{ClientCode: "C1"}); !errors.Is(err, ErrRejected) {
		t.Fatalf("wanted %v, got %v", ErrRejected, err)
	}
}
