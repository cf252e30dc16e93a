// Copyright (c) 2025 BVK Chaitanya

// Package iifl implements the REST client for the brokerage backend. All
// order operations go through the /OrderRequest endpoint with an OrderFor
// discriminator; login is the two stage vendor-key/client-token exchange.
package iifl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/bvk/replicon/ctxutil"
	"golang.org/x/time/rate"
)

type Client struct {
	opts Options

	creds *Credentials

	client *http.Client

	limiter *rate.Limiter

	breaker *breaker
}

// New creates a broker client with the given vendor credentials.
func New(creds *Credentials, opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if err := creds.Check(); err != nil {
		return nil, err
	}
	c := &Client{
		opts:    *opts,
		creds:   creds.Clone(),
		client:  &http.Client{Timeout: opts.HttpClientTimeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RatePerSecond),
		breaker: newBreaker(opts.BreakerThreshold, opts.BreakerCooldown),
	}
	return c, nil
}

// post sends one {head, body} request and decodes the response body into
// resp. Failures are classified into the package error values; a body with
// Success=false becomes ErrRejected.
func (c *Client) post(ctx context.Context, path, token string, body any, resp statuser) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.breaker.allow(time.Now()); err != nil {
		return err
	}
	err := c.do(ctx, path, token, body, resp)
	c.breaker.record(err, time.Now())
	return err
}

func (c *Client) do(ctx context.Context, path, token string, body any, resp statuser) error {
	u, err := url.JoinPath(c.creds.BaseURL, path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(&request{Head: requestHead{Key: c.creds.VendorKey}, Body: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if len(token) > 0 {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	r, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach broker at %s: %w (%v)", path, ErrTransient, err)
	}
	defer r.Body.Close()

	switch {
	case r.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", path, ErrRateLimited)
	case r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", path, ErrAuth)
	case r.StatusCode >= 500:
		return fmt.Errorf("%s: broker returned %d: %w", path, r.StatusCode, ErrTransient)
	case r.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: broker returned %d: %w", path, r.StatusCode, ErrRejected)
	}

	var env response
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: %w (%v)", path, ErrInvalidResponse, err)
	}
	if err := json.Unmarshal(env.Body, resp); err != nil {
		return fmt.Errorf("%s: %w (%v)", path, ErrInvalidResponse, err)
	}
	if ok, msg := resp.status(); !ok {
		return fmt.Errorf("%s: %q: %w", path, msg, ErrRejected)
	}
	return nil
}

// postRetry retries post on rate-limited and transient failures with full
// jitter backoff. Rejections and auth failures return immediately.
func (c *Client) postRetry(ctx context.Context, path, token string, body any, resp statuser) error {
	var err error
	for i := 0; i < c.opts.MaxRetries; i++ {
		if err = c.post(ctx, path, token, body, resp); err == nil || !retryable(err) {
			return err
		}
		d := c.opts.RetryBaseDelay << i
		if d > c.opts.RetryMaxDelay {
			d = c.opts.RetryMaxDelay
		}
		d = time.Duration(rand.Int63n(int64(d)) + 1)
		slog.Warn("retrying broker request", "path", path, "attempt", i+1, "sleep", d, "err", err)
		ctxutil.Sleep(ctx, d)
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// Login performs the two stage login and returns a session token. Stage one
// exchanges the vendor credentials for an encryption key; stage two logs the
// client in with it.
func (c *Client) Login(ctx context.Context, clientCode, password, publicIP string) (string, error) {
	vreq := &vendorLoginRequest{
		VendorCode:   c.creds.VendorCode,
		VendorSecret: c.creds.VendorSecret,
	}
	var vresp vendorLoginResponse
	if err := c.postRetry(ctx, "/LoginRequestMobileNewbyVendor", "", vreq, &vresp); err != nil {
		if !retryable(err) {
			return "", fmt.Errorf("vendor login failed: %w (%v)", ErrAuth, err)
		}
		return "", err
	}

	creq := &clientLoginRequest{
		ClientCode:    clientCode,
		Password:      password,
		PublicIP:      publicIP,
		EncryptionKey: vresp.EncryptionKey,
	}
	var cresp clientLoginResponse
	if err := c.postRetry(ctx, "/LoginRequestMobileNew", "", creq, &cresp); err != nil {
		if !retryable(err) {
			return "", fmt.Errorf("client %s login failed: %w (%v)", clientCode, ErrAuth, err)
		}
		return "", err
	}
	if len(cresp.ClientToken) == 0 {
		return "", fmt.Errorf("client %s login returned no token: %w", clientCode, ErrInvalidResponse)
	}
	return cresp.ClientToken, nil
}

// PlaceOrder submits a new order for the client in req.
func (c *Client) PlaceOrder(ctx context.Context, token string, req *OrderRequest) (*OrderResponse, error) {
	req.OrderFor = "P"
	return c.orderRequest(ctx, token, req)
}

// ModifyOrder amends an open order. req.BrokerOrderID selects the order.
func (c *Client) ModifyOrder(ctx context.Context, token string, req *OrderRequest) (*OrderResponse, error) {
	if len(req.BrokerOrderID) == 0 {
		return nil, fmt.Errorf("modify needs a broker order id: %w", ErrRejected)
	}
	req.OrderFor = "M"
	return c.orderRequest(ctx, token, req)
}

// CancelOrder cancels an open order. req.BrokerOrderID selects the order.
func (c *Client) CancelOrder(ctx context.Context, token string, req *OrderRequest) (*OrderResponse, error) {
	if len(req.BrokerOrderID) == 0 {
		return nil, fmt.Errorf("cancel needs a broker order id: %w", ErrRejected)
	}
	req.OrderFor = "C"
	return c.orderRequest(ctx, token, req)
}

func (c *Client) orderRequest(ctx context.Context, token string, req *OrderRequest) (*OrderResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.OrderTimeout)
	defer cancel()

	resp := new(OrderResponse)
	if err := c.postRetry(ctx, "/OrderRequest", token, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// OrderStatus fetches the broker-side state of an order.
func (c *Client) OrderStatus(ctx context.Context, token, clientCode, brokerOrderID string) (*OrderStatusResponse, error) {
	req := &orderStatusRequest{ClientCode: clientCode, BrokerOrderID: brokerOrderID}
	resp := new(OrderStatusResponse)
	if err := c.postRetry(ctx, "/OrderStatus", token, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
