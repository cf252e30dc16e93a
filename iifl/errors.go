// Copyright (c) 2025 BVK Chaitanya

package iifl

import "errors"

var (
	// ErrAuth indicates the session token was rejected or login failed.
	ErrAuth = errors.New("broker authentication failed")

	// ErrRateLimited indicates the broker asked us to slow down.
	ErrRateLimited = errors.New("broker rate limit exceeded")

	// ErrRejected indicates the broker understood the request and refused
	// it. Retrying cannot help.
	ErrRejected = errors.New("broker rejected the request")

	// ErrTransient indicates a network failure or a broker-side 5xx. The
	// request may succeed when retried.
	ErrTransient = errors.New("transient broker failure")

	// ErrInvalidResponse indicates the broker response could not be
	// decoded.
	ErrInvalidResponse = errors.New("invalid broker response")
)

// retryable reports if the failure class is worth another attempt. Rejections
// and auth failures are final; only rate limits and transient failures are
// retried.
func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}
