// Copyright (c) 2025 BVK Chaitanya

package gobs

import "time"

// SessionToken is a cached broker session token. ExpiresAt is kept strictly
// below the broker-side token lifetime so a cached token is always usable.
type SessionToken struct {
	UserID int64

	Token string

	ExpiresAt time.Time
}

func (t *SessionToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type OrderMappingEntry struct {
	FollowerOrderID int64

	FollowerBrokerOrderID string
}

// OrderMapping is the cached master-order to follower-orders map used on the
// MODIFY/CANCEL hot path. The durable OrderMap rows remain the system of
// record.
type OrderMapping struct {
	MasterOrderID int64

	Followers map[int64]OrderMappingEntry

	ExpiresAt time.Time
}

func (m *OrderMapping) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// DedupEntry marks an idempotency key as seen until ExpiresAt.
type DedupEntry struct {
	Key string

	ExpiresAt time.Time
}
