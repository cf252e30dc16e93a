// Copyright (c) 2025 BVK Chaitanya

// Package idgen derives deterministic client-order-ids. The same
// (master-order, follower-user) pair always yields the same id, so a
// replayed fan-out after a crash sends the broker an order it has already
// seen.
package idgen

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// ClientOrderID returns the broker client-order-id for one follower's copy
// of a master order.
func ClientOrderID(masterOrderID, followerUserID int64) string {
	seed := fmt.Sprintf("replicon/%d/%d", masterOrderID, followerUserID)
	return uuid.UUID(md5.Sum([]byte(seed))).String()
}

// Generator creates a sequence of uuids derived from a given seed string.
type Generator struct {
	base uuid.UUID

	next uint64
}

func New(seed string, offset uint64) *Generator {
	base := uuid.UUID(md5.Sum([]byte(seed)))
	return &Generator{base: base, next: offset}
}

func (v *Generator) Offset() uint64 {
	return v.next
}

func (v *Generator) NextID() uuid.UUID {
	var buf [16 + 8]byte
	copy(buf[:16], v.base[:])
	binary.BigEndian.PutUint64(buf[16:], v.next)
	v.next++
	return uuid.UUID(md5.Sum(buf[:]))
}
