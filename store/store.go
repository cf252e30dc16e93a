// Copyright (c) 2025 BVK Chaitanya

// Package store implements the durable system of record for users, follower
// relationships, orders, order maps and the audit log on top of the kv
// store.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bvk/replicon/kvutil"
	"github.com/bvkgo/kv"
)

// Keyspaces. Every key is an absolute, clean path.
const (
	UsersKeyspace     = "/users"
	CodesKeyspace     = "/codes"
	RelationsKeyspace = "/relations"
	OrdersKeyspace    = "/orders"
	OrderIdxKeyspace  = "/orderindex"
	OrderMapsKeyspace = "/ordermaps"
	AuditKeyspace     = "/audit"

	nextIDKey   = "/m/next-id"
	auditSeqKey = "/m/next-audit-seq"
)

type Store struct {
	db kv.Database
}

func New(db kv.Database) *Store {
	return &Store{db: db}
}

// Database exposes the backing kv database for components that keep their
// own keyspaces (caches, bus dedup).
func (s *Store) Database() kv.Database {
	return s.db
}

func userKey(id int64) string {
	return fmt.Sprintf("%s/%012d", UsersKeyspace, id)
}

func codeKey(code string) string {
	return fmt.Sprintf("%s/%s", CodesKeyspace, code)
}

func relationKey(masterID, followerID int64) string {
	return fmt.Sprintf("%s/%012d/%012d", RelationsKeyspace, masterID, followerID)
}

func orderKey(id int64) string {
	return fmt.Sprintf("%s/%012d", OrdersKeyspace, id)
}

func orderIdxKey(ownerID int64, brokerOrderID string) string {
	return fmt.Sprintf("%s/%012d/%s", OrderIdxKeyspace, ownerID, brokerOrderID)
}

func orderMapKey(masterOrderID, followerUserID int64) string {
	return fmt.Sprintf("%s/%012d/%012d", OrderMapsKeyspace, masterOrderID, followerUserID)
}

func auditKey(seq int64) string {
	return fmt.Sprintf("%s/%012d", AuditKeyspace, seq)
}

// nextID returns the next value of a monotonic counter stored at key. Must
// run inside the caller's read-write transaction so allocation commits with
// the row that uses it.
func nextID(ctx context.Context, rw kv.ReadWriter, key string) (int64, error) {
	next := int64(1)
	if v, err := kvutil.Get[int64](ctx, rw, key); err == nil {
		next = *v
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	n := next + 1
	if err := kvutil.Set(ctx, rw, key, &n); err != nil {
		return 0, err
	}
	return next, nil
}
