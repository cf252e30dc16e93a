// Copyright (c) 2025 BVK Chaitanya

package store

import (
	"context"
	"time"

	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/kvutil"
	"github.com/bvkgo/kv"
)

// AppendAudit assigns the next audit sequence number and saves the record.
func (s *Store) AppendAudit(ctx context.Context, rec *gobs.AuditRecord) error {
	append_ := func(ctx context.Context, rw kv.ReadWriter) error {
		seq, err := nextID(ctx, rw, auditSeqKey)
		if err != nil {
			return err
		}
		rec.Seq = seq
		if rec.At.IsZero() {
			rec.At = time.Now()
		}
		return kvutil.Set(ctx, rw, auditKey(seq), rec)
	}
	return kv.WithReadWriter(ctx, s.db, append_)
}

// ListAudit returns audit records in sequence order, newest last.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]*gobs.AuditRecord, error) {
	var recs []*gobs.AuditRecord
	begin, end := kvutil.PathRange(AuditKeyspace)
	collect := func(ctx context.Context, r kv.Reader, k string, rec *gobs.AuditRecord) error {
		recs = append(recs, rec)
		if limit > 0 && len(recs) > limit {
			recs = recs[1:]
		}
		return nil
	}
	if err := kvutil.AscendDB(ctx, s.db, begin, end, collect); err != nil {
		return nil, err
	}
	return recs, nil
}
