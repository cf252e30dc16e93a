// Copyright (c) 2025 BVK Chaitanya

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/bvk/replicon/gobs"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"
)

func addUser(t *testing.T, s *Store, code string, role gobs.Role) *gobs.User {
	t.Helper()
	u := &gobs.User{
		Role:              role,
		Active:            true,
		BrokerAccountCode: code,
		BrokerUserID:      "u-" + code,
		Balance:           decimal.NewFromInt(1000000),
	}
	if _, err := s.AddUser(context.Background(), u); err != nil {
		t.Fatalf("could not add user %q: %v", code, err)
	}
	return u
}

func TestUpsertMasterOrder(t *testing.T) {
	ctx := context.Background()
	s := New(kvmemdb.New())

	master := addUser(t, s, "MASTER001", gobs.RoleMaster)

	template := &gobs.Order{
		UserID:        master.ID,
		BrokerOrderID: "O1",
		Symbol:        "RELIANCE",
		Side:          gobs.Buy,
		Type:          gobs.Limit,
		Quantity:      10,
		Price:         decimal.RequireFromString("2500.50"),
	}
	first, created, err := s.UpsertMasterOrder(ctx, template)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatalf("wanted a new order row, got an update")
	}
	if first.Status != gobs.OrderPending {
		t.Fatalf("wanted status %s, got %s", gobs.OrderPending, first.Status)
	}

	patch := &gobs.Order{
		UserID:         master.ID,
		BrokerOrderID:  "O1",
		FilledQuantity: 10,
		AveragePrice:   decimal.RequireFromString("2500.00"),
		Status:         gobs.OrderFilled,
	}
	second, created, err := s.UpsertMasterOrder(ctx, patch)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatalf("wanted an update, got a new order row")
	}
	if second.ID != first.ID {
		t.Fatalf("wanted order id %d, got %d", first.ID, second.ID)
	}
	if second.FilledQuantity != 10 || second.Status != gobs.OrderFilled {
		t.Fatalf("wanted filled=10 status=%s, got filled=%d status=%s", gobs.OrderFilled, second.FilledQuantity, second.Status)
	}
	if second.Quantity != 10 {
		t.Fatalf("update must not change order quantity; got %d", second.Quantity)
	}

	over := &gobs.Order{UserID: master.ID, BrokerOrderID: "O1", FilledQuantity: 100}
	if _, _, err := s.UpsertMasterOrder(ctx, over); err == nil {
		t.Fatalf("overfill was not rejected")
	}
}

func TestLinkFollowerUnique(t *testing.T) {
	ctx := context.Background()
	s := New(kvmemdb.New())

	master := addUser(t, s, "MASTER001", gobs.RoleMaster)
	follower := addUser(t, s, "FOLLOW001", gobs.RoleFollower)

	rel := &gobs.FollowerRelationship{
		MasterID:   master.ID,
		FollowerID: follower.ID,
		Active:     true,
		AutoFollow: true,
		Strategy:   gobs.FixedRatio,
		Ratio:      decimal.NewFromInt(1),
	}
	if _, err := s.LinkFollower(ctx, rel); err != nil {
		t.Fatal(err)
	}

	dup := &gobs.FollowerRelationship{
		MasterID:   master.ID,
		FollowerID: follower.ID,
		Active:     true,
		Strategy:   gobs.FixedRatio,
		Ratio:      decimal.NewFromInt(2),
	}
	if _, err := s.LinkFollower(ctx, dup); !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted %v, got %v", os.ErrExist, err)
	}

	// Unlink is a soft delete; relinking reuses the row.
	if err := s.UnlinkFollower(ctx, master.ID, follower.ID); err != nil {
		t.Fatal(err)
	}
	id, err := s.LinkFollower(ctx, dup)
	if err != nil {
		t.Fatal(err)
	}
	if id != rel.ID {
		t.Fatalf("wanted relationship id %d to be reused, got %d", rel.ID, id)
	}
}

func TestActiveFollowersOf(t *testing.T) {
	ctx := context.Background()
	s := New(kvmemdb.New())

	master := addUser(t, s, "MASTER001", gobs.RoleMaster)
	f1 := addUser(t, s, "FOLLOW001", gobs.RoleFollower)
	f2 := addUser(t, s, "FOLLOW002", gobs.RoleFollower)
	f3 := addUser(t, s, "FOLLOW003", gobs.RoleFollower)

	for _, fid := range []int64{f1.ID, f2.ID, f3.ID} {
		rel := &gobs.FollowerRelationship{
			MasterID:   master.ID,
			FollowerID: fid,
			Active:     true,
			AutoFollow: true,
			Strategy:   gobs.FixedRatio,
			Ratio:      decimal.NewFromInt(1),
		}
		if _, err := s.LinkFollower(ctx, rel); err != nil {
			t.Fatal(err)
		}
	}

	// Inactive user and inactive relationship must both be filtered out.
	if err := s.SetUserActive(ctx, f2.ID, false); err != nil {
		t.Fatal(err)
	}
	if err := s.UnlinkFollower(ctx, master.ID, f3.ID); err != nil {
		t.Fatal(err)
	}

	pairs, err := s.ActiveFollowersOf(ctx, master.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 {
		t.Fatalf("wanted 1 active follower, got %d", len(pairs))
	}
	if pairs[0].User.ID != f1.ID {
		t.Fatalf("wanted follower %d, got %d", f1.ID, pairs[0].User.ID)
	}
}

func TestFollowerOrderNeedsMaster(t *testing.T) {
	ctx := context.Background()
	s := New(kvmemdb.New())

	follower := addUser(t, s, "FOLLOW001", gobs.RoleFollower)

	o := &gobs.Order{UserID: follower.ID, Symbol: "RELIANCE", Quantity: 10}
	if _, err := s.InsertFollowerOrder(ctx, o); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("wanted %v, got %v", os.ErrInvalid, err)
	}

	o.MasterOrderID = 999
	if _, err := s.InsertFollowerOrder(ctx, o); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wanted %v, got %v", os.ErrNotExist, err)
	}
}

func TestInsertOrderMapNoDowngrade(t *testing.T) {
	ctx := context.Background()
	s := New(kvmemdb.New())

	ok := &gobs.OrderMap{
		MasterOrderID:   1,
		FollowerUserID:  2,
		FollowerOrderID: 3,
		Status:          gobs.ReplicationSuccess,
	}
	id, err := s.InsertOrderMap(ctx, ok)
	if err != nil {
		t.Fatal(err)
	}

	bad := &gobs.OrderMap{
		MasterOrderID:  1,
		FollowerUserID: 2,
		Status:         gobs.ReplicationFailed,
		ErrorMessage:   "late duplicate",
	}
	id2, err := s.InsertOrderMap(ctx, bad)
	if err != nil {
		t.Fatal(err)
	}
	if id2 != id {
		t.Fatalf("wanted ordermap id %d, got %d", id, id2)
	}

	m, err := s.GetOrderMap(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != gobs.ReplicationSuccess {
		t.Fatalf("SUCCESS record was downgraded to %s", m.Status)
	}

	maps, err := s.OrderMapsForMaster(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(maps) != 1 {
		t.Fatalf("wanted 1 ordermap row, got %d", len(maps))
	}
}

func TestAuditSequence(t *testing.T) {
	ctx := context.Background()
	s := New(kvmemdb.New())

	for i := 0; i < 3; i++ {
		rec := &gobs.AuditRecord{Action: gobs.AuditWebhookReceived}
		if err := s.AppendAudit(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	recs, err := s.ListAudit(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("wanted 3 audit records, got %d", len(recs))
	}
	for i, rec := range recs {
		if rec.Seq != int64(i+1) {
			t.Fatalf("wanted seq %d, got %d", i+1, rec.Seq)
		}
	}
}
