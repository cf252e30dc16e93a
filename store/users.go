// Copyright (c) 2025 BVK Chaitanya

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bvk/replicon/gobs"
	"github.com/bvk/replicon/kvutil"
	"github.com/bvkgo/kv"
)

// AddUser assigns an id to the user and saves it. Users with a master role
// are also indexed by their broker account code, which must be unique.
func (s *Store) AddUser(ctx context.Context, u *gobs.User) (int64, error) {
	if len(u.BrokerAccountCode) == 0 {
		return 0, fmt.Errorf("broker account code cannot be empty: %w", os.ErrInvalid)
	}
	var id int64
	add := func(ctx context.Context, rw kv.ReadWriter) error {
		if _, err := kvutil.Get[int64](ctx, rw, codeKey(u.BrokerAccountCode)); err == nil {
			return fmt.Errorf("broker account code %q is already in use: %w", u.BrokerAccountCode, os.ErrExist)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		v, err := nextID(ctx, rw, nextIDKey)
		if err != nil {
			return err
		}
		id = v
		u.ID = id
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now()
		}
		if err := kvutil.Set(ctx, rw, userKey(id), u); err != nil {
			return err
		}
		return kvutil.Set(ctx, rw, codeKey(u.BrokerAccountCode), &id)
	}
	if err := kv.WithReadWriter(ctx, s.db, add); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*gobs.User, error) {
	return kvutil.GetDB[gobs.User](ctx, s.db, userKey(id))
}

// FindActiveMasterByBrokerCode resolves the webhook account code to an
// active master user. Returns os.ErrNotExist when no active master matches.
func (s *Store) FindActiveMasterByBrokerCode(ctx context.Context, code string) (*gobs.User, error) {
	id, err := kvutil.GetDB[int64](ctx, s.db, codeKey(code))
	if err != nil {
		return nil, err
	}
	u, err := kvutil.GetDB[gobs.User](ctx, s.db, userKey(*id))
	if err != nil {
		return nil, err
	}
	if !u.Active || !u.Role.IsMaster() {
		return nil, fmt.Errorf("user with broker code %q is not an active master: %w", code, os.ErrNotExist)
	}
	return u, nil
}

func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	update := func(ctx context.Context, rw kv.ReadWriter) error {
		u, err := kvutil.Get[gobs.User](ctx, rw, userKey(id))
		if err != nil {
			return err
		}
		u.Active = active
		return kvutil.Set(ctx, rw, userKey(id), u)
	}
	return kv.WithReadWriter(ctx, s.db, update)
}

func (s *Store) ListUsers(ctx context.Context) ([]*gobs.User, error) {
	var users []*gobs.User
	begin, end := kvutil.PathRange(UsersKeyspace)
	collect := func(ctx context.Context, r kv.Reader, k string, u *gobs.User) error {
		users = append(users, u)
		return nil
	}
	if err := kvutil.AscendDB(ctx, s.db, begin, end, collect); err != nil {
		return nil, err
	}
	return users, nil
}

// LinkFollower creates (or reactivates) the unique relationship row for the
// (master, follower) pair.
func (s *Store) LinkFollower(ctx context.Context, rel *gobs.FollowerRelationship) (int64, error) {
	if rel.MasterID == 0 || rel.FollowerID == 0 || rel.MasterID == rel.FollowerID {
		return 0, os.ErrInvalid
	}
	var id int64
	link := func(ctx context.Context, rw kv.ReadWriter) error {
		key := relationKey(rel.MasterID, rel.FollowerID)
		if old, err := kvutil.Get[gobs.FollowerRelationship](ctx, rw, key); err == nil {
			if old.Active {
				return fmt.Errorf("follower %d already linked to master %d: %w", rel.FollowerID, rel.MasterID, os.ErrExist)
			}
			rel.ID = old.ID
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if rel.ID == 0 {
			v, err := nextID(ctx, rw, nextIDKey)
			if err != nil {
				return err
			}
			rel.ID = v
		}
		if rel.CreatedAt.IsZero() {
			rel.CreatedAt = time.Now()
		}
		id = rel.ID
		return kvutil.Set(ctx, rw, key, rel)
	}
	if err := kv.WithReadWriter(ctx, s.db, link); err != nil {
		return 0, err
	}
	return id, nil
}

// UnlinkFollower soft-deletes the relationship by clearing its active flag.
func (s *Store) UnlinkFollower(ctx context.Context, masterID, followerID int64) error {
	unlink := func(ctx context.Context, rw kv.ReadWriter) error {
		key := relationKey(masterID, followerID)
		rel, err := kvutil.Get[gobs.FollowerRelationship](ctx, rw, key)
		if err != nil {
			return err
		}
		rel.Active = false
		return kvutil.Set(ctx, rw, key, rel)
	}
	return kv.WithReadWriter(ctx, s.db, unlink)
}

// FollowerPair pairs a follower user with its relationship to a master.
type FollowerPair struct {
	User         *gobs.User
	Relationship *gobs.FollowerRelationship
}

// ActiveFollowersOf returns active relationships of the master whose
// follower users are also active.
func (s *Store) ActiveFollowersOf(ctx context.Context, masterID int64) ([]*FollowerPair, error) {
	var pairs []*FollowerPair
	load := func(ctx context.Context, r kv.Reader) error {
		begin, end := kvutil.PathRange(fmt.Sprintf("%s/%012d", RelationsKeyspace, masterID))
		collect := func(ctx context.Context, r kv.Reader, k string, rel *gobs.FollowerRelationship) error {
			if !rel.Active {
				return nil
			}
			u, err := kvutil.Get[gobs.User](ctx, r, userKey(rel.FollowerID))
			if err != nil {
				return fmt.Errorf("could not load follower user %d: %w", rel.FollowerID, err)
			}
			if !u.Active || !u.Role.IsFollower() {
				return nil
			}
			pairs = append(pairs, &FollowerPair{User: u, Relationship: rel})
			return nil
		}
		return kvutil.Ascend(ctx, r, begin, end, collect)
	}
	if err := kv.WithReader(ctx, s.db, load); err != nil {
		return nil, err
	}
	return pairs, nil
}

// FollowersOf returns every relationship row of the master, including
// inactive ones.
func (s *Store) FollowersOf(ctx context.Context, masterID int64) ([]*gobs.FollowerRelationship, error) {
	var rels []*gobs.FollowerRelationship
	begin, end := kvutil.PathRange(fmt.Sprintf("%s/%012d", RelationsKeyspace, masterID))
	collect := func(ctx context.Context, r kv.Reader, k string, rel *gobs.FollowerRelationship) error {
		rels = append(rels, rel)
		return nil
	}
	if err := kvutil.AscendDB(ctx, s.db, begin, end, collect); err != nil {
		return nil, err
	}
	return rels, nil
}
