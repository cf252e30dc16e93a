// Copyright (c) 2025 BVK Chaitanya

package idgen

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
)

func TestClientOrderID(t *testing.T) {
	a := ClientOrderID(101, 7)
	b := ClientOrderID(101, 7)
	if a != b {
		t.Fatalf("want %v, got %v", a, b)
	}
	if c := ClientOrderID(101, 8); c == a {
		t.Fatalf("distinct followers got the same client-order-id %v", c)
	}
	if c := ClientOrderID(102, 7); c == a {
		t.Fatalf("distinct master orders got the same client-order-id %v", c)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("client-order-id %q is not a uuid: %v", a, err)
	}
}

func TestIDGen(t *testing.T) {
	uid := "unique message id"

	g1 := New(uid, 0)
	g1ids := make(map[int]uuid.UUID)
	for i := 0; i < 20; i++ {
		g1ids[i] = g1.NextID()
	}

	g2 := New(uid, 1)
	g2ids := make(map[int]uuid.UUID)
	for i := 0; i < 20; i++ {
		g2ids[1+i] = g2.NextID()
	}

	for k, v := range g2ids {
		if x, ok := g1ids[k]; ok && x != v {
			t.Fatalf("want %v, got %v", x, v)
		}
	}
}

func TestIDGenOffset(t *testing.T) {
	uid := "unique id"

	g1 := New(uid, 0)
	offset := rand.Intn(20)
	for i := 0; i < offset; i++ {
		g1.NextID()
	}

	g2 := New(uid, g1.Offset())
	if a, b := g1.NextID(), g2.NextID(); a != b {
		t.Fatalf("want %v, got %v", a, b)
	}
}
