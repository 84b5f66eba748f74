// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package chunktree

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/pagevault-foundation/pagevault/lib/object"
)

// putLeaf stores a synthetic chunk and returns its identifier.
func putLeaf(t *testing.T, store *memStore, data []byte) object.Identifier {
	t.Helper()
	id, err := store.write(object.ComputeDigest(object.KindValue, data), data)
	if err != nil {
		t.Fatalf("write leaf: %v", err)
	}
	return id
}

// putIndex encodes and stores an index over the given children.
func putIndex(t *testing.T, store *memStore, children ...Child) object.Identifier {
	t.Helper()
	buf, _ := EncodeIndex(DefaultParams(), children)
	id, err := store.write(object.ComputeDigest(object.KindIndex, buf), buf)
	if err != nil {
		t.Fatalf("write index: %v", err)
	}
	return id
}

func leafChild(t *testing.T, store *memStore, data []byte) Child {
	t.Helper()
	return Child{ID: putLeaf(t, store, data), Size: uint64(len(data))}
}

func TestCollectPiecesLeafRoot(t *testing.T) {
	// A leaf root is visited once and nothing is ever read.
	store := newMemStore()
	root := putLeaf(t, store, []byte("solo"))

	reads := 0
	countingRead := func(ctx context.Context, id object.Identifier) ([]byte, error) {
		reads++
		return store.read(ctx, id)
	}

	var visits []object.Identifier
	err := CollectPieces(context.Background(), root, countingRead, func(id object.Identifier) bool {
		visits = append(visits, id)
		return true
	})
	if err != nil {
		t.Fatalf("CollectPieces: %v", err)
	}
	if len(visits) != 1 || visits[0] != root {
		t.Errorf("visits = %v, want just the root", visits)
	}
	if reads != 0 {
		t.Errorf("reads = %d, want 0", reads)
	}
}

func TestCollectPiecesPrunedRoot(t *testing.T) {
	// Pruning the root itself is a successful, empty walk.
	store := newMemStore()
	root := putIndex(t, store, leafChild(t, store, []byte("a")), leafChild(t, store, []byte("b")))

	visits := 0
	err := CollectPieces(context.Background(), root, store.read, func(object.Identifier) bool {
		visits++
		return false
	})
	if err != nil {
		t.Fatalf("CollectPieces: %v", err)
	}
	if visits != 1 {
		t.Errorf("visits = %d, want 1", visits)
	}
}

func TestCollectPiecesChildrenBeforeRecursion(t *testing.T) {
	// All children of an index node are visited in encoding order
	// before any child subtree is entered.
	store := newMemStore()
	leafA := leafChild(t, store, []byte("aaaa"))
	inner := putIndex(t, store,
		leafChild(t, store, []byte("inner one")),
		leafChild(t, store, []byte("inner two")))
	leafC := leafChild(t, store, []byte("cccc"))

	root := putIndex(t, store, leafA, Child{ID: inner, Size: 18}, leafC)

	var order []object.Identifier
	err := CollectPieces(context.Background(), root, store.read, func(id object.Identifier) bool {
		order = append(order, id)
		return true
	})
	if err != nil {
		t.Fatalf("CollectPieces: %v", err)
	}

	want := []object.Identifier{root, leafA.ID, inner, leafC.ID}
	if len(order) != 6 {
		t.Fatalf("visits = %d, want 6", len(order))
	}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("visit %d out of order", i)
		}
	}
}

func TestCollectPiecesPruneSkipsSubtree(t *testing.T) {
	// Returning false on the second visit prunes that subtree: exactly
	// two visits happen and the pruned index is never read.
	store := newMemStore()
	inner := putIndex(t, store,
		leafChild(t, store, []byte("hidden one")),
		leafChild(t, store, []byte("hidden two")))
	root := putIndex(t, store, Child{ID: inner, Size: 20})

	var reads []object.Identifier
	read := func(ctx context.Context, id object.Identifier) ([]byte, error) {
		reads = append(reads, id)
		return store.read(ctx, id)
	}

	visits := 0
	err := CollectPieces(context.Background(), root, read, func(object.Identifier) bool {
		visits++
		return visits < 2
	})
	if err != nil {
		t.Fatalf("CollectPieces: %v", err)
	}
	if visits != 2 {
		t.Errorf("visits = %d, want 2", visits)
	}
	for _, id := range reads {
		if id == inner {
			t.Error("pruned index was read")
		}
	}
}

func TestCollectPiecesReadError(t *testing.T) {
	// A failing read poisons the walk: the error comes back after all
	// launched branches drain, and no further reads start.
	store := newMemStore()
	var subtrees []Child
	for i := 0; i < 8; i++ {
		inner := putIndex(t, store,
			leafChild(t, store, []byte(fmt.Sprintf("piece %d.1", i))),
			leafChild(t, store, []byte(fmt.Sprintf("piece %d.2", i))))
		subtrees = append(subtrees, Child{ID: inner, Size: 18})
	}
	root := putIndex(t, store, subtrees...)

	readErr := errors.New("disk on fire")
	var reads atomic.Int64
	read := func(ctx context.Context, id object.Identifier) ([]byte, error) {
		if reads.Add(1) == 3 {
			return nil, readErr
		}
		return store.read(ctx, id)
	}

	err := CollectPieces(context.Background(), root, read, func(object.Identifier) bool {
		return true
	})
	if !errors.Is(err, readErr) {
		t.Fatalf("CollectPieces error = %v, want wrapped %v", err, readErr)
	}
}

func TestCollectPiecesMalformedIndex(t *testing.T) {
	// An index piece that fails to decode poisons the walk like a read
	// error.
	store := newMemStore()
	junk := []byte{0xff, 0xff, 0x01}
	id, err := store.write(object.ComputeDigest(object.KindIndex, junk), junk)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	err = CollectPieces(context.Background(), id, store.read, func(object.Identifier) bool {
		return true
	})
	if err == nil {
		t.Fatal("expected an error for a malformed index piece")
	}
}

func TestCollectPiecesMissingPiece(t *testing.T) {
	// A dangling child reference surfaces as a read error.
	store := newMemStore()
	ghost := object.Identifier{Digest: object.ComputeDigest(object.KindIndex, []byte("never stored"))}
	root := putIndex(t, store, Child{ID: ghost, Size: 1})

	err := CollectPieces(context.Background(), root, store.read, func(object.Identifier) bool {
		return true
	})
	if err == nil {
		t.Fatal("expected an error for a missing piece")
	}
}

func TestCollectPiecesWideTree(t *testing.T) {
	// Concurrent branches still produce exactly-once visits over a tree
	// wide enough to fan out for real.
	store := newMemStore()
	var level []Child
	for i := 0; i < 40; i++ {
		inner := putIndex(t, store,
			leafChild(t, store, []byte(fmt.Sprintf("w%d-a", i))),
			leafChild(t, store, []byte(fmt.Sprintf("w%d-b", i))),
			leafChild(t, store, []byte(fmt.Sprintf("w%d-c", i))))
		level = append(level, Child{ID: inner, Size: 12})
	}
	var tops []Child
	for i := 0; i < len(level); i += 5 {
		top := putIndex(t, store, level[i:i+5]...)
		tops = append(tops, Child{ID: top, Size: 60})
	}
	root := putIndex(t, store, tops...)

	visited := make(map[object.Identifier]int)
	err := CollectPieces(context.Background(), root, store.read, func(id object.Identifier) bool {
		visited[id]++
		return true
	})
	if err != nil {
		t.Fatalf("CollectPieces: %v", err)
	}
	if len(visited) != len(store.pieces) {
		t.Fatalf("visited %d distinct pieces, want %d", len(visited), len(store.pieces))
	}
	for id, count := range visited {
		if count != 1 {
			t.Errorf("piece %s visited %d times", object.FormatRef(id), count)
		}
	}
}
