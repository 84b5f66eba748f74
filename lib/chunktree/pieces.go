// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package chunktree

import (
	"context"
	"fmt"
	"sync"

	"github.com/pagevault-foundation/pagevault/lib/object"
)

// ReadFunc fetches the bytes of a stored piece by identifier. It is
// the traversal's injected read accessor; implementations own blocking,
// retries, and timeouts (the walker imposes none of its own).
type ReadFunc func(ctx context.Context, id object.Identifier) ([]byte, error)

// CollectPieces visits every piece reachable from root: the root
// itself, every index object below it, and every leaf chunk. For each
// piece it calls visit with the piece's identifier before descending;
// visit returning false prunes that piece's subtree without failing
// the walk.
//
// Children of an index node are visited in encoding order before any
// of them recurses, but subtrees are fetched and walked concurrently,
// so visits from different index nodes interleave in no particular
// order. Visit calls are serialized: visit never runs on two
// goroutines at once.
//
// The first read failure or malformed index object poisons the whole
// walk: branches already fetching run to completion, no new fetches
// start, and the error is returned once every launched branch has
// finished. A nil error means the traversal (as pruned by visit)
// completed in full.
func CollectPieces(ctx context.Context, root object.Identifier, read ReadFunc, visit func(object.Identifier) bool) error {
	w := &pieceWalk{ctx: ctx, read: read, visit: visit, running: true}

	if !w.visitPiece(root) {
		return nil
	}
	if root.Kind() != object.KindIndex {
		// A leaf root has no children to recurse into.
		return nil
	}

	w.group.Add(1)
	go w.walkIndex(root)
	w.group.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// pieceWalk is the shared state of one traversal. The fan-in counter
// is the WaitGroup; running is the poison flag. Both are mutated under
// mu so that branches completing simultaneously on a multi-threaded
// host stay serialized, as are visit calls.
type pieceWalk struct {
	ctx   context.Context
	read  ReadFunc
	visit func(object.Identifier) bool

	group sync.WaitGroup

	mu      sync.Mutex
	running bool
	err     error
}

// walkIndex fetches one index piece, visits its children in order, and
// fans each index child out into its own branch. It is always run on
// its own goroutine with the walk's WaitGroup already incremented.
func (w *pieceWalk) walkIndex(id object.Identifier) {
	defer w.group.Done()

	// A poisoned walk initiates no new reads; branches observing the
	// flag finish quietly while already-started sibling reads drain.
	if !w.stillRunning() {
		return
	}

	data, err := w.read(w.ctx, id)
	if err != nil {
		w.poison(fmt.Errorf("reading index piece %s: %w", object.FormatRef(id), err))
		return
	}

	// All children are visited in encoding order before any of them
	// recurses; only then do the surviving index children fan out.
	var recurse []object.Identifier
	err = ForEachChild(data, func(child object.Identifier) error {
		if !w.visitPiece(child) {
			return nil
		}
		if child.Kind() == object.KindIndex {
			recurse = append(recurse, child)
		}
		return nil
	})
	if err != nil {
		w.poison(fmt.Errorf("decoding index piece %s: %w", object.FormatRef(id), err))
		return
	}

	for _, child := range recurse {
		w.group.Add(1)
		go w.walkIndex(child)
	}
}

// visitPiece reports the piece to the caller's predicate, serialized
// against concurrent branches. False means prune.
func (w *pieceWalk) visitPiece(id object.Identifier) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visit(id)
}

// poison records the first error and stops new reads. Later errors
// from draining siblings are dropped: the walk reports one failure.
func (w *pieceWalk) poison(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.running = false
		w.err = err
	}
}

func (w *pieceWalk) stillRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
