// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"context"
	"fmt"
	"os"

	"github.com/pagevault-foundation/pagevault/lib/chunktree"
	"github.com/pagevault-foundation/pagevault/lib/object"
)

// PieceInfo describes one piece of a stored tree.
type PieceInfo struct {
	// ID identifies the piece.
	ID object.Identifier

	// FileSize is the piece's on-disk size in bytes, including the
	// file header and compression.
	FileSize int64
}

// ListPieces walks the tree under root and returns every piece it
// contains, parents before children. Shared pieces appear once.
func (s *Store) ListPieces(ctx context.Context, root object.Identifier) ([]PieceInfo, error) {
	var pieces []PieceInfo
	var statErr error
	seen := make(map[object.Identifier]bool)

	// The walker serializes visit calls, so the map and slice need no
	// locking of their own. It visits per reference, not per piece: a
	// deduplicated piece referenced from several places in one tree is
	// listed on first encounter and pruned after that.
	visit := func(id object.Identifier) bool {
		if seen[id] {
			return false
		}
		seen[id] = true

		info, err := os.Stat(s.piecePath(id.Digest.Hash))
		if err != nil {
			statErr = fmt.Errorf("piece %s: %w", object.FormatRef(id), err)
			return false
		}
		pieces = append(pieces, PieceInfo{ID: id, FileSize: info.Size()})
		return true
	}

	if err := chunktree.CollectPieces(ctx, root, s.Get, visit); err != nil {
		return nil, err
	}
	if statErr != nil {
		return nil, statErr
	}
	return pieces, nil
}

// TreeStat summarizes a stored tree: its logical size and the pieces
// that back it.
type TreeStat struct {
	// Root identifies the tree.
	Root object.Identifier

	// Ref is the short reference for the root.
	Ref string

	// Size is the total content size in bytes.
	Size uint64

	// ChunkCount and IndexCount are the number of value and index
	// pieces in the tree. Each piece counts once even when the tree
	// references it from several places.
	ChunkCount int
	IndexCount int

	// StoredBytes is the total on-disk size of the tree's pieces,
	// after compression and file framing.
	StoredBytes int64
}

// Stat walks the tree under root and returns its summary.
func (s *Store) Stat(ctx context.Context, root object.Identifier) (*TreeStat, error) {
	size, err := s.Size(ctx, root)
	if err != nil {
		return nil, err
	}

	pieces, err := s.ListPieces(ctx, root)
	if err != nil {
		return nil, err
	}

	stat := &TreeStat{
		Root: root,
		Ref:  object.FormatRef(root),
		Size: size,
	}
	for _, piece := range pieces {
		if piece.ID.Kind() == object.KindValue {
			stat.ChunkCount++
		} else {
			stat.IndexCount++
		}
		stat.StoredBytes += piece.FileSize
	}
	return stat, nil
}
