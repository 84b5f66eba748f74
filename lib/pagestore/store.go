// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pagevault-foundation/pagevault/lib/chunktree"
	"github.com/pagevault-foundation/pagevault/lib/object"
)

// Directory names within the store root.
const (
	pieceDir = "pieces"
	tmpDir   = "tmp"
)

// Options configures a Store. Start from DefaultOptions and override
// what differs; the zero value is not valid (chunking parameters must
// be set explicitly, since they are part of the store format).
type Options struct {
	// Params are the chunking parameters. Every writer and reader of
	// one store directory must use the same values: changing them does
	// not corrupt existing pieces, but new writes stop deduplicating
	// against old ones.
	Params chunktree.Params

	// Compression is the algorithm attempted for new piece payloads.
	// Incompressible pieces fall back to CompressionNone per piece.
	Compression CompressionTag

	// AutoCompression makes StoreStream pick the algorithm per stream
	// by probing the first chunk with SelectCompression, ignoring
	// Compression. Put still uses Compression directly, since a single
	// piece carries no stream to probe.
	AutoCompression bool

	// Logger receives store-level events. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the standard store configuration: default
// chunking parameters and zstd compression.
func DefaultOptions() Options {
	return Options{
		Params:      chunktree.DefaultParams(),
		Compression: CompressionZstd,
	}
}

// Store is a disk-backed content-addressed piece store. Pieces are
// written through a temp file and an atomic rename, so a crash never
// leaves a partial piece at its final path. Identical content is
// stored once: a piece whose file already exists is a dedup hit and
// writes nothing.
//
// The store is safe for concurrent readers. Concurrent writers are
// safe against each other (renames of identical content race
// harmlessly) but the caller serializes writes of one logical stream.
type Store struct {
	root        string
	params      chunktree.Params
	compression CompressionTag
	auto        bool
	log         *slog.Logger
}

// NewStore opens (creating if needed) a store rooted at the given
// directory.
func NewStore(root string, options Options) (*Store, error) {
	if err := options.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunking parameters: %w", err)
	}

	for _, dir := range []string{
		root,
		filepath.Join(root, pieceDir),
		filepath.Join(root, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}

	log := options.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Store{
		root:        root,
		params:      options.Params,
		compression: options.Compression,
		auto:        options.AutoCompression,
		log:         log,
	}, nil
}

// Params returns the store's chunking parameters.
func (s *Store) Params() chunktree.Params {
	return s.params
}

// Put stores one piece under its digest. It satisfies
// chunktree.WriteFunc. The digest is trusted to match data — the
// splitter computes it — and verified again on every Get.
func (s *Store) Put(digest object.Digest, data []byte) (object.Identifier, error) {
	id, _, _, err := s.put(digest, data, s.compression)
	return id, err
}

// put is Put plus bookkeeping: whether the piece was actually written
// and how many bytes landed on disk (zero for dedup hits). The tag is
// the algorithm to attempt; incompressible payloads still fall back to
// CompressionNone.
func (s *Store) put(digest object.Digest, data []byte, tag CompressionTag) (object.Identifier, bool, int64, error) {
	id := object.Identifier{Digest: digest}
	finalPath := s.piecePath(digest.Hash)

	// Dedup fast path: same content produces the same digest, and the
	// existing file is identical by construction.
	if _, err := os.Stat(finalPath); err == nil {
		return id, false, 0, nil
	}

	payload, tag, err := compressWithFallback(data, tag)
	if err != nil {
		return id, false, 0, fmt.Errorf("compressing piece %s: %w", object.FormatRef(id), err)
	}

	fileData, err := encodePiece(digest.Kind, tag, len(data), payload)
	if err != nil {
		return id, false, 0, fmt.Errorf("encoding piece %s: %w", object.FormatRef(id), err)
	}

	if err := s.writePieceFile(finalPath, fileData); err != nil {
		return id, false, 0, fmt.Errorf("writing piece %s: %w", object.FormatRef(id), err)
	}
	return id, true, int64(len(fileData)), nil
}

// Get reads one piece by identifier. It satisfies chunktree.ReadFunc.
// The piece's digest kind and content hash are both verified, so a
// corrupted or mislabeled file surfaces as an error rather than bad
// data.
func (s *Store) Get(ctx context.Context, id object.Identifier) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fileData, err := os.ReadFile(s.piecePath(id.Digest.Hash))
	if err != nil {
		return nil, fmt.Errorf("reading piece %s: %w", object.FormatRef(id), err)
	}

	kind, data, err := decodePiece(fileData)
	if err != nil {
		return nil, fmt.Errorf("piece %s: %w", object.FormatRef(id), err)
	}
	if kind != id.Kind() {
		return nil, fmt.Errorf("piece %s has kind %s, expected %s",
			object.FormatRef(id), kind, id.Kind())
	}
	if object.ComputeDigest(kind, data) != id.Digest {
		return nil, fmt.Errorf("piece %s failed content verification", object.FormatRef(id))
	}
	return data, nil
}

// Has reports whether a piece exists in the store.
func (s *Store) Has(id object.Identifier) bool {
	_, err := os.Stat(s.piecePath(id.Digest.Hash))
	return err == nil
}

// StoreResult is returned by [Store.StoreStream] with metadata about
// the stored content.
type StoreResult struct {
	// Root identifies the stored tree: a value piece for single-chunk
	// streams, an index piece otherwise.
	Root object.Identifier

	// Ref is the short reference for the root (pv-<12 hex chars>).
	Ref string

	// Size is the total content size in bytes.
	Size int64

	// ChunkCount and IndexCount are the number of value and index
	// pieces in the tree.
	ChunkCount int
	IndexCount int

	// StoredBytes is the number of bytes newly written to disk, after
	// compression and piece framing. Dedup hits contribute nothing.
	StoredBytes int64

	// DedupHits counts pieces that already existed in the store.
	DedupHits int
}

// StoreStream splits content from r and persists every produced piece.
// On error the pieces written so far remain in the store (they are
// content-addressed and harmless) but no root is returned.
func (s *Store) StoreStream(r io.Reader) (*StoreResult, error) {
	splitter, err := chunktree.NewSplitter(s.params)
	if err != nil {
		return nil, err
	}

	result := &StoreResult{}
	tag := s.compression
	pick := s.auto
	write := func(digest object.Digest, data []byte) (object.Identifier, error) {
		// The tree is built bottom-up, so the first write is always the
		// stream's first chunk — the sample SelectCompression wants.
		if pick {
			pick = false
			tag = SelectCompression(data, "")
		}
		id, wrote, storedBytes, err := s.put(digest, data, tag)
		if err != nil {
			return id, err
		}
		if digest.Kind == object.KindValue {
			result.ChunkCount++
			result.Size += int64(len(data))
		} else {
			result.IndexCount++
		}
		if wrote {
			result.StoredBytes += storedBytes
		} else {
			result.DedupHits++
		}
		return id, nil
	}

	root, err := splitter.Split(chunktree.ReaderSource(r), write)
	if err != nil {
		return nil, err
	}
	result.Root = root
	result.Ref = object.FormatRef(root)

	s.log.Info("stored stream",
		"ref", result.Ref,
		"compression", tag.String(),
		"size", result.Size,
		"chunks", result.ChunkCount,
		"indexes", result.IndexCount,
		"stored_bytes", result.StoredBytes,
		"dedup_hits", result.DedupHits)
	return result, nil
}

// Restore reassembles the content under root and writes it to w in
// order. Every subtree's byte count is checked against the size its
// parent index recorded, so silent truncation cannot pass. Returns the
// total number of bytes written.
func (s *Store) Restore(ctx context.Context, root object.Identifier, w io.Writer) (int64, error) {
	return s.restoreNode(ctx, root, w)
}

func (s *Store) restoreNode(ctx context.Context, id object.Identifier, w io.Writer) (int64, error) {
	data, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	if id.Kind() == object.KindValue {
		n, err := w.Write(data)
		if err != nil {
			return int64(n), fmt.Errorf("writing chunk %s: %w", object.FormatRef(id), err)
		}
		return int64(n), nil
	}

	children, err := chunktree.DecodeIndex(data)
	if err != nil {
		return 0, fmt.Errorf("index piece %s: %w", object.FormatRef(id), err)
	}

	var written int64
	var previous uint64
	for i, child := range children {
		if child.Size < previous {
			return written, fmt.Errorf("index piece %s: child %d cumulative size went backwards",
				object.FormatRef(id), i)
		}
		want := child.Size - previous

		n, err := s.restoreNode(ctx, child.ID, w)
		written += n
		if err != nil {
			return written, err
		}
		if uint64(n) != want {
			return written, fmt.Errorf("subtree %s restored %d bytes, index records %d",
				object.FormatRef(child.ID), n, want)
		}
		previous = child.Size
	}
	return written, nil
}

// Size returns the total content size under root without reading any
// leaf data: for an index root it is the last cumulative child size,
// for a leaf root the chunk length.
func (s *Store) Size(ctx context.Context, root object.Identifier) (uint64, error) {
	data, err := s.Get(ctx, root)
	if err != nil {
		return 0, err
	}
	if root.Kind() == object.KindValue {
		return uint64(len(data)), nil
	}
	children, err := chunktree.DecodeIndex(data)
	if err != nil {
		return 0, fmt.Errorf("index piece %s: %w", object.FormatRef(root), err)
	}
	return children[len(children)-1].Size, nil
}

// RestoreRange writes length bytes starting at offset from the content
// under root. Subtrees wholly outside the range are skipped without
// reading them — this is what the cumulative sizes in index pieces are
// for. The range must lie within the content.
func (s *Store) RestoreRange(ctx context.Context, root object.Identifier, offset, length int64, w io.Writer) (int64, error) {
	if offset < 0 || length < 0 {
		return 0, fmt.Errorf("invalid range: offset %d, length %d", offset, length)
	}

	total, err := s.Size(ctx, root)
	if err != nil {
		return 0, err
	}
	end := uint64(offset) + uint64(length)
	if end > total {
		return 0, fmt.Errorf("range [%d, %d) exceeds content size %d", offset, end, total)
	}
	if length == 0 {
		return 0, nil
	}

	written, _, err := s.restoreRangeNode(ctx, root, uint64(offset), end, w)
	return written, err
}

// restoreRangeNode writes the intersection of [start, end) with this
// subtree's content. Offsets are relative to the subtree. Returns the
// bytes written and the subtree's total size.
func (s *Store) restoreRangeNode(ctx context.Context, id object.Identifier, start, end uint64, w io.Writer) (int64, uint64, error) {
	data, err := s.Get(ctx, id)
	if err != nil {
		return 0, 0, err
	}

	if id.Kind() == object.KindValue {
		total := uint64(len(data))
		if start >= total {
			return 0, total, nil
		}
		if end > total {
			end = total
		}
		n, err := w.Write(data[start:end])
		if err != nil {
			return int64(n), total, fmt.Errorf("writing chunk %s: %w", object.FormatRef(id), err)
		}
		return int64(n), total, nil
	}

	children, err := chunktree.DecodeIndex(data)
	if err != nil {
		return 0, 0, fmt.Errorf("index piece %s: %w", object.FormatRef(id), err)
	}

	var written int64
	var previous uint64
	for i, child := range children {
		if child.Size < previous {
			return written, 0, fmt.Errorf("index piece %s: child %d cumulative size went backwards",
				object.FormatRef(id), i)
		}
		childStart, childEnd := previous, child.Size
		previous = child.Size

		// Subtrees outside the range are never read.
		if childEnd <= start || childStart >= end {
			continue
		}

		subStart := uint64(0)
		if start > childStart {
			subStart = start - childStart
		}
		subEnd := childEnd - childStart
		if end < childEnd {
			subEnd = end - childStart
		}

		n, subTotal, err := s.restoreRangeNode(ctx, child.ID, subStart, subEnd, w)
		written += n
		if err != nil {
			return written, 0, err
		}
		if subTotal != childEnd-childStart {
			return written, 0, fmt.Errorf("subtree %s is %d bytes, index records %d",
				object.FormatRef(child.ID), subTotal, childEnd-childStart)
		}
	}
	return written, previous, nil
}

// writePieceFile writes data to finalPath via a temp file and an
// atomic rename. A concurrent writer racing on the same piece is
// harmless: both temp files hold identical bytes.
func (s *Store) writePieceFile(finalPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating piece shard directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "piece-*.bin")
	if err != nil {
		return fmt.Errorf("creating temp piece file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing piece data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp piece file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming piece to %s: %w", finalPath, err)
	}

	success = true
	return nil
}

// piecePath returns the sharded filesystem path for a piece. Pieces
// are sharded by the first two bytes of the hash hex:
// pieces/a3/f9/a3f9b2c1e7d4...
func (s *Store) piecePath(hash object.Hash) string {
	hex := object.FormatHash(hash)
	return filepath.Join(s.root, pieceDir, hex[:2], hex[2:4], hex)
}
