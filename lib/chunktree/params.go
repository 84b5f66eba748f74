// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package chunktree

import "fmt"

// Default chunking parameters. These are protocol constants for a
// given store — a writer and a reader of the same store must agree on
// all five values, or chunk boundaries (and therefore every piece
// digest) diverge.
const (
	// DefaultMinChunkSize is the minimum chunk size. No boundary can
	// occur before this many bytes have accumulated in the current
	// chunk, preventing pathological tiny chunks from repetitive input.
	// The final chunk of a stream is exempt.
	DefaultMinChunkSize = 4096

	// DefaultMaxChunkSize is the maximum chunk size. A forced boundary
	// occurs at this size regardless of the checksum state, bounding
	// the worst case for any input pattern. Chunk lengths are encoded
	// in 16 bits downstream, hence the 65535 cap.
	DefaultMaxChunkSize = 65535

	// DefaultWindowSize is the rolling checksum window in bytes. Cut
	// placement depends only on the window contents, so edits perturb
	// at most the boundaries within one window of the edit.
	DefaultWindowSize = 64

	// DefaultBoundaryBits is the number of low digest bits that must
	// all be ones for a cut. Boundary probability per byte is
	// 1/2^BoundaryBits once past the minimum chunk size.
	DefaultBoundaryBits = 13

	// DefaultBitsPerLevel is how many extra consecutive digest bits
	// beyond BoundaryBits promote a cut one tree level: a cut of
	// strength BoundaryBits+4·n closes index nodes on levels below n.
	DefaultBitsPerLevel = 4
)

// Params holds the chunking and tree-shape tuning for a Splitter.
// The zero value is not usable; start from DefaultParams.
type Params struct {
	// MinChunkSize is the minimum chunk size in bytes.
	MinChunkSize int

	// MaxChunkSize is the maximum chunk size in bytes. Also bounds the
	// serialized size of index objects.
	MaxChunkSize int

	// WindowSize is the rolling checksum window in bytes.
	WindowSize int

	// BoundaryBits is the base cut threshold in digest bits.
	BoundaryBits int

	// BitsPerLevel converts cut strength beyond BoundaryBits into a
	// tree level.
	BitsPerLevel int
}

// DefaultParams returns the standard production tuning.
func DefaultParams() Params {
	return Params{
		MinChunkSize: DefaultMinChunkSize,
		MaxChunkSize: DefaultMaxChunkSize,
		WindowSize:   DefaultWindowSize,
		BoundaryBits: DefaultBoundaryBits,
		BitsPerLevel: DefaultBitsPerLevel,
	}
}

// Validate checks that the parameters describe a usable tuning.
func (p Params) Validate() error {
	if p.MinChunkSize < 1 {
		return fmt.Errorf("min chunk size %d is invalid (minimum 1)", p.MinChunkSize)
	}
	if p.MaxChunkSize < p.MinChunkSize {
		return fmt.Errorf("max chunk size %d is below min chunk size %d", p.MaxChunkSize, p.MinChunkSize)
	}
	if p.MaxChunkSize > 1<<20 {
		return fmt.Errorf("max chunk size %d exceeds the 1MiB piece limit", p.MaxChunkSize)
	}
	if p.WindowSize < 1 {
		return fmt.Errorf("window size %d is invalid (minimum 1)", p.WindowSize)
	}
	if p.BoundaryBits < 1 || p.BoundaryBits > 31 {
		return fmt.Errorf("boundary bits %d is out of range [1, 31]", p.BoundaryBits)
	}
	if p.BitsPerLevel < 1 {
		return fmt.Errorf("bits per level %d is invalid (minimum 1)", p.BitsPerLevel)
	}
	if p.maxChildren() < 2 {
		return fmt.Errorf("max chunk size %d cannot hold an index object with two children", p.MaxChunkSize)
	}
	return nil
}

// maxChildren is the maximum number of children one serialized index
// object may carry: the largest count whose encoding still fits in
// MaxChunkSize. Recomputed from the codec's per-child size so a format
// change cannot silently desynchronize the two.
func (p Params) maxChildren() int {
	return (p.MaxChunkSize - indexHeaderSize) / indexChildSize
}
