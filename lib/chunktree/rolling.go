// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package chunktree

// RollingChecksum is an rsync-style rolling sum over a fixed window of
// the most recent bytes. It reports content-defined cut points: a cut
// fires when the low BoundaryBits of the digest are all ones (or the
// current chunk hits MaxChunkSize), never before MinChunkSize.
//
// The window and accumulators keep rolling across cuts — only the
// bytes-since-cut counter resets — so cut placement at any offset
// depends solely on the preceding WindowSize bytes. Inserting or
// deleting bytes therefore perturbs at most the two cuts surrounding
// the edit, which is the property that makes deduplication survive
// local edits. The accumulator update formulas and window size are
// part of the store format: any deviation changes which inputs dedupe
// against previously stored chunks.
type RollingChecksum struct {
	params Params

	s1, s2 uint32
	window []byte
	pos    int

	// bytesSinceCut counts bytes consumed since the last reported cut.
	bytesSinceCut int

	// boundaryMask has the low BoundaryBits bits set.
	boundaryMask uint32
}

// NewRollingChecksum creates a checksum with the given parameters. The
// parameters must already be validated.
func NewRollingChecksum(params Params) *RollingChecksum {
	return &RollingChecksum{
		params:       params,
		window:       make([]byte, params.WindowSize),
		boundaryMask: (1 << params.BoundaryBits) - 1,
	}
}

// Reset zeroes all state: window contents, accumulators, and the
// bytes-since-cut counter.
func (rc *RollingChecksum) Reset() {
	for i := range rc.window {
		rc.window[i] = 0
	}
	rc.s1, rc.s2 = 0, 0
	rc.pos = 0
	rc.bytesSinceCut = 0
}

// Feed consumes bytes of buf one at a time, checking the cut condition
// after each. On a cut it returns the 1-based index into buf at which
// the cut falls (the caller splits the buffer there and feeds the rest
// again) and the cut's strength in bits. It returns (0, 0) when the
// whole buffer was consumed without a cut — the caller must feed more
// data or finalize at end of stream.
//
// Strength is the boundary quality: BoundaryBits plus the number of
// additional consecutive one-bits of the digest above the boundary
// threshold. Stronger boundaries close index nodes higher up the tree,
// so boundary quality doubles as the tree's fan-out balancing signal.
func (rc *RollingChecksum) Feed(buf []byte) (cut int, strength int) {
	for i, b := range buf {
		drop := rc.window[rc.pos]
		rc.s1 += uint32(b) - uint32(drop)
		rc.s2 += rc.s1 - uint32(rc.params.WindowSize)*uint32(drop)

		rc.window[rc.pos] = b
		rc.pos++
		if rc.pos == rc.params.WindowSize {
			rc.pos = 0
		}

		rc.bytesSinceCut++
		if rc.bytesSinceCut < rc.params.MinChunkSize {
			continue
		}

		digest := rc.digest()
		if digest&rc.boundaryMask == rc.boundaryMask || rc.bytesSinceCut >= rc.params.MaxChunkSize {
			rc.bytesSinceCut = 0
			return i + 1, rc.strengthBits(digest)
		}
	}
	return 0, 0
}

// digest folds the two accumulators into the 32-bit value whose low
// bits drive the cut condition.
func (rc *RollingChecksum) digest() uint32 {
	return (rc.s1 << 16) | (rc.s2 & 0xffff)
}

// strengthBits counts the boundary strength of a digest: the base
// threshold plus the run of one-bits continuing above it.
func (rc *RollingChecksum) strengthBits(digest uint32) int {
	strength := rc.params.BoundaryBits
	digest >>= uint(rc.params.BoundaryBits)
	for digest&1 == 1 {
		strength++
		digest >>= 1
	}
	return strength
}
