// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package chunktree

import (
	"fmt"
	"io"

	"github.com/pagevault-foundation/pagevault/lib/object"
)

// Source produces the byte stream to split: a lazy, finite sequence of
// buffers. Next returns the next buffer, io.EOF when the stream is
// complete, or any other error when it failed. After returning io.EOF
// or an error, Next is not called again. The returned buffer's
// ownership transfers to the caller; the source must not reuse it.
type Source interface {
	Next() ([]byte, error)
}

// WriteFunc persists one produced piece — a value chunk or a serialized
// index object — and returns the identifier the store assigned to it.
// The digest is computed over data with the kind the piece will carry.
// Ownership of data transfers into the call: the splitter never touches
// a buffer again after handing it over.
type WriteFunc func(digest object.Digest, data []byte) (object.Identifier, error)

// Splitter turns a byte stream into a single-rooted tree of
// deduplication-friendly pieces: content-defined value chunks on level
// zero, and index objects summarizing each level on the level above.
// The tree is built bottom-up in one streaming pass; the only output
// retained in memory is the per-level list of children not yet flushed
// into a parent index object.
type Splitter struct {
	params      Params
	maxChildren int
}

// NewSplitter creates a splitter with the given parameters.
func NewSplitter(params Params) (*Splitter, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunking parameters: %w", err)
	}
	return &Splitter{params: params, maxChildren: params.maxChildren()}, nil
}

// Params returns the splitter's tuning.
func (s *Splitter) Params() Params {
	return s.params
}

// Split consumes source to completion and returns the identifier of
// the tree root. Every piece the stream produces — each value chunk
// and each index object — is handed to write exactly once, in
// production order; the root identifier is the identifier write
// assigned to the last remaining piece (or to the only chunk, for
// streams that fit in one: a single-chunk stream builds no index
// object at all).
//
// An empty stream produces one empty chunk, so every split has a root.
//
// On a source or write error, Split abandons all in-flight state and
// returns the error: no root exists and no further write calls are
// made. Split is not safe for concurrent use; each call runs an
// independent pass.
func (s *Splitter) Split(source Source, write WriteFunc) (object.Identifier, error) {
	run := &splitRun{
		params:      s.params,
		maxChildren: s.maxChildren,
		rolling:     NewRollingChecksum(s.params),
		write:       write,
	}

	for {
		buf, err := source.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return object.Identifier{}, fmt.Errorf("reading source: %w", err)
		}
		if err := run.consume(buf); err != nil {
			return object.Identifier{}, err
		}
	}

	return run.finalize()
}

// pendingBuffer is one source buffer not yet fully assigned to chunks.
// offset marks how many of its leading bytes already went out in
// earlier chunks; the residual view is data[offset:].
type pendingBuffer struct {
	data   []byte
	offset int
}

// splitRun is the per-Split state machine. A run owns the rolling
// checksum, the queue of unconsumed input, and the per-level child
// lists of the tree under construction.
type splitRun struct {
	params      Params
	maxChildren int
	rolling     *RollingChecksum
	write       WriteFunc

	// pending queues input buffers whose bytes have been fed to the
	// rolling checksum but not yet emitted in a chunk. Invariant: the
	// total residual length equals bytes fed minus bytes emitted
	// (checked by pendingBytes in tests).
	pending []pendingBuffer

	// levels[i] holds the ordered children of tree level i not yet
	// flushed into a parent index object. Level 0 is leaf chunks.
	// Invariant: len(levels[i]) never exceeds maxChildren.
	levels [][]Child
}

// consume feeds one source buffer through the rolling checksum,
// emitting a chunk for every cut found.
func (r *splitRun) consume(buf []byte) error {
	r.pending = append(r.pending, pendingBuffer{data: buf})

	// Feed only the new buffer: all earlier pending bytes already went
	// through the checksum. Cuts land inside view; the chunk they close
	// additionally spans every residual pending byte before it.
	view := buf
	for len(view) > 0 {
		cut, strength := r.rolling.Feed(view)
		if cut == 0 {
			return nil
		}
		view = view[cut:]
		if err := r.emitChunk(len(view), strength); err != nil {
			return err
		}
	}
	return nil
}

// emitChunk materializes the chunk ending at the current cut — all
// pending bytes except the trailing tailLen bytes of the final pending
// buffer — writes it as a value piece, and applies the cut strength to
// close lower tree levels.
func (r *splitRun) emitChunk(tailLen int, strength int) error {
	last := len(r.pending) - 1
	cutEnd := len(r.pending[last].data) - tailLen

	var chunk []byte
	if last == 0 && r.pending[0].offset == 0 && tailLen == 0 {
		// The cut exactly consumes the one still-whole source buffer:
		// move it instead of copying.
		chunk = r.pending[0].data
		r.pending = r.pending[:0]
	} else {
		size := cutEnd - r.pending[last].offset
		for _, pb := range r.pending[:last] {
			size += len(pb.data) - pb.offset
		}
		chunk = make([]byte, 0, size)
		for _, pb := range r.pending[:last] {
			chunk = append(chunk, pb.data[pb.offset:]...)
		}
		chunk = append(chunk, r.pending[last].data[r.pending[last].offset:cutEnd]...)

		if tailLen == 0 {
			r.pending = r.pending[:0]
		} else {
			r.pending[0] = pendingBuffer{data: r.pending[last].data, offset: cutEnd}
			r.pending = r.pending[:1]
		}
	}

	if err := r.appendPiece(chunk); err != nil {
		return err
	}

	// A strong boundary closes the index nodes below its level even
	// when they are under-filled, keeping tree depth tied to boundary
	// strength rather than data volume alone.
	closeBelow := (strength - r.params.BoundaryBits) / r.params.BitsPerLevel
	for level := 0; level < closeBelow; level++ {
		if level < len(r.levels) && len(r.levels[level]) > 0 {
			if err := r.flushLevel(level); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendPiece writes one value chunk and records it on level zero.
func (r *splitRun) appendPiece(chunk []byte) error {
	id, err := r.write(object.ComputeDigest(object.KindValue, chunk), chunk)
	if err != nil {
		return fmt.Errorf("writing chunk: %w", err)
	}
	return r.appendChild(0, Child{ID: id, Size: uint64(len(chunk))})
}

// appendChild adds a child to a level's list, flushing the level first
// when the addition would overflow one index object.
func (r *splitRun) appendChild(level int, child Child) error {
	for len(r.levels) <= level {
		r.levels = append(r.levels, nil)
	}
	if len(r.levels[level]) == r.maxChildren {
		if err := r.flushLevel(level); err != nil {
			return err
		}
	}
	r.levels[level] = append(r.levels[level], child)
	return nil
}

// flushLevel closes the given non-empty level: its child list becomes
// one entry on the level above. A single-child list is promoted
// directly — an index object of one child is wasteful and is elided —
// otherwise the list is serialized, written as an index piece, and
// replaced by the (identifier, cumulative size) of that piece.
func (r *splitRun) flushLevel(level int) error {
	children := r.levels[level]
	r.levels[level] = nil

	if len(children) == 1 {
		return r.appendChild(level+1, children[0])
	}

	buf, total := EncodeIndex(r.params, children)
	id, err := r.write(object.ComputeDigest(object.KindIndex, buf), buf)
	if err != nil {
		return fmt.Errorf("writing index object: %w", err)
	}
	return r.appendChild(level+1, Child{ID: id, Size: total})
}

// finalize emits any trailing residual as a final chunk (exempt from
// the minimum-size rule) and collapses the levels upward until a
// single root remains.
func (r *splitRun) finalize() (object.Identifier, error) {
	if r.pendingBytes() > 0 || len(r.levels) == 0 {
		// Trailing bytes that never hit a boundary, or a stream with no
		// bytes at all: either way the stream ends in one last chunk.
		if len(r.pending) == 0 {
			r.pending = append(r.pending, pendingBuffer{data: []byte{}})
		}
		if err := r.emitChunk(0, r.params.BoundaryBits); err != nil {
			return object.Identifier{}, err
		}
	}

	for level := 0; level < len(r.levels); level++ {
		if len(r.levels[level]) == 0 {
			continue
		}
		if len(r.levels[level]) == 1 && r.levelsEmptyAbove(level) {
			return r.levels[level][0].ID, nil
		}
		if err := r.flushLevel(level); err != nil {
			return object.Identifier{}, err
		}
	}

	// Unreachable: flushing a level always populates one above, and a
	// single-entry top level returns.
	panic("chunktree: split finalization did not converge to a root")
}

// levelsEmptyAbove reports whether every level above the given one is
// empty, i.e. the level holds the last pieces of the tree.
func (r *splitRun) levelsEmptyAbove(level int) bool {
	for _, children := range r.levels[level+1:] {
		if len(children) > 0 {
			return false
		}
	}
	return true
}

// pendingBytes is the total residual length of the unconsumed-input
// queue. It must always equal bytes fed to the checksum minus bytes
// emitted in chunks; tests check this invariant.
func (r *splitRun) pendingBytes() int {
	var total int
	for _, pb := range r.pending {
		total += len(pb.data) - pb.offset
	}
	return total
}

// readerSource adapts an io.Reader into a Source, pulling fixed-size
// segments. Segment size deliberately differs from any chunking
// parameter: cut placement must not depend on how the input arrives.
type readerSource struct {
	reader  io.Reader
	segment int
	err     error // deferred from a read that returned both data and an error
}

// ReaderSource returns a Source that reads r in 64KiB segments.
func ReaderSource(r io.Reader) Source {
	return &readerSource{reader: r, segment: 64 * 1024}
}

func (rs *readerSource) Next() ([]byte, error) {
	if rs.err != nil {
		return nil, rs.err
	}
	buf := make([]byte, rs.segment)
	n, err := rs.reader.Read(buf)
	if n > 0 {
		// Deliver the data now and replay the error on the next call.
		// A reader is not obliged to return a one-shot error again.
		rs.err = err
		return buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}
