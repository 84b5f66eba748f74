// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package chunktree

import (
	"encoding/binary"
	"fmt"

	"github.com/pagevault-foundation/pagevault/lib/object"
)

// Index object wire format. This is a stable on-disk format: stored
// trees must decode with future readers, so the layout is a protocol
// constant.
//
//	uint16 LE  child count (≥ 1)
//	per child, in order:
//	  1 byte     digest kind (1 = value, 2 = index)
//	  32 bytes   BLAKE3 hash
//	  uint64 LE  cumulative subtree size in bytes
//
// No padding, no checksum: integrity is delegated to the content
// addressing of the identifier that names the index object itself.
const (
	indexHeaderSize = 2
	indexChildSize  = 1 + 32 + 8
)

// Child pairs a piece identifier with the cumulative byte size of the
// subtree it roots — not just the piece's own serialized size. The
// cumulative size lets a reader compute byte offsets into the logical
// stream without fetching every leaf below.
type Child struct {
	ID   object.Identifier
	Size uint64
}

// EncodeIndex serializes an ordered child list into an index-object
// buffer and returns it together with the total of the children's
// cumulative sizes (the encoded subtree's logical length).
//
// Panics when children is empty or longer than the parameters allow:
// the splitter is the only producer of index objects and guarantees
// both bounds, so violating them is a programming error that would
// corrupt the tree if silently continued.
func EncodeIndex(params Params, children []Child) ([]byte, uint64) {
	if len(children) == 0 {
		panic("chunktree.EncodeIndex: empty child list")
	}
	if len(children) > params.maxChildren() {
		panic(fmt.Sprintf("chunktree.EncodeIndex: %d children exceeds the %d that fit in one index object",
			len(children), params.maxChildren()))
	}

	buf := make([]byte, indexHeaderSize+len(children)*indexChildSize)
	binary.LittleEndian.PutUint16(buf, uint16(len(children)))

	var total uint64
	offset := indexHeaderSize
	for _, child := range children {
		buf[offset] = byte(child.ID.Digest.Kind)
		copy(buf[offset+1:], child.ID.Digest.Hash[:])
		binary.LittleEndian.PutUint64(buf[offset+33:], child.Size)
		offset += indexChildSize
		total += child.Size
	}
	return buf, total
}

// DecodeIndex parses an index-object buffer back into its child list.
// It is the exact left inverse of EncodeIndex for any valid input, and
// rejects truncated, oversized, or malformed buffers without reading
// past the buffer bounds.
func DecodeIndex(buf []byte) ([]Child, error) {
	count, err := indexChildCount(buf)
	if err != nil {
		return nil, err
	}

	children := make([]Child, count)
	offset := indexHeaderSize
	for i := range children {
		kind := object.DigestKind(buf[offset])
		if !kind.Valid() {
			return nil, fmt.Errorf("index object child %d has invalid digest kind %d", i, buf[offset])
		}
		var hash object.Hash
		copy(hash[:], buf[offset+1:offset+33])
		children[i] = Child{
			ID:   object.Identifier{Digest: object.Digest{Kind: kind, Hash: hash}},
			Size: binary.LittleEndian.Uint64(buf[offset+33:]),
		}
		offset += indexChildSize
	}
	return children, nil
}

// ForEachChild walks buf and invokes fn with each child identifier in
// encoding order, stopping at and returning fn's first non-nil error.
// Children are decoded one at a time, so pruning a walk early never
// materializes the remainder of the child list. The same format checks
// as DecodeIndex apply.
func ForEachChild(buf []byte, fn func(object.Identifier) error) error {
	count, err := indexChildCount(buf)
	if err != nil {
		return err
	}

	offset := indexHeaderSize
	for i := 0; i < count; i++ {
		kind := object.DigestKind(buf[offset])
		if !kind.Valid() {
			return fmt.Errorf("index object child %d has invalid digest kind %d", i, buf[offset])
		}
		var hash object.Hash
		copy(hash[:], buf[offset+1:offset+33])
		offset += indexChildSize

		if err := fn(object.Identifier{Digest: object.Digest{Kind: kind, Hash: hash}}); err != nil {
			return err
		}
	}
	return nil
}

// indexChildCount validates the index object framing and returns the
// child count. A buffer whose length does not exactly match its
// declared count is rejected — trailing bytes are as malformed as
// missing ones.
func indexChildCount(buf []byte) (int, error) {
	if len(buf) < indexHeaderSize {
		return 0, fmt.Errorf("index object is %d bytes, want at least %d", len(buf), indexHeaderSize)
	}
	count := int(binary.LittleEndian.Uint16(buf))
	if count == 0 {
		return 0, fmt.Errorf("index object has zero children")
	}
	want := indexHeaderSize + count*indexChildSize
	if len(buf) != want {
		return 0, fmt.Errorf("index object is %d bytes, want %d for %d children", len(buf), want, count)
	}
	return count, nil
}
