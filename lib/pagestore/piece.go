// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pagevault-foundation/pagevault/lib/object"
)

// Piece file format, version 1. All integers little-endian.
//
//	offset  size  field
//	0       7     magic "PAGEVLT"
//	7       1     format version (1)
//	8       1     digest kind (object.DigestKind)
//	9       1     compression tag
//	10      4     uncompressed payload size (uint32)
//	14      ...   payload (compressed per the tag)
//
// The digest that names the file is always computed over the
// uncompressed payload, so recompressing a store never changes piece
// identities.
var pieceMagic = [7]byte{'P', 'A', 'G', 'E', 'V', 'L', 'T'}

const (
	pieceFormatVersion = 1
	pieceHeaderSize    = 7 + 1 + 1 + 1 + 4
)

// encodePiece frames an already-compressed payload into the piece file
// format.
func encodePiece(kind object.DigestKind, tag CompressionTag, uncompressedSize int, payload []byte) ([]byte, error) {
	if uncompressedSize > math.MaxUint32 {
		return nil, fmt.Errorf("piece payload is %d bytes, exceeds format maximum %d",
			uncompressedSize, math.MaxUint32)
	}

	buf := make([]byte, pieceHeaderSize+len(payload))
	copy(buf, pieceMagic[:])
	buf[7] = pieceFormatVersion
	buf[8] = byte(kind)
	buf[9] = byte(tag)
	binary.LittleEndian.PutUint32(buf[10:], uint32(uncompressedSize))
	copy(buf[pieceHeaderSize:], payload)
	return buf, nil
}

// parsePieceHeader validates the fixed header and returns the digest
// kind, compression tag, and uncompressed payload size. Truncated or
// malformed headers are rejected without reading out of bounds.
func parsePieceHeader(buf []byte) (object.DigestKind, CompressionTag, int, error) {
	if len(buf) < pieceHeaderSize {
		return 0, 0, 0, fmt.Errorf("piece file is %d bytes, want at least %d", len(buf), pieceHeaderSize)
	}
	if !bytes.Equal(buf[:7], pieceMagic[:]) {
		return 0, 0, 0, fmt.Errorf("piece file has bad magic %q", buf[:7])
	}
	if buf[7] != pieceFormatVersion {
		return 0, 0, 0, fmt.Errorf("piece file format version %d is unsupported (want %d)",
			buf[7], pieceFormatVersion)
	}

	kind := object.DigestKind(buf[8])
	if !kind.Valid() {
		return 0, 0, 0, fmt.Errorf("piece file has invalid digest kind %d", buf[8])
	}

	tag := CompressionTag(buf[9])
	uncompressedSize := int(binary.LittleEndian.Uint32(buf[10:]))
	return kind, tag, uncompressedSize, nil
}

// decodePiece parses a piece file and returns the digest kind and the
// uncompressed payload.
func decodePiece(buf []byte) (object.DigestKind, []byte, error) {
	kind, tag, uncompressedSize, err := parsePieceHeader(buf)
	if err != nil {
		return 0, nil, err
	}

	data, err := decompressPiece(buf[pieceHeaderSize:], tag, uncompressedSize)
	if err != nil {
		return 0, nil, fmt.Errorf("decompressing piece payload: %w", err)
	}
	return kind, data, nil
}
