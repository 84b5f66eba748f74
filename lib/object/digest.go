// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest. All piece hashes (value chunks and
// index nodes) are this size.
type Hash [32]byte

// DigestKind distinguishes the two kinds of stored pieces. The kind is
// embedded in every digest and identifier so that a tree walker can
// decide whether to recurse without fetching the piece first.
type DigestKind uint8

const (
	// KindValue marks a leaf chunk: raw content bytes produced by the
	// splitter.
	KindValue DigestKind = 1

	// KindIndex marks an internal tree node: a serialized index object
	// listing child identifiers and cumulative sizes.
	KindIndex DigestKind = 2
)

// String returns the human-readable name of a digest kind.
func (k DigestKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindIndex:
		return "index"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Valid reports whether k is a known digest kind.
func (k DigestKind) Valid() bool {
	return k == KindValue || k == KindIndex
}

// Digest is a content digest tagged with the kind of piece it was
// computed over. Two pieces with identical bytes but different kinds
// have different digests (the kinds hash in separate BLAKE3 domains).
type Digest struct {
	Kind DigestKind
	Hash Hash
}

// Identifier is the opaque token a store assigns to a persisted piece.
// Holders of an identifier store and forward it; the only field they
// interpret is the digest kind, which tells a tree traversal whether
// the piece has children.
type Identifier struct {
	Digest Digest
}

// Kind returns the digest kind embedded in the identifier.
func (id Identifier) Kind() DigestKind {
	return id.Digest.Kind
}

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures that the same input bytes produce different
// hashes in different contexts, preventing cross-domain collisions.
type domainKey [32]byte

// Domain separation keys. These are fixed constants — changing them
// invalidates every hash in the corresponding domain. The byte values
// are the ASCII encoding of the domain name, zero-padded to 32 bytes,
// so the keys are inspectable in hex dumps and debuggers.
var (
	valueDomainKey = domainKey{
		'p', 'a', 'g', 'e', 'v', 'a', 'u', 'l', 't', '.', 'o', 'b', 'j', 'e', 'c', 't',
		'.', 'v', 'a', 'l', 'u', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	indexDomainKey = domainKey{
		'p', 'a', 'g', 'e', 'v', 'a', 'u', 'l', 't', '.', 'o', 'b', 'j', 'e', 'c', 't',
		'.', 'i', 'n', 'd', 'e', 'x', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	refNameDomainKey = domainKey{
		'p', 'a', 'g', 'e', 'v', 'a', 'u', 'l', 't', '.', 'r', 'e', 'f', '.', 'n', 'a',
		'm', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// ComputeDigest computes the kind-tagged BLAKE3 keyed hash of data.
// Value chunks and index objects hash in separate domains, so a leaf
// whose bytes happen to equal a serialized index node still gets a
// distinct digest.
//
// Panics on an invalid kind: callers construct kinds from the two
// package constants, so anything else is a programming error.
func ComputeDigest(kind DigestKind, data []byte) Digest {
	var key domainKey
	switch kind {
	case KindValue:
		key = valueDomainKey
	case KindIndex:
		key = indexDomainKey
	default:
		panic(fmt.Sprintf("object.ComputeDigest: invalid digest kind %d", kind))
	}
	return Digest{Kind: kind, Hash: keyedHash(key, data)}
}

// HashRefName hashes a ref name to a filesystem-safe hash. Ref names
// are hierarchical and may contain slashes, so the refs store keys its
// files by this hash instead of the raw name. The dedicated domain
// prevents collisions with value and index digests.
func HashRefName(name string) Hash {
	return keyedHash(refNameDomainKey, []byte(name))
}

// FormatHash returns the hex-encoded string representation of a hash.
// This is the canonical format used in refs, logs, and CLI output.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing piece hash: %w", err)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("piece hash is %d bytes, want 32", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// FormatRef returns the short piece reference for an identifier: the
// "pv-" prefix followed by the first 12 hex characters of the hash.
func FormatRef(id Identifier) string {
	return "pv-" + hex.EncodeToString(id.Digest.Hash[:6])
}

// keyedHash computes a BLAKE3 keyed hash with the given domain key.
func keyedHash(key domainKey, data []byte) Hash {
	// NewKeyed requires exactly 32 bytes, which domainKey guarantees.
	// The error is only returned for wrong key length, so this cannot
	// fail with our fixed-size type.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("object: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
