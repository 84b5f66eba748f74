// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagevault-foundation/pagevault/lib/object"
)

// shortRefPrefix matches the references produced by object.FormatRef.
const shortRefPrefix = "pv-"

// Resolve turns a piece reference string into a full identifier. Two
// forms are accepted: a full 64-character hex hash, or a short ref
// (pv-<12 hex chars>) as printed by store commands. Short refs are
// resolved by scanning the piece shard directory they map to; an
// ambiguous short ref is an error rather than a guess.
//
// The digest kind is read from the piece file header, so Resolve only
// succeeds for pieces that exist in the store.
func (s *Store) Resolve(ref string) (object.Identifier, error) {
	if short, ok := strings.CutPrefix(ref, shortRefPrefix); ok {
		return s.resolveShortRef(ref, short)
	}

	hash, err := object.ParseHash(ref)
	if err != nil {
		return object.Identifier{}, fmt.Errorf("reference %q is neither a short ref nor a hash: %w", ref, err)
	}
	return s.identify(hash)
}

// resolveShortRef finds the unique piece whose hash starts with the
// short ref's hex prefix. The first four hex characters select the
// shard directory, so only one directory is scanned.
func (s *Store) resolveShortRef(ref, short string) (object.Identifier, error) {
	if len(short) != 12 {
		return object.Identifier{}, fmt.Errorf("short ref %q must have 12 hex characters after %q", ref, shortRefPrefix)
	}

	shardDir := filepath.Join(s.root, pieceDir, short[:2], short[2:4])
	entries, err := os.ReadDir(shardDir)
	if err != nil {
		if os.IsNotExist(err) {
			return object.Identifier{}, fmt.Errorf("resolving %q: %w", ref, os.ErrNotExist)
		}
		return object.Identifier{}, fmt.Errorf("resolving %q: %w", ref, err)
	}

	var match string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, short) {
			continue
		}
		if match != "" {
			return object.Identifier{}, fmt.Errorf("short ref %q is ambiguous", ref)
		}
		match = name
	}
	if match == "" {
		return object.Identifier{}, fmt.Errorf("resolving %q: %w", ref, os.ErrNotExist)
	}

	hash, err := object.ParseHash(match)
	if err != nil {
		return object.Identifier{}, fmt.Errorf("piece file %q has a malformed name: %w", match, err)
	}
	return s.identify(hash)
}

// identify reads the piece file header to recover the digest kind for
// a known hash. Only the header is parsed; the payload is not
// decompressed or verified.
func (s *Store) identify(hash object.Hash) (object.Identifier, error) {
	fileData, err := os.ReadFile(s.piecePath(hash))
	if err != nil {
		return object.Identifier{}, fmt.Errorf("reading piece %s: %w", object.FormatHash(hash)[:12], err)
	}
	kind, _, _, err := parsePieceHeader(fileData)
	if err != nil {
		return object.Identifier{}, fmt.Errorf("piece %s: %w", object.FormatHash(hash)[:12], err)
	}
	return object.Identifier{Digest: object.Digest{Kind: kind, Hash: hash}}, nil
}
