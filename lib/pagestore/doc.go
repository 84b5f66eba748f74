// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

// Package pagestore is the disk-backed piece store: the persistence
// side of the chunking engine in lib/chunktree.
//
// The layering is deliberate. lib/chunktree splits content and builds
// index trees but never touches storage — it calls injected write and
// read functions. This package provides those functions and everything
// around them:
//
//   - Store persists pieces as individual files under
//     pieces/<xx>/<yy>/<hex>, written via temp file + atomic rename.
//     Piece payloads are transparently compressed (none, LZ4, or zstd,
//     with per-piece incompressible fallback); digests are always
//     computed over uncompressed bytes, so the compression setting
//     never affects deduplication.
//   - Store.Put and Store.Get satisfy chunktree.WriteFunc and
//     chunktree.ReadFunc directly.
//   - Store.StoreStream splits and persists a whole stream;
//     Store.Restore and Store.RestoreRange reassemble it, using the
//     cumulative sizes recorded in index pieces to verify byte counts
//     and to skip subtrees outside a requested range.
//   - RefStore maps mutable hierarchical names to root records
//     (CBOR files under refs/), so humans do not pass 64-character
//     hashes around.
//
// The chunking parameters are part of the store format: every writer
// and reader of one store directory must agree on them, or new writes
// stop deduplicating against existing pieces.
package pagestore
