// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunktree turns arbitrary-length byte streams into
// single-rooted trees of bounded-size, content-addressed pieces, and
// walks such trees back down.
//
// The package has four layers, each usable independently:
//
//   - RollingChecksum: an rsync-style fixed-window rolling sum that
//     reports content-defined cut points plus a per-cut strength.
//     Boundary placement depends only on the preceding window of
//     bytes, so local edits perturb only nearby boundaries and
//     unchanged regions keep deduplicating against stored chunks.
//
//   - Splitter: drives a Source through the checksum, materializes
//     each chunk, and assembles the tree bottom-up while streaming.
//     Leaf chunk identifiers accumulate on level zero; when a level
//     would overflow one index object — or a strong boundary closes
//     it early — the level is serialized, persisted through the
//     caller's write callback, and replaced by a single entry one
//     level up. The pass ends when one identifier remains: the root.
//     Cut strength (extra one-bits beyond the boundary threshold)
//     picks how many levels a boundary closes, so boundary quality
//     doubles as the tree's fan-out balancing signal.
//
//   - Index codec: the stable binary format of an internal node — an
//     ordered list of child identifiers with cumulative subtree sizes,
//     so readers can seek into the logical stream without fetching
//     every leaf below.
//
//   - CollectPieces: the inverse traversal. Given a root and a read
//     accessor it visits every reachable piece, fanning index children
//     out into concurrent branches joined by a fan-in counter, with
//     per-branch pruning and poison-on-first-error semantics.
//
// Persistence is injected: the splitter hands every finished piece to
// a WriteFunc and the walker fetches through a ReadFunc, so the
// package never touches disk itself. lib/pagestore provides the
// standard disk-backed implementations of both.
package chunktree
