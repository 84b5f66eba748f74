// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Pagevault's standard CBOR encoding
// configuration.
//
// Pagevault uses two serialization formats with a clear boundary:
//
//   - CBOR for on-disk metadata: root records under roots/, named ref
//     entries under refs/, and any future state files.
//   - JSON only for CLI --json output, where interoperability with
//     shell tooling matters more than compactness.
//
// Piece payloads themselves are never CBOR: chunks are raw bytes and
// index objects use a fixed binary layout (see lib/chunktree), both
// addressed by their hash.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Pagevault package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, so re-encoding a record never churns its hash.
//
// For buffer-oriented operations (record files, ref entries):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: this type is ONLY ever serialized as CBOR. It will
//     never be marshaled to JSON or interact with CLI tooling.
//     Examples: root records, ref entries.
//   - `json` tag: this type may be serialized as BOTH JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as fallback when `cbor`
//     tags are absent, so a single `json` tag controls field naming
//     and omitempty for both formats. Examples: types surfaced in CLI
//     --json output.
//
// Never use both `cbor` and `json` tags on the same field. The tag
// choice documents the contract — doubling up is noise that obscures
// whether a type participates in JSON serialization.
package codec
