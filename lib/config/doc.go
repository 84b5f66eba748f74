// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Pagevault.
//
// Configuration is loaded from a single file specified by either a
// --config flag or the PAGEVAULT_CONFIG environment variable (both via
// [Load]). There is no ~/.config discovery and no automatic file
// search; when neither is set, the built-in defaults apply, which are
// themselves a complete working configuration.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values — this keeps
// configuration deterministic and auditable.
//
// The chunking section deserves care: its five parameters are part of
// the store format. Every writer and reader of one store directory
// must use the same values, or new writes stop deduplicating against
// existing pieces. The compression section carries no such constraint,
// since each piece file records its own compression tag.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Chunking, Compression
//   - [Default] -- returns the default configuration
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends only on lib/chunktree (for parameter types and
// validation).
package config
