// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

// Pagevault is the CLI for a local content-defined chunking store. It
// provides subcommands for storing streams (store), restoring content
// and byte ranges (cat), inspecting stored trees (stat, pieces), and
// managing named refs (refs).
package main
