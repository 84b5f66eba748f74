// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/pagevault-foundation/pagevault/lib/config"
	"github.com/pagevault-foundation/pagevault/lib/object"
	"github.com/pagevault-foundation/pagevault/lib/pagestore"
)

// vaultFlags holds the flags shared by every command that opens the
// store: config file location and log verbosity.
type vaultFlags struct {
	configPath string
	verbose    bool
}

// addFlags registers the shared flags on a command's flag set.
func (v *vaultFlags) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&v.configPath, "config", "", "config file path (default: $PAGEVAULT_CONFIG, else built-in defaults)")
	flagSet.BoolVar(&v.verbose, "verbose", false, "enable debug logging to stderr")
}

// vault bundles the opened store and ref store for one command
// invocation.
type vault struct {
	store *pagestore.Store
	refs  *pagestore.RefStore
}

// openVault loads configuration and opens the piece store and ref
// store. compressionOverride, when non-empty, replaces the configured
// compression algorithm for this invocation (reads are unaffected: the
// algorithm of each existing piece is recorded in its header).
func (v *vaultFlags) openVault(compressionOverride string) (*vault, error) {
	cfg, err := config.Load(v.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	algorithm := cfg.Compression.Algorithm
	if compressionOverride != "" {
		algorithm = compressionOverride
	}
	options := pagestore.DefaultOptions()
	options.Params = cfg.Chunking.Params()
	if algorithm == "auto" {
		options.AutoCompression = true
	} else {
		options.Compression, err = pagestore.ParseCompressionTag(algorithm)
		if err != nil {
			return nil, err
		}
	}

	level := slog.LevelWarn
	if v.verbose {
		level = slog.LevelDebug
	}
	options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := pagestore.NewStore(cfg.Paths.Store, options)
	if err != nil {
		return nil, err
	}

	refs, err := pagestore.NewRefStore(filepath.Join(cfg.Paths.Store, "refs"))
	if err != nil {
		return nil, err
	}

	return &vault{store: store, refs: refs}, nil
}

// resolveTarget turns a command-line target into a piece identifier.
// Named refs take precedence; anything else must be a short ref or a
// full hex hash.
func (v *vault) resolveTarget(target string) (object.Identifier, error) {
	if record, ok := v.refs.Get(target); ok {
		return record.Identifier(), nil
	}
	return v.store.Resolve(target)
}

// writeJSON marshals value as indented JSON to stdout.
func writeJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// formatSize returns a human-readable byte size.
func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
