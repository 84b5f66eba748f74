// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/pagevault-foundation/pagevault/lib/chunktree"
)

// Config is the master configuration for Pagevault.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Chunking configures the content-defined chunking parameters.
	// These are part of the store format: every writer and reader of
	// one store directory must use the same values, or new writes stop
	// deduplicating against existing pieces.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Compression configures piece payload compression. Unlike the
	// chunking parameters, this is NOT part of the store format — each
	// piece records its own compression tag, so the setting can change
	// freely between runs.
	Compression CompressionConfig `yaml:"compression"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Store is the piece store root directory. Refs live under
	// <store>/refs.
	Store string `yaml:"store"`
}

// ChunkingConfig holds the five content-defined chunking parameters.
// Zero fields keep their defaults.
type ChunkingConfig struct {
	MinChunkSize int `yaml:"min_chunk_size"`
	MaxChunkSize int `yaml:"max_chunk_size"`
	WindowSize   int `yaml:"window_size"`
	BoundaryBits int `yaml:"boundary_bits"`
	BitsPerLevel int `yaml:"bits_per_level"`
}

// Params converts the config section into chunking parameters.
func (c ChunkingConfig) Params() chunktree.Params {
	return chunktree.Params{
		MinChunkSize: c.MinChunkSize,
		MaxChunkSize: c.MaxChunkSize,
		WindowSize:   c.WindowSize,
		BoundaryBits: c.BoundaryBits,
		BitsPerLevel: c.BitsPerLevel,
	}
}

// CompressionConfig configures piece payload compression.
type CompressionConfig struct {
	// Algorithm is the compression attempted for new pieces: "none",
	// "lz4", "zstd", or "auto", which probes each stream's first chunk
	// and picks per stream. Incompressible pieces always fall back to
	// none per piece.
	Algorithm string `yaml:"algorithm"`
}

// Default returns the default configuration. These defaults are a
// complete working configuration — unlike most tools, pagevault runs
// without a config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaults := chunktree.DefaultParams()

	return &Config{
		Paths: PathsConfig{
			Store: filepath.Join(homeDir, ".pagevault", "store"),
		},
		Chunking: ChunkingConfig{
			MinChunkSize: defaults.MinChunkSize,
			MaxChunkSize: defaults.MaxChunkSize,
			WindowSize:   defaults.WindowSize,
			BoundaryBits: defaults.BoundaryBits,
			BitsPerLevel: defaults.BitsPerLevel,
		},
		Compression: CompressionConfig{
			Algorithm: "zstd",
		},
	}
}

// Load loads configuration from the PAGEVAULT_CONFIG environment
// variable if set, otherwise returns the defaults. An explicit path
// (from --config) takes precedence over the environment variable.
func Load(explicitPath string) (*Config, error) {
	path := explicitPath
	if path == "" {
		path = os.Getenv("PAGEVAULT_CONFIG")
	}
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merged over
// the defaults.
//
// The config file is the single source of truth. Environment variables
// do not override config values — this keeps configuration
// deterministic and auditable. The only expansion performed is ${HOME}
// and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// configured paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.Store = expandVars(c.Paths.Store, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Store == "" {
		errs = append(errs, fmt.Errorf("paths.store is required"))
	}

	if err := c.Chunking.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chunking: %w", err))
	}

	switch c.Compression.Algorithm {
	case "none", "lz4", "zstd", "auto":
	default:
		errs = append(errs, fmt.Errorf("compression.algorithm %q must be one of: none, lz4, zstd, auto",
			c.Compression.Algorithm))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
