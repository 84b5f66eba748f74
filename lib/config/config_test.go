// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pagevault-foundation/pagevault/lib/chunktree"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Paths.Store == "" {
		t.Error("default store path is empty")
	}
	if cfg.Compression.Algorithm != "zstd" {
		t.Errorf("expected algorithm=zstd, got %s", cfg.Compression.Algorithm)
	}
	if cfg.Chunking.Params() != chunktree.DefaultParams() {
		t.Error("default chunking section does not match chunktree defaults")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadWithoutConfigUsesDefaults(t *testing.T) {
	origConfig := os.Getenv("PAGEVAULT_CONFIG")
	defer os.Setenv("PAGEVAULT_CONFIG", origConfig)
	os.Unsetenv("PAGEVAULT_CONFIG")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Compression.Algorithm != "zstd" {
		t.Errorf("expected default algorithm, got %s", cfg.Compression.Algorithm)
	}
}

func TestLoadWithEnvVariable(t *testing.T) {
	origConfig := os.Getenv("PAGEVAULT_CONFIG")
	defer os.Setenv("PAGEVAULT_CONFIG", origConfig)

	configPath := filepath.Join(t.TempDir(), "pagevault.yaml")
	configContent := `
paths:
  store: /test/store
compression:
  algorithm: lz4
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	os.Setenv("PAGEVAULT_CONFIG", configPath)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.Store != "/test/store" {
		t.Errorf("expected store=/test/store, got %s", cfg.Paths.Store)
	}
	if cfg.Compression.Algorithm != "lz4" {
		t.Errorf("expected algorithm=lz4, got %s", cfg.Compression.Algorithm)
	}
}

func TestLoadExplicitPathWinsOverEnv(t *testing.T) {
	origConfig := os.Getenv("PAGEVAULT_CONFIG")
	defer os.Setenv("PAGEVAULT_CONFIG", origConfig)

	dir := t.TempDir()
	envPath := filepath.Join(dir, "env.yaml")
	flagPath := filepath.Join(dir, "flag.yaml")
	if err := os.WriteFile(envPath, []byte("paths:\n  store: /env/store\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(flagPath, []byte("paths:\n  store: /flag/store\n"), 0644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("PAGEVAULT_CONFIG", envPath)

	cfg, err := Load(flagPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.Store != "/flag/store" {
		t.Errorf("expected the explicit path to win, got store=%s", cfg.Paths.Store)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "pagevault.yaml")
	configContent := `
paths:
  store: /custom/store

chunking:
  min_chunk_size: 1024
  max_chunk_size: 32768
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Paths.Store != "/custom/store" {
		t.Errorf("expected store=/custom/store, got %s", cfg.Paths.Store)
	}
	if cfg.Chunking.MinChunkSize != 1024 || cfg.Chunking.MaxChunkSize != 32768 {
		t.Errorf("chunking overrides not applied: %+v", cfg.Chunking)
	}
	// Unset fields keep their defaults.
	if cfg.Chunking.WindowSize != chunktree.DefaultParams().WindowSize {
		t.Errorf("window_size lost its default: %d", cfg.Chunking.WindowSize)
	}
	if cfg.Compression.Algorithm != "zstd" {
		t.Errorf("compression lost its default: %s", cfg.Compression.Algorithm)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestHomeExpansion(t *testing.T) {
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", "/home/tester")

	configPath := filepath.Join(t.TempDir(), "pagevault.yaml")
	if err := os.WriteFile(configPath, []byte("paths:\n  store: ${HOME}/vault\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Store != "/home/tester/vault" {
		t.Errorf("expected expanded store path, got %s", cfg.Paths.Store)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/pagevault",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/pagevault",
		},
		{
			input:    "${MISSING_VARIABLE_FOR_TEST:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "empty store path",
			modify: func(c *Config) {
				c.Paths.Store = ""
			},
			wantErr: true,
		},
		{
			name: "max below min",
			modify: func(c *Config) {
				c.Chunking.MaxChunkSize = c.Chunking.MinChunkSize - 1
			},
			wantErr: true,
		},
		{
			name: "zero window",
			modify: func(c *Config) {
				c.Chunking.WindowSize = 0
			},
			wantErr: true,
		},
		{
			name: "auto compression algorithm",
			modify: func(c *Config) {
				c.Compression.Algorithm = "auto"
			},
			wantErr: false,
		},
		{
			name: "unknown compression algorithm",
			modify: func(c *Config) {
				c.Compression.Algorithm = "brotli"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
