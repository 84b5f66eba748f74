// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pagevault-foundation/pagevault/lib/codec"
	"github.com/pagevault-foundation/pagevault/lib/object"
)

// MaxRefNameLength is the maximum byte length of a ref name. Ref names
// are hierarchical (e.g., "backups/db/2026-08-26/full") and this limit
// is generous enough for real use while preventing abuse.
const MaxRefNameLength = 512

// RootRecordVersion is the current record format version.
const RootRecordVersion = 1

// RootRecord is the on-disk and in-memory representation of a single
// named ref. Each ref file on disk contains one CBOR-encoded
// RootRecord.
type RootRecord struct {
	Version    int           `cbor:"version"`
	Name       string        `cbor:"name"`
	Root       object.Digest `cbor:"root"`
	Size       int64         `cbor:"size"`
	ChunkCount int           `cbor:"chunk_count"`
	CreatedAt  time.Time     `cbor:"created_at"`
	UpdatedAt  time.Time     `cbor:"updated_at"`
}

// Identifier returns the record's root as a piece identifier.
func (r RootRecord) Identifier() object.Identifier {
	return object.Identifier{Digest: r.Root}
}

// Validate checks that a RootRecord is internally consistent.
func (r *RootRecord) Validate() error {
	if r.Version < 1 {
		return fmt.Errorf("version %d is invalid (minimum 1)", r.Version)
	}
	if r.Name == "" {
		return fmt.Errorf("ref name is empty")
	}
	if !r.Root.Kind.Valid() {
		return fmt.Errorf("root digest kind %d is invalid", r.Root.Kind)
	}
	var zeroHash object.Hash
	if r.Root.Hash == zeroHash {
		return fmt.Errorf("root hash is zero")
	}
	if r.Size < 0 {
		return fmt.Errorf("size %d is negative", r.Size)
	}
	if r.ChunkCount < 1 {
		return fmt.Errorf("chunk count %d is invalid (minimum 1)", r.ChunkCount)
	}
	return nil
}

// RefStore manages mutable name-to-root mappings with an in-memory
// index backed by per-ref CBOR files on disk. Ref names can contain
// slashes, so the store hashes each name to produce a filesystem-safe
// path.
//
// On-disk layout:
//
//	<root>/<hash[:2]>/<hash[2:4]>/<hash>.cbor
//
// where hash is object.HashRefName of the ref name. Each CBOR file
// contains the original name, so the in-memory map is rebuilt by a
// directory scan on startup.
//
// RefStore is safe for concurrent readers with serialized writers.
type RefStore struct {
	root    string
	mu      sync.RWMutex
	entries map[string]RootRecord // ref name → record
}

// NewRefStore opens (creating if needed) a ref store rooted at the
// given directory and loads any existing refs into memory.
func NewRefStore(root string) (*RefStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating refs directory %s: %w", root, err)
	}

	store := &RefStore{
		root:    root,
		entries: make(map[string]RootRecord),
	}
	if err := store.scanAll(); err != nil {
		return nil, fmt.Errorf("scanning existing refs: %w", err)
	}
	return store, nil
}

// Get returns the record for the given name, or false if no ref with
// that name exists.
func (rs *RefStore) Get(name string) (RootRecord, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	record, exists := rs.entries[name]
	return record, exists
}

// Set creates or updates a ref to point at the given stored tree. When
// expectedPrevious is non-nil and the ref already exists, this is a
// compare-and-swap: a mismatch against the current root fails with an
// error naming the current target.
func (rs *RefStore) Set(name string, result *StoreResult, expectedPrevious *object.Digest, now time.Time) error {
	if name == "" {
		return fmt.Errorf("ref name is required")
	}
	if len(name) > MaxRefNameLength {
		return fmt.Errorf("ref name is %d bytes, maximum is %d", len(name), MaxRefNameLength)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	existing, exists := rs.entries[name]
	if exists && expectedPrevious != nil && existing.Root != *expectedPrevious {
		return fmt.Errorf("ref conflict: %q currently points to %s, expected %s",
			name,
			object.FormatRef(existing.Identifier()),
			object.FormatRef(object.Identifier{Digest: *expectedPrevious}))
	}

	record := RootRecord{
		Version:    RootRecordVersion,
		Name:       name,
		Root:       result.Root.Digest,
		Size:       result.Size,
		ChunkCount: result.ChunkCount,
		UpdatedAt:  now,
	}
	if exists {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}

	if err := rs.writeFile(record); err != nil {
		return err
	}

	rs.entries[name] = record
	return nil
}

// Delete removes a ref by name. Returns an error if the ref does not
// exist. The pieces the ref pointed at are untouched.
func (rs *RefStore) Delete(name string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, exists := rs.entries[name]; !exists {
		return fmt.Errorf("ref %q not found", name)
	}

	path := rs.refPath(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing ref file for %q: %w", name, err)
	}

	delete(rs.entries, name)
	return nil
}

// List returns all refs whose names start with prefix. An empty prefix
// returns all refs. Results are not sorted — the caller should sort if
// a specific order is needed.
func (rs *RefStore) List(prefix string) []RootRecord {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	var results []RootRecord
	for _, record := range rs.entries {
		if prefix == "" || strings.HasPrefix(record.Name, prefix) {
			results = append(results, record)
		}
	}
	return results
}

// Len returns the number of refs in the store.
func (rs *RefStore) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	return len(rs.entries)
}

// scanAll walks the refs directory and loads all ref files into the
// in-memory index. Called once at startup.
func (rs *RefStore) scanAll() error {
	return filepath.WalkDir(rs.root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if !strings.HasSuffix(entry.Name(), ".cbor") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading ref file %s: %w", path, err)
		}

		var record RootRecord
		if err := codec.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("decoding ref file %s: %w", path, err)
		}

		if record.Name == "" {
			// Skip corrupt or incomplete ref files.
			return nil
		}

		rs.entries[record.Name] = record
		return nil
	})
}

// writeFile atomically writes a ref record to disk.
func (rs *RefStore) writeFile(record RootRecord) error {
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding ref %q: %w", record.Name, err)
	}

	finalPath := rs.refPath(record.Name)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating ref shard directory: %w", err)
	}

	// The suffix must not be .cbor: a temp file orphaned by a crash
	// would otherwise be picked up as a ref record on the next open.
	tmpFile, err := os.CreateTemp(rs.root, "ref-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp ref file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing ref data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp ref file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming ref file to %s: %w", finalPath, err)
	}

	success = true
	return nil
}

// refPath returns the sharded filesystem path for a ref file, keyed by
// the hash of the ref name.
func (rs *RefStore) refPath(name string) string {
	hexString := object.FormatHash(object.HashRefName(name))
	return filepath.Join(rs.root, hexString[:2], hexString[2:4], hexString+".cbor")
}
