// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
)

func TestCompressionRoundTrip(t *testing.T) {
	// Repetitive data compresses under every algorithm and must come
	// back byte-identical.
	data := bytes.Repeat([]byte("pagevault stores pieces. "), 200)

	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			compressed, err := compressPiece(data, tag)
			if err != nil {
				t.Fatalf("compressPiece: %v", err)
			}
			if tag != CompressionNone && len(compressed) >= len(data) {
				t.Errorf("compressed %d bytes into %d", len(data), len(compressed))
			}

			decompressed, err := decompressPiece(compressed, tag, len(data))
			if err != nil {
				t.Fatalf("decompressPiece: %v", err)
			}
			if !bytes.Equal(decompressed, data) {
				t.Error("round trip changed the data")
			}
		})
	}
}

func TestIncompressibleFallback(t *testing.T) {
	// Random bytes do not compress; compressWithFallback must return
	// the original data tagged CompressionNone.
	data := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(data)

	for _, tag := range []CompressionTag{CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			payload, actualTag, err := compressWithFallback(data, tag)
			if err != nil {
				t.Fatalf("compressWithFallback: %v", err)
			}
			if actualTag != CompressionNone {
				t.Errorf("tag = %s, want none for random data", actualTag)
			}
			if !bytes.Equal(payload, data) {
				t.Error("fallback did not return the original bytes")
			}
		})
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	data := bytes.Repeat([]byte("abcd"), 500)
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			compressed, err := compressPiece(data, tag)
			if err != nil {
				t.Fatalf("compressPiece: %v", err)
			}
			if _, err := decompressPiece(compressed, tag, len(data)+1); err == nil {
				t.Error("expected a size mismatch error")
			}
		})
	}
}

func TestSelectCompression(t *testing.T) {
	text := []byte(strings.Repeat("SELECT name, size FROM pieces WHERE kind = 'value';\n", 100))
	if tag := SelectCompression(text, ""); tag != CompressionZstd {
		t.Errorf("text probe selected %s, want zstd", tag)
	}

	random := make([]byte, 8192)
	rand.New(rand.NewSource(2)).Read(random)
	if tag := SelectCompression(random, ""); tag != CompressionNone {
		t.Errorf("random probe selected %s, want none", tag)
	}

	if tag := SelectCompression(random, "application/json"); tag != CompressionZstd {
		t.Errorf("known content type selected %s, want zstd", tag)
	}

	if tag := SelectCompression(nil, ""); tag != CompressionNone {
		t.Errorf("empty sample selected %s, want none", tag)
	}
}

func TestCompressionTagStrings(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompressionTag(tag.String())
		if err != nil {
			t.Fatalf("ParseCompressionTag(%q): %v", tag.String(), err)
		}
		if parsed != tag {
			t.Errorf("tag %s did not survive string round trip", tag)
		}
	}

	if _, err := ParseCompressionTag("brotli"); err == nil {
		t.Error("expected an error for an unknown tag name")
	}
	if CompressionTag(9).String() != "unknown(9)" {
		t.Errorf("unknown tag formats as %q", CompressionTag(9).String())
	}
}
