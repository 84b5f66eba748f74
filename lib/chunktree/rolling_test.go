// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package chunktree

import (
	"math/rand"
	"testing"
)

// feedAll runs buf through the checksum, restarting after each cut, and
// returns the absolute offsets of every cut.
func feedAll(rc *RollingChecksum, buf []byte) []int {
	var cuts []int
	base := 0
	for len(buf) > 0 {
		cut, _ := rc.Feed(buf)
		if cut == 0 {
			break
		}
		cuts = append(cuts, base+cut)
		base += cut
		buf = buf[cut:]
	}
	return cuts
}

func TestRollingFeedGranularity(t *testing.T) {
	// Cut positions must not depend on how the input is sliced into
	// Feed calls.
	params := testParams()
	data := randomBytes(t, 20, 20000)

	whole := feedAll(NewRollingChecksum(params), data)
	if len(whole) == 0 {
		t.Fatal("no cuts in 20000 bytes")
	}

	byteWise := NewRollingChecksum(params)
	var cuts []int
	for i := range data {
		if cut, _ := byteWise.Feed(data[i : i+1]); cut != 0 {
			cuts = append(cuts, i+1)
		}
	}

	if len(cuts) != len(whole) {
		t.Fatalf("byte-wise feed found %d cuts, whole-buffer found %d", len(cuts), len(whole))
	}
	for i := range cuts {
		if cuts[i] != whole[i] {
			t.Errorf("cut %d: byte-wise %d, whole-buffer %d", i, cuts[i], whole[i])
		}
	}
}

func TestRollingCutSpacing(t *testing.T) {
	// Consecutive cuts are at least MinChunkSize and at most
	// MaxChunkSize apart.
	params := testParams()
	data := randomBytes(t, 21, 50000)
	cuts := feedAll(NewRollingChecksum(params), data)

	prev := 0
	for i, cut := range cuts {
		gap := cut - prev
		if gap < params.MinChunkSize {
			t.Errorf("cut %d at %d: gap %d under min %d", i, cut, gap, params.MinChunkSize)
		}
		if gap > params.MaxChunkSize {
			t.Errorf("cut %d at %d: gap %d over max %d", i, cut, gap, params.MaxChunkSize)
		}
		prev = cut
	}
}

func TestRollingStrengthFloor(t *testing.T) {
	// Every reported strength is at least BoundaryBits.
	params := testParams()
	data := randomBytes(t, 22, 50000)

	rc := NewRollingChecksum(params)
	buf := data
	for len(buf) > 0 {
		cut, strength := rc.Feed(buf)
		if cut == 0 {
			break
		}
		if strength < params.BoundaryBits {
			t.Fatalf("strength %d below boundary bits %d", strength, params.BoundaryBits)
		}
		buf = buf[cut:]
	}
}

func TestRollingReset(t *testing.T) {
	// After Reset the checksum behaves exactly like a fresh instance.
	params := testParams()
	data := randomBytes(t, 23, 10000)

	rc := NewRollingChecksum(params)
	feedAll(rc, randomBytes(t, 24, 5000))
	rc.Reset()

	fresh := feedAll(NewRollingChecksum(params), data)
	reused := feedAll(rc, data)

	if len(fresh) != len(reused) {
		t.Fatalf("reset checksum found %d cuts, fresh found %d", len(reused), len(fresh))
	}
	for i := range fresh {
		if fresh[i] != reused[i] {
			t.Errorf("cut %d: reset %d, fresh %d", i, reused[i], fresh[i])
		}
	}
}

func TestRollingDigestIsWindowLocal(t *testing.T) {
	// The digest is a pure function of the last WindowSize bytes: two
	// checksums fed different prefixes converge once they consume the
	// same window-sized suffix.
	// BoundaryBits 31 makes a natural cut unreachable and the huge
	// bounds keep Feed from returning early, so each call consumes its
	// whole buffer.
	params := Params{
		MinChunkSize: 1 << 20,
		MaxChunkSize: 1 << 20,
		WindowSize:   32,
		BoundaryBits: 31,
		BitsPerLevel: 4,
	}
	rng := rand.New(rand.NewSource(25))

	suffix := make([]byte, params.WindowSize)
	rng.Read(suffix)

	a := NewRollingChecksum(params)
	b := NewRollingChecksum(params)

	prefixA := make([]byte, 1000+rng.Intn(1000))
	prefixB := make([]byte, 100+rng.Intn(100))
	rng.Read(prefixA)
	rng.Read(prefixB)

	a.Feed(prefixA)
	b.Feed(prefixB)
	a.Feed(suffix)
	b.Feed(suffix)

	if a.digest() != b.digest() {
		t.Errorf("digests differ after shared window: %#x vs %#x", a.digest(), b.digest())
	}
}

func TestRollingStateContinuesAcrossCuts(t *testing.T) {
	// Only the bytes-since-cut counter resets at a cut. The window keeps
	// rolling, so the digest right after a cut still reflects the bytes
	// before it.
	params := testParams()
	data := randomBytes(t, 26, 50000)

	rc := NewRollingChecksum(params)
	cut, _ := rc.Feed(data)
	if cut == 0 {
		t.Fatal("no cut found")
	}

	// The digest is window-local, so a checksum fed only the last
	// WindowSize bytes before the cut must agree with rc's state right
	// after it. If the window were zeroed at the cut, rc would diverge.
	tail := NewRollingChecksum(params)
	tail.Feed(data[cut-params.WindowSize : cut])
	if rc.digest() != tail.digest() {
		t.Error("window state was discarded at the cut")
	}
}
