// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package protocol

import "testing"

func TestProgressTracker_EmitsPerQuintile(t *testing.T) {
	p := NewProgressTracker()
	var emitted []string
	for i := 0; i < 20; i++ {
		if line, ok := p.Update(i, 20, "upload", true); ok {
			emitted = append(emitted, line)
		}
	}
	if len(emitted) != 5 {
		t.Fatalf("expected 5 progress lines (one per 20%%), got %d: %v", len(emitted), emitted)
	}
}

func TestProgressTracker_FinalChunkAlwaysEmits(t *testing.T) {
	p := NewProgressTracker()
	line, ok := p.Update(0, 1, "upload", true)
	if !ok {
		t.Fatal("expected single-chunk transfer to emit on its only (and final) chunk")
	}
	if line == "" {
		t.Error("expected non-empty progress line")
	}
}

func TestProgressTracker_NoDuplicateWithinSameQuintile(t *testing.T) {
	p := NewProgressTracker()
	_, first := p.Update(0, 100, "upload", true)
	_, second := p.Update(1, 100, "upload", true)
	if !first {
		t.Fatal("expected first chunk to emit")
	}
	if second {
		t.Fatal("did not expect second chunk in the same quintile to emit")
	}
}

func TestProgressTracker_OneBasedIndexing(t *testing.T) {
	p := NewProgressTracker()
	line, ok := p.Update(5, 5, "download", false)
	if !ok {
		t.Fatal("expected last 1-based chunk to emit")
	}
	want := "download: 5/5 (100%)"
	if line != want {
		t.Errorf("got %q, want %q", line, want)
	}
}

func TestProgressTracker_NonDivisibleTotalStillEmitsFinalLine(t *testing.T) {
	p := NewProgressTracker()
	var last string
	for i := 0; i < 6; i++ {
		if line, ok := p.Update(i, 6, "broadcast", true); ok {
			last = line
		}
	}
	want := "broadcast: 6/6 (100%)"
	if last != want {
		t.Errorf("got %q, want %q", last, want)
	}
}

func TestDivCeil(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{0, 5, 0},
		{1, 5, 1},
		{5, 5, 1},
		{6, 5, 2},
		{20, 4, 5},
	}
	for _, c := range cases {
		if got := divCeil(c.a, c.b); got != c.want {
			t.Errorf("divCeil(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
