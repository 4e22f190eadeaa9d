// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package protocol

import "testing"

func TestNormalizeRelPath(t *testing.T) {
	cases := map[string]string{
		"foo/bar.txt":  "foo/bar.txt",
		`foo\bar.txt`:  "foo/bar.txt",
		`a\b\c.txt`:    "a/b/c.txt",
		"already/fine": "already/fine",
	}
	for in, want := range cases {
		if got := NormalizeRelPath(in); got != want {
			t.Errorf("NormalizeRelPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShouldIgnoreRel(t *testing.T) {
	ignored := []string{".DS_Store", "foo/.DS_Store", "a/b/.DS_Store"}
	for _, p := range ignored {
		if !ShouldIgnoreRel(p) {
			t.Errorf("expected %q to be universally ignored", p)
		}
	}
	notIgnored := []string{"foo.txt", "DS_Store.txt", "folder/file.go"}
	for _, p := range notIgnored {
		if ShouldIgnoreRel(p) {
			t.Errorf("expected %q to NOT be universally ignored", p)
		}
	}
}

func TestCompileFilters(t *testing.T) {
	re, invalid := CompileFilters([]string{`\.tmp$`, `__MACOSX$`})
	if len(invalid) != 0 {
		t.Fatalf("unexpected invalid patterns: %v", invalid)
	}
	if re == nil {
		t.Fatal("expected non-nil regex")
	}
	if !re.MatchString("foo.tmp") {
		t.Error("expected foo.tmp to match")
	}
	if !re.MatchString("a/__MACOSX") {
		t.Error("expected a/__MACOSX to match")
	}
	if re.MatchString("foo.txt") {
		t.Error("did not expect foo.txt to match")
	}
}

func TestCompileFilters_Empty(t *testing.T) {
	re, invalid := CompileFilters(nil)
	if re != nil {
		t.Error("expected nil regex for empty pattern list")
	}
	if len(invalid) != 0 {
		t.Errorf("expected no invalid patterns, got %v", invalid)
	}
}

func TestCompileFilters_SkipsInvalid(t *testing.T) {
	re, invalid := CompileFilters([]string{`(unclosed`, `\.tmp$`})
	if len(invalid) != 1 || invalid[0] != `(unclosed` {
		t.Fatalf("expected exactly the unclosed pattern flagged invalid, got %v", invalid)
	}
	if re == nil || !re.MatchString("foo.tmp") {
		t.Error("expected the valid pattern to still compile and match")
	}
}

func TestShouldFilterRel(t *testing.T) {
	re, _ := CompileFilters([]string{`\.DS_Store$`})
	if !ShouldFilterRel(re, `sub\dir\.DS_Store`) {
		t.Error("expected backslash path to be normalized and matched")
	}
	if ShouldFilterRel(nil, "anything") {
		t.Error("nil regex should never filter")
	}
}

func TestMergeClientPatterns(t *testing.T) {
	base := []string{`\.tmp$`}
	merged := MergeClientPatterns(base, `\.log$`)
	if len(merged) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(merged))
	}
	same := MergeClientPatterns(base, "  ")
	if len(same) != 1 {
		t.Errorf("expected blank client pattern to leave server patterns untouched, got %v", same)
	}
}
