// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import (
	"path/filepath"
	"testing"
)

func TestValidatePathInBaseDir_Inside(t *testing.T) {
	base := "/data/sync"
	inside := filepath.Join(base, "docs", "notes.txt")
	if err := validatePathInBaseDir(base, inside); err != nil {
		t.Errorf("expected path inside base dir, got error: %v", err)
	}
}

func TestValidatePathInBaseDir_BaseDirItself(t *testing.T) {
	base := "/data/sync"
	if err := validatePathInBaseDir(base, base); err != nil {
		t.Errorf("expected base dir itself to be valid, got error: %v", err)
	}
}

func TestValidatePathInBaseDir_Outside(t *testing.T) {
	base := "/data/sync"
	outside := "/etc/passwd"
	if err := validatePathInBaseDir(base, outside); err == nil {
		t.Error("expected path outside base dir to be rejected")
	}
}

func TestValidatePathInBaseDir_TraversalAttempt(t *testing.T) {
	base := "/data/sync"
	traversal := filepath.Join(base, "..", "..", "etc", "passwd")
	if err := validatePathInBaseDir(base, traversal); err == nil {
		t.Error("expected traversal attempt to be rejected")
	}
}

func TestValidatePathInBaseDir_SimilarPrefixSibling(t *testing.T) {
	base := "/data/sync"
	sibling := "/data/sync-evil/file.txt"
	if err := validatePathInBaseDir(base, sibling); err == nil {
		t.Error("expected a sibling directory with a shared string prefix to be rejected")
	}
}
