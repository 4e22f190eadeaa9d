// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package protocol

import (
	"strings"
	"testing"
)

func TestEvaluateFileSize_NoLimits(t *testing.T) {
	ok, reason := EvaluateFileSize(1<<30, SizeLimit{}, SizeLimit{})
	if !ok || reason != "" {
		t.Fatalf("expected no limit to always pass, got ok=%v reason=%q", ok, reason)
	}
}

func TestEvaluateFileSize_ServerOnly(t *testing.T) {
	server := SizeLimit{Enabled: true, MaxSize: 1024}
	ok, _ := EvaluateFileSize(2048, server, SizeLimit{})
	if ok {
		t.Fatal("expected rejection above server cap")
	}
	ok, reason := EvaluateFileSize(512, server, SizeLimit{})
	if !ok {
		t.Fatalf("expected pass under server cap, got reason %q", reason)
	}
}

func TestEvaluateFileSize_MinOfBothSides(t *testing.T) {
	server := SizeLimit{Enabled: true, MaxSize: 4096}
	client := SizeLimit{Enabled: true, MaxSize: 1024}
	ok, reason := EvaluateFileSize(2048, server, client)
	if ok {
		t.Fatal("expected rejection: effective cap is the min of the two sides (1024)")
	}
	if !strings.Contains(reason, "过大") || !strings.Contains(reason, "服务端+客户端") {
		t.Errorf("expected reason to contain 过大 and name both sides, got %q", reason)
	}
	ok, _ = EvaluateFileSize(1024, server, client)
	if !ok {
		t.Fatal("expected size equal to cap to pass")
	}
}

func TestEvaluateFileSize_ClientOnly(t *testing.T) {
	client := SizeLimit{Enabled: true, MaxSize: 100 * 1024}
	ok, reason := EvaluateFileSize(200*1024, SizeLimit{}, client)
	if ok {
		t.Fatal("expected rejection above client cap")
	}
	if !strings.Contains(reason, "客户端") || strings.Contains(reason, "服务端") {
		t.Errorf("expected reason to name only client, got %q", reason)
	}
}

func TestFormatKB(t *testing.T) {
	if got := formatKB(1536); got != "1.5KB" {
		t.Errorf("expected 1.5KB, got %q", got)
	}
}
