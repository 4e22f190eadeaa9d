// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadServerConfig_Minimal(t *testing.T) {
	path := writeTempConfig(t, `
server:
  dir: /tmp/sync
`)
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 5899 {
		t.Errorf("expected default port 5899, got %d", cfg.Server.Port)
	}
	if len(cfg.Limits.PathRegex) != 2 {
		t.Errorf("expected 2 default path regexes, got %v", cfg.Limits.PathRegex)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadServerConfig_MissingDir(t *testing.T) {
	path := writeTempConfig(t, `
server:
  host: "127.0.0.1"
`)
	_, err := LoadServerConfig(path)
	if err == nil {
		t.Fatal("expected error for missing server.dir")
	}
}

func TestLoadServerConfig_FileSizeLimit(t *testing.T) {
	path := writeTempConfig(t, `
server:
  dir: /tmp/sync
limits:
  enable_file_size_limit: true
`)
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Limits.MaxFileSize != "250kb" {
		t.Errorf("expected default max_file_size 250kb, got %q", cfg.Limits.MaxFileSize)
	}
	if cfg.Limits.MaxFileSizeRaw != 250*1024 {
		t.Errorf("expected 250kb in bytes, got %d", cfg.Limits.MaxFileSizeRaw)
	}
}

func TestLoadServerConfig_WebUIRequiresAllowOrigins(t *testing.T) {
	path := writeTempConfig(t, `
server:
  dir: /tmp/sync
web_ui:
  enabled: true
`)
	_, err := LoadServerConfig(path)
	if err == nil {
		t.Fatal("expected error for web_ui enabled without allow_origins")
	}
}

func TestLoadServerConfig_WebUIParsesCIDRsAndIPs(t *testing.T) {
	path := writeTempConfig(t, `
server:
  dir: /tmp/sync
web_ui:
  enabled: true
  allow_origins:
    - "10.0.0.0/8"
    - "192.168.1.10"
`)
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.WebUI.ParsedCIDRs) != 2 {
		t.Fatalf("expected 2 parsed CIDRs, got %d", len(cfg.WebUI.ParsedCIDRs))
	}
	if cfg.WebUI.Listen != "127.0.0.1:5898" {
		t.Errorf("expected default webui listen, got %q", cfg.WebUI.Listen)
	}
}

func TestLoadServerConfig_S3ArchiveRequiresBucket(t *testing.T) {
	path := writeTempConfig(t, `
server:
  dir: /tmp/sync
s3_archive:
  enabled: true
`)
	_, err := LoadServerConfig(path)
	if err == nil {
		t.Fatal("expected error for s3_archive enabled without bucket")
	}
}

func TestLoadServerConfig_BandwidthRequiresMaxPerSec(t *testing.T) {
	path := writeTempConfig(t, `
server:
  dir: /tmp/sync
bandwidth:
  enabled: true
`)
	_, err := LoadServerConfig(path)
	if err == nil {
		t.Fatal("expected error for bandwidth enabled without max_per_sec")
	}
}

func TestLoadServerConfig_BandwidthValid(t *testing.T) {
	path := writeTempConfig(t, `
server:
  dir: /tmp/sync
bandwidth:
  enabled: true
  max_per_sec: "5mb"
`)
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bandwidth.RawBytes != 5*1024*1024 {
		t.Errorf("expected 5mb in bytes, got %d", cfg.Bandwidth.RawBytes)
	}
}

func TestLoadServerConfig_RescanDefaultSchedule(t *testing.T) {
	path := writeTempConfig(t, `
server:
  dir: /tmp/sync
rescan:
  enabled: true
`)
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Rescan.Schedule != "@every 30m" {
		t.Errorf("expected default rescan schedule, got %q", cfg.Rescan.Schedule)
	}
}

func TestLoadServerConfig_FileNotFound(t *testing.T) {
	_, err := LoadServerConfig("/nonexistent/path/server.yaml")
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
}

func TestLoadServerConfig_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "{{invalid yaml}}")
	_, err := LoadServerConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestParseByteSize(t *testing.T) {
	cases := map[string]int64{
		"250kb": 250 * 1024,
		"8mb":   8 * 1024 * 1024,
		"1gb":   1024 * 1024 * 1024,
		"100":   100,
		"100b":  100,
	}
	for in, want := range cases {
		got, err := ParseByteSize(in)
		if err != nil {
			t.Errorf("ParseByteSize(%q) unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseByteSize_Invalid(t *testing.T) {
	if _, err := ParseByteSize("not-a-size"); err == nil {
		t.Fatal("expected error for invalid size string")
	}
	if _, err := ParseByteSize(""); err == nil {
		t.Fatal("expected error for empty size string")
	}
}
