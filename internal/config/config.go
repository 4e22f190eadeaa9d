// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

// Package config loads and validates the f11esync-server YAML configuration
// file and layers CLI flag overrides on top of it.
package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the full configuration for a running f11esync-server
// instance: the synced directory and listen address, the filter/size-limit
// policy applied to the session, and the ambient observability/domain-stack
// features layered on top of the core sync engine.
type ServerConfig struct {
	Server    ServerListen    `yaml:"server"`
	Limits    LimitsConfig    `yaml:"limits"`
	Logging   LoggingConfig   `yaml:"logging"`
	WebUI     WebUIConfig     `yaml:"web_ui"`
	S3Archive S3ArchiveConfig `yaml:"s3_archive"`
	Bandwidth BandwidthConfig `yaml:"bandwidth"`
	Rescan    RescanConfig    `yaml:"rescan"`
	Stats     StatsConfig     `yaml:"stats"`
}

// ServerListen is the bind address and the directory this server mirrors.
type ServerListen struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 5899
	Dir  string `yaml:"dir"`  // required: directory synced with the client
}

// LimitsConfig is the server side of the size-limit and path-filter policy
// described in protocol.EvaluateFileSize / protocol.ShouldFilterRel. The
// client can further narrow (never widen) this via its "configure" event.
type LimitsConfig struct {
	PathRegex              []string `yaml:"path_regex"`                  // default: [`\.DS_Store$`, `__MACOSX$`]
	EnableFileSizeLimit    bool     `yaml:"enable_file_size_limit"`      // default: false
	MaxFileSize            string   `yaml:"max_file_size"`               // e.g. "250kb" (default when enabled: 250kb)
	MaxFileSizeRaw         int64    `yaml:"-"`
}

// LoggingConfig configures the slog backend (internal/logging).
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // default: "json"
	File   string `yaml:"file"`   // optional: also write to this file

	// ConnectionLogDir, when set, writes a dedicated DEBUG-level JSONL log
	// per connected client session under {dir}/client/{connectionID}.log,
	// in addition to the global handler. Empty disables the feature.
	ConnectionLogDir string `yaml:"connection_log_dir"`
}

// WebUIConfig controls the observability HTTP listener (health, metrics,
// recent-events endpoints) backed by internal/observability.
type WebUIConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Listen       string        `yaml:"listen"`        // default: "127.0.0.1:5898"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 15s
	IdleTimeout  time.Duration `yaml:"idle_timeout"`  // default: 60s
	AllowOrigins []string      `yaml:"allow_origins"` // IP or CIDR, deny-by-default

	EventsFile     string `yaml:"events_file"`      // default: "events.jsonl"
	EventsMaxLines int    `yaml:"events_max_lines"` // default: 10000

	ParsedCIDRs []*net.IPNet `yaml:"-"`
}

// S3ArchiveConfig optionally ships rotated observability JSONL files to S3.
// Off by default; when enabled, credentials are resolved the standard
// aws-sdk-go-v2 way (environment, shared config, IMDS).
type S3ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"` // default: "f11esync/"
	Region  string `yaml:"region"` // default: from AWS shared config

	// AccessKeyID/SecretAccessKey optionally pin static credentials instead
	// of the default chain (env, shared config, IMDS). Leave both empty to
	// use the default chain.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// Interval controls how often rotated segments under the archive
	// directory are swept and uploaded.
	Interval time.Duration `yaml:"interval"` // default: 5m
}

// BandwidthConfig optionally caps outbound chunk emission to a steady
// rate using a token bucket.
type BandwidthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	MaxPerSec  string `yaml:"max_per_sec"` // e.g. "5mb"; required when enabled
	RawBytes   int64  `yaml:"-"`
}

// RescanConfig schedules a periodic full-tree integrity rescan (like a
// sync_all) independent of client-initiated syncs, catching drift missed by
// a saturated watcher channel.
type RescanConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression, default: "@every 30m"
}

// StatsConfig drives the periodic disk/mem stats reporter.
type StatsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"` // default: 15s
}

// defaultPathRegex mirrors the original settings.rs defaults.
var defaultPathRegex = []string{`\.DS_Store$`, `__MACOSX$`}

// LoadServerConfig reads and validates the YAML configuration at path.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server config: %w", err)
	}

	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}

	return &cfg, nil
}

func (c *ServerConfig) validate() error {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5899
	}
	if c.Server.Dir == "" {
		return fmt.Errorf("server.dir is required")
	}

	if len(c.Limits.PathRegex) == 0 {
		c.Limits.PathRegex = append([]string{}, defaultPathRegex...)
	}
	if c.Limits.EnableFileSizeLimit {
		if c.Limits.MaxFileSize == "" {
			c.Limits.MaxFileSize = "250kb"
		}
		raw, err := ParseByteSize(c.Limits.MaxFileSize)
		if err != nil {
			return fmt.Errorf("limits.max_file_size: %w", err)
		}
		if raw <= 0 {
			return fmt.Errorf("limits.max_file_size must be > 0, got %s", c.Limits.MaxFileSize)
		}
		c.Limits.MaxFileSizeRaw = raw
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.WebUI.Enabled {
		if c.WebUI.Listen == "" {
			c.WebUI.Listen = "127.0.0.1:5898"
		}
		if c.WebUI.ReadTimeout <= 0 {
			c.WebUI.ReadTimeout = 5 * time.Second
		}
		if c.WebUI.WriteTimeout <= 0 {
			c.WebUI.WriteTimeout = 15 * time.Second
		}
		if c.WebUI.IdleTimeout <= 0 {
			c.WebUI.IdleTimeout = 60 * time.Second
		}
		if c.WebUI.EventsFile == "" {
			c.WebUI.EventsFile = "events.jsonl"
		}
		if c.WebUI.EventsMaxLines <= 0 {
			c.WebUI.EventsMaxLines = 10000
		}
		if len(c.WebUI.AllowOrigins) == 0 {
			return fmt.Errorf("web_ui.allow_origins is required when web_ui is enabled (deny-by-default)")
		}
		for _, origin := range c.WebUI.AllowOrigins {
			_, cidr, err := net.ParseCIDR(origin)
			if err != nil {
				ip := net.ParseIP(strings.TrimSpace(origin))
				if ip == nil {
					return fmt.Errorf("web_ui.allow_origins: %q is not a valid IP or CIDR", origin)
				}
				if ip.To4() != nil {
					_, cidr, _ = net.ParseCIDR(ip.String() + "/32")
				} else {
					_, cidr, _ = net.ParseCIDR(ip.String() + "/128")
				}
			}
			c.WebUI.ParsedCIDRs = append(c.WebUI.ParsedCIDRs, cidr)
		}
	}

	if c.S3Archive.Enabled {
		if c.S3Archive.Bucket == "" {
			return fmt.Errorf("s3_archive.bucket is required when s3_archive is enabled")
		}
		if c.S3Archive.Prefix == "" {
			c.S3Archive.Prefix = "f11esync/"
		}
		if c.S3Archive.Interval <= 0 {
			c.S3Archive.Interval = 5 * time.Minute
		}
	}

	if c.Bandwidth.Enabled {
		if c.Bandwidth.MaxPerSec == "" {
			return fmt.Errorf("bandwidth.max_per_sec is required when bandwidth is enabled")
		}
		raw, err := ParseByteSize(c.Bandwidth.MaxPerSec)
		if err != nil {
			return fmt.Errorf("bandwidth.max_per_sec: %w", err)
		}
		if raw <= 0 {
			return fmt.Errorf("bandwidth.max_per_sec must be > 0, got %s", c.Bandwidth.MaxPerSec)
		}
		c.Bandwidth.RawBytes = raw
	}

	if c.Rescan.Enabled && c.Rescan.Schedule == "" {
		c.Rescan.Schedule = "@every 30m"
	}

	if c.Stats.Enabled && c.Stats.Interval <= 0 {
		c.Stats.Interval = 15 * time.Second
	}

	return nil
}

// ApplyFlags overlays CLI flags on top of the loaded config. Only flags the
// caller actually passed on the command line (per fs.Visit) override the
// config file's value, mirroring the original settings.rs merge rule where
// absent CLI flags never clobber a value already present in the file. A
// -max-file-size value that does not parse leaves the loaded limit in effect.
func (c *ServerConfig) ApplyFlags(fs *flag.FlagSet, host, port, dir, pathRegex *string, enableSizeLimit *bool, maxFileSize *string) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			c.Server.Host = *host
		case "port":
			if p, err := strconv.Atoi(*port); err == nil {
				c.Server.Port = p
			}
		case "dir":
			c.Server.Dir = *dir
		case "path-regex":
			c.Limits.PathRegex = []string{*pathRegex}
		case "enable-file-size-limit":
			c.Limits.EnableFileSizeLimit = *enableSizeLimit
		case "max-file-size":
			c.Limits.MaxFileSize = *maxFileSize
		}
	})

	// validate derived MaxFileSizeRaw (the value the engine enforces) before
	// the flags were applied; derive it again so size-limit flags take effect.
	if c.Limits.EnableFileSizeLimit {
		if c.Limits.MaxFileSize == "" {
			c.Limits.MaxFileSize = "250kb"
		}
		if raw, err := ParseByteSize(c.Limits.MaxFileSize); err == nil && raw > 0 {
			c.Limits.MaxFileSizeRaw = raw
		}
	}
}

// ParseByteSize parses a human size like "250kb", "8mb", "1gb" or a plain
// byte count into bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	type suffix struct {
		s string
		m int64
	}
	// Ordered longest-suffix-first so "mb" never matches as "b".
	suffixes := []suffix{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.s) {
			numStr := strings.TrimSuffix(s, sfx.s)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			return num * sfx.m, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown size format %q", s)
	}
	return num, nil
}
