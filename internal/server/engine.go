// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/f11esync/f11esync/internal/config"
	"github.com/f11esync/f11esync/internal/protocol"
	"github.com/f11esync/f11esync/internal/server/observability"
)

// chunkSize is the maximum length, in base64 text bytes, of a single
// chunk_data payload: 256 KiB of base64 (~192 KiB of raw file bytes).
const chunkSize = 256 * 1024

// maxFileAttempts and maxChunkAttempts bound the two nested retry loops
// the chunked send path uses: up to 4 attempts per file, up to 4 attempts
// per chunk, each separated by a 1s backoff.
const (
	maxFileAttempts  = 4
	maxChunkAttempts = 4
)

// Engine wires the session state, wire emitter, broadcast entry, full-sync
// walker, client-upload handler, and FS-broadcast pump together against one
// running configuration. One Engine exists per server process; its Session
// enforces the single-client invariant.
type Engine struct {
	cfg     *config.ServerConfig
	logger  *slog.Logger
	session *Session

	// limiter optionally caps outbound chunk_data emission to a steady
	// byte rate (internal/server/bandwidth.go). Nil when disabled.
	limiter *rate.Limiter

	// events is the optional observability sink; nil when the Web UI is
	// disabled. Never required for correctness, only for the dashboard.
	events *observability.EventStore
}

// NewEngine builds an Engine from configuration. The server-side filter
// patterns seed the Session's effective regex.
func NewEngine(cfg *config.ServerConfig, logger *slog.Logger, events *observability.EventStore) *Engine {
	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		session: NewSession(cfg.Limits.PathRegex, logger),
		events:  events,
	}
	if cfg.Bandwidth.Enabled {
		e.limiter = newBandwidthLimiter(cfg.Bandwidth.RawBytes)
	}
	return e
}

// Session exposes the Engine's single session slot.
func (e *Engine) Session() *Session { return e.session }

// serverSizeLimit projects the static server config onto a SizeLimit.
func (e *Engine) serverSizeLimit() protocol.SizeLimit {
	return protocol.SizeLimit{
		Enabled: e.cfg.Limits.EnableFileSizeLimit,
		MaxSize: e.cfg.Limits.MaxFileSizeRaw,
	}
}

// recordEvent best-effort logs an operational event to the observability
// store, when one is configured.
func (e *Engine) recordEvent(level, eventType, path, message string) {
	if e.events == nil {
		return
	}
	e.events.PushEvent(level, eventType, path, message)
}

// Connected reports whether a client currently holds the single-session
// slot. Satisfies observability.MetricsProvider.
func (e *Engine) Connected() bool { return e.session.Socket() != nil }

// SyncDir returns the directory this server mirrors. Satisfies
// observability.MetricsProvider.
func (e *Engine) SyncDir() string { return e.cfg.Server.Dir }

// BandwidthLimited reports whether outbound chunk emission is currently
// capped by a token-bucket limiter.
func (e *Engine) BandwidthLimited() bool { return e.limiter != nil }

// log returns the currently attached connection's dedicated logger if one
// is installed (internal/logging.NewConnectionLogger, see handlers.go
// OnConnect), falling back to the Engine's base logger otherwise. Handler
// code should call this rather than reading e.logger directly so every
// per-request log line also lands in that connection's own file.
func (e *Engine) log() *slog.Logger {
	if l := e.session.ConnLogger(); l != nil {
		return l
	}
	return e.logger
}

// connectionLogDir returns the configured per-connection log directory, or
// "" when the feature is disabled.
func (e *Engine) connectionLogDir() string {
	return e.cfg.Logging.ConnectionLogDir
}
