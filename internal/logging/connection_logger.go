// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// fanOutHandler is a slog.Handler that dispatches each record to two
// handlers. Used by NewConnectionLogger to write simultaneously to the
// global handler and a connection's dedicated log file.
type fanOutHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (h *fanOutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.secondary.Enabled(ctx, level)
}

func (h *fanOutHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.primary.Enabled(ctx, r.Level) {
		if err := h.primary.Handle(ctx, r); err != nil {
			return err
		}
	}
	// A write failure in the connection file must not suppress the global log.
	if h.secondary.Enabled(ctx, r.Level) {
		_ = h.secondary.Handle(ctx, r)
	}
	return nil
}

func (h *fanOutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fanOutHandler{
		primary:   h.primary.WithAttrs(attrs),
		secondary: h.secondary.WithAttrs(attrs),
	}
}

func (h *fanOutHandler) WithGroup(name string) slog.Handler {
	return &fanOutHandler{
		primary:   h.primary.WithGroup(name),
		secondary: h.secondary.WithGroup(name),
	}
}

// NewConnectionLogger builds a logger that writes both to baseLogger (the
// global handler) and a dedicated file for one client session:
//
//	{connectionLogDir}/{group}/{connectionID}.log
//
// group is typically the remote address or "client"; since f11esync-server
// only ever admits a single concurrent session, this mostly exists to keep
// each connection's chatter separately inspectable without re-parsing the
// global log by timestamp range.
//
// Returns the enriched logger, an io.Closer that must be called (defer)
// when the connection ends, and the path of the file created (absolute only
// if connectionLogDir is). If
// connectionLogDir is empty, returns baseLogger unmodified (no-op).
func NewConnectionLogger(baseLogger *slog.Logger, connectionLogDir, group, connectionID string) (*slog.Logger, io.Closer, string, error) {
	if connectionLogDir == "" {
		return baseLogger, io.NopCloser(nil), "", nil
	}

	dir := filepath.Join(connectionLogDir, group)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, "", fmt.Errorf("creating connection log directory %s: %w", dir, err)
	}

	logPath := filepath.Join(dir, connectionID+".log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, "", fmt.Errorf("opening connection log file %s: %w", logPath, err)
	}

	// The connection file always captures at DEBUG regardless of the
	// global handler's level, for full post-mortem detail on one session.
	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	combined := &fanOutHandler{
		primary:   baseLogger.Handler(),
		secondary: fileHandler,
	}

	return slog.New(combined), f, logPath, nil
}

// RemoveConnectionLog deletes a finished connection's dedicated log file. It
// is a no-op if connectionLogDir is empty or the file doesn't exist.
func RemoveConnectionLog(connectionLogDir, group, connectionID string) {
	if connectionLogDir == "" {
		return
	}
	logPath := filepath.Join(connectionLogDir, group, connectionID+".log")
	os.Remove(logPath)
}
