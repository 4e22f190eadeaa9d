// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

// Package server implements the single-session Socket.IO sync engine:
// session state, the wire emitter, broadcast entry, the full-sync walker,
// the client-upload handler, the filesystem broadcast pump, and session
// lifecycle/listener wiring.
package server

import (
	"fmt"
	"io"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	socketio "github.com/googollee/go-socket.io"

	"github.com/f11esync/f11esync/internal/protocol"
)

// clientWrittenTTL and serverWrittenTTL are the echo-suppression windows:
// once the server writes (or marks) a path, the filesystem pump ignores the
// resulting watcher event for this long. A path re-marked before expiry has
// its window extended rather than cut short by the older timer.
const (
	clientWrittenTTL = 12 * time.Second
	serverWrittenTTL = 12 * time.Second

	// ackWaitTimeout bounds how long the chunked send loop waits for a
	// matching chunk_ack before treating the chunk as unacknowledged.
	ackWaitTimeout = 5 * time.Second
)

// echoMap is a generation-tagged set of relative paths, used to suppress
// the filesystem watcher from re-broadcasting a write this process just
// made itself. A path is "marked" with a monotonically increasing
// generation; a background timer removes the entry after ttl only if no
// newer mark has since arrived.
type echoMap struct {
	mu    sync.Mutex
	ttl   time.Duration
	marks map[string]uint64
}

func newEchoMap(ttl time.Duration) *echoMap {
	return &echoMap{ttl: ttl, marks: make(map[string]uint64)}
}

// mark bumps rel's generation and schedules a delayed removal gated on the
// generation being unchanged when the timer fires.
func (m *echoMap) mark(rel string) {
	m.mu.Lock()
	m.marks[rel]++
	gen := m.marks[rel]
	m.mu.Unlock()

	time.AfterFunc(m.ttl, func() {
		m.mu.Lock()
		if m.marks[rel] == gen {
			delete(m.marks, rel)
		}
		m.mu.Unlock()
	})
}

// contains reports whether rel currently carries a live mark.
func (m *echoMap) contains(rel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.marks[rel]
	return ok
}

// reset clears every mark, used on disconnect.
func (m *echoMap) reset() {
	m.mu.Lock()
	m.marks = make(map[string]uint64)
	m.mu.Unlock()
}

// Session owns the single-client slot and every piece of mutable state tied
// to the currently attached (or most recently attached) peer: the socket
// handle, the merged client configuration, the effective filter regex, the
// echo-suppression maps, in-flight inbound chunk state, and outstanding
// chunk-ack waiters. At most one Session is ever live per process: this
// server accepts a single connected client at a time.
type Session struct {
	logger *slog.Logger

	socketMu sync.Mutex
	conn     socketio.Conn

	connLogMu     sync.Mutex
	connLogger    *slog.Logger
	connLogCloser io.Closer

	serverPatterns []string // immutable server-side regex fragments

	cfgMu     sync.Mutex
	clientCfg protocol.ClientConfig

	regexMu        sync.RWMutex
	effectiveRegex *regexp.Regexp

	ServerWritten *echoMap
	ClientWritten *echoMap

	receiveMu sync.Mutex
	receive   map[string]*protocol.ChunkReceiveState

	ackMu      sync.Mutex
	ackWaiters map[string]chan protocol.ChunkAck

	fileSeq atomic.Uint64
}

// NewSession builds a Session seeded with the server-side filter patterns;
// the effective regex starts out server-only, matching startup and the
// post-disconnect reset state.
func NewSession(serverPatterns []string, logger *slog.Logger) *Session {
	s := &Session{
		logger:         logger,
		serverPatterns: serverPatterns,
		ServerWritten:  newEchoMap(serverWrittenTTL),
		ClientWritten:  newEchoMap(clientWrittenTTL),
		receive:        make(map[string]*protocol.ChunkReceiveState),
		ackWaiters:     make(map[string]chan protocol.ChunkAck),
	}
	s.rebuildEffectiveRegexLocked(nil)
	return s
}

// SetSocketIfEmpty installs conn as the active socket only if the slot is
// currently empty, returning whether the install happened. This is the sole
// admission gate enforcing the one-client-at-a-time invariant.
func (s *Session) SetSocketIfEmpty(conn socketio.Conn) bool {
	s.socketMu.Lock()
	defer s.socketMu.Unlock()
	if s.conn != nil {
		return false
	}
	s.conn = conn
	return true
}

// Socket returns the currently attached connection, or nil if none.
// Readers clone the handle out rather than holding the lock across emit.
func (s *Session) Socket() socketio.Conn {
	s.socketMu.Lock()
	defer s.socketMu.Unlock()
	return s.conn
}

// ClearSocket empties the socket slot. Called on disconnect.
func (s *Session) ClearSocket() {
	s.socketMu.Lock()
	s.conn = nil
	s.socketMu.Unlock()
}

// SetConnLogger installs the per-connection logger built by OnConnect (see
// handlers.go), along with the io.Closer for its dedicated log file.
func (s *Session) SetConnLogger(logger *slog.Logger, closer io.Closer) {
	s.connLogMu.Lock()
	s.connLogger = logger
	s.connLogCloser = closer
	s.connLogMu.Unlock()
}

// ConnLogger returns the currently installed per-connection logger, or nil
// if none is installed (connection logging disabled, or no client attached).
func (s *Session) ConnLogger() *slog.Logger {
	s.connLogMu.Lock()
	defer s.connLogMu.Unlock()
	return s.connLogger
}

// log returns the per-connection logger if one is installed, falling back
// to the Session's base logger otherwise. Used by the wire emitter's
// ui_log lines so they land in the connection's own file too.
func (s *Session) log() *slog.Logger {
	if l := s.ConnLogger(); l != nil {
		return l
	}
	return s.logger
}

// ClearConnLogger closes the per-connection log file (if any) and empties
// the slot. Called on disconnect, after the connection's own teardown logs
// have already been written.
func (s *Session) ClearConnLogger() {
	s.connLogMu.Lock()
	closer := s.connLogCloser
	s.connLogger = nil
	s.connLogCloser = nil
	s.connLogMu.Unlock()

	if closer != nil {
		_ = closer.Close()
	}
}

// MergeClientConfig applies a field-wise merge of incoming over the current
// client configuration: a present (non-nil) field replaces, an absent field
// preserves the existing value. The effective regex is rebuilt afterward.
func (s *Session) MergeClientConfig(incoming protocol.ClientConfig) {
	s.cfgMu.Lock()
	if incoming.EnableFileSizeLimit != nil {
		s.clientCfg.EnableFileSizeLimit = incoming.EnableFileSizeLimit
	}
	if incoming.MaxFileSize != nil {
		s.clientCfg.MaxFileSize = incoming.MaxFileSize
	}
	if incoming.PathRegex != nil {
		s.clientCfg.PathRegex = incoming.PathRegex
	}
	merged := s.clientCfg
	s.cfgMu.Unlock()

	s.rebuildEffectiveRegexLocked(&merged)
}

// ClientConfig returns a copy of the currently installed client config.
func (s *Session) ClientConfig() protocol.ClientConfig {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.clientCfg
}

// ClientSizeLimit projects the client config onto a protocol.SizeLimit.
func (s *Session) ClientSizeLimit() protocol.SizeLimit {
	cfg := s.ClientConfig()
	var lim protocol.SizeLimit
	if cfg.EnableFileSizeLimit != nil {
		lim.Enabled = *cfg.EnableFileSizeLimit
	}
	if cfg.MaxFileSize != nil {
		lim.MaxSize = *cfg.MaxFileSize
	}
	return lim
}

// rebuildEffectiveRegexLocked recomputes the effective filter regex as the
// server patterns concatenated with the client's pathRegex fragment (if
// any), and swaps it in wholesale. Pass nil to reset to server-only, as on
// disconnect.
func (s *Session) rebuildEffectiveRegexLocked(cfg *protocol.ClientConfig) {
	patterns := s.serverPatterns
	if cfg != nil && cfg.PathRegex != nil {
		patterns = protocol.MergeClientPatterns(s.serverPatterns, *cfg.PathRegex)
	}
	re, invalid := protocol.CompileFilters(patterns)
	for _, p := range invalid {
		s.logger.Warn("dropping invalid path regex", "pattern", p)
	}
	s.regexMu.Lock()
	s.effectiveRegex = re
	s.regexMu.Unlock()
}

// EffectiveRegex returns the currently installed filter regex (possibly
// nil, meaning no filtering).
func (s *Session) EffectiveRegex() *regexp.Regexp {
	s.regexMu.RLock()
	defer s.regexMu.RUnlock()
	return s.effectiveRegex
}

// NextFileID produces a fresh chunked-transfer identifier: wall-clock
// milliseconds concatenated with a monotonic per-process counter, so two
// files started in the same millisecond never collide.
func (s *Session) NextFileID() string {
	millis := time.Now().UnixMilli()
	seq := s.fileSeq.Add(1)
	return fmtFileID(millis, seq)
}

// PutReceiveState installs (or replaces) the inbound chunk-receive state for
// fileID.
func (s *Session) PutReceiveState(fileID string, st *protocol.ChunkReceiveState) {
	s.receiveMu.Lock()
	s.receive[fileID] = st
	s.receiveMu.Unlock()
}

// ReceiveState returns the in-flight receive state for fileID, if any.
func (s *Session) ReceiveState(fileID string) (*protocol.ChunkReceiveState, bool) {
	s.receiveMu.Lock()
	defer s.receiveMu.Unlock()
	st, ok := s.receive[fileID]
	return st, ok
}

// RemoveReceiveState deletes the in-flight receive state for fileID.
func (s *Session) RemoveReceiveState(fileID string) {
	s.receiveMu.Lock()
	delete(s.receive, fileID)
	s.receiveMu.Unlock()
}

// InsertAckWaiter installs a single-shot ack channel keyed by
// "{fileID}-{chunkIndex}", replacing any stale waiter under the same key.
func (s *Session) InsertAckWaiter(key string) chan protocol.ChunkAck {
	ch := make(chan protocol.ChunkAck, 1)
	s.ackMu.Lock()
	s.ackWaiters[key] = ch
	s.ackMu.Unlock()
	return ch
}

// RemoveAckWaiter removes and returns the waiter for key, if present.
func (s *Session) RemoveAckWaiter(key string) (chan protocol.ChunkAck, bool) {
	s.ackMu.Lock()
	defer s.ackMu.Unlock()
	ch, ok := s.ackWaiters[key]
	if ok {
		delete(s.ackWaiters, key)
	}
	return ch, ok
}

// ResolveAck delivers ack to its matching waiter, if one is still pending.
// An ack for an unknown key (already timed out, or never sent) is a no-op.
func (s *Session) ResolveAck(key string, ack protocol.ChunkAck) {
	ch, ok := s.RemoveAckWaiter(key)
	if !ok {
		return
	}
	select {
	case ch <- ack:
	default:
	}
}

// ResetConnectionState wipes every piece of per-connection state: the
// receive table, the ack-waiter table, both echo maps, the client config,
// and the effective regex (back to server-only). Called once per
// disconnect, after the socket slot has already been cleared.
func (s *Session) ResetConnectionState() {
	s.receiveMu.Lock()
	s.receive = make(map[string]*protocol.ChunkReceiveState)
	s.receiveMu.Unlock()

	s.ackMu.Lock()
	s.ackWaiters = make(map[string]chan protocol.ChunkAck)
	s.ackMu.Unlock()

	s.ServerWritten.reset()
	s.ClientWritten.reset()

	s.cfgMu.Lock()
	s.clientCfg = protocol.ClientConfig{}
	s.cfgMu.Unlock()

	s.rebuildEffectiveRegexLocked(nil)
}

// IsEchoed reports whether rel is currently suppressed by either echo map.
func (s *Session) IsEchoed(rel string) bool {
	return s.ServerWritten.contains(rel) || s.ClientWritten.contains(rel)
}

// fmtFileID renders a chunked-transfer id as "{millis}-{counter-hex}".
func fmtFileID(millis int64, seq uint64) string {
	return fmt.Sprintf("%d-%x", millis, seq)
}
