// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import (
	"encoding/json"
	"strings"

	socketio "github.com/googollee/go-socket.io"

	"github.com/f11esync/f11esync/internal/logging"
	"github.com/f11esync/f11esync/internal/protocol"
)

// decodePayload unmarshals an event's raw argument into target. The iOS
// client's Socket.IO handshake variant sometimes wraps a single payload in
// a one-element array; that wrapper is stripped here before decoding so
// every handler below can assume its target struct's shape directly.
func decodePayload(raw interface{}, target interface{}) error {
	if arr, ok := raw.([]interface{}); ok && len(arr) == 1 {
		raw = arr[0]
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// registerEventHandlers wires every client->server event on the root
// namespace onto the Engine. Called once at startup from Run; the handlers
// then serve whichever connection currently holds the session slot.
func (e *Engine) registerEventHandlers(sio *socketio.Server, root string) {
	sio.OnEvent("/", "configure", func(s socketio.Conn, raw interface{}) {
		var cfg protocol.ClientConfig
		if err := decodePayload(raw, &cfg); err != nil {
			e.log().Warn("configure: decoding payload", "error", err)
			return
		}
		e.session.MergeClientConfig(cfg)
		e.log().Info("client configured", "remote", s.RemoteAddr())
	})

	sio.OnEvent("/", "sync_all", func(s socketio.Conn, raw interface{}) {
		e.SyncAll(root)
	})

	sio.OnEvent("/", "client_upload_start", func(s socketio.Conn, raw interface{}) {
		e.log().Info("client upload started", "remote", s.RemoteAddr())
	})

	sio.OnEvent("/", "client_upload_complete", func(s socketio.Conn, raw interface{}) {
		e.log().Info("client upload complete", "remote", s.RemoteAddr())
	})

	sio.OnEvent("/", "update", func(s socketio.Conn, raw interface{}) {
		var p protocol.UpdateFile
		if err := decodePayload(raw, &p); err != nil {
			e.log().Warn("update: decoding payload", "error", err)
			return
		}
		e.HandleUpdate(root, p)
	})

	sio.OnEvent("/", "create_dir", func(s socketio.Conn, raw interface{}) {
		var p protocol.CreateDir
		if err := decodePayload(raw, &p); err != nil {
			e.log().Warn("create_dir: decoding payload", "error", err)
			return
		}
		e.HandleCreateDir(root, p)
	})

	sio.OnEvent("/", "chunk_start", func(s socketio.Conn, raw interface{}) {
		var p protocol.ChunkStart
		if err := decodePayload(raw, &p); err != nil {
			e.log().Warn("chunk_start: decoding payload", "error", err)
			return
		}
		e.HandleChunkStart(root, p)
	})

	sio.OnEvent("/", "chunk_data", func(s socketio.Conn, raw interface{}) {
		var p protocol.ChunkData
		if err := decodePayload(raw, &p); err != nil {
			e.log().Warn("chunk_data: decoding payload", "error", err)
			return
		}
		e.HandleChunkData(p)
	})

	sio.OnEvent("/", "chunk_complete", func(s socketio.Conn, raw interface{}) {
		var p protocol.ChunkComplete
		if err := decodePayload(raw, &p); err != nil {
			e.log().Warn("chunk_complete: decoding payload", "error", err)
			return
		}
		e.HandleChunkComplete(p)
	})

	sio.OnEvent("/", "chunk_ack", func(s socketio.Conn, raw interface{}) {
		var p protocol.ChunkAck
		if err := decodePayload(raw, &p); err != nil {
			e.log().Warn("chunk_ack: decoding payload", "error", err)
			return
		}
		e.HandleChunkAck(p)
	})
}

// OnConnect admits the connecting socket if the single-client slot is
// empty, or rejects and disconnects it otherwise. Per-event handlers are
// registered once for the namespace at startup (see
// registerEventHandlers), not per connection: the Engine and sync root are
// fixed for the server's lifetime, and socketio dispatches every inbound
// event against the one session currently holding the socket slot.
func (e *Engine) OnConnect() func(socketio.Conn) error {
	return func(s socketio.Conn) error {
		if !e.session.SetSocketIfEmpty(s) {
			EmitConnectionRejected(s, "连接失败：已有其他客户端连接，不允许多个客户端同时连接")
			go s.Close()
			return nil
		}

		connID := sanitizeConnID(s.ID())
		connLogger, closer, logPath, err := logging.NewConnectionLogger(e.logger, e.connectionLogDir(), "client", connID)
		if err != nil {
			e.logger.Warn("opening per-connection log", "connection", connID, "error", err)
		} else {
			e.session.SetConnLogger(connLogger, closer)
			if logPath != "" {
				e.logger.Info("connection log opened", "connection", connID, "path", logPath)
			}
		}

		e.log().Info("客户端连接", "remote", s.RemoteAddr())
		e.recordEvent("info", "connect", "", s.RemoteAddr().String())
		return nil
	}
}

// OnDisconnect clears the session's socket slot and resets every piece of
// per-connection state so the slot is ready for the next client.
func (e *Engine) OnDisconnect() func(socketio.Conn, string) {
	return func(s socketio.Conn, reason string) {
		e.log().Info("client disconnected", "remote", s.RemoteAddr(), "reason", reason)
		e.recordEvent("info", "disconnect", "", reason)

		// The connection's own log file is left in place for post-mortem
		// inspection; only its handle is closed here, not the file itself.
		e.session.ClearConnLogger()

		e.session.ClearSocket()
		e.session.ResetConnectionState()
	}
}

// sanitizeConnID turns a socket.io connection id into a filesystem-safe
// filename fragment (it may contain "/" in some transports' id schemes).
func sanitizeConnID(id string) string {
	id = strings.ReplaceAll(id, "/", "_")
	id = strings.ReplaceAll(id, "\\", "_")
	if id == "" {
		return "unknown"
	}
	return id
}
