// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import (
	"encoding/base64"
	"strconv"
	"time"

	socketio "github.com/googollee/go-socket.io"

	"github.com/f11esync/f11esync/internal/protocol"
)

// emit formats and sends msg with payload to the currently attached socket.
// If no socket is attached the call is a silent no-op.
func (s *Session) emit(msg string, payload interface{}) {
	conn := s.Socket()
	if conn == nil {
		return
	}
	conn.Emit(msg, payload)
}

// EmitConnectionRejected tells a second connector why it is being refused,
// ahead of a forced disconnect. Unlike every other emit it targets a
// specific (not-yet-admitted) connection, never the session's socket slot.
func EmitConnectionRejected(conn socketio.Conn, message string) {
	conn.Emit("connection_rejected", protocol.ConnectionRejected{Message: message})
}

// EmitUpdate sends a small (non-chunked) file as a single update event.
func (s *Session) EmitUpdate(rel string, content []byte) {
	b64 := base64.StdEncoding.EncodeToString(content)
	s.emit("update", protocol.BroadcastPayload{
		Action:   "update",
		Path:     rel,
		Content:  &b64,
		IsDir:    false,
		Encoding: "base64",
	})
	s.log().Info("ui_log", "action", "update", "path", rel)
}

// EmitCreateDir announces a directory's creation.
func (s *Session) EmitCreateDir(rel string) {
	s.emit("create_dir", protocol.BroadcastPayload{
		Action: "create_dir",
		Path:   rel,
		IsDir:  true,
	})
	s.log().Info("ui_log", "action", "create_dir", "path", rel)
}

// EmitDelete announces removal of a file or directory.
func (s *Session) EmitDelete(rel string, isDir bool) {
	s.emit("delete", protocol.BroadcastPayload{
		Action: "delete",
		Path:   rel,
		IsDir:  isDir,
	})
	s.log().Info("ui_log", "action", "delete", "path", rel, "is_dir", isDir)
}

// EmitChunkStart opens a chunked transfer.
func (s *Session) EmitChunkStart(path, fileID string, totalChunks int, totalSize int64, isDir bool) {
	s.emit("chunk_start", protocol.ChunkStart{
		Path:        path,
		FileID:      fileID,
		TotalChunks: totalChunks,
		TotalSize:   &totalSize,
		IsDir:       &isDir,
	})
}

// EmitChunkData sends one chunk of an outbound chunked transfer.
func (s *Session) EmitChunkData(fileID string, idx int, content, path string) {
	s.emit("chunk_data", protocol.ChunkData{
		FileID:     fileID,
		ChunkIndex: idx,
		Content:    content,
		Path:       path,
	})
}

// EmitChunkComplete closes out a chunked transfer.
func (s *Session) EmitChunkComplete(fileID, path string) {
	s.emit("chunk_complete", protocol.ChunkComplete{FileID: fileID, Path: path})
}

// EmitChunkAck confirms (or nacks) one inbound chunk. success is always
// explicit here (never omitted) since the server is the side deciding it.
func (s *Session) EmitChunkAck(fileID string, idx int, success bool, errMsg string) {
	s.emit("chunk_ack", protocol.ChunkAck{
		FileID:     fileID,
		ChunkIndex: idx,
		Success:    &success,
		Error:      errMsg,
	})
}

// EmitServerLogWarning surfaces an out-of-band warning (filter-skip,
// size-skip, reject reason) to the client's own log/UI.
func (s *Session) EmitServerLogWarning(path, message string) {
	s.emit("server_log", protocol.ServerLog{
		Action:  "server_log",
		Path:    path,
		Status:  "warning",
		Message: message,
	})
	s.log().Warn("ui_log", "action", "server_log", "path", path, "message", message)
}

// EmitSyncStart, EmitSyncComplete, and EmitSyncError bracket a full-sync
// (sync_all) run.
func (s *Session) EmitSyncStart()    { s.emit("sync_start", protocol.SyncControl{Action: "sync_start"}) }
func (s *Session) EmitSyncComplete() { s.emit("sync_complete", protocol.SyncControl{Action: "sync_complete"}) }
func (s *Session) EmitSyncError(message string) {
	s.emit("sync_error", protocol.SyncControl{Action: "sync_error", Content: message})
}

// SendChunkAndWaitAck installs an ack waiter for "{fileID}-{chunkIndex}",
// emits the chunk, and blocks up to ackWaitTimeout for the matching
// chunk_ack. It returns the ack's effective success flag (true if the ack
// omitted success), or false on timeout or if the socket is gone by the
// time the wait begins.
func (s *Session) SendChunkAndWaitAck(fileID string, idx int, content, path string) bool {
	key := ackKey(fileID, idx)
	ch := s.InsertAckWaiter(key)

	if s.Socket() == nil {
		s.RemoveAckWaiter(key)
		return false
	}

	s.EmitChunkData(fileID, idx, content, path)

	select {
	case ack := <-ch:
		return ack.Succeeded()
	case <-time.After(ackWaitTimeout):
		s.RemoveAckWaiter(key)
		return false
	}
}

// ackKey is the correlation key shared by SendChunkAndWaitAck and the
// inbound chunk_ack handler.
func ackKey(fileID string, chunkIndex int) string {
	return fileID + "-" + strconv.Itoa(chunkIndex)
}
