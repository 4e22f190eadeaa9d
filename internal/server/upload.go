// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/f11esync/f11esync/internal/protocol"
)

// resolveRel turns a client-supplied relative path into an absolute path
// under root, verifying it can't escape the sync directory.
func resolveRel(root, rel string) (abs string, err error) {
	rel = protocol.NormalizeRelPath(rel)
	abs = filepath.Join(root, filepath.FromSlash(rel))
	if vErr := validatePathInBaseDir(root, abs); vErr != nil {
		return "", vErr
	}
	return abs, nil
}

// HandleUpdate implements the "update" client->server event: decode,
// size-check, write to disk, and mark the echo-suppression map so the
// filesystem pump doesn't bounce this write back out.
func (e *Engine) HandleUpdate(root string, payload protocol.UpdateFile) {
	sess := e.session
	rel := protocol.NormalizeRelPath(payload.Path)

	if protocol.ShouldIgnoreRel(rel) {
		return
	}
	if payload.Encoding != "base64" {
		e.log().Warn("update: unsupported encoding", "path", rel, "encoding", payload.Encoding)
		return
	}

	data, err := base64.StdEncoding.DecodeString(payload.Content)
	if err != nil {
		e.log().Warn("update: decoding base64 body", "path", rel, "error", err)
		return
	}

	if ok, reason := protocol.EvaluateFileSize(int64(len(data)), e.serverSizeLimit(), sess.ClientSizeLimit()); !ok {
		sess.EmitServerLogWarning(rel, reason)
		return
	}

	abs, err := resolveRel(root, rel)
	if err != nil {
		e.log().Warn("update: rejecting path", "path", rel, "error", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		e.log().Warn("update: creating parent directory", "path", abs, "error", err)
		return
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		e.log().Warn("update: writing file", "path", abs, "error", err)
		return
	}

	sess.ClientWritten.mark(rel)
	e.log().Info("ui_log", "action", "update", "path", rel, "bytes", len(data))
	e.recordEvent("info", "update", rel, "client upload applied")
}

// HandleCreateDir implements the "create_dir" client->server event.
func (e *Engine) HandleCreateDir(root string, payload protocol.CreateDir) {
	sess := e.session
	rel := protocol.NormalizeRelPath(payload.Path)
	if protocol.ShouldIgnoreRel(rel) {
		return
	}

	abs, err := resolveRel(root, rel)
	if err != nil {
		e.log().Warn("create_dir: rejecting path", "path", rel, "error", err)
		return
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		e.log().Warn("create_dir: creating directory", "path", abs, "error", err)
		return
	}

	sess.ClientWritten.mark(rel)
	e.log().Info("ui_log", "action", "create_dir", "path", rel)
}

// HandleChunkStart implements "chunk_start": pre-validates the announced
// total size against the effective caps and installs the receive state.
// A rejected size is remembered (not dropped) so every subsequent
// chunk_data for this fileId can nack with the same reason.
func (e *Engine) HandleChunkStart(root string, payload protocol.ChunkStart) {
	sess := e.session
	rel := protocol.NormalizeRelPath(payload.Path)

	abs, err := resolveRel(root, rel)
	if err != nil {
		e.log().Warn("chunk_start: rejecting path", "path", rel, "error", err)
		return
	}

	st := &protocol.ChunkReceiveState{
		AbsPath:     abs,
		RelPath:     rel,
		TotalChunks: payload.TotalChunks,
		Progress:    protocol.NewProgressTracker(),
	}

	if payload.TotalSize != nil {
		if ok, reason := protocol.EvaluateFileSize(*payload.TotalSize, e.serverSizeLimit(), sess.ClientSizeLimit()); !ok {
			st.RejectReason = reason
		}
	}

	sess.PutReceiveState(payload.FileID, st)
	e.log().Info("chunk_start", "path", rel, "file_id", payload.FileID, "total_chunks", payload.TotalChunks)
}

// HandleChunkData implements "chunk_data": append-or-truncate-write one
// chunk to disk and ack (or nack) it.
func (e *Engine) HandleChunkData(payload protocol.ChunkData) {
	sess := e.session

	st, ok := sess.ReceiveState(payload.FileID)
	if !ok {
		sess.EmitChunkAck(payload.FileID, payload.ChunkIndex, false, "未找到接收状态")
		return
	}

	if st.RejectReason != "" {
		if payload.ChunkIndex == 0 {
			sess.EmitServerLogWarning(st.RelPath, st.RejectReason)
		}
		sess.EmitChunkAck(payload.FileID, payload.ChunkIndex, false, st.RejectReason)
		return
	}

	data, err := base64.StdEncoding.DecodeString(payload.Content)
	if err != nil {
		sess.EmitChunkAck(payload.FileID, payload.ChunkIndex, false, fmt.Sprintf("decoding chunk: %v", err))
		return
	}

	if err := os.MkdirAll(filepath.Dir(st.AbsPath), 0755); err != nil {
		sess.EmitChunkAck(payload.FileID, payload.ChunkIndex, false, fmt.Sprintf("creating parent directory: %v", err))
		return
	}

	if err := writeChunk(st.AbsPath, payload.ChunkIndex, data); err != nil {
		sess.EmitChunkAck(payload.FileID, payload.ChunkIndex, false, fmt.Sprintf("writing chunk: %v", err))
		return
	}

	st.ReceivedChunks++
	sess.ClientWritten.mark(st.RelPath)

	if line, show := st.Progress.Update(st.ReceivedChunks, st.TotalChunks, "upload", false); show {
		e.log().Debug(line, "path", st.RelPath, "file_id", payload.FileID)
	}

	sess.EmitChunkAck(payload.FileID, payload.ChunkIndex, true, "")
}

// writeChunk truncates on the first chunk and appends on every subsequent
// one, so partial uploads leave correctly-ordered bytes in place even
// though no rename/finalize step ever runs.
func writeChunk(abs string, chunkIndex int, data []byte) error {
	flags := os.O_WRONLY | os.O_CREATE
	if chunkIndex == 0 {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(abs, flags, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

// HandleChunkComplete implements "chunk_complete": remove the receive
// state if present; bytes are already in place, so there is nothing to
// rename or finalize.
func (e *Engine) HandleChunkComplete(payload protocol.ChunkComplete) {
	sess := e.session
	if st, ok := sess.ReceiveState(payload.FileID); ok {
		sess.RemoveReceiveState(payload.FileID)
		e.log().Info("chunk_complete", "path", st.RelPath, "file_id", payload.FileID)
		e.recordEvent("info", "chunk_complete", st.RelPath, "upload finished")
		return
	}
	e.log().Info("chunk_complete: arrival with no known receive state", "file_id", payload.FileID)
}

// HandleChunkAck implements the server-originated side of "chunk_ack":
// resolving the matching outbound ack waiter for a chunk the server sent.
func (e *Engine) HandleChunkAck(payload protocol.ChunkAck) {
	e.session.ResolveAck(ackKey(payload.FileID, payload.ChunkIndex), payload)
}
