// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import (
	"context"
	"encoding/base64"
	"os"
	"time"

	"github.com/f11esync/f11esync/internal/protocol"
)

// BroadcastFile decides, for a single (rel, abs) pair, whether to skip
// (filter/size), send inline (small file), or drive the chunked send loop
// (large file). Every failure is absorbed here: the caller never sees an
// error, so a single bad file never tears down the session.
func (e *Engine) BroadcastFile(rel, abs string) {
	sess := e.session

	if protocol.ShouldFilterRel(sess.EffectiveRegex(), rel) {
		sess.EmitServerLogWarning("update -> "+rel, "匹配过滤规则，已跳过")
		return
	}

	info, err := os.Stat(abs)
	if err != nil {
		e.log().Warn("stat before broadcast", "path", abs, "error", err)
		return
	}

	ok, reason := protocol.EvaluateFileSize(info.Size(), e.serverSizeLimit(), sess.ClientSizeLimit())
	if !ok {
		sess.EmitServerLogWarning(rel, reason)
		return
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		e.log().Warn("reading file for broadcast", "path", abs, "error", err)
		return
	}

	b64 := base64.StdEncoding.EncodeToString(data)
	if len(b64) <= chunkSize {
		sess.EmitUpdate(rel, data)
		return
	}

	e.broadcastChunked(rel, b64, int64(len(data)))
}

// broadcastChunked drives the up-to-4-attempt chunked send loop for one
// file's already-base64-encoded body.
func (e *Engine) broadcastChunked(rel, b64 string, rawSize int64) {
	sess := e.session
	totalChunks := (len(b64) + chunkSize - 1) / chunkSize

	for attempt := 1; attempt <= maxFileAttempts; attempt++ {
		if sess.Socket() == nil {
			return // disconnected: no retry across sessions
		}
		if attempt > 1 {
			time.Sleep(1 * time.Second)
		}

		fileID := sess.NextFileID()
		sess.EmitChunkStart(rel, fileID, totalChunks, rawSize, false)

		if e.sendAllChunks(sess, fileID, rel, b64, totalChunks) {
			sess.EmitChunkComplete(fileID, rel)
			e.log().Info("chunked broadcast complete", "path", rel, "file_id", fileID, "attempt", attempt)
			e.recordEvent("info", "chunk_complete", rel, "broadcast finished")
			return
		}
	}

	e.log().Warn("chunked broadcast exhausted all attempts", "path", rel, "attempts", maxFileAttempts)
	e.recordEvent("warn", "chunk_failed", rel, "exhausted all file-level attempts")
}

// sendAllChunks sends every chunk of one file-level attempt in order,
// retrying each chunk up to maxChunkAttempts times. It aborts the whole
// attempt as soon as one chunk exhausts its retries.
func (e *Engine) sendAllChunks(sess *Session, fileID, rel, b64 string, totalChunks int) bool {
	progress := protocol.NewProgressTracker()

	for idx := 0; idx < totalChunks; idx++ {
		start := idx * chunkSize
		end := start + chunkSize
		if end > len(b64) {
			end = len(b64)
		}
		chunk := b64[start:end]

		ok := false
		for attempt := 1; attempt <= maxChunkAttempts; attempt++ {
			if sess.Socket() == nil {
				return false
			}
			if attempt > 1 {
				time.Sleep(1 * time.Second)
			}
			e.waitBandwidth(len(chunk))
			if sess.SendChunkAndWaitAck(fileID, idx, chunk, rel) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}

		if line, show := progress.Update(idx, totalChunks, "broadcast", true); show {
			e.log().Debug(line, "path", rel, "file_id", fileID)
		}
	}

	return true
}

// BroadcastCreateDir announces a new directory after a filter check.
func (e *Engine) BroadcastCreateDir(rel string) {
	sess := e.session
	if protocol.ShouldFilterRel(sess.EffectiveRegex(), rel) {
		sess.EmitServerLogWarning("create_dir -> "+rel, "匹配过滤规则，已跳过")
		return
	}
	sess.EmitCreateDir(rel)
}

// BroadcastDelete announces removal of rel after a filter check.
func (e *Engine) BroadcastDelete(rel string, isDir bool) {
	sess := e.session
	if protocol.ShouldFilterRel(sess.EffectiveRegex(), rel) {
		sess.EmitServerLogWarning("delete -> "+rel, "匹配过滤规则，已跳过")
		return
	}
	sess.EmitDelete(rel, isDir)
}

// waitBandwidth blocks until the optional rate limiter admits n bytes of
// outbound chunk text. A nil limiter (bandwidth cap disabled) never blocks.
func (e *Engine) waitBandwidth(n int) {
	if e.limiter == nil {
		return
	}
	_ = e.limiter.WaitN(context.Background(), n)
}

