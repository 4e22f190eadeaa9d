// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

// Package protocol defines the wire payloads and small stateless helpers
// shared by every f11esync-server component: path filtering, file-size
// limit evaluation, chunk progress formatting, and the JSON structures
// exchanged over the Socket.IO session.
package protocol

// ClientConfig is sent by the client on "configure" to narrow the server's
// admission rules to what the client can actually accept. Every field is a
// pointer because "absent" and "zero value" are semantically different: a
// present field replaces the session's current value, an absent one (nil)
// preserves it. See Session.MergeClientConfig.
type ClientConfig struct {
	EnableFileSizeLimit *bool   `json:"enableFileSizeLimit,omitempty"`
	MaxFileSize         *int64  `json:"maxFileSize,omitempty"`
	PathRegex           *string `json:"pathRegex,omitempty"`
}

// ConnectionRejected is emitted instead of admitting a second client while
// one session is already attached.
type ConnectionRejected struct {
	Message string `json:"message"`
}

// UpdateFile carries a small (non-chunked) file body, base64-encoded.
type UpdateFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// CreateDir requests (or announces) directory creation at Path.
type CreateDir struct {
	Path string `json:"path"`
}

// BroadcastPayload is the shared shape of the three server->client
// file-tree events: "update" (small-file inline send, Content set and
// Encoding "base64"), "create_dir", and "delete" (both null Content).
type BroadcastPayload struct {
	Action   string  `json:"action"`
	Path     string  `json:"path"`
	Content  *string `json:"content"`
	IsDir    bool    `json:"isDir"`
	Encoding string  `json:"encoding,omitempty"`
}

// ChunkStart opens a chunked transfer for a file whose encoded size exceeds
// the small-file threshold.
type ChunkStart struct {
	Path        string `json:"path"`
	FileID      string `json:"fileId"`
	TotalChunks int    `json:"totalChunks"`
	TotalSize   *int64 `json:"totalSize,omitempty"`
	IsDir       *bool  `json:"isDir,omitempty"`
}

// ChunkData carries a single base64 chunk of a file identified by FileID.
type ChunkData struct {
	FileID     string `json:"fileId"`
	ChunkIndex int    `json:"chunkIndex"`
	Content    string `json:"content"`
	Path       string `json:"path"`
}

// ChunkComplete marks the end of a chunked transfer.
type ChunkComplete struct {
	FileID string `json:"fileId"`
	Path   string `json:"path"`
}

// ChunkAck acknowledges (or nacks) a single ChunkData.
type ChunkAck struct {
	FileID     string `json:"fileId"`
	ChunkIndex int    `json:"chunkIndex"`
	Success    *bool  `json:"success,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Succeeded reports the ack's effective outcome: absent Success means true,
// matching the original's success.unwrap_or(true).
func (a ChunkAck) Succeeded() bool {
	if a.Success == nil {
		return true
	}
	return *a.Success
}

// ServerLog is a diagnostic line surfaced to the client's own log/UI.
type ServerLog struct {
	Action  string `json:"action"`
	Path    string `json:"path,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
	Content string `json:"content,omitempty"`
}

// SyncControl marks the start/end of a full-tree sync pass.
type SyncControl struct {
	Action  string `json:"action"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
	IsDir   bool   `json:"isDir,omitempty"`
}

// ChunkReceiveState tracks an in-progress inbound (client -> server) chunked
// upload keyed by FileID in the session's receive table.
type ChunkReceiveState struct {
	AbsPath        string
	RelPath        string
	ReceivedChunks int
	TotalChunks    int
	RejectReason   string
	Progress       *ProgressTracker
}

// Done reports whether every expected chunk has arrived.
func (c *ChunkReceiveState) Done() bool {
	return c.ReceivedChunks >= c.TotalChunks
}
