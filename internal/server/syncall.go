// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/f11esync/f11esync/internal/protocol"
	"github.com/f11esync/f11esync/internal/watcher"
)

// errSocketLost aborts the WalkDir callback chain without treating the
// cancellation as a fatal walk error.
var errSocketLost = errors.New("socket disconnected mid-sync")

// SyncAll walks root depth-first and broadcasts every entry to the attached
// client, in response to the client's sync_all event. If no socket is
// attached it returns immediately without emitting anything.
func (e *Engine) SyncAll(root string) {
	sess := e.session
	if sess.Socket() == nil {
		return
	}

	sess.EmitSyncStart()
	e.recordEvent("info", "sync_start", "", "full sync starting")

	err := filepath.WalkDir(root, func(abs string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if abs == root {
			return nil
		}
		if sess.Socket() == nil {
			return errSocketLost
		}

		rel, ok := watcher.RelPath(root, abs)
		if !ok {
			return nil
		}
		if protocol.ShouldIgnoreRel(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		action := "update"
		if d.IsDir() {
			action = "create_dir"
		}
		if protocol.ShouldFilterRel(sess.EffectiveRegex(), rel) {
			sess.EmitServerLogWarning(action+" -> "+rel, "匹配过滤规则，已跳过")
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			e.BroadcastCreateDir(rel)
			return nil
		}
		e.BroadcastFile(rel, abs)
		return nil
	})

	if err != nil {
		if errors.Is(err, errSocketLost) {
			e.log().Info("sync_all aborted: client disconnected", "root", root)
			return
		}
		e.log().Warn("sync_all failed", "root", root, "error", err)
		sess.EmitSyncError(err.Error())
		e.recordEvent("error", "sync_error", "", err.Error())
		return
	}

	sess.EmitSyncComplete()
	e.recordEvent("info", "sync_complete", "", "full sync finished")
}
