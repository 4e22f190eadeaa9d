// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/f11esync/f11esync/internal/protocol"
	"github.com/f11esync/f11esync/internal/watcher"
)

// RunFSPump translates watcher.Events into broadcast calls until ctx is
// cancelled or the events channel closes.
func (e *Engine) RunFSPump(ctx context.Context, root string, events <-chan watcher.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.handleFSEvent(root, ev)
		}
	}
}

// handleFSEvent dispatches one normalized filesystem event. A nil socket or
// an echoed path drops the event silently.
func (e *Engine) handleFSEvent(root string, ev watcher.Event) {
	sess := e.session
	if sess.Socket() == nil {
		return
	}

	rel, ok := watcher.RelPath(root, ev.AbsPath)
	if !ok {
		return
	}
	if protocol.ShouldIgnoreRel(rel) {
		return
	}
	if sess.IsEchoed(rel) {
		return
	}

	switch ev.Kind {
	case watcher.AddFile, watcher.ChangeFile:
		info, err := os.Stat(ev.AbsPath)
		if err != nil {
			return // gone again by the time we got here
		}
		if info.IsDir() {
			// notify misclassified a directory as a file-level event.
			e.broadcastNewDirTree(root, ev.AbsPath)
			return
		}
		e.BroadcastFile(rel, ev.AbsPath)
	case watcher.AddDir:
		e.broadcastNewDirTree(root, ev.AbsPath)
	case watcher.RemoveFile:
		e.BroadcastDelete(rel, false)
	case watcher.RemoveDir:
		e.BroadcastDelete(rel, true)
	}
}

// broadcastNewDirTree announces dirAbs itself, then depth-first walks its
// contents re-applying filter/ignore at every node. The OS watcher's
// behavior for pre-existing children of a newly created directory differs
// by platform, so the pump walks explicitly instead of relying on it.
func (e *Engine) broadcastNewDirTree(root, dirAbs string) {
	sess := e.session

	if rel, ok := watcher.RelPath(root, dirAbs); ok {
		e.BroadcastCreateDir(rel)
	}

	_ = filepath.WalkDir(dirAbs, func(abs string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if abs == dirAbs {
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
		if protocol.ShouldFilterRel(sess.EffectiveRegex(), rel) {
			if d.IsDir() {
				sess.EmitServerLogWarning("create_dir -> "+rel, "匹配过滤规则，已跳过")
				return fs.SkipDir
			}
			sess.EmitServerLogWarning("update -> "+rel, "匹配过滤规则，已跳过")
			return nil
		}

		if d.IsDir() {
			e.BroadcastCreateDir(rel)
			return nil
		}
		e.BroadcastFile(rel, abs)
		return nil
	})
}
