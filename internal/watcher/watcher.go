// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

// Package watcher bridges OS filesystem notifications (via fsnotify) into
// the normalized event stream the sync engine's broadcast pump consumes:
// AddFile, ChangeFile, AddDir, RemoveFile, RemoveDir.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/f11esync/f11esync/internal/protocol"
)

// Kind classifies a normalized filesystem event.
type Kind int

const (
	AddFile Kind = iota
	ChangeFile
	AddDir
	RemoveFile
	RemoveDir
)

func (k Kind) String() string {
	switch k {
	case AddFile:
		return "AddFile"
	case ChangeFile:
		return "ChangeFile"
	case AddDir:
		return "AddDir"
	case RemoveFile:
		return "RemoveFile"
	case RemoveDir:
		return "RemoveDir"
	default:
		return "Unknown"
	}
}

// Event is a single normalized filesystem change rooted at an absolute path.
type Event struct {
	Kind    Kind
	AbsPath string
}

// Watcher recursively watches a root directory and emits normalized events
// on Events(). New directories created under the root are added to the
// underlying fsnotify watch set automatically.
type Watcher struct {
	root   string
	fsw    *fsnotify.Watcher
	events chan Event
	logger *slog.Logger

	// dirsMu/dirs tracks every path known to be a directory (everything
	// fsnotify has an active watch on). fsnotify's Remove/Rename events
	// carry no type information for a path that no longer exists, so this
	// is how handle reclassifies a deletion as RemoveDir vs RemoveFile.
	dirsMu sync.Mutex
	dirs   map[string]struct{}
}

// New creates a Watcher rooted at root and registers every existing
// subdirectory with the OS notification backend.
func New(root string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:   root,
		fsw:    fsw,
		events: make(chan Event, 1024),
		logger: logger,
		dirs:   make(map[string]struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}

	return w, nil
}

// Events returns the channel of normalized filesystem events. It is closed
// when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run drives the fsnotify event loop until ctx is cancelled, translating raw
// fsnotify.Events into normalized Events. It closes the Events channel on
// return, so callers should range over Events() until it closes.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.events)
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			// Already gone by the time we stat it; nothing to announce.
			return
		}
		if info.IsDir() {
			w.markDir(ev.Name)
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warn("watching new directory", "path", ev.Name, "error", err)
			}
			w.emit(AddDir, ev.Name)
		} else {
			w.emit(AddFile, ev.Name)
		}
	case ev.Op.Has(fsnotify.Write):
		w.emit(ChangeFile, ev.Name)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		// fsnotify carries no type information for a path that no longer
		// exists, so reclassification relies on whether this watcher had
		// ever registered ev.Name as a directory (see markDir/addRecursive).
		if w.unmarkDir(ev.Name) {
			w.emit(RemoveDir, ev.Name)
		} else {
			w.emit(RemoveFile, ev.Name)
		}
	}
}

// markDir records absPath as a known directory.
func (w *Watcher) markDir(absPath string) {
	w.dirsMu.Lock()
	w.dirs[absPath] = struct{}{}
	w.dirsMu.Unlock()
}

// unmarkDir removes absPath from the known-directory set and reports
// whether it was present.
func (w *Watcher) unmarkDir(absPath string) bool {
	w.dirsMu.Lock()
	_, ok := w.dirs[absPath]
	delete(w.dirs, absPath)
	w.dirsMu.Unlock()
	return ok
}

func (w *Watcher) emit(kind Kind, absPath string) {
	select {
	case w.events <- Event{Kind: kind, AbsPath: absPath}:
	default:
		w.logger.Warn("dropping filesystem event, channel saturated", "kind", kind.String(), "path", absPath)
	}
}

// RelPath returns the forward-slash path of absPath relative to root, and
// false if absPath resolves to root itself or escapes it.
func RelPath(root, absPath string) (string, bool) {
	rel, err := filepath.Rel(root, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return protocol.NormalizeRelPath(rel), true
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			w.markDir(path)
			if addErr := w.fsw.Add(path); addErr != nil {
				w.logger.Warn("adding watch", "path", path, "error", addErr)
			}
		}
		return nil
	})
}
