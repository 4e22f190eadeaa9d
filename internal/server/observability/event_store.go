// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/pgzip"
)

// pgzipThreshold is the dropped-entry count above which archiveDroppedEntries
// switches from single-threaded compress/gzip to klauspost/pgzip's
// parallel implementation: most rotations drop a small batch where
// pgzip's extra goroutine/block overhead isn't worth it, but a server that
// fell behind (a long-saturated watcher, or its first rotation after
// ingesting a pre-existing large events file) can drop tens of thousands of
// lines at once, and that rewrite is where parallel gzip actually pays off.
const pgzipThreshold = 5000

// EventStore combines an in-memory EventRing with JSONL file persistence.
// Every Push appends one JSON line to the file. On startup the most recent
// lines are loaded back to prime the ring buffer.
//
// Rotation: once the file exceeds maxLines, it's rewritten keeping only the
// last maxLines/2 lines. The lines dropped by rotation are optionally
// archived as a gzip file alongside the live log, so history isn't lost
// outright even though it leaves the hot JSONL.
type EventStore struct {
	ring       *EventRing
	file       *os.File
	mu         sync.Mutex // protects writes and rotation on the file
	maxLines   int
	lineCount  int
	path       string
	archiveDir string // optional, set via SetArchiveDir
}

// NewEventStore opens (or creates) the JSONL file and loads the most recent
// entries to prime the ring buffer. ringCap sets the in-memory ring
// capacity; maxLines sets the file rotation threshold.
func NewEventStore(path string, ringCap, maxLines int) (*EventStore, error) {
	if maxLines <= 0 {
		maxLines = 10000
	}

	ring := NewEventRing(ringCap)

	entries, lineCount, err := loadJSONL(path)
	if err != nil {
		return nil, fmt.Errorf("loading events file: %w", err)
	}

	start := 0
	if len(entries) > ringCap {
		start = len(entries) - ringCap
	}
	for _, e := range entries[start:] {
		ring.Push(e)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening events file for append: %w", err)
	}

	return &EventStore{
		ring:      ring,
		file:      f,
		maxLines:  maxLines,
		lineCount: lineCount,
		path:      path,
	}, nil
}

// SetArchiveDir enables gzip archival of rotated-out lines into dir. Called
// once during wiring when S3 archival is enabled.
func (s *EventStore) SetArchiveDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archiveDir = dir
}

// loadJSONL reads the JSONL file and returns every valid EventEntry.
// Malformed lines are skipped silently.
func loadJSONL(path string) ([]EventEntry, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	defer f.Close()

	var entries []EventEntry
	lineCount := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lineCount++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e EventEntry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}

	return entries, lineCount, scanner.Err()
}

// Push adds an event to the ring buffer and persists it to the JSONL file.
func (s *EventStore) Push(e EventEntry) {
	s.ring.Push(e) // ring fills in the timestamp when empty

	recent := s.ring.Recent(1)
	if len(recent) == 0 {
		return
	}
	filled := recent[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(filled)
	if err != nil {
		return
	}

	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return
	}

	s.lineCount++
	if s.lineCount > s.maxLines {
		s.rotate()
	}
}

// PushEvent is a helper that builds and inserts an event with the common
// fields.
func (s *EventStore) PushEvent(level, eventType, path, message string) {
	s.Push(EventEntry{
		Level:   level,
		Type:    eventType,
		Path:    path,
		Message: message,
	})
}

// Recent returns the last N events in chronological order (oldest first).
func (s *EventStore) Recent(limit int) []EventEntry {
	return s.ring.Recent(limit)
}

// Len returns the number of events in the in-memory ring buffer.
func (s *EventStore) Len() int {
	return s.ring.Len()
}

// Close closes the JSONL file handle.
func (s *EventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// rotate keeps only the last maxLines/2 lines of the file. The entries
// dropped are archived as a gzip file when archiveDir is set. Must be
// called with s.mu already held.
func (s *EventStore) rotate() {
	keep := s.maxLines / 2

	entries, _, err := loadJSONL(s.path)
	if err != nil || len(entries) <= keep {
		return
	}

	dropped := entries[:len(entries)-keep]
	kept := entries[len(entries)-keep:]

	if s.archiveDir != "" {
		if err := archiveDroppedEntries(s.archiveDir, dropped); err != nil {
			// Archival is best-effort; rotation still proceeds so the hot
			// file doesn't grow unbounded.
			fmt.Fprintf(os.Stderr, "events: archiving rotated entries: %v\n", err)
		}
	}

	s.file.Close()

	f, err := os.Create(s.path)
	if err != nil {
		s.file, _ = os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		return
	}

	w := bufio.NewWriter(f)
	for _, e := range kept {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	w.Flush()
	f.Close()

	s.file, err = os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	s.lineCount = len(kept)
}

// archiveDroppedEntries writes entries to a timestamped gzip file under dir.
// Each call produces one archive segment named after the oldest dropped
// entry's timestamp, so segments sort naturally by age.
func archiveDroppedEntries(dir string, entries []EventEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}

	name := fmt.Sprintf("events-%s.jsonl.gz", sanitizeTimestampForFilename(entries[0].Timestamp))
	path := dir + string(os.PathSeparator) + name

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating archive segment: %w", err)
	}
	defer f.Close()

	gw := newArchiveWriter(f, len(entries))
	defer gw.Close()

	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		gw.Write(data)
		gw.Write([]byte("\n"))
	}

	return nil
}

// newArchiveWriter picks the gzip implementation for one archive segment:
// klauspost/compress/gzip for the common small-batch rotation, and
// klauspost/pgzip's parallel writer once a single rotation drops enough
// lines that a multi-threaded rewrite is worth its overhead.
func newArchiveWriter(w io.Writer, entryCount int) io.WriteCloser {
	if entryCount > pgzipThreshold {
		return pgzip.NewWriter(w)
	}
	return gzip.NewWriter(w)
}

// sanitizeTimestampForFilename strips characters that don't belong in a
// file name (RFC3339 timestamps contain colons).
func sanitizeTimestampForFilename(ts string) string {
	b := []byte(ts)
	for i, c := range b {
		if c == ':' || c == ' ' {
			b[i] = '-'
		}
	}
	if len(b) == 0 {
		return "unknown"
	}
	return string(b)
}
