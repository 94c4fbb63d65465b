// Package store reads directories into sorted snapshots and keeps a small LRU
// of recently visited ones.
package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

// DefaultCapacity bounds how many directory snapshots are retained.
const DefaultCapacity = 32

// Store owns the snapshots of visited directories.
type Store struct {
	snapshots  *lru.Cache[string, *Snapshot]
	generation atomic.Uint64
	logger     *slog.Logger
}

// New creates a Store retaining at most capacity snapshots.
func New(capacity int, logger *slog.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	// lru.New only fails for non-positive sizes.
	cache, _ := lru.New[string, *Snapshot](capacity)
	return &Store{snapshots: cache, logger: logger}
}

// Load returns the snapshot for dir. A held snapshot is reused while the
// directory's mtime matches the one it was read at; otherwise dir is read
// again. The read blocks on I/O.
func (s *Store) Load(dir string) (*Snapshot, error) {
	dir = cleanPath(dir)
	info, err := os.Stat(dir)
	if err != nil {
		s.snapshots.Remove(dir)
		return nil, fsutil.Classify("load", dir, err)
	}
	if snap, ok := s.snapshots.Get(dir); ok {
		if snap.ModTime.Equal(info.ModTime()) {
			return snap, nil
		}
		s.logger.Debug("snapshot stale", "dir", dir, "generation", snap.Generation)
	}
	return s.read(dir, info)
}

// Reload drops any held snapshot for dir and reads it again.
func (s *Store) Reload(dir string) (*Snapshot, error) {
	s.Invalidate(dir)
	return s.Load(dir)
}

// Invalidate drops the held snapshot for dir so the next Load hits the disk.
func (s *Store) Invalidate(dir string) {
	dir = cleanPath(dir)
	if s.snapshots.Remove(dir) {
		s.logger.Debug("snapshot invalidated", "dir", dir)
	}
}

// Cached returns the held snapshot for dir without touching the disk.
func (s *Store) Cached(dir string) (*Snapshot, bool) {
	return s.snapshots.Peek(cleanPath(dir))
}

// Contains reports whether a snapshot for dir is currently held.
func (s *Store) Contains(dir string) bool {
	return s.snapshots.Contains(cleanPath(dir))
}

func (s *Store) read(dir string, info os.FileInfo) (*Snapshot, error) {
	if !info.IsDir() {
		return nil, fsutil.NewOpError("load", dir, fsutil.ErrNotADirectory)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fsutil.Classify("load", dir, err)
	}

	entries := make([]fsutil.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		raw := de.Name()
		full := filepath.Join(dir, raw)
		if fsutil.ShouldHideFromListing(full, raw) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Vanished between ReadDir and Lstat.
			continue
		}
		entries = append(entries, fsutil.NewEntry(dir, raw, info))
	}

	snap := newSnapshot(dir, s.generation.Add(1), info.ModTime(), entries)
	s.snapshots.Add(dir, snap)
	s.logger.Debug("snapshot loaded", "dir", dir, "entries", len(entries), "generation", snap.Generation)
	return snap, nil
}

func cleanPath(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}
