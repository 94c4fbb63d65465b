package fileops

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

// TrashEntry records one item moved into the trash.
type TrashEntry struct {
	Original    string
	Trashed     string
	At          time.Time
	CrossDevice bool
}

// Trash is a holding area that lives as long as the process. Each item is
// kept under its own unique directory so equal names never collide.
type Trash struct {
	dir   string
	mover *mover

	mu      sync.Mutex
	entries []TrashEntry
}

// NewTrash creates the trash directory under the system temp dir.
func NewTrash(rename RenameFunc) (*Trash, error) {
	dir, err := os.MkdirTemp("", "mill-trash-")
	if err != nil {
		return nil, fsutil.Classify("trash", os.TempDir(), err)
	}
	return &Trash{dir: dir, mover: newMover(rename, 1)}, nil
}

// Dir is the trash directory.
func (t *Trash) Dir() string {
	return t.dir
}

// Put moves path into the trash. A move across devices copies and removes
// the source and is flagged on the returned entry.
func (t *Trash) Put(ctx context.Context, path string) (TrashEntry, error) {
	if _, err := os.Lstat(path); err != nil {
		return TrashEntry{}, fsutil.Classify("delete", path, err)
	}
	slot := filepath.Join(t.dir, uuid.NewString())
	if err := os.Mkdir(slot, 0o700); err != nil {
		return TrashEntry{}, fsutil.Classify("trash", slot, err)
	}

	entry := TrashEntry{
		Original: path,
		Trashed:  filepath.Join(slot, filepath.Base(path)),
		At:       time.Now(),
	}
	crossDevice, err := t.mover.move(ctx, path, entry.Trashed)
	entry.CrossDevice = crossDevice
	if err != nil {
		_ = os.RemoveAll(slot)
		return entry, err
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
	return entry, nil
}

// Entries lists trashed items, most recent first.
func (t *Trash) Entries() []TrashEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := slices.Clone(t.entries)
	slices.Reverse(out)
	return out
}

// Restore moves entry back to its original path. It fails with ErrConflict
// when something now occupies that path.
func (t *Trash) Restore(ctx context.Context, entry TrashEntry) (TrashEntry, error) {
	t.mu.Lock()
	idx := slices.IndexFunc(t.entries, func(e TrashEntry) bool { return e.Trashed == entry.Trashed })
	t.mu.Unlock()
	if idx < 0 {
		return entry, fsutil.NewOpError("restore", entry.Original, fsutil.ErrNotFound)
	}

	if _, err := os.Lstat(entry.Original); err == nil {
		return entry, fsutil.NewOpError("restore", entry.Original, fsutil.ErrConflict)
	} else if !errors.Is(err, os.ErrNotExist) {
		return entry, fsutil.Classify("restore", entry.Original, err)
	}

	crossDevice, err := t.mover.move(ctx, entry.Trashed, entry.Original)
	entry.CrossDevice = crossDevice
	if err != nil {
		return entry, err
	}
	_ = os.Remove(filepath.Dir(entry.Trashed))

	t.mu.Lock()
	t.entries = slices.DeleteFunc(t.entries, func(e TrashEntry) bool { return e.Trashed == entry.Trashed })
	t.mu.Unlock()
	return entry, nil
}

// Close deletes the trash and everything in it.
func (t *Trash) Close() error {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
	return os.RemoveAll(t.dir)
}
