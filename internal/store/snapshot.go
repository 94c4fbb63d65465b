package store

import (
	"path/filepath"
	"time"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

// Snapshot is an immutable, sorted view of one directory at a point in time.
// Callers must treat Entries as read-only; a refresh produces a new Snapshot.
// ModTime is the directory's mtime when it was read.
type Snapshot struct {
	Path       string
	Generation uint64
	ModTime    time.Time
	Entries    []fsutil.Entry

	byName map[string]int
}

func newSnapshot(path string, generation uint64, modTime time.Time, entries []fsutil.Entry) *Snapshot {
	fsutil.SortEntries(entries)
	byName := make(map[string]int, len(entries))
	for i, e := range entries {
		byName[e.Name] = i
	}
	return &Snapshot{
		Path:       path,
		Generation: generation,
		ModTime:    modTime,
		Entries:    entries,
		byName:     byName,
	}
}

// Len returns the number of entries, hidden ones included.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// IndexOfName returns the index of name, or -1.
func (s *Snapshot) IndexOfName(name string) int {
	if s == nil {
		return -1
	}
	if idx, ok := s.byName[name]; ok {
		return idx
	}
	return -1
}

// Lookup finds the entry with the given absolute path.
func (s *Snapshot) Lookup(path string) (fsutil.Entry, bool) {
	if s == nil || filepath.Dir(path) != s.Path {
		return fsutil.Entry{}, false
	}
	for _, e := range s.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return fsutil.Entry{}, false
}

// Visible returns the entries shown for the given hidden-file setting.
// The returned slice is shared when nothing is filtered.
func (s *Snapshot) Visible(showHidden bool) []fsutil.Entry {
	if s == nil {
		return nil
	}
	if showHidden {
		return s.Entries
	}
	visible := make([]fsutil.Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.IsHidden() {
			continue
		}
		visible = append(visible, e)
	}
	return visible
}
