// Package state holds the navigation context: the displayed directory, the
// cursor, the marked set and incremental search. It is owned by the single
// control goroutine and is not safe for concurrent use.
package state

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/mitchellh/go-homedir"
	"github.com/tidwall/btree"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
	"github.com/kk-code-lab/mill/internal/preview"
	"github.com/kk-code-lab/mill/internal/store"
)

const (
	positionMemory = 256
	positionTTL    = 12 * time.Hour
)

// PreviewRequester is the part of the preview scheduler the navigator drives.
type PreviewRequester interface {
	Request(e fsutil.Entry, priority preview.Priority) preview.RequestStatus
	SetNeighbors(entries []fsutil.Entry)
}

// Options configure a Navigator. PrefetchRadius is how many entries on each
// side of the cursor are offered for prefetch; 0 disables neighbor prefetch.
type Options struct {
	ShowHidden     bool
	PrefetchRadius int
	Logger         *slog.Logger
}

// Navigator is the selection and marking model for the displayed directory.
type Navigator struct {
	store    *store.Store
	previews PreviewRequester
	radius   int
	logger   *slog.Logger

	path       string
	snapshot   *store.Snapshot
	parent     *store.Snapshot
	showHidden bool

	full   []fsutil.Entry
	view   []fsutil.Entry
	cursor int
	marks  btree.Set[string]

	search      search
	lastPattern string

	positions *ttlcache.Cache[string, string]
	previous  string
}

// NewNavigator creates a navigator with no directory open. previews may be nil.
func NewNavigator(st *store.Store, previews PreviewRequester, opts Options) *Navigator {
	radius := max(opts.PrefetchRadius, 0)
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Navigator{
		store:      st,
		previews:   previews,
		radius:     radius,
		logger:     logger,
		showHidden: opts.ShowHidden,
		cursor:     -1,
		positions: ttlcache.New[string, string](
			ttlcache.WithCapacity[string, string](positionMemory),
			ttlcache.WithTTL[string, string](positionTTL),
		),
	}
}

// Open displays dir for the first time.
func (n *Navigator) Open(dir string) error {
	return n.changeDir(dir, "")
}

// Path is the displayed directory.
func (n *Navigator) Path() string { return n.path }

// Snapshot is the displayed directory's snapshot.
func (n *Navigator) Snapshot() *store.Snapshot { return n.snapshot }

// Parent is the snapshot of the parent directory, nil at the root or when
// it cannot be read.
func (n *Navigator) Parent() *store.Snapshot { return n.parent }

// View is the list the cursor indexes: visible entries, or search matches
// while a search is active.
func (n *Navigator) View() []fsutil.Entry { return n.view }

// Cursor is the index into View, or -1 when the view is empty.
func (n *Navigator) Cursor() int { return n.cursor }

// ShowHidden reports the hidden-file setting.
func (n *Navigator) ShowHidden() bool { return n.showHidden }

// Previous is the directory JumpBack returns to.
func (n *Navigator) Previous() string { return n.previous }

// Current returns the entry under the cursor.
func (n *Navigator) Current() (fsutil.Entry, bool) {
	if n.cursor < 0 || n.cursor >= len(n.view) {
		return fsutil.Entry{}, false
	}
	return n.view[n.cursor], true
}

// MoveCursor moves the cursor by delta, clamping at both ends.
func (n *Navigator) MoveCursor(delta int) {
	n.MoveTo(n.cursor + delta)
}

// MoveTo places the cursor at index, clamped to the view. An empty view
// leaves no cursor and withdraws the prefetch neighbors.
func (n *Navigator) MoveTo(index int) {
	if len(n.view) == 0 {
		n.cursor = -1
	} else {
		n.cursor = max(0, min(index, len(n.view)-1))
	}
	n.requestPreview()
}

// Top moves the cursor to the first entry.
func (n *Navigator) Top() { n.MoveTo(0) }

// Bottom moves the cursor to the last entry.
func (n *Navigator) Bottom() { n.MoveTo(len(n.view) - 1) }

// ToggleMark flips the mark on the entry under the cursor and reports the
// new state.
func (n *Navigator) ToggleMark() bool {
	e, ok := n.Current()
	if !ok {
		return false
	}
	if n.marks.Contains(e.Path) {
		n.marks.Delete(e.Path)
		return false
	}
	n.marks.Insert(e.Path)
	return true
}

// IsMarked reports whether path is in the marked set.
func (n *Navigator) IsMarked(path string) bool {
	return n.marks.Contains(path)
}

// Marked returns the marked paths in order.
func (n *Navigator) Marked() []string {
	out := make([]string, 0, n.marks.Len())
	n.marks.Scan(func(path string) bool {
		out = append(out, path)
		return true
	})
	return out
}

// ClearMarks empties the marked set.
func (n *Navigator) ClearMarks() {
	n.marks = btree.Set[string]{}
}

// Targets are the paths a file operation acts on: the marked set, or the
// entry under the cursor when nothing is marked.
func (n *Navigator) Targets() []string {
	if n.marks.Len() > 0 {
		return n.Marked()
	}
	if e, ok := n.Current(); ok {
		return []string{e.Path}
	}
	return nil
}

// Enter opens the directory under the cursor.
func (n *Navigator) Enter() error {
	e, ok := n.Current()
	if !ok {
		return nil
	}
	if !e.IsDir() {
		return fsutil.NewOpError("enter", e.Path, fsutil.ErrNotADirectory)
	}
	return n.changeDir(e.Path, "")
}

// Leave opens the parent directory with the cursor on the one left.
func (n *Navigator) Leave() error {
	parent := filepath.Dir(n.path)
	if parent == n.path {
		return nil
	}
	return n.changeDir(parent, filepath.Base(n.path))
}

// JumpTo opens target, expanding a leading ~. A file target opens its
// directory with the cursor on the file.
func (n *Navigator) JumpTo(target string) error {
	expanded, err := homedir.Expand(target)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(n.path, expanded)
	}
	expanded = filepath.Clean(expanded)

	info, err := os.Stat(expanded)
	if err != nil {
		return fsutil.Classify("jump", expanded, err)
	}
	if !info.IsDir() {
		return n.changeDir(filepath.Dir(expanded), filepath.Base(expanded))
	}
	return n.changeDir(expanded, "")
}

// JumpBack returns to the previously displayed directory.
func (n *Navigator) JumpBack() error {
	if n.previous == "" {
		return nil
	}
	return n.changeDir(n.previous, "")
}

// ToggleHidden flips hidden-file visibility without reading the disk.
func (n *Navigator) ToggleHidden() {
	n.showHidden = !n.showHidden
	n.rebuild(n.currentName())
}

// Refresh re-reads the displayed directory, keeping the cursor on the same
// name and dropping marks whose paths are gone.
func (n *Navigator) Refresh() error {
	if n.path == "" {
		return nil
	}
	snap, err := n.store.Reload(n.path)
	if err != nil {
		if errors.Is(err, fsutil.ErrNotFound) {
			return n.retreat(err)
		}
		return err
	}
	n.snapshot = snap
	n.loadParent(true)
	n.pruneMarks()
	n.rebuild(n.currentName())
	return nil
}

// DirectoryChanged consumes a change notification for dir. The cached
// snapshot is dropped; a displayed directory is re-read immediately.
func (n *Navigator) DirectoryChanged(dir string) error {
	dir = filepath.Clean(dir)
	n.store.Invalidate(dir)
	switch {
	case dir == n.path:
		return n.Refresh()
	case n.parent != nil && dir == n.parent.Path:
		n.loadParent(false)
	}
	return nil
}

func (n *Navigator) changeDir(dir, focus string) error {
	dir = filepath.Clean(dir)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	snap, err := n.store.Load(dir)
	if err != nil {
		return err
	}

	sameDir := n.path == dir
	if n.path != "" && !sameDir {
		if name := n.currentName(); name != "" {
			n.positions.Set(n.path, name, ttlcache.DefaultTTL)
		}
		n.previous = n.path
	}
	if sameDir && focus == "" {
		focus = n.currentName()
	}
	n.path = dir
	n.snapshot = snap
	n.search = search{}
	n.loadParent(false)
	if sameDir {
		n.pruneMarks()
	} else {
		n.marks = btree.Set[string]{}
	}

	if focus == "" {
		if item := n.positions.Get(dir); item != nil {
			focus = item.Value()
		}
	}
	n.rebuild(focus)
	n.logger.Debug("directory opened", "dir", dir, "entries", snap.Len())
	return nil
}

// retreat walks up from a vanished directory to the nearest readable one.
func (n *Navigator) retreat(cause error) error {
	dir := n.path
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return cause
		}
		dir = parent
		n.store.Invalidate(dir)
		if err := n.changeDir(dir, ""); err == nil {
			return nil
		}
	}
}

func (n *Navigator) loadParent(reload bool) {
	parentDir := filepath.Dir(n.path)
	if parentDir == n.path {
		n.parent = nil
		return
	}
	var (
		snap *store.Snapshot
		err  error
	)
	if reload {
		snap, err = n.store.Reload(parentDir)
	} else {
		snap, err = n.store.Load(parentDir)
	}
	if err != nil {
		n.parent = nil
		return
	}
	n.parent = snap
}

func (n *Navigator) pruneMarks() {
	var gone []string
	n.marks.Scan(func(path string) bool {
		if filepath.Dir(path) == n.path {
			if _, ok := n.snapshot.Lookup(path); !ok {
				gone = append(gone, path)
			}
		}
		return true
	})
	for _, path := range gone {
		n.marks.Delete(path)
	}
}

func (n *Navigator) currentName() string {
	if e, ok := n.Current(); ok {
		return e.Name
	}
	return ""
}

// rebuild recomputes the view from the snapshot and places the cursor on
// focus when present, otherwise clamps it.
func (n *Navigator) rebuild(focus string) {
	n.full = n.snapshot.Visible(n.showHidden)
	n.view = n.full
	if n.search.active {
		n.view = n.search.filter(n.full)
	}

	cursor := -1
	if focus != "" {
		cursor = indexOfName(n.view, focus)
	}
	if cursor < 0 {
		cursor = max(0, min(n.cursor, len(n.view)-1))
	}
	if len(n.view) == 0 {
		cursor = -1
	}
	n.cursor = cursor
	n.requestPreview()
}

func (n *Navigator) requestPreview() {
	if n.previews == nil {
		return
	}
	e, ok := n.Current()
	if !ok {
		n.previews.SetNeighbors(nil)
		return
	}
	n.previews.Request(e, preview.PriorityUser)

	if n.radius == 0 {
		n.previews.SetNeighbors(nil)
		return
	}
	neighbors := make([]fsutil.Entry, 0, 2*n.radius)
	for d := 1; d <= n.radius; d++ {
		if i := n.cursor + d; i < len(n.view) {
			neighbors = append(neighbors, n.view[i])
		}
		if i := n.cursor - d; i >= 0 {
			neighbors = append(neighbors, n.view[i])
		}
	}
	n.previews.SetNeighbors(neighbors)
}

func indexOfName(entries []fsutil.Entry, name string) int {
	for i, e := range entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}
