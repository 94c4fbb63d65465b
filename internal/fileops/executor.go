// Package fileops performs file operations on behalf of the navigator and
// keeps the directory store and preview cache consistent with the disk.
package fileops

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

// ErrPasteIntoSelf is returned for a directory pasted into itself or one of
// its descendants.
var ErrPasteIntoSelf = errors.New("cannot paste a directory into itself")

// ErrReplaceAncestor is returned when overwriting would remove a directory
// that contains the item being pasted.
var ErrReplaceAncestor = errors.New("cannot replace a directory that contains the source")

// ErrInvalidName is returned for names that are empty or contain a path
// separator.
var ErrInvalidName = errors.New("invalid name")

// Invalidator drops cached directory snapshots.
type Invalidator interface {
	Invalidate(dir string)
}

// PathRemover drops cached previews for a path and everything below it.
type PathRemover interface {
	RemoveByPath(path string) int
}

// Options configure an Executor.
type Options struct {
	UseTrash    bool
	Parallelism int
	CopyLimit   int
	Rename      RenameFunc
	Logger      *slog.Logger
}

// Staged is the clipboard of a pending cut or copy.
type Staged struct {
	Paths []string
	Move  bool
}

// Executor runs file operations. Every operation invalidates the affected
// directories and preview paths before it returns.
type Executor struct {
	store    Invalidator
	previews PathRemover
	trash    *Trash
	useTrash bool
	parallel int
	mover    *mover
	locks    *keyedLocks
	logger   *slog.Logger

	mu     sync.Mutex
	staged Staged
}

// NewExecutor creates an Executor. trash may be nil when trash mode is off.
func NewExecutor(store Invalidator, previews PathRemover, trash *Trash, opts Options) *Executor {
	parallel := opts.Parallelism
	if parallel <= 0 {
		parallel = min(4, runtime.NumCPU())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		store:    store,
		previews: previews,
		trash:    trash,
		useTrash: opts.UseTrash && trash != nil,
		parallel: parallel,
		mover:    newMover(opts.Rename, opts.CopyLimit),
		locks:    newKeyedLocks(),
		logger:   logger,
	}
}

// Trash returns the process trash, or nil.
func (x *Executor) Trash() *Trash {
	return x.trash
}

// UseTrash reports whether Delete moves items into the trash.
func (x *Executor) UseTrash() bool {
	return x.useTrash
}

// Mkdir creates a directory named name inside dir.
func (x *Executor) Mkdir(dir, name string) Result {
	path, err := childPath(dir, name)
	if err != nil {
		return failed(path, "", err)
	}
	defer x.invalidate([]string{dir}, []string{path})
	if err := os.Mkdir(path, 0o755); err != nil {
		return failed(path, "", fsutil.Classify("mkdir", path, err))
	}
	return succeeded(path, "")
}

// Touch creates an empty file or updates the times of an existing one.
func (x *Executor) Touch(dir, name string) Result {
	path, err := childPath(dir, name)
	if err != nil {
		return failed(path, "", err)
	}
	defer x.invalidate([]string{dir}, []string{path})

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		if err := f.Close(); err != nil {
			return failed(path, "", fsutil.Classify("touch", path, err))
		}
		return succeeded(path, "")
	}
	if !errors.Is(err, os.ErrExist) {
		return failed(path, "", fsutil.Classify("touch", path, err))
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		return failed(path, "", fsutil.Classify("touch", path, err))
	}
	return succeeded(path, "")
}

// Rename gives path a new name in the same directory. An existing entry
// with that name is a Conflict.
func (x *Executor) Rename(path, name string) Result {
	dir := filepath.Dir(path)
	dest, err := childPath(dir, name)
	if err != nil {
		return failed(path, dest, err)
	}
	if dest == path {
		return Result{Path: path, Dest: dest, Outcome: Skipped}
	}
	unlock := x.locks.Lock(dest)
	defer unlock()
	defer x.invalidate([]string{dir}, []string{path, dest})

	if exists, err := pathExists(dest); err != nil {
		return failed(path, dest, fsutil.Classify("rename", dest, err))
	} else if exists && !sameFileDifferentCase(path, dest) {
		return failed(path, dest, fsutil.NewOpError("rename", dest, fsutil.ErrConflict))
	}
	if err := os.Rename(path, dest); err != nil {
		return failed(path, dest, fsutil.Classify("rename", path, err))
	}
	return succeeded(path, dest)
}

// Delete removes paths, into the trash when trash mode is on. One failing
// item never stops the rest.
func (x *Executor) Delete(ctx context.Context, paths []string) Batch {
	results := make(Batch, len(paths))
	x.runBatch(paths, func(i int, path string) {
		results[i] = x.deleteOne(ctx, path)
	})
	x.invalidate(parents(paths), paths)
	x.logger.Info("delete finished", "items", len(paths), "summary", results.Summary())
	return results
}

func (x *Executor) deleteOne(ctx context.Context, path string) Result {
	if x.useTrash {
		entry, err := x.trash.Put(ctx, path)
		if err != nil {
			r := failed(path, entry.Trashed, err)
			r.CrossDevice = entry.CrossDevice
			return r
		}
		if entry.CrossDevice {
			x.logger.Info("trash fell back to copy", "path", path)
		}
		return Result{Path: path, Dest: entry.Trashed, Outcome: Success, CrossDevice: entry.CrossDevice}
	}

	if _, err := os.Lstat(path); err != nil {
		return failed(path, "", fsutil.Classify("delete", path, err))
	}
	if err := os.RemoveAll(path); err != nil {
		return failed(path, "", fsutil.Classify("delete", path, err))
	}
	return succeeded(path, "")
}

// RestoreLast moves the most recently trashed item back to where it was.
func (x *Executor) RestoreLast(ctx context.Context) Result {
	if x.trash == nil {
		return failed("", "", fsutil.NewOpError("restore", "", fsutil.ErrNotFound))
	}
	entries := x.trash.Entries()
	if len(entries) == 0 {
		return failed("", "", fsutil.NewOpError("restore", x.trash.Dir(), fsutil.ErrNotFound))
	}
	entry := entries[0]
	unlock := x.locks.Lock(entry.Original)
	defer unlock()
	defer x.invalidate([]string{filepath.Dir(entry.Original), x.trash.Dir()}, []string{entry.Original, entry.Trashed})

	restored, err := x.trash.Restore(ctx, entry)
	if err != nil {
		r := failed(entry.Trashed, entry.Original, err)
		r.CrossDevice = restored.CrossDevice
		return r
	}
	return Result{Path: entry.Trashed, Dest: entry.Original, Outcome: Success, CrossDevice: restored.CrossDevice}
}

// Cut stages paths to be moved by the next paste.
func (x *Executor) Cut(paths []string) {
	x.stage(paths, true)
}

// Copy stages paths to be copied by the next paste.
func (x *Executor) Copy(paths []string) {
	x.stage(paths, false)
}

func (x *Executor) stage(paths []string, move bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.staged = Staged{Paths: slices.Clone(paths), Move: move}
}

// Staged returns the pending cut or copy.
func (x *Executor) Staged() Staged {
	x.mu.Lock()
	defer x.mu.Unlock()
	return Staged{Paths: slices.Clone(x.staged.Paths), Move: x.staged.Move}
}

// Paste applies the staged set to destDir. Colliding names fail with
// ErrConflict and leave the existing entry untouched.
func (x *Executor) Paste(ctx context.Context, destDir string) Batch {
	return x.paste(ctx, destDir, false)
}

// PasteOverwrite is Paste replacing colliding destination entries.
func (x *Executor) PasteOverwrite(ctx context.Context, destDir string) Batch {
	return x.paste(ctx, destDir, true)
}

func (x *Executor) paste(ctx context.Context, destDir string, overwrite bool) Batch {
	staged := x.Staged()
	destDir = filepath.Clean(destDir)
	results := make(Batch, len(staged.Paths))

	x.runBatch(staged.Paths, func(i int, src string) {
		results[i] = x.pasteOne(ctx, src, destDir, staged.Move, overwrite)
	})

	dirs := []string{destDir}
	removed := lo.Map(results, func(r Result, _ int) string { return r.Dest })
	if staged.Move {
		dirs = append(dirs, parents(staged.Paths)...)
		removed = append(removed, staged.Paths...)
		// Moved items are gone from their source; only failures stay staged.
		x.mu.Lock()
		x.staged.Paths = lo.FilterMap(results, func(r Result, _ int) (string, bool) {
			return r.Path, r.Outcome == Failed
		})
		x.mu.Unlock()
	}
	x.invalidate(dirs, lo.Compact(removed))
	x.logger.Info("paste finished", "dest", destDir, "move", staged.Move, "overwrite", overwrite, "summary", results.Summary())
	return results
}

func (x *Executor) pasteOne(ctx context.Context, src, destDir string, move, overwrite bool) Result {
	dest := filepath.Join(destDir, filepath.Base(src))
	if dest == src {
		return Result{Path: src, Dest: dest, Outcome: Skipped}
	}
	if isWithin(destDir, src) {
		return failed(src, dest, &fsutil.OpError{Op: "paste", Path: src, Kind: fsutil.ErrConflict, Err: ErrPasteIntoSelf})
	}
	if _, err := os.Lstat(src); err != nil {
		return failed(src, dest, fsutil.Classify("paste", src, err))
	}

	unlock := x.locks.Lock(dest)
	defer unlock()

	exists, err := pathExists(dest)
	if err != nil {
		return failed(src, dest, fsutil.Classify("paste", dest, err))
	}
	if exists {
		if !overwrite {
			return failed(src, dest, fsutil.NewOpError("paste", dest, fsutil.ErrConflict))
		}
		if isWithin(src, dest) {
			return failed(src, dest, &fsutil.OpError{Op: "paste", Path: dest, Kind: fsutil.ErrConflict, Err: ErrReplaceAncestor})
		}
		crossDevice, err := x.replace(ctx, src, dest, move)
		r := Result{Path: src, Dest: dest, Outcome: Success, CrossDevice: crossDevice}
		if err != nil {
			r.Outcome, r.Err = Failed, err
		}
		return r
	}

	if move {
		crossDevice, err := x.mover.move(ctx, src, dest)
		r := Result{Path: src, Dest: dest, Outcome: Success, CrossDevice: crossDevice}
		if err != nil {
			r.Outcome, r.Err = Failed, err
		}
		return r
	}
	if err := x.mover.copyTree(ctx, src, dest); err != nil {
		_ = os.RemoveAll(dest)
		return failed(src, dest, err)
	}
	return succeeded(src, dest)
}

// replace puts src over the existing dest. The new data is staged in a
// hidden sibling and swapped in only once complete, so a failed copy leaves
// dest as it was.
func (x *Executor) replace(ctx context.Context, src, dest string, move bool) (crossDevice bool, err error) {
	staging := siblingTemp(dest, "paste")
	if move {
		crossDevice, err = x.mover.move(ctx, src, staging)
	} else {
		err = x.mover.copyTree(ctx, src, staging)
	}
	if err != nil {
		staged, _ := pathExists(staging)
		if !move || !staged {
			_ = os.RemoveAll(staging)
			return crossDevice, err
		}
		// The copy landed but the source could not be removed; finish the
		// swap and report the removal failure.
	}

	backup := siblingTemp(dest, "old")
	if renameErr := os.Rename(dest, backup); renameErr != nil {
		x.unstage(ctx, staging, src, move)
		return crossDevice, fsutil.Classify("paste", dest, renameErr)
	}
	if renameErr := os.Rename(staging, dest); renameErr != nil {
		_ = os.Rename(backup, dest)
		x.unstage(ctx, staging, src, move)
		return crossDevice, fsutil.Classify("paste", dest, renameErr)
	}
	if rmErr := os.RemoveAll(backup); rmErr != nil {
		x.logger.Warn("replaced entry left behind", "path", backup, "err", rmErr)
	}
	return crossDevice, err
}

// unstage undoes a staged paste: a moved item goes back to src, a copy is
// discarded.
func (x *Executor) unstage(ctx context.Context, staging, src string, move bool) {
	if !move {
		_ = os.RemoveAll(staging)
		return
	}
	if exists, _ := pathExists(src); exists {
		x.logger.Warn("staged paste left behind", "path", staging, "src", src)
		return
	}
	if _, err := x.mover.move(ctx, staging, src); err != nil {
		x.logger.Warn("could not return staged paste", "path", staging, "src", src, "err", err)
	}
}

func siblingTemp(path, tag string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".mill-"+tag+"-"+uuid.NewString()[:8])
}

// runBatch runs fn for every item on a bounded pool. fn records its own
// result, so the group never short-circuits.
func (x *Executor) runBatch(items []string, fn func(i int, item string)) {
	var g errgroup.Group
	g.SetLimit(x.parallel)
	for i, item := range items {
		g.Go(func() error {
			fn(i, item)
			return nil
		})
	}
	_ = g.Wait()
}

func (x *Executor) invalidate(dirs, paths []string) {
	if x.store != nil {
		for _, dir := range lo.Uniq(dirs) {
			x.store.Invalidate(dir)
		}
	}
	if x.previews != nil {
		for _, path := range lo.Uniq(paths) {
			x.previews.RemoveByPath(path)
		}
	}
}

func childPath(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return filepath.Join(dir, name), &fsutil.OpError{Op: "name", Path: name, Kind: ErrInvalidName, Err: ErrInvalidName}
	}
	return filepath.Join(dir, name), nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// sameFileDifferentCase allows "a" -> "A" on case-insensitive filesystems.
func sameFileDifferentCase(a, b string) bool {
	if !strings.EqualFold(a, b) {
		return false
	}
	ia, errA := os.Stat(a)
	ib, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(ia, ib)
}

// isWithin reports whether dir is root or lies below it.
func isWithin(dir, root string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func parents(paths []string) []string {
	return lo.Uniq(lo.Map(paths, func(p string, _ int) string { return filepath.Dir(p) }))
}
