package fileops

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
	"github.com/kk-code-lab/mill/internal/preview"
	"github.com/kk-code-lab/mill/internal/store"
)

type recorder struct {
	mu          sync.Mutex
	invalidated []string
	removed     []string
}

func (r *recorder) Invalidate(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, dir)
}

func (r *recorder) RemoveByPath(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
	return 0
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func exdevRename(oldpath, newpath string) error {
	return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
}

func TestMkdirAndTouch(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	x := NewExecutor(rec, rec, nil, Options{})

	r := x.Mkdir(dir, "sub")
	require.Equal(t, Success, r.Outcome, r.Err)
	assert.DirExists(t, filepath.Join(dir, "sub"))

	r = x.Mkdir(dir, "sub")
	assert.Equal(t, Failed, r.Outcome)
	assert.ErrorIs(t, r.Err, fsutil.ErrConflict)

	r = x.Touch(dir, "new.txt")
	require.Equal(t, Success, r.Outcome, r.Err)
	assert.FileExists(t, filepath.Join(dir, "new.txt"))
	r = x.Touch(dir, "new.txt")
	assert.Equal(t, Success, r.Outcome, "touching an existing file updates its times")

	r = x.Mkdir(dir, "a/b")
	assert.ErrorIs(t, r.Err, ErrInvalidName)
	assert.Contains(t, rec.invalidated, dir)
}

func TestRenameConflictLeavesBothFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), "a")
	writeFile(t, filepath.Join(dir, "b"), "b")
	x := NewExecutor(nil, nil, nil, Options{})

	r := x.Rename(filepath.Join(dir, "a"), "b")
	assert.ErrorIs(t, r.Err, fsutil.ErrConflict)
	got, _ := os.ReadFile(filepath.Join(dir, "b"))
	assert.Equal(t, "b", string(got))

	r = x.Rename(filepath.Join(dir, "a"), "c")
	require.Equal(t, Success, r.Outcome, r.Err)
	assert.FileExists(t, filepath.Join(dir, "c"))
	assert.NoFileExists(t, filepath.Join(dir, "a"))
}

func TestDeleteBatchReportsEveryItem(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 5)
	for i := range paths {
		paths[i] = filepath.Join(dir, string(rune('a'+i)))
		writeFile(t, paths[i], "x")
	}
	// Item 3 fails: it no longer exists.
	require.NoError(t, os.Remove(paths[2]))

	rec := &recorder{}
	x := NewExecutor(rec, rec, nil, Options{Parallelism: 2})
	results := x.Delete(context.Background(), paths)

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
		if i == 2 {
			assert.Equal(t, Failed, r.Outcome)
			assert.ErrorIs(t, r.Err, fsutil.ErrNotFound)
			continue
		}
		assert.Equal(t, Success, r.Outcome, r.Err)
		assert.NoFileExists(t, paths[i])
	}
	assert.Equal(t, 4, results.Count(Success))
	assert.Len(t, results.Failures(), 1)
	assert.Contains(t, rec.invalidated, dir)
	assert.ElementsMatch(t, paths, rec.removed)
}

func TestDeleteWithPermissionFailureContinues(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	dir := t.TempDir()
	locked := filepath.Join(dir, "locked")
	writeFile(t, filepath.Join(dir, "a"), "a")
	writeFile(t, filepath.Join(locked, "inner"), "x")
	writeFile(t, filepath.Join(dir, "c"), "c")
	require.NoError(t, os.Chmod(locked, 0o500))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	x := NewExecutor(nil, nil, nil, Options{})
	results := x.Delete(context.Background(), []string{
		filepath.Join(dir, "a"),
		filepath.Join(locked, "inner"),
		filepath.Join(dir, "c"),
	})

	assert.Equal(t, Success, results[0].Outcome)
	assert.Equal(t, Failed, results[1].Outcome)
	assert.ErrorIs(t, results[1].Err, fsutil.ErrPermissionDenied)
	assert.Equal(t, Success, results[2].Outcome)
}

func TestDeleteIntoTrashAndRestore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doomed.txt")
	writeFile(t, path, "keep me")

	trash, err := NewTrash(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = trash.Close() })

	x := NewExecutor(nil, nil, trash, Options{UseTrash: true})
	results := x.Delete(context.Background(), []string{path})
	require.Equal(t, Success, results[0].Outcome, results[0].Err)
	assert.False(t, results[0].CrossDevice)
	assert.NoFileExists(t, path)

	entries := trash.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, path, entries[0].Original)
	assert.FileExists(t, entries[0].Trashed)
	assert.True(t, isWithin(entries[0].Trashed, trash.Dir()))

	_, err = trash.Restore(context.Background(), entries[0])
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(got))
	assert.Empty(t, trash.Entries())
}

func TestRestoreLastPicksNewestAndInvalidates(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.txt")
	second := filepath.Join(dir, "second.txt")
	writeFile(t, first, "1")
	writeFile(t, second, "2")

	trash, err := NewTrash(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = trash.Close() })

	rec := &recorder{}
	x := NewExecutor(rec, rec, trash, Options{UseTrash: true})
	require.Equal(t, Success, x.Delete(context.Background(), []string{first})[0].Outcome)
	require.Equal(t, Success, x.Delete(context.Background(), []string{second})[0].Outcome)

	r := x.RestoreLast(context.Background())
	require.Equal(t, Success, r.Outcome, r.Err)
	assert.Equal(t, second, r.Dest)
	assert.FileExists(t, second)
	assert.NoFileExists(t, first)
	assert.Contains(t, rec.invalidated, dir)
	assert.Contains(t, rec.invalidated, trash.Dir())

	require.Equal(t, Success, x.RestoreLast(context.Background()).Outcome)
	assert.FileExists(t, first)

	empty := x.RestoreLast(context.Background())
	assert.Equal(t, Failed, empty.Outcome)
	assert.ErrorIs(t, empty.Err, fsutil.ErrNotFound)
}

func TestTrashCrossDeviceFallsBackToCopy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big")
	writeFile(t, filepath.Join(path, "nested", "file.bin"), "payload")

	trash, err := NewTrash(exdevRename)
	require.NoError(t, err)
	t.Cleanup(func() { _ = trash.Close() })

	x := NewExecutor(nil, nil, trash, Options{UseTrash: true})
	results := x.Delete(context.Background(), []string{path})

	require.Equal(t, Success, results[0].Outcome, results[0].Err)
	assert.True(t, results[0].CrossDevice)
	assert.True(t, results.CrossDevice())
	assert.NoDirExists(t, path)
	got, err := os.ReadFile(filepath.Join(results[0].Dest, "nested", "file.bin"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestTrashRestoreConflict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	writeFile(t, path, "old")

	trash, err := NewTrash(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = trash.Close() })

	entry, err := trash.Put(context.Background(), path)
	require.NoError(t, err)
	writeFile(t, path, "new")

	_, err = trash.Restore(context.Background(), entry)
	assert.ErrorIs(t, err, fsutil.ErrConflict)
	got, _ := os.ReadFile(path)
	assert.Equal(t, "new", string(got))
}

func TestPasteConflictAndOverwrite(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "note.txt")
	dst := filepath.Join(root, "dst")
	writeFile(t, src, "incoming")
	writeFile(t, filepath.Join(dst, "note.txt"), "existing")
	writeFile(t, filepath.Join(root, "src", "other.txt"), "other")

	x := NewExecutor(nil, nil, nil, Options{})
	x.Copy([]string{src, filepath.Join(root, "src", "other.txt")})

	results := x.Paste(context.Background(), dst)
	require.Len(t, results, 2)
	assert.Equal(t, Failed, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, fsutil.ErrConflict)
	assert.Equal(t, Success, results[1].Outcome, "the rest of the batch continues")
	got, _ := os.ReadFile(filepath.Join(dst, "note.txt"))
	assert.Equal(t, "existing", string(got))

	results = x.PasteOverwrite(context.Background(), dst)
	assert.Equal(t, Success, results[0].Outcome, results[0].Err)
	got, _ = os.ReadFile(filepath.Join(dst, "note.txt"))
	assert.Equal(t, "incoming", string(got))
	assert.FileExists(t, src, "copy keeps the source")
}

func TestPasteRefusesDirectoryIntoItself(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "tree")
	writeFile(t, filepath.Join(dir, "child", "f"), "x")

	x := NewExecutor(nil, nil, nil, Options{})
	x.Copy([]string{dir})
	results := x.Paste(context.Background(), filepath.Join(dir, "child"))

	assert.Equal(t, Failed, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, ErrPasteIntoSelf)
	assert.NoDirExists(t, filepath.Join(dir, "child", "tree"))
}

func TestPasteOverwriteRefusesToReplaceDirectoryHoldingSource(t *testing.T) {
	for _, move := range []bool{true, false} {
		root := t.TempDir()
		inner := filepath.Join(root, "foo", "foo")
		writeFile(t, filepath.Join(inner, "data"), "keep")

		x := NewExecutor(nil, nil, nil, Options{})
		if move {
			x.Cut([]string{inner})
		} else {
			x.Copy([]string{inner})
		}
		results := x.PasteOverwrite(context.Background(), root)

		require.Len(t, results, 1)
		assert.Equal(t, Failed, results[0].Outcome, "move=%v", move)
		assert.ErrorIs(t, results[0].Err, fsutil.ErrConflict)
		assert.ErrorIs(t, results[0].Err, ErrReplaceAncestor)
		got, err := os.ReadFile(filepath.Join(inner, "data"))
		require.NoError(t, err, "move=%v: source must survive", move)
		assert.Equal(t, "keep", string(got))
	}
}

func TestPasteOverwriteFailureKeepsExistingEntry(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "note.txt")
	dst := filepath.Join(root, "dst")
	writeFile(t, src, "incoming")
	writeFile(t, filepath.Join(dst, "note.txt"), "existing")

	x := NewExecutor(nil, nil, nil, Options{})
	x.Copy([]string{src})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := x.PasteOverwrite(ctx, dst)

	require.Len(t, results, 1)
	assert.Equal(t, Failed, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, fsutil.ErrCancelled)
	got, err := os.ReadFile(filepath.Join(dst, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(got))
	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staging leftovers")
}

func TestCutPasteOverwriteReplacesDirectory(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "tree")
	dst := filepath.Join(root, "dst")
	writeFile(t, filepath.Join(src, "new"), "n")
	writeFile(t, filepath.Join(dst, "tree", "old"), "o")

	x := NewExecutor(nil, nil, nil, Options{})
	x.Cut([]string{src})
	results := x.PasteOverwrite(context.Background(), dst)

	require.Equal(t, Success, results[0].Outcome, results[0].Err)
	assert.FileExists(t, filepath.Join(dst, "tree", "new"))
	assert.NoFileExists(t, filepath.Join(dst, "tree", "old"))
	assert.NoDirExists(t, src)
	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the replaced directory is removed")
}

func TestPasteIntoSameDirectoryIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	writeFile(t, path, "x")

	x := NewExecutor(nil, nil, nil, Options{})
	x.Cut([]string{path})
	results := x.PasteOverwrite(context.Background(), dir)

	assert.Equal(t, Skipped, results[0].Outcome)
	assert.FileExists(t, path)
}

func TestCutPasteAcrossDevicesCopiesTree(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a", "dir")
	writeFile(t, filepath.Join(src, "x.txt"), "x")
	dst := filepath.Join(root, "b")
	require.NoError(t, os.Mkdir(dst, 0o755))

	x := NewExecutor(nil, nil, nil, Options{Rename: exdevRename})
	x.Cut([]string{src})
	results := x.Paste(context.Background(), dst)

	require.Equal(t, Success, results[0].Outcome, results[0].Err)
	assert.True(t, results[0].CrossDevice)
	assert.NoDirExists(t, src)
	assert.FileExists(t, filepath.Join(dst, "dir", "x.txt"))
	assert.Empty(t, x.Staged().Paths)
}

func TestCopyPreservesSymlinksAndMtime(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "target"), "t")
	require.NoError(t, os.Symlink("target", filepath.Join(src, "link")))

	m := newMover(nil, 1)
	dst := filepath.Join(root, "dst")
	require.NoError(t, m.copyTree(context.Background(), src, dst))

	link, err := os.Readlink(filepath.Join(dst, "link"))
	require.NoError(t, err)
	assert.Equal(t, "target", link)

	srcInfo, _ := os.Stat(filepath.Join(src, "target"))
	dstInfo, _ := os.Stat(filepath.Join(dst, "target"))
	assert.Equal(t, srcInfo.ModTime().UnixNano(), dstInfo.ModTime().UnixNano())
}

func TestCutPasteEndToEndInvalidatesStoreAndCache(t *testing.T) {
	root := t.TempDir()
	origin := filepath.Join(root, "origin")
	dest := filepath.Join(root, "dest")
	writeFile(t, filepath.Join(origin, "a.txt"), "0123456789")
	writeFile(t, filepath.Join(origin, "b.png"), "\x89PNG\r\n\x1a\n")
	require.NoError(t, os.Mkdir(dest, 0o755))

	st := store.New(8, nil)
	cache := preview.NewCache(1 << 20)

	before, err := st.Load(origin)
	require.NoError(t, err)
	require.Equal(t, 2, before.Len())
	destBefore, err := st.Load(dest)
	require.NoError(t, err)
	require.Equal(t, 0, destBefore.Len())

	aEntry := before.Entries[0]
	aKey := preview.KeyFor(aEntry)
	cache.Put(aKey, &preview.Artifact{Kind: preview.KindText, Lines: []string{"0123456789"}})

	x := NewExecutor(st, cache, nil, Options{})
	x.Cut([]string{before.Entries[0].Path, before.Entries[1].Path})
	results := x.Paste(context.Background(), dest)
	require.Empty(t, results.Failures(), results.Err())

	assert.False(t, st.Contains(origin), "origin snapshot must be invalidated")
	assert.False(t, st.Contains(dest), "dest snapshot must be invalidated")
	assert.False(t, cache.Contains(aKey), "preview of moved file must be dropped")

	after, err := st.Load(origin)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Len())
	destAfter, err := st.Load(dest)
	require.NoError(t, err)
	names := make([]string, 0, destAfter.Len())
	for _, e := range destAfter.Entries {
		names = append(names, e.Name)
	}
	assert.True(t, slices.Equal([]string{"a.txt", "b.png"}, names), names)
	assert.Equal(t, int64(10), destAfter.Entries[0].Size)
}
