package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/marusama/semaphore/v2"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

const copyChunkSize = 256 * 1024

// RenameFunc matches os.Rename.
type RenameFunc func(oldpath, newpath string) error

// mover moves and copies trees. Renames fall back to copy and remove when
// source and destination are on different devices. File copies share a
// semaphore so parallel batches do not saturate the disk.
type mover struct {
	rename RenameFunc
	sem    semaphore.Semaphore
}

func newMover(rename RenameFunc, copyLimit int) *mover {
	if rename == nil {
		rename = os.Rename
	}
	if copyLimit <= 0 {
		copyLimit = 2
	}
	return &mover{rename: rename, sem: semaphore.New(copyLimit)}
}

// move renames src to dst, copying across devices when needed.
func (m *mover) move(ctx context.Context, src, dst string) (crossDevice bool, err error) {
	err = m.rename(src, dst)
	if err == nil {
		return false, nil
	}
	if !fsutil.IsCrossDevice(err) {
		return false, fsutil.Classify("move", src, err)
	}
	if err := m.copyTree(ctx, src, dst); err != nil {
		_ = os.RemoveAll(dst)
		return true, err
	}
	if err := os.RemoveAll(src); err != nil {
		return true, fsutil.Classify("remove", src, err)
	}
	return true, nil
}

// copyTree copies src to dst, recursing into directories and recreating
// symlinks rather than following them.
func (m *mover) copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d iofs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fsutil.Classify("copy", path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return fsutil.NewOpError("copy", path, fsutil.ErrCancelled)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return fsutil.Classify("copy", path, err)
		}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return fsutil.Classify("copy", path, err)
			}
			if err := os.Symlink(link, target); err != nil {
				return fsutil.Classify("copy", target, err)
			}
		case info.IsDir():
			if err := os.Mkdir(target, info.Mode().Perm()|0o700); err != nil {
				return fsutil.Classify("copy", target, err)
			}
		case info.Mode().IsRegular():
			if err := m.copyFile(ctx, path, target, info); err != nil {
				return err
			}
		default:
			return fsutil.NewOpError("copy", path, fsutil.ErrNotAFile)
		}
		return nil
	})
}

// copyFile copies in chunks into a temporary sibling, checking ctx between
// chunks, then renames it into place with the source mtime preserved.
func (m *mover) copyFile(ctx context.Context, src, dst string, info os.FileInfo) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return fsutil.NewOpError("copy", src, fsutil.ErrCancelled)
	}
	defer m.sem.Release(1)

	in, err := os.Open(src)
	if err != nil {
		return fsutil.Classify("copy", src, err)
	}
	defer func() {
		_ = in.Close()
	}()

	tmp := dst + ".mill-tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fsutil.Classify("copy", dst, err)
	}

	buf := make([]byte, copyChunkSize)
	var copyErr error
	for {
		if ctx.Err() != nil {
			copyErr = fsutil.NewOpError("copy", src, fsutil.ErrCancelled)
			break
		}
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				copyErr = fsutil.Classify("copy", dst, err)
				break
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			copyErr = fsutil.Classify("copy", src, readErr)
			break
		}
	}
	if err := out.Close(); err != nil && copyErr == nil {
		copyErr = fsutil.Classify("copy", dst, err)
	}
	if copyErr != nil {
		_ = os.Remove(tmp)
		return copyErr
	}

	if err := os.Chtimes(tmp, time.Now(), info.ModTime()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("preserve mtime of %s: %w", dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fsutil.Classify("copy", dst, err)
	}
	return nil
}
