package preview

import (
	"path/filepath"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

// Key identifies a preview by path, size and modification time. Two entries
// with equal keys share an artifact. Edits that keep both size and mtime
// (within the filesystem's timestamp granularity) are not detected.
type Key struct {
	Path    string
	Size    int64
	ModTime int64 // unix nanoseconds
}

// KeyFor derives the key for an entry. Symlinks are keyed by the link path
// with the size and mtime of their target.
func KeyFor(e fsutil.Entry) Key {
	return Key{
		Path:    canonicalPath(e.Path),
		Size:    e.EffectiveSize(),
		ModTime: e.EffectiveModified().UnixNano(),
	}
}

// Dir is the directory containing the keyed path.
func (k Key) Dir() string {
	return filepath.Dir(k.Path)
}

func canonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
