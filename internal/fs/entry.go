package fs

import (
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Kind classifies a filesystem node.
type Kind int

const (
	KindRegular Kind = iota
	KindDirectory
	KindSymlink
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "file"
	case KindDirectory:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// KindOf maps file mode bits to a Kind.
func KindOf(mode os.FileMode) Kind {
	switch {
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case mode.IsDir():
		return KindDirectory
	case mode.IsRegular():
		return KindRegular
	default:
		return KindOther
	}
}

// Entry represents a single file or directory on disk. Entries are values:
// a changed node on disk yields a new Entry, never a mutated one.
type Entry struct {
	Name       string // NFC-normalized, for display and sorting
	Path       string // absolute path built from the raw on-disk name
	Kind       Kind
	Size       int64
	Modified   time.Time
	Mode       os.FileMode
	LinkTarget string

	// Resolved target of a symlink. Dangling links keep TargetKind == KindOther.
	TargetKind     Kind
	TargetSize     int64
	TargetModified time.Time
	Dangling       bool
}

// NewEntry builds an Entry for name inside dir from its Lstat info.
func NewEntry(dir, name string, info os.FileInfo) Entry {
	full := filepath.Join(dir, name)
	e := Entry{
		Name:     norm.NFC.String(name),
		Path:     full,
		Kind:     KindOf(info.Mode()),
		Size:     info.Size(),
		Modified: info.ModTime(),
		Mode:     info.Mode(),
	}
	if e.Kind != KindSymlink {
		return e
	}

	if target, err := os.Readlink(full); err == nil {
		e.LinkTarget = target
	}
	targetInfo, err := os.Stat(full)
	if err != nil {
		e.Dangling = true
		e.TargetKind = KindOther
		return e
	}
	e.TargetKind = KindOf(targetInfo.Mode())
	e.TargetSize = targetInfo.Size()
	e.TargetModified = targetInfo.ModTime()
	return e
}

// Stat returns the Entry for path without following a final symlink.
func Stat(path string) (Entry, error) {
	clean := filepath.Clean(path)
	info, err := os.Lstat(clean)
	if err != nil {
		return Entry{}, Classify("stat", clean, err)
	}
	return NewEntry(filepath.Dir(clean), filepath.Base(clean), info), nil
}

// IsDir reports whether the entry is a directory or a symlink to one.
func (e Entry) IsDir() bool {
	return e.EffectiveKind() == KindDirectory
}

// IsSymlink reports whether the entry itself is a symlink.
func (e Entry) IsSymlink() bool {
	return e.Kind == KindSymlink
}

// IsHidden reports whether the entry should be treated as hidden.
func (e Entry) IsHidden() bool {
	return IsHidden(e.Path, filepath.Base(e.Path))
}

// EffectiveKind follows symlinks one level.
func (e Entry) EffectiveKind() Kind {
	if e.Kind == KindSymlink {
		return e.TargetKind
	}
	return e.Kind
}

// EffectiveSize is the size of the node the entry resolves to.
func (e Entry) EffectiveSize() int64 {
	if e.Kind == KindSymlink {
		return e.TargetSize
	}
	return e.Size
}

// EffectiveModified is the mtime of the node the entry resolves to.
func (e Entry) EffectiveModified() time.Time {
	if e.Kind == KindSymlink {
		return e.TargetModified
	}
	return e.Modified
}
