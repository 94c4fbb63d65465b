package preview

import (
	"errors"
	"image"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

// ArtifactKind tags the variant held by an Artifact.
type ArtifactKind int

const (
	KindText ArtifactKind = iota
	KindHighlighted
	KindImage
	KindMetadata
	KindError
	KindUnsupported
)

func (k ArtifactKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindHighlighted:
		return "highlighted"
	case KindImage:
		return "image"
	case KindMetadata:
		return "metadata"
	case KindError:
		return "error"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Segment is a run of text sharing one style. Color is "#rrggbb" or empty.
type Segment struct {
	Text   string
	Color  string
	Bold   bool
	Italic bool
}

// Field is one labelled metadata value.
type Field struct {
	Label string
	Value string
}

// Artifact is the computed preview for one Key. Artifacts are never mutated
// after they enter the cache.
type Artifact struct {
	Key       Key
	Kind      ArtifactKind
	Title     string
	Lines     []string
	Styled    [][]Segment
	Image     *image.NRGBA
	Fields    []Field
	Err       error
	Truncated bool
	Generator string

	// Size is the estimated memory footprint in bytes.
	Size int64
}

const artifactOverhead = 128

func (a *Artifact) estimateSize() int64 {
	size := int64(artifactOverhead + len(a.Title))
	for _, line := range a.Lines {
		size += int64(len(line)) + 16
	}
	for _, line := range a.Styled {
		for _, seg := range line {
			size += int64(len(seg.Text)+len(seg.Color)) + 40
		}
	}
	for _, f := range a.Fields {
		size += int64(len(f.Label)+len(f.Value)) + 32
	}
	if a.Image != nil {
		size += int64(len(a.Image.Pix))
	}
	return size
}

// ErrorArtifact builds the placeholder shown when generation fails.
func ErrorArtifact(key Key, generator string, err error) *Artifact {
	if err != nil && !errors.Is(err, fsutil.ErrGenerationFailed) {
		err = &fsutil.OpError{Op: "preview", Path: key.Path, Kind: fsutil.ErrGenerationFailed, Err: err}
	}
	a := &Artifact{
		Key:       key,
		Kind:      KindError,
		Title:     "preview unavailable",
		Err:       err,
		Generator: generator,
	}
	if err != nil {
		a.Lines = []string{err.Error()}
	}
	a.Size = a.estimateSize()
	return a
}
