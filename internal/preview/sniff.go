package preview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Decoders registered for image.DecodeConfig and imaging.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/mholt/archives"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

// Class is the content family decided by sniffing.
type Class int

const (
	ClassUnknown Class = iota
	ClassDirectory
	ClassSpecial
	ClassImage
	ClassArchive
	ClassCompressed
	ClassMedia
	ClassText
	ClassBinary
)

func (c Class) String() string {
	switch c {
	case ClassDirectory:
		return "directory"
	case ClassSpecial:
		return "special"
	case ClassImage:
		return "image"
	case ClassArchive:
		return "archive"
	case ClassCompressed:
		return "compressed"
	case ClassMedia:
		return "media"
	case ClassText:
		return "text"
	case ClassBinary:
		return "binary"
	default:
		return "unknown"
	}
}

const imageHeaderLimit = 1 << 20

// Sniff records what sampling a file revealed.
type Sniff struct {
	Class  Class
	Format string // image, archive or media container name
	Ext    string // lowercased extension, used only to break ties
	Head   []byte

	archive archives.Format
}

// sniffEntry classifies an entry by magic bytes. Text is recognised before
// archive formats because some compressed formats have no magic number and
// would otherwise claim plain text. Extensions never override a magic match.
func sniffEntry(ctx context.Context, e fsutil.Entry) (Sniff, error) {
	s := Sniff{Ext: strings.ToLower(filepath.Ext(e.Name))}

	if e.IsSymlink() && e.Dangling {
		s.Class = ClassSpecial
		return s, nil
	}
	switch e.EffectiveKind() {
	case fsutil.KindDirectory:
		s.Class = ClassDirectory
		return s, nil
	case fsutil.KindOther:
		s.Class = ClassSpecial
		return s, nil
	}

	f, err := os.Open(e.Path)
	if err != nil {
		return s, fsutil.Classify("preview", e.Path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	head := make([]byte, fsutil.TextSampleSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return s, fsutil.Classify("preview", e.Path, err)
	}
	s.Head = head[:n]
	if n == 0 {
		s.Class = ClassText
		return s, nil
	}

	// JPEG headers can sit behind large EXIF blocks, so read past the sample.
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if _, format, err := image.DecodeConfig(io.LimitReader(f, imageHeaderLimit)); err == nil {
			s.Class = ClassImage
			s.Format = format
			return s, nil
		}
	}

	if fsutil.IsTextFile(e.Path, s.Head) {
		s.Class = ClassText
		return s, nil
	}

	if format := sniffMedia(s.Head); format != "" {
		s.Class = ClassMedia
		s.Format = format
		return s, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err == nil {
		// An empty filename restricts matching to the stream contents.
		format, _, err := archives.Identify(ctx, "", f)
		if err == nil && format != nil {
			s.archive = format
			s.Format = strings.TrimPrefix(format.Extension(), ".")
			if _, ok := format.(archives.Extractor); ok {
				s.Class = ClassArchive
			} else {
				s.Class = ClassCompressed
			}
			return s, nil
		}
	}

	s.Class = ClassBinary
	return s, nil
}

const tsPacketSize = 188

// sniffMedia names the audio or video container head starts with, or "".
func sniffMedia(head []byte) string {
	switch {
	case bytes.HasPrefix(head, []byte("ID3")):
		return "mp3"
	case bytes.HasPrefix(head, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(head, []byte("OggS")):
		return "ogg"
	case bytes.HasPrefix(head, []byte{0x1a, 0x45, 0xdf, 0xa3}):
		return "matroska"
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return "wav"
	case len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")):
		if bytes.HasPrefix(head[8:12], []byte("M4")) {
			return "m4a"
		}
		return "mp4"
	case len(head) > 2*tsPacketSize && head[0] == 0x47 && head[tsPacketSize] == 0x47 && head[2*tsPacketSize] == 0x47:
		return "mpegts"
	case len(head) >= 2 && head[0] == 0xff && head[1]&0xe0 == 0xe0:
		// MPEG audio frame sync without a tag header.
		return "mp3"
	}
	return ""
}
