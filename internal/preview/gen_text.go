package preview

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
	"github.com/kk-code-lab/mill/internal/textutil"
)

const readChunkSize = 32 << 10

type textGenerator struct{}

func (textGenerator) Name() string { return "text" }

func (textGenerator) CanHandle(job *Job) bool {
	return job.Sniff.Class == ClassText
}

func (textGenerator) Generate(job *Job) (*Artifact, error) {
	content, truncated, err := readLimited(job, job.Entry.Path, job.Limits.TextBytes)
	if err != nil {
		return nil, err
	}
	lines, cut := textLines(content, job.Limits.TextLines)

	title := "text"
	switch fsutil.DetectUnicodeEncoding(content) {
	case fsutil.EncodingUTF16LE:
		title = "text (UTF-16LE)"
	case fsutil.EncodingUTF16BE:
		title = "text (UTF-16BE)"
	}
	return &Artifact{
		Kind:      KindText,
		Title:     title,
		Lines:     lines,
		Truncated: truncated || cut,
	}, nil
}

// readLimited reads at most limit bytes of path in chunks, checking for
// cancellation between chunks. truncated reports whether data remained.
func readLimited(job *Job, path string, limit int64) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fsutil.Classify("preview", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	capacity := limit
	if size := job.Entry.EffectiveSize(); size >= 0 && size < limit {
		capacity = size
	}
	buf := make([]byte, 0, capacity)
	chunk := make([]byte, readChunkSize)
	for int64(len(buf)) < limit {
		if err := job.Check(); err != nil {
			return nil, false, err
		}
		want := min(int64(len(chunk)), limit-int64(len(buf)))
		n, err := f.Read(chunk[:want])
		buf = append(buf, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			return buf, false, nil
		}
		if err != nil {
			return nil, false, fsutil.Classify("preview", path, err)
		}
	}

	var probe [1]byte
	n, _ := f.Read(probe[:])
	return buf, n > 0, nil
}

// textLines decodes content and splits it into display-safe lines, keeping
// at most limit lines.
func textLines(content []byte, limit int) ([]string, bool) {
	text := ansi.Strip(fsutil.NormalizeTextContent(content))
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil, false
	}
	raw := strings.Split(text, "\n")
	truncated := false
	if limit > 0 && len(raw) > limit {
		raw = raw[:limit]
		truncated = true
	}
	lines := make([]string, len(raw))
	for i, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		line = textutil.ExpandTabs(line, textutil.DefaultTabWidth)
		lines[i] = textutil.SanitizeTerminalText(line)
	}
	return lines, truncated
}
