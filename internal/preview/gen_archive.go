package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mholt/archives"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

type archiveGenerator struct{}

func (archiveGenerator) Name() string { return "archive" }

func (archiveGenerator) CanHandle(job *Job) bool {
	return job.Sniff.Class == ClassArchive || job.Sniff.Class == ClassCompressed
}

func (g archiveGenerator) Generate(job *Job) (*Artifact, error) {
	path := job.Entry.Path
	f, err := os.Open(path)
	if err != nil {
		return nil, fsutil.Classify("preview", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	if ex, ok := job.Sniff.archive.(archives.Extractor); ok {
		return g.list(job, ex, f)
	}
	if dec, ok := job.Sniff.archive.(archives.Decompressor); ok {
		return g.decompress(job, dec, f)
	}
	return nil, fmt.Errorf("%s: %w", job.Sniff.Format, fsutil.ErrNotAFile)
}

func (archiveGenerator) list(job *Job, ex archives.Extractor, f *os.File) (*Artifact, error) {
	limit := job.Limits.ArchiveEntries
	lines := make([]string, 0, limit)
	var total int64
	count := 0
	truncated := false

	err := ex.Extract(job.Context(), f, func(_ context.Context, info archives.FileInfo) error {
		if err := job.Check(); err != nil {
			return err
		}
		if count >= limit {
			truncated = true
			return iofs.SkipAll
		}
		count++
		total += info.Size()
		name := info.NameInArchive
		if info.IsDir() && !strings.HasSuffix(name, "/") {
			name += "/"
		}
		lines = append(lines, fmt.Sprintf("%10s  %s", humanize.IBytes(uint64(max(info.Size(), 0))), name))
		return nil
	})
	if err := job.Check(); err != nil {
		return nil, err
	}
	// Stopping early surfaces as an error from some formats.
	if err != nil && !truncated && !errors.Is(err, iofs.SkipAll) {
		return nil, fmt.Errorf("list %s archive: %w", job.Sniff.Format, err)
	}

	countLabel := humanize.Comma(int64(count))
	if truncated {
		countLabel += "+"
	}
	return &Artifact{
		Kind:  KindMetadata,
		Title: job.Sniff.Format + " archive",
		Fields: []Field{
			{Label: "Format", Value: job.Sniff.Format},
			{Label: "Entries", Value: countLabel},
			{Label: "Unpacked", Value: humanize.IBytes(uint64(max(total, 0)))},
			{Label: "Packed", Value: humanize.IBytes(uint64(max(job.Entry.EffectiveSize(), 0)))},
		},
		Lines:     lines,
		Truncated: truncated,
	}, nil
}

// decompress previews a single compressed stream by its decoded head.
func (archiveGenerator) decompress(job *Job, dec archives.Decompressor, f *os.File) (*Artifact, error) {
	rc, err := dec.OpenReader(f)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", job.Sniff.Format, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	buf := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)
	truncated := false
	for {
		if err := job.Check(); err != nil {
			return nil, err
		}
		if int64(len(buf)) >= job.Limits.TextBytes {
			truncated = true
			break
		}
		n, err := rc.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s stream: %w", job.Sniff.Format, err)
		}
	}
	if int64(len(buf)) > job.Limits.TextBytes {
		buf = buf[:job.Limits.TextBytes]
	}

	a := &Artifact{
		Kind:  KindMetadata,
		Title: job.Sniff.Format + " stream",
		Fields: []Field{
			{Label: "Format", Value: job.Sniff.Format},
			{Label: "Packed", Value: humanize.IBytes(uint64(max(job.Entry.EffectiveSize(), 0)))},
		},
		Truncated: truncated,
	}
	if fsutil.IsTextFile("", buf) {
		lines, cut := textLines(buf, job.Limits.TextLines)
		a.Lines = lines
		a.Truncated = a.Truncated || cut
	} else {
		a.Lines = []string{"(binary content)"}
	}
	return a, nil
}
