package preview

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

const directoryCheckEvery = 64

type directoryGenerator struct{}

func (directoryGenerator) Name() string { return "directory" }

func (directoryGenerator) CanHandle(job *Job) bool {
	return job.Sniff.Class == ClassDirectory
}

func (directoryGenerator) Generate(job *Job) (*Artifact, error) {
	path := job.Entry.Path
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, fsutil.Classify("preview", path, err)
	}

	entries := make([]fsutil.Entry, 0, len(dirEntries))
	var total int64
	for i, de := range dirEntries {
		if i%directoryCheckEvery == 0 {
			if err := job.Check(); err != nil {
				return nil, err
			}
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		e := fsutil.NewEntry(path, de.Name(), info)
		if e.Kind == fsutil.KindRegular {
			total += e.Size
		}
		entries = append(entries, e)
	}
	fsutil.SortEntries(entries)

	shown := entries
	truncated := false
	if len(shown) > job.Limits.DirectoryNames {
		shown = shown[:job.Limits.DirectoryNames]
		truncated = true
	}
	lines := make([]string, len(shown))
	for i, e := range shown {
		name := e.Name
		if e.IsDir() {
			name += "/"
		}
		lines[i] = name
	}

	return &Artifact{
		Kind:  KindMetadata,
		Title: fmt.Sprintf("%d items", len(entries)),
		Fields: []Field{
			{Label: "Items", Value: humanize.Comma(int64(len(entries)))},
			{Label: "Size", Value: humanize.IBytes(uint64(total))},
		},
		Lines:     lines,
		Truncated: truncated,
	}, nil
}
