package preview

import (
	"context"
	"sync/atomic"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

// Limits bound the work a single generation may do.
type Limits struct {
	TextBytes      int64
	TextLines      int
	HexBytes       int
	ArchiveEntries int
	DirectoryNames int
	ImageWidth     int
	ImageHeight    int
	ImageMaxBytes  int64
	SubtitleBytes  int64
	HighlightStyle string
	MarkdownWidth  int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		TextBytes:      256 << 10,
		TextLines:      2000,
		HexBytes:       1024,
		ArchiveEntries: 128,
		DirectoryNames: 200,
		ImageWidth:     960,
		ImageHeight:    540,
		ImageMaxBytes:  64 << 20,
		SubtitleBytes:  4 << 20,
		HighlightStyle: "monokai",
		MarkdownWidth:  100,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.TextBytes <= 0 {
		l.TextBytes = d.TextBytes
	}
	if l.TextLines <= 0 {
		l.TextLines = d.TextLines
	}
	if l.HexBytes <= 0 {
		l.HexBytes = d.HexBytes
	}
	if l.ArchiveEntries <= 0 {
		l.ArchiveEntries = d.ArchiveEntries
	}
	if l.DirectoryNames <= 0 {
		l.DirectoryNames = d.DirectoryNames
	}
	if l.ImageWidth <= 0 || l.ImageHeight <= 0 {
		l.ImageWidth, l.ImageHeight = d.ImageWidth, d.ImageHeight
	}
	if l.ImageMaxBytes <= 0 {
		l.ImageMaxBytes = d.ImageMaxBytes
	}
	if l.SubtitleBytes <= 0 {
		l.SubtitleBytes = d.SubtitleBytes
	}
	if l.HighlightStyle == "" {
		l.HighlightStyle = d.HighlightStyle
	}
	if l.MarkdownWidth <= 0 {
		l.MarkdownWidth = d.MarkdownWidth
	}
	return l
}

// Job is one generation unit handed to a Generator.
type Job struct {
	Entry  fsutil.Entry
	Key    Key
	Limits Limits
	Sniff  Sniff

	cancelled *atomic.Bool
}

// Cancelled reports whether the request behind this job was superseded.
func (j *Job) Cancelled() bool {
	return j.cancelled != nil && j.cancelled.Load()
}

// Check returns ErrCancelled once the job is superseded. Generators call it
// at safe points such as after each read chunk.
func (j *Job) Check() error {
	if j.Cancelled() {
		return fsutil.ErrCancelled
	}
	return nil
}

// Context adapts the cancellation flag for libraries that poll ctx.Err
// between items.
func (j *Job) Context() context.Context {
	return &flagContext{Context: context.Background(), job: j}
}

type flagContext struct {
	context.Context
	job *Job
}

func (c *flagContext) Err() error {
	if c.job.Cancelled() {
		return context.Canceled
	}
	return c.Context.Err()
}
