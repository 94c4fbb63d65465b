package preview

import (
	"fmt"
	"time"

	"github.com/asticode/go-astisub"
	"github.com/samber/lo"

	"github.com/kk-code-lab/mill/internal/textutil"
)

var subtitleExts = []string{".srt", ".vtt", ".ssa", ".ass", ".stl", ".ttml"}

type subtitleGenerator struct{}

func (subtitleGenerator) Name() string { return "subtitle" }

func (subtitleGenerator) CanHandle(job *Job) bool {
	if job.Sniff.Class != ClassText && job.Sniff.Class != ClassBinary {
		return false
	}
	return lo.Contains(subtitleExts, job.Sniff.Ext) && job.Entry.EffectiveSize() <= job.Limits.SubtitleBytes
}

func (subtitleGenerator) Generate(job *Job) (*Artifact, error) {
	subs, err := astisub.OpenFile(job.Entry.Path)
	if err != nil {
		return nil, fmt.Errorf("parse subtitles: %w", err)
	}
	if err := job.Check(); err != nil {
		return nil, err
	}

	limit := job.Limits.TextLines
	lines := make([]string, 0, min(len(subs.Items), limit))
	for i, item := range subs.Items {
		if i >= limit {
			break
		}
		lines = append(lines, fmt.Sprintf("%s  %s", formatCueTime(item.StartAt), textutil.SanitizeTerminalText(item.String())))
	}

	return &Artifact{
		Kind:  KindMetadata,
		Title: "subtitles",
		Fields: []Field{
			{Label: "Cues", Value: fmt.Sprintf("%d", len(subs.Items))},
			{Label: "Duration", Value: formatCueTime(subs.Duration())},
		},
		Lines:     lines,
		Truncated: len(subs.Items) > limit,
	}, nil
}

func formatCueTime(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, d/time.Millisecond)
}
