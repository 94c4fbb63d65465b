package preview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/samber/lo"
)

var markdownExts = []string{".md", ".markdown", ".mdown", ".mkd"}

type markdownGenerator struct{}

func (markdownGenerator) Name() string { return "markdown" }

func (markdownGenerator) CanHandle(job *Job) bool {
	return job.Sniff.Class == ClassText && lo.Contains(markdownExts, job.Sniff.Ext)
}

func (markdownGenerator) Generate(job *Job) (*Artifact, error) {
	content, truncated, err := readLimited(job, job.Entry.Path, job.Limits.TextBytes)
	if err != nil {
		return nil, err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(job.Limits.MarkdownWidth),
	)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(string(content))
	if err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	if err := job.Check(); err != nil {
		return nil, err
	}

	lines, cut := textLines([]byte(strings.Trim(rendered, "\n")), job.Limits.TextLines)
	return &Artifact{
		Kind:      KindText,
		Title:     "markdown",
		Lines:     lines,
		Truncated: truncated || cut,
	}, nil
}
