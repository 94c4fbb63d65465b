package preview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
	"github.com/kk-code-lab/mill/internal/textutil"
)

const highlightCheckEvery = 512

type highlightGenerator struct{}

func (highlightGenerator) Name() string { return "highlight" }

func (highlightGenerator) CanHandle(job *Job) bool {
	if job.Sniff.Class != ClassText {
		return false
	}
	return lexerFor(job.Entry.Name) != nil
}

func lexerFor(name string) chroma.Lexer {
	lexer := lexers.Match(filepath.Base(name))
	if lexer == nil || lexer.Config().Name == "plaintext" {
		return nil
	}
	return lexer
}

func (highlightGenerator) Generate(job *Job) (*Artifact, error) {
	content, truncated, err := readLimited(job, job.Entry.Path, job.Limits.TextBytes)
	if err != nil {
		return nil, err
	}
	lexer := chroma.Coalesce(lexerFor(job.Entry.Name))
	source := fsutil.NormalizeTextContent(content)
	if lexer.Config().Name == "JSON" && !truncated {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(source), "", "  "); err == nil {
			source = buf.String()
		}
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return nil, fmt.Errorf("tokenise: %w", err)
	}
	style := styles.Get(job.Limits.HighlightStyle)

	limit := job.Limits.TextLines
	styled := [][]Segment{nil}
	cut := false
	n := 0
	for token := iterator(); token != chroma.EOF; token = iterator() {
		n++
		if n%highlightCheckEvery == 0 {
			if err := job.Check(); err != nil {
				return nil, err
			}
		}
		entry := style.Get(token.Type)
		seg := Segment{Bold: entry.Bold == chroma.Yes, Italic: entry.Italic == chroma.Yes}
		if entry.Colour.IsSet() {
			seg.Color = entry.Colour.String()
		}
		parts := strings.Split(token.Value, "\n")
		for i, part := range parts {
			if i > 0 {
				if len(styled) >= limit {
					cut = true
					break
				}
				styled = append(styled, nil)
			}
			part = strings.TrimSuffix(part, "\r")
			if part == "" {
				continue
			}
			seg.Text = textutil.SanitizeTerminalText(textutil.ExpandTabs(part, textutil.DefaultTabWidth))
			styled[len(styled)-1] = append(styled[len(styled)-1], seg)
		}
		if cut {
			break
		}
	}
	if len(styled) > 0 && len(styled[len(styled)-1]) == 0 {
		styled = styled[:len(styled)-1]
	}

	lines := make([]string, len(styled))
	for i, line := range styled {
		var b strings.Builder
		for _, seg := range line {
			b.WriteString(seg.Text)
		}
		lines[i] = b.String()
	}

	return &Artifact{
		Kind:      KindHighlighted,
		Title:     lexer.Config().Name,
		Lines:     lines,
		Styled:    styled,
		Truncated: truncated || cut,
	}, nil
}
