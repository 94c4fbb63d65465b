package render

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/kk-code-lab/mill/internal/textutil"
)

type helpOverlayEntry struct {
	keys string
	desc string
}

type helpOverlaySection struct {
	title   string
	entries []helpOverlayEntry
}

func buildHelpOverlayLines(v *View) []string {
	hiddenDesc := "Show hidden files"
	if v != nil && v.ShowHidden {
		hiddenDesc = "Hide hidden files"
	}

	sections := []helpOverlaySection{
		{
			title: "Navigation",
			entries: []helpOverlayEntry{
				{keys: "j/k ↑/↓", desc: "Move selection"},
				{keys: "l → ↵", desc: "Enter directory"},
				{keys: "h ← ⌫", desc: "Go to parent"},
				{keys: "g/G", desc: "First / last entry"},
				{keys: "PgUp/PgDn", desc: "Page up / down"},
				{keys: "~", desc: "Go home"},
				{keys: ":", desc: "Jump to path"},
				{keys: "'", desc: "Jump back"},
				{keys: ".", desc: hiddenDesc},
				{keys: "r", desc: "Refresh directory"},
			},
		},
		{
			title: "Marks & Search",
			entries: []helpOverlayEntry{
				{keys: "space", desc: "Toggle mark and advance"},
				{keys: "Esc", desc: "Clear marks"},
				{keys: "/", desc: "Search; ↵ marks all matches"},
				{keys: "n/N", desc: "Next / previous match"},
			},
		},
		{
			title: "File operations",
			entries: []helpOverlayEntry{
				{keys: "m", desc: "Make directory"},
				{keys: "t", desc: "Touch file"},
				{keys: "R", desc: "Rename"},
				{keys: "D", desc: "Delete (to trash when enabled)"},
				{keys: "x/c", desc: "Cut / copy marked"},
				{keys: "p/P", desc: "Paste / paste overwriting"},
				{keys: "u", desc: "Restore last trashed item"},
				{keys: "T", desc: "Open trash"},
				{keys: "y", desc: "Yank path to clipboard"},
			},
		},
		{
			title: "Exit",
			entries: []helpOverlayEntry{
				{keys: "q", desc: "Quit"},
				{keys: "Q", desc: "Quit and cd here"},
				{keys: "Ctrl+C", desc: "Quit immediately"},
				{keys: "?", desc: "Close this help"},
			},
		},
	}

	lines := make([]string, 0, 40)
	for i, section := range sections {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, section.title)
		for _, entry := range section.entries {
			lines = append(lines, formatHelpOverlayEntry(entry))
		}
	}
	return lines
}

func formatHelpOverlayEntry(entry helpOverlayEntry) string {
	key := textutil.Fit(textutil.SanitizeTerminalText(entry.keys), 12)
	return fmt.Sprintf("  %s %s", key, textutil.SanitizeTerminalText(entry.desc))
}

func (r *Renderer) drawHelpOverlay(v *View, w, h int) {
	baseStyle := tcell.StyleDefault.Background(r.theme.Background).Foreground(r.theme.Foreground)
	for y := 0; y < h; y++ {
		r.fillRow(0, w, y, baseStyle)
	}

	title := " Help "
	headerStyle := baseStyle.Background(r.theme.FooterBg).Foreground(r.theme.FooterFg).Bold(true)
	titleStart := 0
	if titleWidth := r.measureTextWidth(title); w > titleWidth {
		titleStart = (w - titleWidth) / 2
	}
	r.drawTextLine(titleStart, 0, w-titleStart, title, headerStyle)

	row := 2
	for _, line := range buildHelpOverlayLines(v) {
		if row >= h-1 {
			break
		}
		r.drawPadded(2, row, w-4, strings.TrimRight(line, " "), baseStyle)
		row++
	}

	if h > 0 {
		r.drawPadded(0, h-1, w, "? toggle · Esc/q close", headerStyle)
	}
}
