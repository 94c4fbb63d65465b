package render

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
	"github.com/kk-code-lab/mill/internal/preview"
	"github.com/kk-code-lab/mill/internal/textutil"
)

// Prompt is an in-progress line of user input shown in the footer.
type Prompt struct {
	Label  string
	Text   string
	Cursor int // rune offset into Text
}

// View is everything the renderer needs for one frame.
type View struct {
	Path        string
	Parent      []fsutil.Entry
	ParentFocus string // name of Path within Parent
	Entries     []fsutil.Entry
	Cursor      int
	Marked      func(path string) bool
	MarkCount   int

	Preview        *preview.Artifact
	PreviewPending bool

	ShowHidden  bool
	Searching   bool
	SearchText  string
	Staged      int
	StagedMove  bool
	Prompt      *Prompt
	HelpVisible bool

	Message string
	Err     error
	Flash   bool
	Now     time.Time
}

func (v *View) current() (fsutil.Entry, bool) {
	if v.Cursor < 0 || v.Cursor >= len(v.Entries) {
		return fsutil.Entry{}, false
	}
	return v.Entries[v.Cursor], true
}

func (v *View) isMarked(path string) bool {
	return v.Marked != nil && v.Marked(path)
}

// scaledImage remembers the last half-block scaling so unchanged frames skip it.
type scaledImage struct {
	src  *image.NRGBA
	w, h int
	out  *image.NRGBA
}

// Renderer handles all UI rendering
type Renderer struct {
	screen           tcell.Screen
	theme            ColorTheme
	runeWidthCache   [128]int // ASCII cache (0-127)
	runeWidthCacheMu sync.RWMutex
	runeWidthWide    sync.Map // For non-ASCII runes

	offsets map[string]int
	image   scaledImage
}

// NewRenderer creates a new renderer
func NewRenderer(screen tcell.Screen) *Renderer {
	return &Renderer{
		screen:  screen,
		theme:   GetColorTheme(),
		offsets: make(map[string]int),
	}
}

// Render draws the entire UI based on v
func (r *Renderer) Render(v *View) {
	r.screen.Clear()
	w, h := r.screen.Size()

	if v.HelpVisible {
		r.drawHelpOverlay(v, w, h)
		r.screen.Show()
		return
	}

	layout := r.computeLayout(w, h)

	r.drawHeader(v, w)
	if layout.parentWidth > 0 {
		r.drawParent(v, layout)
	}
	r.drawCurrent(v, layout)
	if layout.showPreview {
		r.drawPreviewPanel(v, layout)
	}
	r.drawStatusLine(v, w, h)

	r.screen.Show()
}

// drawHeader renders the top bar with title and breadcrumb
func (r *Renderer) drawHeader(v *View, w int) {
	headerStyle := tcell.StyleDefault.Background(r.theme.FooterBg).Foreground(r.theme.FooterFg)

	endX := r.drawTextLine(0, 0, w, "mill ", headerStyle)
	segments := formatBreadcrumbSegments(v.Path)
	if len(segments) > 0 && endX < w {
		lastIdx := len(segments) - 1
		if lastIdx > 0 {
			prefix := strings.Join(segments[:lastIdx], " › ") + " › "
			prefix = r.fitBreadcrumb(textutil.SanitizeTerminalText(prefix), w-endX)
			endX = r.drawTextLine(endX, 0, w-endX, prefix, headerStyle)
		}
		if endX < w {
			last := r.fitBreadcrumb(textutil.SanitizeTerminalText(segments[lastIdx]), w-endX)
			endX = r.drawTextLine(endX, 0, w-endX, last, headerStyle.Bold(true))
		}
	}
	r.fillRow(endX, w, 0, headerStyle)
}

// fitBreadcrumb trims the path from the left, keeping its most specific end.
func (r *Renderer) fitBreadcrumb(path string, width int) string {
	if width <= 0 {
		return ""
	}
	if r.measureTextWidth(path) <= width {
		return path
	}

	const ellipsis = "…"
	available := width - r.cachedRuneWidth('…')
	if available <= 0 {
		return ellipsis
	}

	runes := []rune(path)
	start := len(runes)
	used := 0
	for start > 0 {
		rw := r.cachedRuneWidth(runes[start-1])
		if used+rw > available {
			break
		}
		used += rw
		start--
	}
	return ellipsis + string(runes[start:])
}

func formatBreadcrumbSegments(path string) []string {
	if path == "" {
		return []string{"/"}
	}

	slashed := filepath.ToSlash(filepath.Clean(path))
	if slashed == "/" {
		return []string{"/"}
	}

	var segments []string
	if strings.HasPrefix(slashed, "/") {
		segments = append(segments, "/")
		slashed = strings.TrimPrefix(slashed, "/")
	}
	for _, part := range strings.Split(slashed, "/") {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// drawParent renders the left column with the parent directory's entries.
func (r *Renderer) drawParent(v *View, layout layoutMetrics) {
	baseStyle := tcell.StyleDefault.Background(r.theme.Background).Foreground(r.theme.ParentFg)
	width := layout.parentWidth
	rows := layout.listBottom - layout.listTop

	if len(v.Parent) == 0 {
		placeholder := " No parent directory"
		if filepath.Dir(v.Path) != v.Path {
			placeholder = " Parent is empty"
		}
		r.drawPadded(0, layout.listTop, width, placeholder, baseStyle.Dim(true))
		return
	}

	focus := 0
	for i, e := range v.Parent {
		if e.Name == v.ParentFocus {
			focus = i
			break
		}
	}
	start := focus - rows/2
	if start > len(v.Parent)-rows {
		start = len(v.Parent) - rows
	}
	if start < 0 {
		start = 0
	}

	for row := 0; row < rows && start+row < len(v.Parent); row++ {
		entry := v.Parent[start+row]
		style := r.entryStyle(baseStyle, entry)
		if entry.Name == v.ParentFocus {
			style = tcell.StyleDefault.Background(r.theme.ParentActiveBg).Foreground(r.theme.ParentActiveFg)
		}
		r.drawPadded(0, layout.listTop+row, width, " "+entryIcon(entry)+" "+entry.Name, style)
	}
}

// drawCurrent renders the middle column: the focused directory with cursor and marks.
func (r *Renderer) drawCurrent(v *View, layout layoutMetrics) {
	baseStyle := tcell.StyleDefault.Background(r.theme.Background).Foreground(r.theme.Foreground)
	startX := layout.currentStart
	width := layout.currentWidth
	rows := layout.listBottom - layout.listTop

	if len(v.Entries) == 0 {
		placeholder := " empty"
		if v.Searching {
			placeholder = " no matches"
		}
		r.drawPadded(startX, layout.listTop, width, placeholder, baseStyle.Dim(true))
		return
	}

	offset := scrollWindow(r.offsets[v.Path], v.Cursor, len(v.Entries), rows)
	r.offsets[v.Path] = offset

	for row := 0; row < rows && offset+row < len(v.Entries); row++ {
		idx := offset + row
		entry := v.Entries[idx]
		marked := v.isMarked(entry.Path)

		style := r.entryStyle(baseStyle, entry)
		if idx == v.Cursor {
			style = tcell.StyleDefault.Background(r.theme.SelectionBg).Foreground(r.theme.SelectionFg)
		}

		markCol := " "
		if marked {
			markCol = "*"
			if idx != v.Cursor {
				style = style.Foreground(r.theme.MarkFg)
			}
			style = style.Bold(true)
		}

		size := ""
		if !entry.IsDir() {
			size = textutil.FormatSize(entry.EffectiveSize())
		}
		line := r.formatRow(markCol+entryIcon(entry)+" "+entry.Name, size, width)
		r.drawPadded(startX, layout.listTop+row, width, line, style)
	}
}

// formatRow left-aligns name and right-aligns info within width cells.
func (r *Renderer) formatRow(name, info string, width int) string {
	if info == "" {
		return name
	}
	infoWidth := r.measureTextWidth(info) + 1
	nameWidth := width - infoWidth
	if nameWidth < 8 {
		return name
	}
	return textutil.Fit(textutil.Truncate(textutil.SanitizeTerminalText(name), nameWidth), nameWidth) + " " + info
}

func (r *Renderer) entryStyle(base tcell.Style, entry fsutil.Entry) tcell.Style {
	style := base.Foreground(r.theme.FileFg)
	switch {
	case entry.Dangling:
		style = base.Foreground(r.theme.DanglingFg)
	case entry.IsSymlink():
		style = base.Foreground(r.theme.SymlinkFg)
	case entry.IsDir():
		style = base.Foreground(r.theme.DirectoryFg)
	}
	if entry.IsHidden() {
		style = style.Foreground(r.theme.HiddenFg)
	}
	return style
}

func entryIcon(entry fsutil.Entry) string {
	switch {
	case entry.IsSymlink():
		return "@"
	case entry.Kind == fsutil.KindDirectory:
		return "/"
	case entry.Kind == fsutil.KindOther:
		return "="
	default:
		return " "
	}
}

// drawStatusLine renders the entry info row and the footer row.
func (r *Renderer) drawStatusLine(v *View, w, h int) {
	if h < footerRows+1 {
		return
	}
	normalStyle := tcell.StyleDefault.Background(r.theme.FooterBg).Foreground(r.theme.FooterFg)
	infoStyle := normalStyle
	if v.Flash {
		infoStyle = tcell.StyleDefault.Background(r.theme.FlashBg).Foreground(tcell.ColorBlack)
	}

	infoY := h - 2
	left := ""
	if entry, ok := v.current(); ok {
		left = formatEntryInfo(entry, v.Now)
	}
	right := formatCounters(v)
	r.drawPadded(0, infoY, w, r.formatRow(left, right, w), infoStyle)

	footerY := h - 1
	switch {
	case v.Prompt != nil:
		r.drawPrompt(v.Prompt, footerY, w)
	case v.Searching:
		r.drawPrompt(&Prompt{Label: "/", Text: v.SearchText, Cursor: len([]rune(v.SearchText))}, footerY, w)
	case v.Err != nil:
		r.drawPadded(0, footerY, w, " "+v.Err.Error(), normalStyle.Foreground(r.theme.ErrorFg).Bold(true))
	case v.Message != "":
		r.drawPadded(0, footerY, w, " "+v.Message, normalStyle)
	default:
		r.drawPadded(0, footerY, w, buildFooterHelpText(v), normalStyle.Dim(true))
	}
}

func (r *Renderer) drawPrompt(p *Prompt, y, w int) {
	style := tcell.StyleDefault.Background(r.theme.FooterBg).Foreground(r.theme.PromptFg)
	cursorStyle := style.Reverse(true)

	x := r.drawTextLine(0, y, w, p.Label, style.Bold(true))
	runes := []rune(textutil.SanitizeTerminalText(p.Text))
	cursor := max(0, min(p.Cursor, len(runes)))
	x = r.drawTextLine(x, y, w-x, string(runes[:cursor]), style)
	if x < w {
		under := ' '
		if cursor < len(runes) {
			under = runes[cursor]
			cursor++
		}
		r.screen.SetContent(x, y, under, nil, cursorStyle)
		x += max(1, r.cachedRuneWidth(under))
	}
	x = r.drawTextLine(x, y, w-x, string(runes[cursor:]), style)
	r.fillRow(x, w, y, style)
}

func formatCounters(v *View) string {
	var parts []string
	if v.MarkCount > 0 {
		parts = append(parts, fmt.Sprintf("%d marked", v.MarkCount))
	}
	if v.Staged > 0 {
		verb := "copy"
		if v.StagedMove {
			verb = "cut"
		}
		parts = append(parts, fmt.Sprintf("%d %s", v.Staged, verb))
	}
	if len(v.Entries) > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d", v.Cursor+1, len(v.Entries)))
	}
	return strings.Join(parts, " · ")
}
