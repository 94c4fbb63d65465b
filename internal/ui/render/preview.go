package render

import (
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gdamore/tcell/v2"

	"github.com/kk-code-lab/mill/internal/preview"
	"github.com/kk-code-lab/mill/internal/textutil"
)

const previewInnerPadding = 1

func (r *Renderer) drawPreviewPanel(v *View, layout layoutMetrics) {
	startX := layout.previewStart + previewInnerPadding
	width := layout.previewWidth - previewInnerPadding
	if width <= 0 {
		return
	}
	baseStyle := tcell.StyleDefault.Background(r.theme.PreviewBg).Foreground(r.theme.PreviewFg)
	y := layout.listTop
	bottom := layout.listBottom

	artifact := v.Preview
	if artifact == nil {
		if v.PreviewPending {
			r.drawPadded(startX, y, width, "loading…", baseStyle.Foreground(r.theme.SymlinkFg).Bold(true))
		}
		return
	}

	line := func(text string, style tcell.Style) bool {
		if y >= bottom {
			return false
		}
		r.drawPadded(startX, y, width, text, style)
		y++
		return true
	}

	if artifact.Title != "" {
		line(artifact.Title, baseStyle.Foreground(r.theme.PreviewTitleFg).Bold(true))
	}
	for _, field := range artifact.Fields {
		if y >= bottom {
			return
		}
		x := r.drawTextLine(startX, y, width, field.Label+": ", baseStyle.Foreground(r.theme.FieldLabelFg))
		r.drawPadded(x, y, startX+width-x, field.Value, baseStyle)
		y++
	}
	if (artifact.Title != "" || len(artifact.Fields) > 0) && y < bottom {
		y++
	}

	overflow := false
	switch artifact.Kind {
	case preview.KindError:
		msg := "preview failed"
		if artifact.Err != nil {
			msg = artifact.Err.Error()
		}
		line(msg, baseStyle.Foreground(r.theme.ErrorFg))
	case preview.KindImage:
		if artifact.Image != nil {
			y = r.drawImage(artifact, startX, y, width, bottom-y)
		}
	case preview.KindHighlighted:
		for _, segments := range artifact.Styled {
			if y >= bottom {
				overflow = true
				break
			}
			r.drawSegments(startX, y, width, segments, baseStyle)
			y++
		}
	default:
		dirListing := artifact.Generator == "directory"
		for _, text := range artifact.Lines {
			style := baseStyle
			if dirListing && strings.HasSuffix(text, "/") {
				style = baseStyle.Foreground(r.theme.DirectoryFg)
			}
			if !line(text, style) {
				overflow = true
				break
			}
		}
	}

	if artifact.Truncated && !overflow {
		line("… truncated", baseStyle.Dim(true))
	}
}

func (r *Renderer) drawSegments(startX, y, width int, segments []preview.Segment, base tcell.Style) {
	x := startX
	limit := startX + width
	for _, seg := range segments {
		if x >= limit {
			break
		}
		style := base
		if seg.Color != "" {
			style = style.Foreground(tcell.GetColor(seg.Color))
		}
		if seg.Bold {
			style = style.Bold(true)
		}
		if seg.Italic {
			style = style.Italic(true)
		}
		text := textutil.SanitizeTerminalText(textutil.ExpandTabs(seg.Text, textutil.DefaultTabWidth))
		x = r.drawTextLine(x, y, limit-x, text, style)
	}
	r.fillRow(x, limit, y, base)
}

// drawImage paints the artifact with half-block cells: every cell shows two
// vertically stacked pixels, the upper as foreground and the lower as background.
func (r *Renderer) drawImage(artifact *preview.Artifact, startX, y, width, rows int) int {
	if width <= 0 || rows <= 0 {
		return y
	}
	img := r.scaleImage(artifact, width, rows*2)
	bounds := img.Bounds()
	for cy := 0; cy*2 < bounds.Dy(); cy++ {
		for cx := 0; cx < bounds.Dx(); cx++ {
			top := img.NRGBAAt(bounds.Min.X+cx, bounds.Min.Y+cy*2)
			style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B)))
			if py := cy*2 + 1; py < bounds.Dy() {
				bottom := img.NRGBAAt(bounds.Min.X+cx, bounds.Min.Y+py)
				style = style.Background(tcell.NewRGBColor(int32(bottom.R), int32(bottom.G), int32(bottom.B)))
			}
			r.screen.SetContent(startX+cx, y+cy, '▀', nil, style)
		}
	}
	return y + (bounds.Dy()+1)/2
}

func (r *Renderer) scaleImage(artifact *preview.Artifact, w, h int) *image.NRGBA {
	cached := r.image
	if cached.src == artifact.Image && cached.w == w && cached.h == h && cached.out != nil {
		return cached.out
	}
	out := imaging.Fit(artifact.Image, w, h, imaging.Box)
	r.image = scaledImage{src: artifact.Image, w: w, h: h, out: out}
	return out
}
