package render

type layoutMetrics struct {
	parentWidth  int
	currentStart int
	currentWidth int
	previewStart int
	previewWidth int
	showPreview  bool
	listTop      int
	listBottom   int // exclusive
}

const (
	minCurrentWidth         = 20
	minPreviewPanelWidth    = 24
	minPreviewTerminalWidth = 60
	currentWidthRatio       = 0.35
	columnSeparatorWidth    = 1
	footerRows              = 2
)

func (r *Renderer) computeLayout(w, h int) layoutMetrics {
	if w < 0 {
		w = 0
	}
	metrics := layoutMetrics{listTop: 1, listBottom: h - footerRows}
	if metrics.listBottom < metrics.listTop {
		metrics.listBottom = metrics.listTop
	}

	metrics.parentWidth = parentWidthForWidth(w)
	metrics.currentStart = metrics.parentWidth
	if metrics.parentWidth > 0 {
		metrics.currentStart += columnSeparatorWidth
	}
	contentWidth := w - metrics.currentStart
	if contentWidth < 0 {
		contentWidth = 0
	}
	metrics.currentWidth = contentWidth
	metrics.previewStart = w

	if w < minPreviewTerminalWidth {
		return metrics
	}

	current := int(float64(w)*currentWidthRatio + 0.5)
	if current < minCurrentWidth {
		current = minCurrentWidth
	}
	previewWidth := contentWidth - current - columnSeparatorWidth
	if previewWidth < minPreviewPanelWidth {
		return metrics
	}

	metrics.showPreview = true
	metrics.currentWidth = current
	metrics.previewStart = metrics.currentStart + current + columnSeparatorWidth
	metrics.previewWidth = previewWidth
	return metrics
}

func parentWidthForWidth(w int) int {
	switch {
	case w >= 150:
		return 28
	case w >= 120:
		return 24
	case w >= 100:
		return 20
	case w >= 80:
		return 16
	case w >= 65:
		return 12
	case w >= 52:
		return 10
	default:
		return 0
	}
}

// scrollWindow returns the first row to show so that cursor stays visible,
// moving the previous offset as little as possible.
func scrollWindow(prev, cursor, count, rows int) int {
	if rows <= 0 || count <= rows {
		return 0
	}
	start := prev
	if cursor < start {
		start = cursor
	}
	if cursor >= start+rows {
		start = cursor - rows + 1
	}
	if start > count-rows {
		start = count - rows
	}
	if start < 0 {
		start = 0
	}
	return start
}
