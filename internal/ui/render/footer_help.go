package render

import (
	"strings"
)

// buildFooterHelpText returns the contextual footer hint string with leading/trailing padding.
func buildFooterHelpText(v *View) string {
	parts := buildFooterHelpSegments(v)
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, "  ") + " "
}

// buildFooterHelpSegments assembles context-aware help hints for the footer.
func buildFooterHelpSegments(v *View) []string {
	if v == nil {
		return nil
	}

	segments := []string{"hjkl: move", "space: mark", "/: search"}
	switch {
	case v.Staged > 0:
		segments = append(segments, "p: paste", "P: overwrite")
	case v.MarkCount > 0:
		segments = append(segments, "x: cut", "c: copy", "D: delete", "Esc: unmark")
	default:
		segments = append(segments, "m: mkdir", "t: touch", "R: rename")
	}

	hidden := ".: show hidden"
	if v.ShowHidden {
		hidden = ".: hide hidden"
	}
	return append(segments, hidden, "?: help", "q: quit")
}
