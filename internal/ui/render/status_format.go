package render

import (
	"strings"
	"time"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
	"github.com/kk-code-lab/mill/internal/textutil"
)

// formatEntryInfo builds the " mode size mtime [→ target]" status text.
func formatEntryInfo(entry fsutil.Entry, now time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	parts := []string{" " + entry.Mode.String()}
	if !entry.IsDir() {
		parts = append(parts, textutil.FormatSize(entry.EffectiveSize()))
	}
	parts = append(parts, textutil.FormatTime(entry.EffectiveModified(), now))
	if entry.IsSymlink() {
		target := "→ " + entry.LinkTarget
		if entry.Dangling {
			target += " (dangling)"
		}
		parts = append(parts, target)
	}
	return textutil.SanitizeTerminalText(strings.Join(parts, "  "))
}
