package textutil

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatSize renders a byte count for the listing columns.
func FormatSize(n int64) string {
	if n < 0 {
		return "?"
	}
	return humanize.IBytes(uint64(n))
}

// FormatTime renders modification times relative to now for recent files.
func FormatTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.Sub(t) < 7*24*time.Hour && !t.After(now) {
		return humanize.RelTime(t, now, "ago", "from now")
	}
	return t.Format("2006-01-02 15:04")
}
