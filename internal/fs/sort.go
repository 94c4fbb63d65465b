package fs

import (
	"slices"
	"strings"

	"github.com/maruel/natural"
)

// Compare orders entries directories first, then by case-insensitive name
// with natural number ordering. Ties fall back to the raw name so the order
// is total.
func Compare(a, b Entry) int {
	aDir, bDir := a.IsDir(), b.IsDir()
	if aDir != bDir {
		if aDir {
			return -1
		}
		return 1
	}

	la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if la != lb {
		if natural.Less(la, lb) {
			return -1
		}
		if natural.Less(lb, la) {
			return 1
		}
	}
	return strings.Compare(a.Name, b.Name)
}

// SortEntries sorts entries in place with Compare.
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, Compare)
}
