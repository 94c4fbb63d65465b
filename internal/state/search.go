package state

import (
	"strings"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

// search is the incremental filter state. While active the view holds only
// entries whose names contain pattern, ignoring case.
type search struct {
	active  bool
	pattern string
	origin  string
}

func (s search) filter(entries []fsutil.Entry) []fsutil.Entry {
	if s.pattern == "" {
		return entries
	}
	matches := make([]fsutil.Entry, 0, len(entries))
	for _, e := range entries {
		if matchesPattern(e.Name, s.pattern) {
			matches = append(matches, e)
		}
	}
	return matches
}

func matchesPattern(name, pattern string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(pattern))
}

// Searching reports whether an incremental search is active.
func (n *Navigator) Searching() bool { return n.search.active }

// SearchPattern is the pattern being typed.
func (n *Navigator) SearchPattern() string { return n.search.pattern }

// LastPattern is the most recently committed pattern.
func (n *Navigator) LastPattern() string { return n.lastPattern }

// SearchUpdate recomputes matches for pattern and snaps the cursor to the
// first one, or clears it when nothing matches.
func (n *Navigator) SearchUpdate(pattern string) {
	if !n.search.active {
		n.search = search{active: true, origin: n.currentName()}
	}
	n.search.pattern = pattern
	n.view = n.search.filter(n.full)
	n.MoveTo(0)
}

// SearchCommit marks every match, restores the full view with the cursor
// on the same entry, and returns how many entries were marked.
func (n *Navigator) SearchCommit() int {
	if !n.search.active {
		return 0
	}
	marked := 0
	if n.search.pattern != "" {
		for _, e := range n.view {
			n.marks.Insert(e.Path)
			marked++
		}
		n.lastPattern = n.search.pattern
	}
	focus := n.currentName()
	if focus == "" {
		focus = n.search.origin
	}
	n.search = search{}
	n.rebuild(focus)
	return marked
}

// SearchCancel leaves search without marking and returns the cursor to
// where it was when the search started.
func (n *Navigator) SearchCancel() {
	if !n.search.active {
		return
	}
	origin := n.search.origin
	n.search = search{}
	n.rebuild(origin)
}

// NextMatch moves to the next entry matching the last committed pattern,
// wrapping around. It reports whether a match was found.
func (n *Navigator) NextMatch() bool {
	return n.stepMatch(1)
}

// PrevMatch is NextMatch in reverse.
func (n *Navigator) PrevMatch() bool {
	return n.stepMatch(-1)
}

func (n *Navigator) stepMatch(dir int) bool {
	if n.lastPattern == "" || len(n.view) == 0 {
		return false
	}
	count := len(n.view)
	start := max(n.cursor, 0)
	for step := 1; step <= count; step++ {
		i := ((start+dir*step)%count + count) % count
		if matchesPattern(n.view[i].Name, n.lastPattern) {
			n.MoveTo(i)
			return true
		}
	}
	return false
}
