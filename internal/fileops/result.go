package fileops

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// Outcome is the per-item status of a batch operation.
type Outcome int

const (
	Success Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "ok"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result reports what happened to one item.
type Result struct {
	Path    string
	Dest    string
	Outcome Outcome
	Err     error

	// CrossDevice is set when a move fell back to copy and remove.
	CrossDevice bool
}

func succeeded(path, dest string) Result {
	return Result{Path: path, Dest: dest, Outcome: Success}
}

func failed(path, dest string, err error) Result {
	return Result{Path: path, Dest: dest, Outcome: Failed, Err: err}
}

// Batch is the ordered result list of a multi-item operation. Item i
// corresponds to input i.
type Batch []Result

// Count returns how many items ended with o.
func (b Batch) Count(o Outcome) int {
	return lo.CountBy(b, func(r Result) bool { return r.Outcome == o })
}

// Failures returns only the failed items.
func (b Batch) Failures() Batch {
	return lo.Filter(b, func(r Result, _ int) bool { return r.Outcome == Failed })
}

// CrossDevice reports whether any item took the copy-and-remove path.
func (b Batch) CrossDevice() bool {
	return lo.SomeBy(b, func(r Result) bool { return r.CrossDevice })
}

// Err joins the errors of failed items, or returns nil.
func (b Batch) Err() error {
	return errors.Join(lo.FilterMap(b, func(r Result, _ int) (error, bool) {
		return r.Err, r.Outcome == Failed && r.Err != nil
	})...)
}

// Summary is a short status line such as "3 ok, 1 failed".
func (b Batch) Summary() string {
	s := fmt.Sprintf("%d ok", b.Count(Success))
	if n := b.Count(Skipped); n > 0 {
		s += fmt.Sprintf(", %d skipped", n)
	}
	if n := b.Count(Failed); n > 0 {
		s += fmt.Sprintf(", %d failed", n)
	}
	if b.CrossDevice() {
		s += " (cross-device copy)"
	}
	return s
}
