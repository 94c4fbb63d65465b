package state

import "github.com/mitchellh/go-homedir"

// Reducer applies navigation actions to a Navigator. Actions it does not own
// (file operations, quitting) are reported as unhandled.
type Reducer struct {
	nav        *Navigator
	pageHeight int
}

// NewReducer wraps nav.
func NewReducer(nav *Navigator) *Reducer {
	return &Reducer{nav: nav, pageHeight: 20}
}

// Navigator returns the wrapped navigator.
func (r *Reducer) Navigator() *Navigator {
	return r.nav
}

// Reduce applies action. handled is false for actions owned by the caller.
func (r *Reducer) Reduce(action Action) (handled bool, err error) {
	nav := r.nav
	switch a := action.(type) {
	case MoveCursorAction:
		nav.MoveCursor(a.Delta)
	case MoveTopAction:
		nav.Top()
	case MoveBottomAction:
		nav.Bottom()
	case PageAction:
		nav.MoveCursor(a.Pages * r.pageHeight)
	case EnterDirectoryAction:
		return true, nav.Enter()
	case GoUpAction:
		return true, nav.Leave()
	case GoHomeAction:
		home, err := homedir.Dir()
		if err != nil {
			return true, err
		}
		return true, nav.JumpTo(home)
	case JumpToAction:
		return true, nav.JumpTo(a.Path)
	case JumpBackAction:
		return true, nav.JumpBack()
	case ToggleHiddenFilesAction:
		nav.ToggleHidden()
	case RefreshAction:
		return true, nav.Refresh()
	case DirectoryChangedAction:
		return true, nav.DirectoryChanged(a.Dir)
	case ToggleMarkAction:
		nav.ToggleMark()
		if a.Advance {
			nav.MoveCursor(1)
		}
	case ClearMarksAction:
		nav.ClearMarks()
	case SearchUpdateAction:
		nav.SearchUpdate(a.Pattern)
	case SearchCommitAction:
		nav.SearchCommit()
	case SearchCancelAction:
		nav.SearchCancel()
	case NextMatchAction:
		nav.NextMatch()
	case PrevMatchAction:
		nav.PrevMatch()
	case ResizeAction:
		if a.Height > 4 {
			r.pageHeight = a.Height - 4
		}
	default:
		return false, nil
	}
	return true, nil
}
