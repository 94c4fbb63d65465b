package state

// Action is the base interface for all state mutations
type Action interface{}

// ===== NAVIGATION ACTIONS =====

type MoveCursorAction struct {
	Delta int
}
type MoveTopAction struct{}
type MoveBottomAction struct{}
type PageAction struct {
	Pages int
}
type EnterDirectoryAction struct{}
type GoUpAction struct{}
type GoHomeAction struct{}
type JumpToAction struct {
	Path string
}
type JumpBackAction struct{}
type ToggleHiddenFilesAction struct{}
type RefreshAction struct{}

// DirectoryChangedAction carries a change notification from the watcher.
type DirectoryChangedAction struct {
	Dir string
}

// ===== MARK ACTIONS =====

type ToggleMarkAction struct {
	Advance bool // move the cursor down after toggling
}
type ClearMarksAction struct{}

// ===== SEARCH ACTIONS =====

type SearchUpdateAction struct {
	Pattern string
}
type SearchCommitAction struct{}
type SearchCancelAction struct{}
type NextMatchAction struct{}
type PrevMatchAction struct{}

// ===== FILE OPERATION ACTIONS =====
// These are executed by the application, not by the reducer.

type MkdirAction struct {
	Name string
}
type TouchAction struct {
	Name string
}
type RenameAction struct {
	Name string
}
type DeleteAction struct{}
type CutAction struct{}
type CopyAction struct{}
type PasteAction struct {
	Overwrite bool
}
type RestoreTrashAction struct{}
type ViewTrashAction struct{}

// ===== APPLICATION ACTIONS =====

type ResizeAction struct {
	Width  int
	Height int
}
type YankPathAction struct{}
type SuspendAction struct{}
type QuitAction struct{}          // q - leave without changing directory
type QuitAndChangeAction struct{} // Q - shell changes to the displayed directory
