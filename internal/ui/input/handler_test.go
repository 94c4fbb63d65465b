package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gdamore/tcell/v2"

	statepkg "github.com/kk-code-lab/mill/internal/state"
	"github.com/kk-code-lab/mill/internal/store"
)

func drain(ch chan statepkg.Action) []statepkg.Action {
	var out []statepkg.Action
	for {
		select {
		case a := <-ch:
			out = append(out, a)
		default:
			return out
		}
	}
}

func key(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func typeText(h *InputHandler, text string) {
	for _, r := range text {
		h.ProcessEvent(runeKey(r))
	}
}

func TestNormalModeKeyBindings(t *testing.T) {
	tests := []struct {
		name  string
		event *tcell.EventKey
		want  statepkg.Action
	}{
		{"j moves down", runeKey('j'), statepkg.MoveCursorAction{Delta: 1}},
		{"up arrow moves up", key(tcell.KeyUp), statepkg.MoveCursorAction{Delta: -1}},
		{"enter descends", key(tcell.KeyEnter), statepkg.EnterDirectoryAction{}},
		{"backspace ascends", key(tcell.KeyBackspace2), statepkg.GoUpAction{}},
		{"page down", key(tcell.KeyPgDn), statepkg.PageAction{Pages: 1}},
		{"G jumps to bottom", runeKey('G'), statepkg.MoveBottomAction{}},
		{"space marks and advances", runeKey(' '), statepkg.ToggleMarkAction{Advance: true}},
		{"escape clears marks", key(tcell.KeyEscape), statepkg.ClearMarksAction{}},
		{"D deletes", runeKey('D'), statepkg.DeleteAction{}},
		{"x cuts", runeKey('x'), statepkg.CutAction{}},
		{"c copies", runeKey('c'), statepkg.CopyAction{}},
		{"p pastes", runeKey('p'), statepkg.PasteAction{}},
		{"P pastes overwriting", runeKey('P'), statepkg.PasteAction{Overwrite: true}},
		{"u restores trash", runeKey('u'), statepkg.RestoreTrashAction{}},
		{"quote jumps back", runeKey('\''), statepkg.JumpBackAction{}},
		{"dot toggles hidden", runeKey('.'), statepkg.ToggleHiddenFilesAction{}},
		{"n next match", runeKey('n'), statepkg.NextMatchAction{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan statepkg.Action, 4)
			h := NewInputHandler(ch)
			if !h.ProcessEvent(tt.event) {
				t.Fatalf("expected handler to keep running")
			}
			got := drain(ch)
			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("expected [%#v], got %#v", tt.want, got)
			}
		})
	}
}

func TestQuitKeysStopTheLoop(t *testing.T) {
	for _, tc := range []struct {
		event *tcell.EventKey
		want  statepkg.Action
	}{
		{runeKey('q'), statepkg.QuitAction{}},
		{runeKey('Q'), statepkg.QuitAndChangeAction{}},
		{key(tcell.KeyCtrlC), statepkg.QuitAction{}},
	} {
		ch := make(chan statepkg.Action, 1)
		h := NewInputHandler(ch)
		if h.ProcessEvent(tc.event) {
			t.Fatalf("expected %v to stop the loop", tc.event.Name())
		}
		if got := <-ch; got != tc.want {
			t.Fatalf("expected %#v, got %#v", tc.want, got)
		}
	}
}

func TestSearchPromptStreamsPatternAndCommits(t *testing.T) {
	ch := make(chan statepkg.Action, 16)
	h := NewInputHandler(ch)

	h.ProcessEvent(runeKey('/'))
	typeText(h, "ab")
	h.ProcessEvent(key(tcell.KeyBackspace2))
	h.ProcessEvent(key(tcell.KeyEnter))

	want := []statepkg.Action{
		statepkg.SearchUpdateAction{Pattern: ""},
		statepkg.SearchUpdateAction{Pattern: "a"},
		statepkg.SearchUpdateAction{Pattern: "ab"},
		statepkg.SearchUpdateAction{Pattern: "a"},
		statepkg.SearchCommitAction{},
	}
	got := drain(ch)
	if len(got) != len(want) {
		t.Fatalf("expected %d actions, got %#v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("action %d: expected %#v, got %#v", i, want[i], got[i])
		}
	}
	if h.PromptKind() != PromptNone {
		t.Fatalf("expected prompt closed after commit")
	}
}

func TestSearchPromptEscapeCancels(t *testing.T) {
	ch := make(chan statepkg.Action, 8)
	h := NewInputHandler(ch)

	h.ProcessEvent(runeKey('/'))
	typeText(h, "q")
	h.ProcessEvent(key(tcell.KeyEscape))

	got := drain(ch)
	if last := got[len(got)-1]; last != (statepkg.SearchCancelAction{}) {
		t.Fatalf("expected SearchCancelAction last, got %#v", got)
	}
	for _, a := range got {
		if _, ok := a.(statepkg.QuitAction); ok {
			t.Fatalf("typing q into a prompt must not quit")
		}
	}
}

func TestMkdirPromptCommitsName(t *testing.T) {
	ch := make(chan statepkg.Action, 4)
	h := NewInputHandler(ch)

	h.ProcessEvent(runeKey('m'))
	if label, _, _, ok := h.Prompt(); !ok || label != "mkdir: " {
		t.Fatalf("expected mkdir prompt, got %q ok=%v", label, ok)
	}
	typeText(h, "new dir")
	h.ProcessEvent(key(tcell.KeyCtrlW))
	typeText(h, "folder")
	h.ProcessEvent(key(tcell.KeyEnter))

	got := drain(ch)
	if len(got) != 1 || got[0] != (statepkg.MkdirAction{Name: "new folder"}) {
		t.Fatalf("expected MkdirAction{new folder}, got %#v", got)
	}
}

func TestEmptyPromptCommitsNothing(t *testing.T) {
	ch := make(chan statepkg.Action, 4)
	h := NewInputHandler(ch)

	h.ProcessEvent(runeKey('t'))
	h.ProcessEvent(key(tcell.KeyEnter))
	if got := drain(ch); len(got) != 0 {
		t.Fatalf("expected no action, got %#v", got)
	}
}

func TestRenamePromptStartsWithCurrentName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	nav := statepkg.NewNavigator(store.New(4, nil), nil, statepkg.Options{})
	if err := nav.Open(dir); err != nil {
		t.Fatalf("open: %v", err)
	}

	ch := make(chan statepkg.Action, 4)
	h := NewInputHandler(ch)
	h.SetNavigator(nav)

	h.ProcessEvent(runeKey('R'))
	_, text, cursor, ok := h.Prompt()
	if !ok || text != "old.txt" || cursor != len("old.txt") {
		t.Fatalf("expected prefilled rename prompt, got %q cursor=%d ok=%v", text, cursor, ok)
	}

	h.ProcessEvent(key(tcell.KeyHome))
	typeText(h, "very-")
	h.ProcessEvent(key(tcell.KeyEnter))
	got := drain(ch)
	if len(got) != 1 || got[0] != (statepkg.RenameAction{Name: "very-old.txt"}) {
		t.Fatalf("expected RenameAction, got %#v", got)
	}
}

func TestHelpOverlaySwallowsKeys(t *testing.T) {
	ch := make(chan statepkg.Action, 4)
	h := NewInputHandler(ch)

	h.ProcessEvent(runeKey('?'))
	if !h.HelpVisible() {
		t.Fatalf("expected help visible")
	}
	if !h.ProcessEvent(runeKey('q')) {
		t.Fatalf("q must close help, not quit")
	}
	if h.HelpVisible() {
		t.Fatalf("expected help hidden")
	}
	if got := drain(ch); len(got) != 0 {
		t.Fatalf("expected no actions while help visible, got %#v", got)
	}
}

func TestResizeEmitsAction(t *testing.T) {
	ch := make(chan statepkg.Action, 1)
	h := NewInputHandler(ch)
	h.ProcessEvent(tcell.NewEventResize(80, 24))
	if got := <-ch; got != (statepkg.ResizeAction{Width: 80, Height: 24}) {
		t.Fatalf("unexpected action %#v", got)
	}
}
