package input

import (
	"unicode"

	"github.com/gdamore/tcell/v2"

	statepkg "github.com/kk-code-lab/mill/internal/state"
)

// InputHandler converts tcell events to Actions. It owns the transient UI
// modes (help overlay, prompts) that the navigator does not model.
type InputHandler struct {
	actionChan chan<- statepkg.Action
	nav        *statepkg.Navigator // read-only, for prompt defaults
	prompt     *lineEditor
	help       bool
}

// NewInputHandler creates a new input handler
func NewInputHandler(actionChan chan<- statepkg.Action) *InputHandler {
	return &InputHandler{actionChan: actionChan}
}

// SetNavigator sets the navigator consulted for context-dependent keys.
func (ih *InputHandler) SetNavigator(nav *statepkg.Navigator) {
	ih.nav = nav
}

// HelpVisible reports whether the help overlay is shown.
func (ih *InputHandler) HelpVisible() bool { return ih.help }

// Prompt returns the active prompt's label, text and cursor.
func (ih *InputHandler) Prompt() (label, text string, cursor int, ok bool) {
	if ih.prompt == nil {
		return "", "", 0, false
	}
	return ih.prompt.kind.label(), ih.prompt.String(), ih.prompt.cursor, true
}

// PromptKind returns the kind of the active prompt, or PromptNone.
func (ih *InputHandler) PromptKind() PromptKind {
	if ih.prompt == nil {
		return PromptNone
	}
	return ih.prompt.kind
}

// ProcessEvent converts a tcell event into an Action. It returns false once
// the user asked to quit.
func (ih *InputHandler) ProcessEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return ih.processKeyEvent(ev)
	case *tcell.EventResize:
		w, h := ev.Size()
		ih.actionChan <- statepkg.ResizeAction{Width: w, Height: h}
		return true
	default:
		return true
	}
}

func (ih *InputHandler) processKeyEvent(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyCtrlC {
		ih.actionChan <- statepkg.QuitAction{}
		return false
	}

	if ev.Key() == tcell.KeyCtrlZ {
		ih.actionChan <- statepkg.SuspendAction{}
		return true
	}

	if ih.help {
		switch ev.Key() {
		case tcell.KeyEscape:
			ih.help = false
		case tcell.KeyRune:
			if r := ev.Rune(); r == '?' || r == 'q' || r == 'Q' {
				ih.help = false
			}
		}
		return true
	}

	if ih.prompt != nil {
		ih.processPromptKey(ev)
		return true
	}

	switch ev.Key() {
	case tcell.KeyEscape:
		ih.actionChan <- statepkg.ClearMarksAction{}
	case tcell.KeyUp:
		ih.actionChan <- statepkg.MoveCursorAction{Delta: -1}
	case tcell.KeyDown:
		ih.actionChan <- statepkg.MoveCursorAction{Delta: 1}
	case tcell.KeyEnter, tcell.KeyRight:
		ih.actionChan <- statepkg.EnterDirectoryAction{}
	case tcell.KeyLeft, tcell.KeyBackspace, tcell.KeyBackspace2:
		ih.actionChan <- statepkg.GoUpAction{}
	case tcell.KeyPgUp:
		ih.actionChan <- statepkg.PageAction{Pages: -1}
	case tcell.KeyPgDn:
		ih.actionChan <- statepkg.PageAction{Pages: 1}
	case tcell.KeyHome:
		ih.actionChan <- statepkg.MoveTopAction{}
	case tcell.KeyEnd:
		ih.actionChan <- statepkg.MoveBottomAction{}
	case tcell.KeyRune:
		return ih.processRune(ev)
	}
	return true
}

func (ih *InputHandler) processRune(ev *tcell.EventKey) bool {
	r := ev.Rune()
	if ev.Modifiers()&tcell.ModShift != 0 {
		// Normalize shifted alphabetic runes to reflect user intent (Shift+A => 'A')
		r = unicode.ToUpper(r)
	}

	switch r {
	case 'q':
		ih.actionChan <- statepkg.QuitAction{}
		return false
	case 'Q':
		ih.actionChan <- statepkg.QuitAndChangeAction{}
		return false
	case '?':
		ih.help = true

	case 'k':
		ih.actionChan <- statepkg.MoveCursorAction{Delta: -1}
	case 'j':
		ih.actionChan <- statepkg.MoveCursorAction{Delta: 1}
	case 'l':
		ih.actionChan <- statepkg.EnterDirectoryAction{}
	case 'h':
		ih.actionChan <- statepkg.GoUpAction{}
	case 'g':
		ih.actionChan <- statepkg.MoveTopAction{}
	case 'G':
		ih.actionChan <- statepkg.MoveBottomAction{}
	case '~':
		ih.actionChan <- statepkg.GoHomeAction{}
	case '\'', '-':
		ih.actionChan <- statepkg.JumpBackAction{}
	case '.':
		ih.actionChan <- statepkg.ToggleHiddenFilesAction{}
	case 'r':
		ih.actionChan <- statepkg.RefreshAction{}

	case ' ':
		ih.actionChan <- statepkg.ToggleMarkAction{Advance: true}
	case '/':
		ih.prompt = newLineEditor(PromptSearch, "")
		ih.actionChan <- statepkg.SearchUpdateAction{Pattern: ""}
	case 'n':
		ih.actionChan <- statepkg.NextMatchAction{}
	case 'N':
		ih.actionChan <- statepkg.PrevMatchAction{}

	case ':':
		ih.prompt = newLineEditor(PromptJump, "")
	case 'm':
		ih.prompt = newLineEditor(PromptMkdir, "")
	case 't':
		ih.prompt = newLineEditor(PromptTouch, "")
	case 'R':
		if entry, ok := ih.currentEntryName(); ok {
			ih.prompt = newLineEditor(PromptRename, entry)
		}
	case 'D':
		ih.actionChan <- statepkg.DeleteAction{}
	case 'x':
		ih.actionChan <- statepkg.CutAction{}
	case 'c':
		ih.actionChan <- statepkg.CopyAction{}
	case 'p':
		ih.actionChan <- statepkg.PasteAction{}
	case 'P':
		ih.actionChan <- statepkg.PasteAction{Overwrite: true}
	case 'u':
		ih.actionChan <- statepkg.RestoreTrashAction{}
	case 'T':
		ih.actionChan <- statepkg.ViewTrashAction{}
	case 'y':
		ih.actionChan <- statepkg.YankPathAction{}
	}
	return true
}

func (ih *InputHandler) currentEntryName() (string, bool) {
	if ih.nav == nil {
		return "", false
	}
	entry, ok := ih.nav.Current()
	if !ok {
		return "", false
	}
	return entry.Name, true
}

func (ih *InputHandler) processPromptKey(ev *tcell.EventKey) {
	p := ih.prompt
	changed := false

	switch ev.Key() {
	case tcell.KeyEscape:
		ih.prompt = nil
		if p.kind == PromptSearch {
			ih.actionChan <- statepkg.SearchCancelAction{}
		}
		return
	case tcell.KeyEnter:
		ih.prompt = nil
		ih.commit(p)
		return
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(p.text) == 0 && p.kind == PromptSearch {
			ih.prompt = nil
			ih.actionChan <- statepkg.SearchCancelAction{}
			return
		}
		changed = p.backspace()
	case tcell.KeyDelete:
		changed = p.deleteForward()
	case tcell.KeyCtrlW:
		changed = p.deleteWord()
	case tcell.KeyCtrlU:
		changed = p.clear()
	case tcell.KeyLeft:
		p.move(-1)
	case tcell.KeyRight:
		p.move(1)
	case tcell.KeyHome, tcell.KeyCtrlA:
		p.move(-len(p.text))
	case tcell.KeyEnd, tcell.KeyCtrlE:
		p.move(len(p.text))
	case tcell.KeyRune:
		p.insert(ev.Rune())
		changed = true
	}

	if changed && p.kind == PromptSearch {
		ih.actionChan <- statepkg.SearchUpdateAction{Pattern: p.String()}
	}
}

func (ih *InputHandler) commit(p *lineEditor) {
	if p.kind == PromptSearch {
		ih.actionChan <- statepkg.SearchCommitAction{}
		return
	}
	text := p.String()
	if text == "" {
		return
	}
	switch p.kind {
	case PromptMkdir:
		ih.actionChan <- statepkg.MkdirAction{Name: text}
	case PromptTouch:
		ih.actionChan <- statepkg.TouchAction{Name: text}
	case PromptRename:
		ih.actionChan <- statepkg.RenameAction{Name: text}
	case PromptJump:
		ih.actionChan <- statepkg.JumpToAction{Path: text}
	}
}
