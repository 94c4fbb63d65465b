package input

import "unicode"

// PromptKind identifies what a committed prompt line is used for.
type PromptKind int

const (
	PromptNone PromptKind = iota
	PromptSearch
	PromptMkdir
	PromptTouch
	PromptRename
	PromptJump
)

func (k PromptKind) label() string {
	switch k {
	case PromptSearch:
		return "/"
	case PromptMkdir:
		return "mkdir: "
	case PromptTouch:
		return "touch: "
	case PromptRename:
		return "rename: "
	case PromptJump:
		return "cd: "
	default:
		return ""
	}
}

// lineEditor is a single-line text buffer with a cursor.
type lineEditor struct {
	kind   PromptKind
	text   []rune
	cursor int
}

func newLineEditor(kind PromptKind, initial string) *lineEditor {
	text := []rune(initial)
	return &lineEditor{kind: kind, text: text, cursor: len(text)}
}

func (e *lineEditor) String() string { return string(e.text) }

func (e *lineEditor) insert(r rune) {
	e.text = append(e.text, 0)
	copy(e.text[e.cursor+1:], e.text[e.cursor:])
	e.text[e.cursor] = r
	e.cursor++
}

func (e *lineEditor) backspace() bool {
	if e.cursor == 0 {
		return false
	}
	e.text = append(e.text[:e.cursor-1], e.text[e.cursor:]...)
	e.cursor--
	return true
}

func (e *lineEditor) deleteForward() bool {
	if e.cursor >= len(e.text) {
		return false
	}
	e.text = append(e.text[:e.cursor], e.text[e.cursor+1:]...)
	return true
}

// deleteWord removes the word before the cursor along with trailing spaces.
func (e *lineEditor) deleteWord() bool {
	start := e.cursor
	for start > 0 && unicode.IsSpace(e.text[start-1]) {
		start--
	}
	for start > 0 && !unicode.IsSpace(e.text[start-1]) {
		start--
	}
	if start == e.cursor {
		return false
	}
	e.text = append(e.text[:start], e.text[e.cursor:]...)
	e.cursor = start
	return true
}

func (e *lineEditor) clear() bool {
	if len(e.text) == 0 {
		return false
	}
	e.text = e.text[:0]
	e.cursor = 0
	return true
}

func (e *lineEditor) move(delta int) {
	e.cursor = max(0, min(len(e.text), e.cursor+delta))
}
