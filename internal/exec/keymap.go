package exec

import (
	"context"

	"github.com/nbkit/nbkit/internal/document"
	"github.com/nbkit/nbkit/pkg/types"
)

// Command-mode key bindings. Each key maps to exactly one structural or
// execution operation; unrecognized keys are no-ops.
const (
	KeyUp          = "up"
	KeyDown        = "down"
	KeyRun         = "ctrl+enter"
	KeyRunAdvance  = "shift+enter"
	KeyInsertAbove = "a"
	KeyInsertBelow = "b"
	KeyCut         = "x"
	KeyCopy        = "c"
	KeyPaste       = "v"
	KeyToCode      = "y"
	KeyToMarkdown  = "m"
	KeyToRaw       = "r"
	KeySave        = "ctrl+s"
)

// Keyboard dispatches command-mode keys against the focused cell position.
// When append mode is enabled, navigating or advancing past the last cell
// creates a new cell below it.
type Keyboard struct {
	ctrl   *Controller
	doc    *document.Store
	append bool
	focus  int
}

// NewKeyboard creates a keyboard layer over the controller and document.
func NewKeyboard(ctrl *Controller, doc *document.Store, appendOnNavigate bool) *Keyboard {
	return &Keyboard{ctrl: ctrl, doc: doc, append: appendOnNavigate}
}

// Focus returns the focused cell position, clamped into the document.
func (k *Keyboard) Focus() int {
	k.clampFocus()
	return k.focus
}

// SetFocus moves focus to position i.
func (k *Keyboard) SetFocus(i int) {
	k.focus = i
	k.clampFocus()
}

// HandleKey executes the operation bound to key. Unbound keys do nothing.
func (k *Keyboard) HandleKey(ctx context.Context, key string) error {
	k.clampFocus()
	switch key {
	case KeyUp:
		if k.focus > 0 {
			k.focus--
		}
	case KeyDown:
		k.advance()
	case KeyRun:
		return k.runFocused()
	case KeyRunAdvance:
		if err := k.runFocused(); err != nil {
			return err
		}
		k.advance()
	case KeyInsertAbove:
		k.doc.InsertAbove(k.focus)
	case KeyInsertBelow:
		k.doc.InsertBelow(k.focus)
		k.focus++
	case KeyCut:
		k.doc.Cut(k.focus)
		k.clampFocus()
	case KeyCopy:
		k.doc.Copy(k.focus)
	case KeyPaste:
		k.doc.Paste(k.focus)
		k.focus++
	case KeyToCode:
		k.doc.SetCellType(k.focus, types.CellTypeCode)
	case KeyToMarkdown:
		k.doc.SetCellType(k.focus, types.CellTypeMarkdown)
	case KeyToRaw:
		k.doc.SetCellType(k.focus, types.CellTypeRaw)
	case KeySave:
		return k.doc.Save(ctx)
	}
	return nil
}

// advance moves focus down one cell, appending a new cell when moving past
// the last one with append mode enabled.
func (k *Keyboard) advance() {
	last := k.doc.Len() - 1
	if k.focus < last {
		k.focus++
		return
	}
	if k.append {
		k.doc.InsertBelow(last)
		k.focus = last + 1
	}
}

func (k *Keyboard) runFocused() error {
	cell, ok := k.doc.CellAt(k.focus)
	if !ok || cell.CellType != types.CellTypeCode {
		return nil
	}
	return k.ctrl.SubmitCell(cell.Source, cell.ID)
}

func (k *Keyboard) clampFocus() {
	if k.focus < 0 {
		k.focus = 0
	}
	if max := k.doc.Len() - 1; k.focus > max && max >= 0 {
		k.focus = max
	}
}
