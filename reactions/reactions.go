// Package reactions defines the reaction-command data model: the atomic,
// ordered HID output instructions the virtual keyboard emits.
package reactions

import (
	"fmt"

	"github.com/czeppi/ergokb/vkey"
)

// KeyCmdKind distinguishes press/release/send for a Key command.
type KeyCmdKind int

const (
	KeyRelease KeyCmdKind = iota
	KeyPress
	KeySend
)

func (k KeyCmdKind) String() string {
	switch k {
	case KeyPress:
		return "press"
	case KeyRelease:
		return "release"
	case KeySend:
		return "send"
	default:
		return "???"
	}
}

// MouseButtonKind distinguishes press/release/click for a MouseButton command.
type MouseButtonKind int

const (
	MouseRelease MouseButtonKind = iota
	MousePress
	MouseClick
)

// Cmd is the common interface implemented by every reaction-command
// variant. It is a closed set; callers type-switch on it.
type Cmd interface {
	isCmd()
	String() string
}

// Key is a keyboard press/release/send instruction.
type Key struct {
	Kind KeyCmdKind
	Code vkey.KeyCode
}

func (Key) isCmd() {}
func (c Key) String() string {
	return fmt.Sprintf("%s(%d)", c.Kind, c.Code)
}

// MouseButton is a mouse button press/release/click instruction.
type MouseButton struct {
	Button int
	Kind   MouseButtonKind
}

func (MouseButton) isCmd() {}
func (c MouseButton) String() string {
	return fmt.Sprintf("mouse-button(%d)", c.Button)
}

// MouseWheel scrolls by a signed offset (notches).
type MouseWheel struct {
	Offset int
}

func (MouseWheel) isCmd() {}
func (c MouseWheel) String() string {
	return fmt.Sprintf("mouse-wheel(%d)", c.Offset)
}

// Log requests a diagnostic dump (see diagnostics.Recorder).
type Log struct{}

func (Log) isCmd() {}
func (Log) String() string {
	return "log"
}

// Equal reports whether two commands are the same variant with the same
// fields, compared field by field.
func Equal(a, b Cmd) bool {
	switch av := a.(type) {
	case Key:
		bv, ok := b.(Key)
		return ok && av.Kind == bv.Kind && av.Code == bv.Code
	case MouseButton:
		bv, ok := b.(MouseButton)
		return ok && av.Button == bv.Button && av.Kind == bv.Kind
	case MouseWheel:
		bv, ok := b.(MouseWheel)
		return ok && av.Offset == bv.Offset
	case Log:
		_, ok := b.(Log)
		return ok
	default:
		return false
	}
}

// OneKeyReactions is the immutable pair of reaction sequences a layer
// binds to one virtual key: what to emit on press, and what to emit on
// release.
type OneKeyReactions struct {
	OnPress   []Cmd
	OnRelease []Cmd
}

// Layer maps a virtual key serial to its reactions. A key absent from
// the map means "no reaction".
type Layer map[vkey.Serial]OneKeyReactions
