// Package vkey defines the virtual-key data model shared by the combo
// resolver (keygroup) and the tap/hold state machine (vkeyboard): the
// Simple/Mod/Layer key kinds plus the no-key sentinel.
package vkey

// PhysicalKeySerial identifies one physical switch on one half of the
// keyboard. Set membership is the only operation the core performs on it.
type PhysicalKeySerial string

// Serial identifies one virtual key. A finite universe, assigned by the
// layout configuration at construction time.
type Serial string

// NoKey is the sentinel serial naming the default layer.
const NoKey Serial = ""

// KeyCode is an opaque HID/evdev keycode, as looked up in the reaction
// table built by keyboardcreator.
type KeyCode uint16

// Kind distinguishes the three VirtualKey subtypes.
type Kind int

const (
	// KindSimple produces a single layer-defined reaction recipe.
	KindSimple Kind = iota
	// KindMod is a TapHold key whose hold-begin/hold-end emit a modifier
	// key press/release.
	KindMod
	// KindLayer is a TapHold key whose hold-begin/hold-end swaps the
	// active layer.
	KindLayer
)

// Def is the static, construction-time description of one virtual key:
// what keyboardcreator builds from the layout configuration and the
// runtime state machines consume read-only.
type Def struct {
	Serial Serial
	Kind   Kind

	// ModKeyCode is set when Kind == KindMod.
	ModKeyCode KeyCode

	// LayerName is set when Kind == KindLayer; it names the layer to
	// activate while held. vkeyboard does not read it: the Layer itself
	// reaches vkeyboard through the layerOf map keyboardcreator.Build
	// returns, keyed by the key's Serial.
	LayerName string
}

func (d Def) IsTapHold() bool {
	return d.Kind == KindMod || d.Kind == KindLayer
}

// Event is one virtual-key press/release edge: the output of keygroup and
// halfresolver (C3/C4), and the input vkeyboard (C6) consumes.
type Event struct {
	VKey    Serial
	Pressed bool
}
