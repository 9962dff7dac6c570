// Package hidio defines the interfaces between the input engine and its
// peripherals: the physical-key sources feeding it and the HID sinks it
// drives. One concrete evdev/uinput adapter ships per interface so the
// engine can run on a stock Linux box; real firmware would supply its
// own implementations.
package hidio

import (
	"github.com/czeppi/ergokb/reactions"
	"github.com/czeppi/ergokb/vkey"
)

// PhysicalKeySource delivers, once per super-loop tick, the set of
// currently pressed physical switches on one half.
type PhysicalKeySource interface {
	// Pressed returns the switch serials currently down, already
	// debounced by the source.
	Pressed() (map[vkey.PhysicalKeySerial]struct{}, error)

	// Close releases any underlying device handles.
	Close() error
}

// RotarySource reads the rotary encoder once per tick and reports the
// signed step offset accumulated since the previous read.
type RotarySource interface {
	ReadOffset() (int, error)
}

// Sink executes one reaction command on the host side. Implementations
// translate each reactions.Cmd variant to the appropriate HID call;
// calls must stay well inside the tick budget.
type Sink interface {
	Execute(cmd reactions.Cmd) error

	// MoveMouse applies a relative pointer delta. Pointer motion comes
	// straight from the pointing sensor and the inter-half link, never
	// from a layer reaction, so it gets its own method rather than a
	// reactions.Cmd variant.
	MoveMouse(dx, dy int) error

	Close() error
}
