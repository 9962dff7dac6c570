// Package link carries the inter-half stream the left half drains each
// tick: a sequence of items, each either a mouse-move delta or a
// virtual-key press event, delivered from the right half into the left
// half's pipeline ahead of the virtual keyboard. A real UART driver
// would implement Link; ChanLink is the in-process reference used by a
// single-binary build and by tests.
package link

import "github.com/czeppi/ergokb/vkey"

// MouseMove is a relative pointer delta reported by the right half's
// pointing sensor.
type MouseMove struct {
	DX, DY int
}

// Item is one thing the link delivers: exactly one of MouseMove or
// VKeyEvent is set.
type Item struct {
	Mouse *MouseMove
	VKey  *vkey.Event
}

// Link is what a transport adapter implements: the startup handshake and
// the framing are the adapter's responsibility; the pipeline only
// consumes whatever ReadItems drains.
type Link interface {
	// WaitForStart performs the link's startup handshake. Called once
	// before the super-loop begins polling.
	WaitForStart() error

	// ReadItems drains whatever has arrived since the last call,
	// without blocking; only WaitForStart may block, never the
	// per-tick hot path.
	ReadItems() ([]Item, error)
}

// ChanLink is an in-process reference Link: the right half's side of the
// pipeline (or a test) pushes items onto a channel; the left half drains
// it once per tick.
type ChanLink struct {
	items chan Item
}

// NewChanLink constructs a ChanLink with the given channel buffer depth.
func NewChanLink(buffer int) *ChanLink {
	return &ChanLink{items: make(chan Item, buffer)}
}

// WaitForStart is a no-op for the in-process link: there is no physical
// handshake to perform.
func (l *ChanLink) WaitForStart() error {
	return nil
}

// Send enqueues one item for the next ReadItems call. Used by the right-
// half side of an in-process wiring, or directly by tests.
func (l *ChanLink) Send(item Item) {
	l.items <- item
}

// ReadItems drains every item currently queued without blocking.
func (l *ChanLink) ReadItems() ([]Item, error) {
	var out []Item
	for {
		select {
		case item := <-l.items:
			out = append(out, item)
		default:
			return out, nil
		}
	}
}
