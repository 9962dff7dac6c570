package hidio

import (
	"fmt"
	"sync"

	"github.com/ThomasT75/uinput"

	"github.com/czeppi/ergokb/reactions"
)

// EvdevSink is the reference Sink implementation: it creates a virtual
// uinput keyboard and a virtual uinput mouse and translates each
// reactions.Cmd into key/button/wheel calls on them.
type EvdevSink struct {
	mu       sync.Mutex
	keyboard uinput.Keyboard
	mouse    uinput.Mouse
}

// NewEvdevSink creates the two virtual devices under the given name.
func NewEvdevSink(name string) (*EvdevSink, error) {
	keyboard, err := uinput.CreateKeyboard("/dev/uinput", []byte(name+" keyboard"))
	if err != nil {
		return nil, fmt.Errorf("hidio: failed to create virtual keyboard: %w (is the user in the 'input' group?)", err)
	}
	mouse, err := uinput.CreateMouse("/dev/uinput", []byte(name+" mouse"))
	if err != nil {
		keyboard.Close()
		return nil, fmt.Errorf("hidio: failed to create virtual mouse: %w", err)
	}
	return &EvdevSink{keyboard: keyboard, mouse: mouse}, nil
}

// Execute translates one reaction command into the corresponding virtual
// device calls.
func (s *EvdevSink) Execute(cmd reactions.Cmd) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c := cmd.(type) {
	case reactions.Key:
		switch c.Kind {
		case reactions.KeyPress:
			return s.keyboard.KeyDown(int(c.Code))
		case reactions.KeyRelease:
			return s.keyboard.KeyUp(int(c.Code))
		case reactions.KeySend:
			return s.keyboard.KeyPress(int(c.Code))
		}
	case reactions.MouseButton:
		return s.executeMouseButton(c)
	case reactions.MouseWheel:
		return s.mouse.Wheel(false, int32(c.Offset))
	case reactions.Log:
		// The Log reaction is consumed by diagnostics.Recorder/Typist
		// upstream of the sink; nothing reaches the host device for it.
		return nil
	}
	return fmt.Errorf("hidio: unsupported reaction command %T", cmd)
}

func (s *EvdevSink) executeMouseButton(c reactions.MouseButton) error {
	press, release := s.mouse.LeftPress, s.mouse.LeftRelease
	switch c.Button {
	case 1:
		press, release = s.mouse.RightPress, s.mouse.RightRelease
	case 2:
		press, release = s.mouse.MiddlePress, s.mouse.MiddleRelease
	}

	switch c.Kind {
	case reactions.MousePress:
		return press()
	case reactions.MouseRelease:
		return release()
	case reactions.MouseClick:
		if err := press(); err != nil {
			return err
		}
		return release()
	}
	return fmt.Errorf("hidio: unsupported mouse button kind %d", c.Kind)
}

// MoveMouse applies a relative pointer delta. Pointer motion bypasses
// the reaction pipeline and lands here directly, since reactions.Cmd
// has no mouse-move variant.
func (s *EvdevSink) MoveMouse(dx, dy int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dx == 0 && dy == 0 {
		return nil
	}
	return s.mouse.Move(int32(dx), int32(dy))
}

// Close destroys both virtual devices.
func (s *EvdevSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.keyboard.Close()
	if e := s.mouse.Close(); e != nil && err == nil {
		err = e
	}
	return err
}
