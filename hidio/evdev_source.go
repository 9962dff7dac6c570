package hidio

import (
	"fmt"
	"sync"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	log "github.com/sirupsen/logrus"

	"github.com/czeppi/ergokb/vkey"
)

// EvdevSource is the reference PhysicalKeySource adapter: it grabs one or
// more Linux evdev devices and reports the set of physical switches
// currently down, keyed by the serial names a config.Half.KeyCodes table
// assigns to each evdev keycode. Devices are opened lazily and retried
// from a ticker when absent or disconnected.
type EvdevSource struct {
	codeToSerial map[uint16]vkey.PhysicalKeySerial

	mu      sync.Mutex
	devices []*evdevDevice
	pressed map[vkey.PhysicalKeySerial]struct{}
}

type evdevDevice struct {
	path   string
	state  deviceState
	device *evdev.InputDevice
}

type deviceState int

const (
	stateNotOpen deviceState = iota
	stateOpenFailed
	stateOpen
)

// NewEvdevSource constructs a source that reads devicePaths (opened
// lazily and retried on failure) and reports switches named by codeToSerial.
func NewEvdevSource(devicePaths []string, codeToSerial map[uint16]vkey.PhysicalKeySerial) *EvdevSource {
	s := &EvdevSource{
		codeToSerial: codeToSerial,
		pressed:      map[vkey.PhysicalKeySerial]struct{}{},
	}
	for _, p := range devicePaths {
		s.devices = append(s.devices, &evdevDevice{path: p, state: stateNotOpen})
	}
	return s
}

// Run starts the background per-device read loops. It must be called
// once before Pressed is first consulted; it returns immediately and
// the reads happen on their own goroutines.
func (s *EvdevSource) Run() {
	for _, d := range s.devices {
		go s.readLoop(d)
	}
}

func (s *EvdevSource) readLoop(d *evdevDevice) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		if d.state != stateOpen {
			if err := s.openDevice(d); err != nil {
				if d.state == stateOpenFailed {
					log.Debugf("hidio: failed to open %s: %v", d.path, err)
				} else {
					log.Warnf("hidio: failed to open %s: %v", d.path, err)
				}
				d.state = stateOpenFailed
			}
		}
		<-ticker.C
	}
}

func (s *EvdevSource) openDevice(d *evdevDevice) error {
	log.Debugf("hidio: opening %s", d.path)
	dev, err := evdev.Open(d.path)
	if err != nil {
		return err
	}
	if err := dev.Grab(); err != nil {
		return err
	}
	d.device = dev
	d.state = stateOpen
	go s.readDevice(d)
	return nil
}

func (s *EvdevSource) readDevice(d *evdevDevice) {
	for {
		if d.state != stateOpen {
			return
		}
		events, err := d.device.Read()
		if err != nil {
			log.Warnf("hidio: read from %s failed: %v", d.path, err)
			d.state = stateNotOpen
			s.releaseAllFrom(d)
			return
		}
		for _, ev := range events {
			if ev.Type != evdev.EV_KEY {
				continue
			}
			if ev.Value != 0 && ev.Value != 1 {
				continue
			}
			serial, ok := s.codeToSerial[ev.Code]
			if !ok {
				continue
			}
			s.setPressed(serial, ev.Value == 1)
		}
	}
}

// releaseAllFrom clears this device's contribution when it disconnects,
// so a stuck physical key does not persist across a reconnect. The
// reference adapter has no per-device switch ownership tracking beyond
// the codeToSerial table, so a disconnect simply clears everything it
// could have set; disjoint devices sharing no codes make this safe.
func (s *EvdevSource) releaseAllFrom(d *evdevDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, serial := range s.codeToSerial {
		delete(s.pressed, serial)
	}
}

func (s *EvdevSource) setPressed(serial vkey.PhysicalKeySerial, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if down {
		s.pressed[serial] = struct{}{}
	} else {
		delete(s.pressed, serial)
	}
}

// Pressed returns a snapshot of the currently pressed physical switches.
func (s *EvdevSource) Pressed() (map[vkey.PhysicalKeySerial]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[vkey.PhysicalKeySerial]struct{}, len(s.pressed))
	for k := range s.pressed {
		out[k] = struct{}{}
	}
	return out, nil
}

// Close releases every grabbed device.
func (s *EvdevSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, d := range s.devices {
		if d.state != stateOpen || d.device == nil {
			continue
		}
		if err := d.device.Release(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("hidio: failed to release %s: %w", d.path, err)
		}
	}
	return firstErr
}
