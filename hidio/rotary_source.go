package hidio

import (
	"sync"
	"sync/atomic"

	evdev "github.com/gvalkov/golang-evdev"
	log "github.com/sirupsen/logrus"
)

// EvdevRotarySource is the reference RotarySource adapter: it reads
// EV_REL offsets from an evdev device node and accumulates them between
// ReadOffset calls, so the super-loop sees one net delta per tick no
// matter how fast the encoder turns.
type EvdevRotarySource struct {
	path string

	mu      sync.Mutex
	device  *evdev.InputDevice
	pending int64
}

// NewEvdevRotarySource constructs a rotary source over one device node.
// Opening happens lazily on the first ReadOffset call, the same
// open-on-demand posture as EvdevSource.
func NewEvdevRotarySource(path string) *EvdevRotarySource {
	return &EvdevRotarySource{path: path}
}

func (r *EvdevRotarySource) ensureOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device != nil {
		return nil
	}
	dev, err := evdev.Open(r.path)
	if err != nil {
		return err
	}
	r.device = dev
	go r.readLoop(dev)
	return nil
}

func (r *EvdevRotarySource) readLoop(dev *evdev.InputDevice) {
	for {
		events, err := dev.Read()
		if err != nil {
			log.Warnf("hidio: rotary read from %s failed: %v", r.path, err)
			return
		}
		for _, ev := range events {
			if ev.Type == evdev.EV_REL {
				atomic.AddInt64(&r.pending, int64(int32(ev.Value)))
			}
		}
	}
}

// ReadOffset returns the accumulated step offset since the previous call
// and resets the accumulator.
func (r *EvdevRotarySource) ReadOffset() (int, error) {
	if err := r.ensureOpen(); err != nil {
		return 0, err
	}
	offset := atomic.SwapInt64(&r.pending, 0)
	return int(offset), nil
}
