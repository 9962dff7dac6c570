// Package keygroup implements the per-finger combo resolver: it turns
// one finger's physical switches into a single virtual-key press/release
// stream, absorbing chords within a combo window.
package keygroup

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/czeppi/ergokb/vkey"
)

// DefaultComboTerm is the combo window length in ms when the config
// leaves it unset.
const DefaultComboTerm int64 = 50

// Serial identifies one key group (one finger).
type Serial string

// VKeyDef binds a virtual key to the set of physical switches that form
// its chord within this group.
type VKeyDef struct {
	Serial   vkey.Serial
	Switches []vkey.PhysicalKeySerial
}

// Event is one virtual-key press/release edge emitted by a Group; an alias
// of vkey.Event so halfresolver and vkeyboard can pass it through without
// a conversion.
type Event = vkey.Event

// Group is one finger's combo resolver.
type Group struct {
	serial    Serial
	comboTerm int64
	vkeys     []VKeyDef
	switchSet map[vkey.PhysicalKeySerial]struct{}

	pendingSet    map[vkey.PhysicalKeySerial]struct{}
	pendingSince  int64
	pendingActive bool
	// lastHeld is the pending switch set as observed on the previous
	// tick; comparing it against the current tick's pressedHere is how a
	// release during the combo window is detected (see updateIdle).
	lastHeld map[vkey.PhysicalKeySerial]struct{}

	committed   bool
	committedAt VKeyDef
}

// New validates the group's virtual-key table and constructs a Group. It
// rejects an empty switch-set, and any pair of distinct virtual keys
// whose equal-size switch-sets could tie at resolution time with no
// larger virtual key to disambiguate them.
func New(serial Serial, vkeys []VKeyDef, comboTerm int64) (*Group, error) {
	if comboTerm <= 0 {
		comboTerm = DefaultComboTerm
	}

	switchSet := map[vkey.PhysicalKeySerial]struct{}{}
	setKeys := make([]map[vkey.PhysicalKeySerial]struct{}, len(vkeys))
	for i, def := range vkeys {
		if len(def.Switches) == 0 {
			return nil, fmt.Errorf("keygroup %s: virtual key %s has no physical switches", serial, def.Serial)
		}
		setKeys[i] = toSet(def.Switches)
		for _, pkey := range def.Switches {
			switchSet[pkey] = struct{}{}
		}
	}

	// Two distinct virtual keys of equal switch-set size are only a real
	// resolution-time ambiguity if there is no larger virtual key in the
	// group that dominates every situation where both could match. A
	// disjoint equal-size pair is safe exactly when some larger def's
	// switch-set equals their union (e.g. UP={U}, DOWN={D}, MID={U,D}: MID
	// always wins first whenever both U and D are down, so UP and DOWN can
	// never actually tie). An overlapping (but not identical) equal-size
	// pair, or a disjoint pair with no covering def, is rejected.
	for i, a := range vkeys {
		for j, b := range vkeys {
			if i >= j || len(a.Switches) != len(b.Switches) {
				continue
			}
			if overlaps(setKeys[i], setKeys[j]) {
				return nil, fmt.Errorf(
					"keygroup %s: virtual keys %s and %s have overlapping equal-size switch sets (%d); chord resolution is ambiguous",
					serial, a.Serial, b.Serial, len(a.Switches))
			}
			union := unionSet(setKeys[i], setKeys[j])
			if !hasCoveringDef(vkeys, setKeys, union) {
				return nil, fmt.Errorf(
					"keygroup %s: virtual keys %s and %s have equal-size switch sets (%d) with no larger virtual key covering their union; chord resolution is ambiguous",
					serial, a.Serial, b.Serial, len(a.Switches))
			}
		}
	}

	defsCopy := make([]VKeyDef, len(vkeys))
	copy(defsCopy, vkeys)
	sort.Slice(defsCopy, func(i, j int) bool {
		return len(defsCopy[i].Switches) > len(defsCopy[j].Switches)
	})

	return &Group{
		serial:    serial,
		comboTerm: comboTerm,
		vkeys:     defsCopy,
		switchSet: switchSet,
	}, nil
}

// Switches returns the set of physical switches this group owns, used by
// halfresolver to slice an incoming snapshot.
func (g *Group) Switches() map[vkey.PhysicalKeySerial]struct{} {
	return g.switchSet
}

// Serial returns the group's identifying serial (one per finger), used by
// halfresolver for configuration-error diagnostics.
func (g *Group) Serial() Serial {
	return g.serial
}

// Update feeds one (time, pressed-switches-restricted-to-this-group)
// snapshot through the resolver and returns any virtual-key
// press/release events produced.
func (g *Group) Update(now int64, pressedHere map[vkey.PhysicalKeySerial]struct{}) []Event {
	if !g.committed {
		return g.updateIdle(now, pressedHere)
	}
	return g.updateCommitted(now, pressedHere)
}

func (g *Group) updateIdle(now int64, pressedHere map[vkey.PhysicalKeySerial]struct{}) []Event {
	if !g.pendingActive {
		if len(pressedHere) == 0 {
			return nil
		}
		g.pendingActive = true
		g.pendingSince = now
		g.pendingSet = cloneSet(pressedHere)
		g.lastHeld = cloneSet(pressedHere)
		return nil
	}

	// A switch that was part of the attempt on the previous tick has now
	// gone up: the pending set can only shrink from here, so resolve
	// immediately against the largest set actually seen held together
	// (lastHeld), rather than waiting out the rest of the combo window.
	if shrunk(g.lastHeld, pressedHere) {
		resolved, ok := g.resolve(g.lastHeld)
		g.pendingActive = false
		g.pendingSet = nil
		g.lastHeld = nil
		if !ok {
			return nil
		}

		log.Debugf("keygroup %s: resolved chord -> %s (released mid-window)", g.serial, resolved.Serial)
		events := []Event{{VKey: resolved.Serial, Pressed: true}}
		if anyPressed(resolved.Switches, pressedHere) {
			// At least one switch of the resolved chord is still down:
			// commit and keep holding until the last of them goes up.
			g.committed = true
			g.committedAt = resolved
			return events
		}
		// The resolved chord's own last switch is the one that just
		// released: press and release both fire in this call.
		return append(events, Event{VKey: resolved.Serial, Pressed: false})
	}

	for pkey := range pressedHere {
		g.pendingSet[pkey] = struct{}{}
	}
	g.lastHeld = cloneSet(pressedHere)

	if now-g.pendingSince < g.comboTerm {
		return nil
	}

	resolved, ok := g.resolve(pressedHere)
	g.pendingActive = false
	g.pendingSet = nil
	g.lastHeld = nil
	if !ok {
		// Nothing matches what is still pressed at the timeout instant;
		// stay idle silently rather than guess.
		return nil
	}

	g.committed = true
	g.committedAt = resolved
	log.Debugf("keygroup %s: resolved chord -> %s", g.serial, resolved.Serial)
	return []Event{{VKey: resolved.Serial, Pressed: true}}
}

// shrunk reports whether some switch present in prev is absent from cur,
// i.e. at least one switch of the pending attempt was just released.
func shrunk(prev, cur map[vkey.PhysicalKeySerial]struct{}) bool {
	for pkey := range prev {
		if _, ok := cur[pkey]; !ok {
			return true
		}
	}
	return false
}

// resolve picks the virtual key whose switch-set is a non-empty subset of
// what is still pressed, preferring the largest such set (vkeys is kept
// sorted largest-first by New).
func (g *Group) resolve(stillPressed map[vkey.PhysicalKeySerial]struct{}) (VKeyDef, bool) {
	for _, def := range g.vkeys {
		if isSubset(def.Switches, stillPressed) {
			return def, true
		}
	}
	return VKeyDef{}, false
}

func (g *Group) updateCommitted(now int64, pressedHere map[vkey.PhysicalKeySerial]struct{}) []Event {
	for _, pkey := range g.committedAt.Switches {
		if _, stillDown := pressedHere[pkey]; stillDown {
			return nil // still holding
		}
	}

	released := g.committedAt.Serial
	g.committed = false
	g.committedAt = VKeyDef{}
	log.Debugf("keygroup %s: released %s", g.serial, released)
	return []Event{{VKey: released, Pressed: false}}
}

func anyPressed(switches []vkey.PhysicalKeySerial, pressed map[vkey.PhysicalKeySerial]struct{}) bool {
	for _, pkey := range switches {
		if _, ok := pressed[pkey]; ok {
			return true
		}
	}
	return false
}

func isSubset(switches []vkey.PhysicalKeySerial, pressed map[vkey.PhysicalKeySerial]struct{}) bool {
	for _, pkey := range switches {
		if _, ok := pressed[pkey]; !ok {
			return false
		}
	}
	return true
}

func cloneSet(src map[vkey.PhysicalKeySerial]struct{}) map[vkey.PhysicalKeySerial]struct{} {
	dst := make(map[vkey.PhysicalKeySerial]struct{}, len(src))
	for k := range src {
		dst[k] = struct{}{}
	}
	return dst
}

func toSet(switches []vkey.PhysicalKeySerial) map[vkey.PhysicalKeySerial]struct{} {
	s := make(map[vkey.PhysicalKeySerial]struct{}, len(switches))
	for _, pkey := range switches {
		s[pkey] = struct{}{}
	}
	return s
}

func overlaps(a, b map[vkey.PhysicalKeySerial]struct{}) bool {
	for pkey := range a {
		if _, ok := b[pkey]; ok {
			return true
		}
	}
	return false
}

func unionSet(a, b map[vkey.PhysicalKeySerial]struct{}) map[vkey.PhysicalKeySerial]struct{} {
	u := cloneSet(a)
	for pkey := range b {
		u[pkey] = struct{}{}
	}
	return u
}

func setsEqual(a, b map[vkey.PhysicalKeySerial]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for pkey := range a {
		if _, ok := b[pkey]; !ok {
			return false
		}
	}
	return true
}

// hasCoveringDef reports whether some virtual key in the group has a
// switch-set strictly larger than union's constituents and exactly equal
// to union, guaranteeing it out-resolves both whenever the two halves of
// union are pressed together.
func hasCoveringDef(vkeys []VKeyDef, setKeys []map[vkey.PhysicalKeySerial]struct{}, union map[vkey.PhysicalKeySerial]struct{}) bool {
	for i := range vkeys {
		if setsEqual(setKeys[i], union) {
			return true
		}
	}
	return false
}
