// Package vkeyboard implements the tap-hold + layer state machine: it
// consumes a time-stamped stream of virtual-key press/release events and
// produces a time-ordered stream of reactions.Cmd, obeying the
// permissive-hold tap/hold discipline popularised by firmware in the
// QMK family.
package vkeyboard

import (
	log "github.com/sirupsen/logrus"

	"github.com/czeppi/ergokb/reactions"
	"github.com/czeppi/ergokb/vkey"
)

// DefaultTapHoldTerm is the tap/hold decision window in ms when the
// config leaves it unset.
const DefaultTapHoldTerm int64 = 200

// keyState is the mutable per-virtual-key state: the static definition,
// the time of its most recent press, and whether that press is still
// outstanding.
type keyState struct {
	def           vkey.Def
	lastPressTime int64
	active        bool
}

// Keyboard is the tap-hold/layer state machine.
type Keyboard struct {
	tapHoldTerm int64

	all map[vkey.Serial]*keyState

	defaultLayer reactions.Layer
	curLayer     reactions.Layer

	// layerOf resolves a LayerKey's serial to the Layer it activates while
	// held (keyboardcreator builds this from config.Layout; a LayerKey's
	// own vkey.Def only carries the layer's name).
	layerOf map[vkey.Serial]reactions.Layer

	// undecided and deferred are ordered lists: insertion order doubles as
	// chronological order since last_press_time is monotonic with append
	// order within one Update call's Step B.
	undecided []*keyState
	deferred  []*keyState

	nextDecisionTime    int64
	hasNextDecisionTime bool
}

// New constructs a Keyboard. keys is the full set of virtual-key
// definitions; layerOf maps each LayerKey serial to the reactions.Layer
// it activates while held. defaultLayer is the layer active when no
// LayerKey is held.
func New(keys []vkey.Def, layerOf map[vkey.Serial]reactions.Layer, defaultLayer reactions.Layer, tapHoldTerm int64) *Keyboard {
	if tapHoldTerm <= 0 {
		tapHoldTerm = DefaultTapHoldTerm
	}
	all := make(map[vkey.Serial]*keyState, len(keys))
	for _, def := range keys {
		all[def.Serial] = &keyState{def: def, lastPressTime: -1}
	}
	return &Keyboard{
		tapHoldTerm:  tapHoldTerm,
		all:          all,
		defaultLayer: defaultLayer,
		curLayer:     defaultLayer,
		layerOf:      layerOf,
	}
}

// Update feeds one (time, virtual-key events) tick through the state
// machine and returns the ordered reaction commands it produces.
func (k *Keyboard) Update(now int64, events []vkey.Event) []reactions.Cmd {
	if len(events) == 0 && (!k.hasNextDecisionTime || k.nextDecisionTime > now) {
		return nil
	}

	var out []reactions.Cmd
	out = append(out, k.updateByTime(now)...)

	for _, ev := range events {
		out = append(out, k.updateVKeyEvent(now, ev)...)
	}

	k.recomputeNextDecisionTime()
	return out
}

// updateByTime is Step A: time-driven transitions, before any event of
// this tick is consumed.
func (k *Keyboard) updateByTime(now int64) []reactions.Cmd {
	var out []reactions.Cmd

	var promotedTimes []int64
	var promoted []*keyState
	for _, ks := range k.undecided {
		if now-ks.lastPressTime >= k.tapHoldTerm {
			out = append(out, k.onBeginHolding(ks)...)
			promotedTimes = append(promotedTimes, ks.lastPressTime)
			promoted = append(promoted, ks)
		}
	}
	k.undecided = removeAll(k.undecided, promoted)

	if len(promotedTimes) > 0 {
		oldest := minInt64(promotedTimes)
		var committed []*keyState
		for _, ks := range k.deferred {
			if ks.lastPressTime > oldest {
				out = append(out, k.onPress(ks)...)
				committed = append(committed, ks)
			}
		}
		k.deferred = removeAll(k.deferred, committed)
	}

	return out
}

// updateVKeyEvent is one iteration of Step B: dispatch on the pressed
// virtual key's kind (TapHold vs. Simple) and edge (press vs. release).
func (k *Keyboard) updateVKeyEvent(now int64, ev vkey.Event) []reactions.Cmd {
	ks, ok := k.all[ev.VKey]
	if !ok {
		// An event for a virtual key outside the configured universe is
		// ignored, never panics.
		log.Warnf("vkeyboard: event for unknown virtual key %s ignored", ev.VKey)
		return nil
	}
	if ev.Pressed == ks.active {
		// A duplicate press or a release without a matching press is
		// ignored; the machine advances as if it never arrived.
		log.Warnf("vkeyboard: unbalanced %s for %s ignored", edgeName(ev.Pressed), ev.VKey)
		return nil
	}
	ks.active = ev.Pressed

	if ks.def.IsTapHold() {
		if ev.Pressed {
			k.onBeginPressTapHold(ks, now)
			return nil
		}
		return k.onEndPressTapHold(ks)
	}

	if ev.Pressed {
		out := k.onBeginPressSimple(ks)
		ks.lastPressTime = now
		return out
	}
	return k.onEndPressSimple(ks)
}

func edgeName(pressed bool) string {
	if pressed {
		return "press"
	}
	return "release"
}

// onBeginPressTapHold: tap/hold inactive -> undecided.
func (k *Keyboard) onBeginPressTapHold(ks *keyState, now int64) {
	ks.lastPressTime = now
	k.undecided = append(k.undecided, ks)
}

// onEndPressTapHold: undecided -> tap (press+release), deferred simples
// younger than it commit; or, if already holding, hold -> inactive.
func (k *Keyboard) onEndPressTapHold(ks *keyState) []reactions.Cmd {
	if !contains(k.undecided, ks) {
		return k.onEndHolding(ks)
	}

	var out []reactions.Cmd
	out = append(out, k.onPress(ks)...)
	out = append(out, k.onRelease(ks)...)
	k.undecided = removeAll(k.undecided, []*keyState{ks})

	var committed []*keyState
	for _, s := range k.deferred {
		if s.lastPressTime > ks.lastPressTime {
			out = append(out, k.onPress(s)...)
			committed = append(committed, s)
		}
	}
	k.deferred = removeAll(k.deferred, committed)

	return out
}

// onBeginPressSimple: simple inactive -> press, or -> deferred if a tap/
// hold decision is still pending.
func (k *Keyboard) onBeginPressSimple(ks *keyState) []reactions.Cmd {
	if len(k.undecided) > 0 {
		k.deferred = append(k.deferred, ks)
		return nil
	}
	return k.onPress(ks)
}

// onEndPressSimple is the permissive-hold rule: promote older undecided
// tap/holds to holding, commit younger deferred simples, then resolve
// the releasing key itself.
func (k *Keyboard) onEndPressSimple(ks *keyState) []reactions.Cmd {
	var out []reactions.Cmd

	var promotedTimes []int64
	var promoted []*keyState
	for _, u := range k.undecided {
		if u.lastPressTime < ks.lastPressTime {
			out = append(out, k.onBeginHolding(u)...)
			promotedTimes = append(promotedTimes, u.lastPressTime)
			promoted = append(promoted, u)
		}
	}
	k.undecided = removeAll(k.undecided, promoted)

	if len(promotedTimes) > 0 {
		oldest := minInt64(promotedTimes)
		var committed []*keyState
		for _, s := range k.deferred {
			if s == ks {
				continue // the releasing key itself is handled below
			}
			if s.lastPressTime > oldest {
				out = append(out, k.onPress(s)...)
				committed = append(committed, s)
			}
		}
		k.deferred = removeAll(k.deferred, committed)
	}

	if contains(k.deferred, ks) {
		out = append(out, k.onPress(ks)...)
		out = append(out, k.onRelease(ks)...)
		k.deferred = removeAll(k.deferred, []*keyState{ks})
	} else {
		out = append(out, k.onRelease(ks)...)
	}

	return out
}

// onBeginHolding emits the hold-begin reaction for a TapHold key: a Mod
// key presses its modifier, a Layer key swaps the active layer (no
// reaction command of its own).
func (k *Keyboard) onBeginHolding(ks *keyState) []reactions.Cmd {
	switch ks.def.Kind {
	case vkey.KindLayer:
		k.curLayer = k.layerOf[ks.def.Serial]
		return nil
	case vkey.KindMod:
		return []reactions.Cmd{reactions.Key{Kind: reactions.KeyPress, Code: ks.def.ModKeyCode}}
	default:
		return nil
	}
}

// onEndHolding emits the hold-end reaction.
func (k *Keyboard) onEndHolding(ks *keyState) []reactions.Cmd {
	switch ks.def.Kind {
	case vkey.KindLayer:
		k.curLayer = k.defaultLayer
		return nil
	case vkey.KindMod:
		return []reactions.Cmd{reactions.Key{Kind: reactions.KeyRelease, Code: ks.def.ModKeyCode}}
	default:
		return nil
	}
}

// onPress emits the current layer's on-press reactions for ks. Layer
// lookup happens here, at resolution time, never at original press
// time; a deferred key resolved after a layer switch draws from the
// layer active now. Intentional.
func (k *Keyboard) onPress(ks *keyState) []reactions.Cmd {
	oneKey, ok := k.curLayer[ks.def.Serial]
	if !ok {
		return nil
	}
	return oneKey.OnPress
}

// onRelease emits the current layer's on-release reactions for ks.
func (k *Keyboard) onRelease(ks *keyState) []reactions.Cmd {
	oneKey, ok := k.curLayer[ks.def.Serial]
	if !ok {
		return nil
	}
	return oneKey.OnRelease
}

// recomputeNextDecisionTime is Step C.
func (k *Keyboard) recomputeNextDecisionTime() {
	if len(k.undecided) == 0 {
		k.hasNextDecisionTime = false
		return
	}
	var times []int64
	for _, ks := range k.undecided {
		times = append(times, ks.lastPressTime+k.tapHoldTerm)
	}
	k.nextDecisionTime = minInt64(times)
	k.hasNextDecisionTime = true
}

func contains(list []*keyState, ks *keyState) bool {
	for _, s := range list {
		if s == ks {
			return true
		}
	}
	return false
}

func removeAll(list []*keyState, toRemove []*keyState) []*keyState {
	if len(toRemove) == 0 {
		return list
	}
	out := make([]*keyState, 0, len(list))
	for _, s := range list {
		if !contains(toRemove, s) {
			out = append(out, s)
		}
	}
	return out
}

func minInt64(values []int64) int64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
