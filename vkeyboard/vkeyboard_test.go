package vkeyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/czeppi/ergokb/reactions"
	"github.com/czeppi/ergokb/vkey"
)

const (
	vkeyA vkey.Serial = "A"
	vkeyB vkey.Serial = "B"

	codeA     vkey.KeyCode = 30
	codeB     vkey.KeyCode = 48
	shiftCode vkey.KeyCode = 42
)

var (
	aDown    = reactions.Key{Kind: reactions.KeyPress, Code: codeA}
	aUp      = reactions.Key{Kind: reactions.KeyRelease, Code: codeA}
	bDown    = reactions.Key{Kind: reactions.KeyPress, Code: codeB}
	bUp      = reactions.Key{Kind: reactions.KeyRelease, Code: codeB}
	shiftDwn = reactions.Key{Kind: reactions.KeyPress, Code: shiftCode}
	shiftUp  = reactions.Key{Kind: reactions.KeyRelease, Code: shiftCode}
)

// newABKeyboard builds the fixture used throughout: A is a Mod key (tap
// types 'a', hold is left-shift); B is a plain Simple key.
func newABKeyboard(t *testing.T) *Keyboard {
	t.Helper()
	keys := []vkey.Def{
		{Serial: vkeyA, Kind: vkey.KindMod, ModKeyCode: shiftCode},
		{Serial: vkeyB, Kind: vkey.KindSimple},
	}
	defaultLayer := reactions.Layer{
		vkeyA: {OnPress: []reactions.Cmd{aDown}, OnRelease: []reactions.Cmd{aUp}},
		vkeyB: {OnPress: []reactions.Cmd{bDown}, OnRelease: []reactions.Cmd{bUp}},
	}
	return New(keys, nil, defaultLayer, 200)
}

func press(serial vkey.Serial) []vkey.Event   { return []vkey.Event{{VKey: serial, Pressed: true}} }
func release(serial vkey.Serial) []vkey.Event { return []vkey.Event{{VKey: serial, Pressed: false}} }

func TestBSolo(t *testing.T) {
	k := newABKeyboard(t)
	assert.Equal(t, []reactions.Cmd{bDown}, k.Update(0, press(vkeyB)))
	assert.Equal(t, []reactions.Cmd{bUp}, k.Update(100, release(vkeyB)))
}

func TestAABBFast(t *testing.T) {
	k := newABKeyboard(t)
	assert.Nil(t, k.Update(0, press(vkeyA)))
	assert.Equal(t, []reactions.Cmd{aDown, aUp}, k.Update(199, release(vkeyA)))
	assert.Equal(t, []reactions.Cmd{bDown}, k.Update(210, press(vkeyB)))
	assert.Equal(t, []reactions.Cmd{bUp}, k.Update(220, release(vkeyB)))
}

func TestAABBSlow(t *testing.T) {
	k := newABKeyboard(t)
	assert.Nil(t, k.Update(0, press(vkeyA)))
	assert.Equal(t, []reactions.Cmd{shiftDwn}, k.Update(201, nil))
	assert.Equal(t, []reactions.Cmd{shiftUp}, k.Update(210, release(vkeyA)))
	assert.Equal(t, []reactions.Cmd{bDown}, k.Update(220, press(vkeyB)))
	assert.Equal(t, []reactions.Cmd{bUp}, k.Update(230, release(vkeyB)))
}

func TestABBA1(t *testing.T) {
	k := newABKeyboard(t)
	assert.Nil(t, k.Update(0, press(vkeyA)))
	assert.Nil(t, k.Update(110, press(vkeyB)))
	assert.Equal(t, []reactions.Cmd{shiftDwn, bDown, bUp}, k.Update(120, release(vkeyB)))
	assert.Equal(t, []reactions.Cmd{shiftUp}, k.Update(199, release(vkeyA)))
}

func TestABBA2(t *testing.T) {
	k := newABKeyboard(t)
	assert.Nil(t, k.Update(0, press(vkeyA)))
	assert.Nil(t, k.Update(110, press(vkeyB)))
	assert.Equal(t, []reactions.Cmd{shiftDwn, bDown, bUp}, k.Update(120, release(vkeyB)))
	assert.Nil(t, k.Update(201, nil))
	assert.Equal(t, []reactions.Cmd{shiftUp}, k.Update(210, release(vkeyA)))
}

func TestABBA3(t *testing.T) {
	k := newABKeyboard(t)
	assert.Nil(t, k.Update(0, press(vkeyA)))
	assert.Equal(t, []reactions.Cmd{shiftDwn}, k.Update(201, nil))
	assert.Equal(t, []reactions.Cmd{bDown}, k.Update(210, press(vkeyB)))
	assert.Equal(t, []reactions.Cmd{bUp}, k.Update(220, release(vkeyB)))
	assert.Equal(t, []reactions.Cmd{shiftUp}, k.Update(230, release(vkeyA)))
}

func TestABABFast(t *testing.T) {
	k := newABKeyboard(t)
	assert.Nil(t, k.Update(0, press(vkeyA)))
	assert.Nil(t, k.Update(110, press(vkeyB)))
	assert.Equal(t, []reactions.Cmd{aDown, aUp, bDown}, k.Update(130, release(vkeyA)))
	assert.Equal(t, []reactions.Cmd{bUp}, k.Update(140, release(vkeyB)))
}

func TestABABSlow(t *testing.T) {
	k := newABKeyboard(t)
	assert.Nil(t, k.Update(0, press(vkeyA)))
	assert.Nil(t, k.Update(110, press(vkeyB)))
	assert.Equal(t, []reactions.Cmd{shiftDwn, bDown}, k.Update(201, nil))
	assert.Equal(t, []reactions.Cmd{shiftUp}, k.Update(210, release(vkeyA)))
	assert.Equal(t, []reactions.Cmd{bUp}, k.Update(220, release(vkeyB)))
}

// A release without a matching press, a duplicate press, and an event for
// an unknown virtual key all advance the machine as if they never arrived.
func TestUnbalancedAndUnknownEventsAreIgnored(t *testing.T) {
	k := newABKeyboard(t)

	assert.Nil(t, k.Update(0, release(vkeyB)))
	assert.Nil(t, k.Update(10, []vkey.Event{{VKey: "NOPE", Pressed: true}}))

	assert.Equal(t, []reactions.Cmd{bDown}, k.Update(20, press(vkeyB)))
	assert.Nil(t, k.Update(30, press(vkeyB)))
	assert.Equal(t, []reactions.Cmd{bUp}, k.Update(40, release(vkeyB)))
}

// A LayerKey's hold-begin switches the active layer, and its hold-end
// restores the default layer; neither emits a reaction command.
func TestLayerKeyHoldSwapsLayer(t *testing.T) {
	const layerKey vkey.Serial = "L"
	const shifted vkey.Serial = "B"

	keys := []vkey.Def{
		{Serial: layerKey, Kind: vkey.KindLayer, LayerName: "NAV"},
		{Serial: shifted, Kind: vkey.KindSimple},
	}
	navCode := vkey.KeyCode(200)
	navLayer := reactions.Layer{
		shifted: {OnPress: []reactions.Cmd{reactions.Key{Kind: reactions.KeyPress, Code: navCode}},
			OnRelease: []reactions.Cmd{reactions.Key{Kind: reactions.KeyRelease, Code: navCode}}},
	}
	defaultLayer := reactions.Layer{
		shifted: {OnPress: []reactions.Cmd{bDown}, OnRelease: []reactions.Cmd{bUp}},
	}
	k := New(keys, map[vkey.Serial]reactions.Layer{layerKey: navLayer}, defaultLayer, 200)

	assert.Nil(t, k.Update(0, press(layerKey)))
	assert.Nil(t, k.Update(201, nil)) // promotes layerKey to holding: layer swap, no reaction command

	navDown := reactions.Key{Kind: reactions.KeyPress, Code: navCode}
	navUp := reactions.Key{Kind: reactions.KeyRelease, Code: navCode}
	assert.Equal(t, []reactions.Cmd{navDown}, k.Update(210, press(shifted)))
	assert.Equal(t, []reactions.Cmd{navUp}, k.Update(220, release(shifted)))

	assert.Nil(t, k.Update(230, release(layerKey))) // hold-end: restores default layer, no reaction
	assert.Equal(t, []reactions.Cmd{bDown}, k.Update(240, press(shifted)))
}
