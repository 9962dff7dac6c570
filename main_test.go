package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/czeppi/ergokb/halfresolver"
	"github.com/czeppi/ergokb/keygroup"
	"github.com/czeppi/ergokb/reactions"
	"github.com/czeppi/ergokb/vkey"
	"github.com/czeppi/ergokb/vkeyboard"
)

// Feeding the resolver's output into the virtual keyboard under an
// identity layer (every virtual key simple, one keycode each) must
// reproduce the press/release count of the physical gestures per key:
// one press command and one release command per tap, chords included.
func TestResolverToKeyboardRoundTrip(t *testing.T) {
	g, err := keygroup.New("finger", []keygroup.VKeyDef{
		{Serial: "UP", Switches: []vkey.PhysicalKeySerial{"U"}},
		{Serial: "MID", Switches: []vkey.PhysicalKeySerial{"U", "D"}},
		{Serial: "DOWN", Switches: []vkey.PhysicalKeySerial{"D"}},
	}, 50)
	require.NoError(t, err)
	resolver, err := halfresolver.New([]*keygroup.Group{g})
	require.NoError(t, err)

	codes := map[vkey.Serial]vkey.KeyCode{"UP": 1, "MID": 2, "DOWN": 3}
	var keys []vkey.Def
	layer := reactions.Layer{}
	for serial, code := range codes {
		keys = append(keys, vkey.Def{Serial: serial, Kind: vkey.KindSimple})
		layer[serial] = reactions.OneKeyReactions{
			OnPress:   []reactions.Cmd{reactions.Key{Kind: reactions.KeyPress, Code: code}},
			OnRelease: []reactions.Cmd{reactions.Key{Kind: reactions.KeyRelease, Code: code}},
		}
	}
	keyboard := vkeyboard.New(keys, nil, layer, 200)

	type snapshot struct {
		at      int64
		pressed []vkey.PhysicalKeySerial
	}
	// A solo tap of U, then a U+D chord, then a solo tap of D, with idle
	// gaps between the gestures.
	ticks := []snapshot{
		{0, []vkey.PhysicalKeySerial{"U"}},
		{20, nil},
		{100, []vkey.PhysicalKeySerial{"U"}},
		{110, []vkey.PhysicalKeySerial{"U", "D"}},
		{160, []vkey.PhysicalKeySerial{"U", "D"}},
		{200, nil},
		{300, []vkey.PhysicalKeySerial{"D"}},
		{360, []vkey.PhysicalKeySerial{"D"}},
		{380, nil},
	}

	pressCount := map[vkey.KeyCode]int{}
	releaseCount := map[vkey.KeyCode]int{}
	for _, tick := range ticks {
		set := make(map[vkey.PhysicalKeySerial]struct{}, len(tick.pressed))
		for _, p := range tick.pressed {
			set[p] = struct{}{}
		}
		events := resolver.Update(tick.at, set)
		for _, cmd := range keyboard.Update(tick.at, events) {
			keyCmd, ok := cmd.(reactions.Key)
			require.True(t, ok)
			switch keyCmd.Kind {
			case reactions.KeyPress:
				pressCount[keyCmd.Code]++
			case reactions.KeyRelease:
				releaseCount[keyCmd.Code]++
			}
		}
	}

	assert.Equal(t, map[vkey.KeyCode]int{1: 1, 2: 1, 3: 1}, pressCount)
	assert.Equal(t, map[vkey.KeyCode]int{1: 1, 2: 1, 3: 1}, releaseCount)
}
