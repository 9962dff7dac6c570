package diagnostics

import (
	"testing"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/czeppi/ergokb/keyboardcreator"
	"github.com/czeppi/ergokb/reactions"
	"github.com/czeppi/ergokb/vkey"
)

func TestRecorderDropsEmptyItems(t *testing.T) {
	r := NewRecorder(2)
	r.Record(Item{TimeMs: 1})
	assert.Empty(t, r.Items())
}

func TestRecorderCapsAtCapacity(t *testing.T) {
	r := NewRecorder(2)
	r.Record(Item{TimeMs: 1, LocalEvents: []vkey.Event{{VKey: "A", Pressed: true}}})
	r.Record(Item{TimeMs: 2, LocalEvents: []vkey.Event{{VKey: "B", Pressed: true}}})
	r.Record(Item{TimeMs: 3, LocalEvents: []vkey.Event{{VKey: "C", Pressed: true}}})

	items := r.Items()
	require.Len(t, items, 2)
	assert.EqualValues(t, 2, items[0].TimeMs)
	assert.EqualValues(t, 3, items[1].TimeMs)
}

func TestRecorderDefaultsCapacityTo7(t *testing.T) {
	r := NewRecorder(0)
	assert.Equal(t, 7, r.capacity)
}

func TestDumpFormatsEventsAndReactions(t *testing.T) {
	table := keyboardcreator.BuildReactionTable()
	codeMap := keyboardcreator.KeyCodeMap(table)

	items := []Item{{
		TimeMs:       100,
		RemoteEvents: []vkey.Event{{VKey: "MOUSEMOVE", Pressed: true}},
		LocalEvents:  []vkey.Event{{VKey: "A", Pressed: true}},
		ReactionCmds: []reactions.Cmd{
			reactions.Key{Kind: reactions.KeyPress, Code: vkey.KeyCode(evdev.KEY_A)},
		},
	}}

	out := Dump(items, codeMap)
	assert.Contains(t, out, "100:")
	assert.Contains(t, out, "other=[+mousemove]")
	assert.Contains(t, out, "self=[+a]")
	assert.Contains(t, out, "+a")
}

func TestTypistConvertsPlainAndShiftedChars(t *testing.T) {
	table := keyboardcreator.BuildReactionTable()
	typist := NewTypist(table)

	cmds := typist.TypeText("a!")

	require.Len(t, cmds, 4)
	assert.Equal(t, reactions.Key{Kind: reactions.KeySend, Code: vkey.KeyCode(evdev.KEY_A)}, cmds[0])
	assert.Equal(t, reactions.Key{Kind: reactions.KeyPress, Code: vkey.KeyCode(evdev.KEY_LEFTSHIFT)}, cmds[1])
	assert.Equal(t, reactions.Key{Kind: reactions.KeySend, Code: vkey.KeyCode(evdev.KEY_1)}, cmds[2])
	assert.Equal(t, reactions.Key{Kind: reactions.KeyRelease, Code: vkey.KeyCode(evdev.KEY_LEFTSHIFT)}, cmds[3])
}

func TestTypistSkipsUnknownChars(t *testing.T) {
	table := keyboardcreator.BuildReactionTable()
	typist := NewTypist(table)

	assert.Empty(t, typist.TypeText(""))
}

func TestTypistConvertsNewlineToEnter(t *testing.T) {
	table := keyboardcreator.BuildReactionTable()
	typist := NewTypist(table)

	cmds := typist.TypeText("\n")
	require.Len(t, cmds, 1)
	assert.Equal(t, reactions.Key{Kind: reactions.KeySend, Code: vkey.KeyCode(evdev.KEY_ENTER)}, cmds[0])
}

func TestTickStatsAverage(t *testing.T) {
	s := NewTickStats(3, 1000)
	s.Record(10)
	s.Record(20)
	s.Record(30)
	s.Record(40) // evicts the first sample from the 3-wide window

	assert.EqualValues(t, 30, s.average())
}
