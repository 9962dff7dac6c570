package halfresolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/czeppi/ergokb/keygroup"
	"github.com/czeppi/ergokb/vkey"
)

func newFingerGroup(t *testing.T, serial keygroup.Serial, vkeySerial vkey.Serial, pkey vkey.PhysicalKeySerial) *keygroup.Group {
	t.Helper()
	g, err := keygroup.New(serial, []keygroup.VKeyDef{
		{Serial: vkeySerial, Switches: []vkey.PhysicalKeySerial{pkey}},
	}, 50)
	require.NoError(t, err)
	return g
}

func press(keys ...vkey.PhysicalKeySerial) map[vkey.PhysicalKeySerial]struct{} {
	s := make(map[vkey.PhysicalKeySerial]struct{}, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Two independent single-switch groups, both held past the combo window so
// that each resolves its press in the same tick: their outputs concatenate
// in construction order regardless of iteration order over the input set.
func TestUpdateConcatenatesInGroupOrder(t *testing.T) {
	index := newFingerGroup(t, "index", "A", "IDX")
	middle := newFingerGroup(t, "middle", "B", "MID")

	r, err := New([]*keygroup.Group{index, middle})
	require.NoError(t, err)

	assert.Empty(t, r.Update(0, press("IDX", "MID")))
	events := r.Update(50, press("IDX", "MID"))

	require.Len(t, events, 2)
	assert.Equal(t, keygroup.Event{VKey: "A", Pressed: true}, events[0])
	assert.Equal(t, keygroup.Event{VKey: "B", Pressed: true}, events[1])
}

// A snapshot that holds switches outside any configured group is silently
// ignored by the groups that do not own them.
func TestUpdateIgnoresUnownedSwitches(t *testing.T) {
	index := newFingerGroup(t, "index", "A", "IDX")

	r, err := New([]*keygroup.Group{index})
	require.NoError(t, err)

	assert.Empty(t, r.Update(0, press("IDX", "UNKNOWN")))
	events := r.Update(50, press("IDX", "UNKNOWN"))
	require.Len(t, events, 1)
	assert.Equal(t, keygroup.Event{VKey: "A", Pressed: true}, events[0])
}

func TestNewRejectsOverlappingGroups(t *testing.T) {
	a := newFingerGroup(t, "a", "A", "SHARED")
	b := newFingerGroup(t, "b", "B", "SHARED")

	_, err := New([]*keygroup.Group{a, b})
	assert.Error(t, err)
}
