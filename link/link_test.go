package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/czeppi/ergokb/vkey"
)

func TestChanLinkReadItemsDoesNotBlockWhenEmpty(t *testing.T) {
	lk := NewChanLink(4)

	items, err := lk.ReadItems()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestChanLinkDrainsSentItemsInOrder(t *testing.T) {
	lk := NewChanLink(4)

	ev := vkey.Event{VKey: "A", Pressed: true}
	lk.Send(Item{VKey: &ev})
	lk.Send(Item{Mouse: &MouseMove{DX: 3, DY: -2}})

	items, err := lk.ReadItems()
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NotNil(t, items[0].VKey)
	assert.Equal(t, ev, *items[0].VKey)

	require.NotNil(t, items[1].Mouse)
	assert.Equal(t, MouseMove{DX: 3, DY: -2}, *items[1].Mouse)
}

func TestChanLinkWaitForStartIsNoOp(t *testing.T) {
	lk := NewChanLink(1)
	assert.NoError(t, lk.WaitForStart())
}
