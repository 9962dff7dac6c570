package reactions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualDistinguishesVariantsAndFields(t *testing.T) {
	assert.True(t, Equal(Key{Kind: KeyPress, Code: 30}, Key{Kind: KeyPress, Code: 30}))
	assert.False(t, Equal(Key{Kind: KeyPress, Code: 30}, Key{Kind: KeyRelease, Code: 30}))
	assert.False(t, Equal(Key{Kind: KeyPress, Code: 30}, Key{Kind: KeyPress, Code: 31}))

	assert.True(t, Equal(MouseButton{Button: 0, Kind: MouseClick}, MouseButton{Button: 0, Kind: MouseClick}))
	assert.False(t, Equal(MouseButton{Button: 0, Kind: MouseClick}, MouseButton{Button: 1, Kind: MouseClick}))

	assert.True(t, Equal(MouseWheel{Offset: -1}, MouseWheel{Offset: -1}))
	assert.False(t, Equal(MouseWheel{Offset: -1}, MouseWheel{Offset: 1}))

	assert.True(t, Equal(Log{}, Log{}))
	assert.False(t, Equal(Log{}, Key{Kind: KeyPress, Code: 30}))
}

func TestKeyCmdString(t *testing.T) {
	assert.Equal(t, "press(30)", Key{Kind: KeyPress, Code: 30}.String())
	assert.Equal(t, "send(28)", Key{Kind: KeySend, Code: 28}.String())
	assert.Equal(t, "log", Log{}.String())
}
