package fsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type light string

const (
	red    light = "red"
	green  light = "green"
	yellow light = "yellow"
	off    light = "off"
)

func newLight() *Machine[light] {
	return New("light", red, []light{red, green, yellow, off}, map[light][]light{
		red:    {green, off},
		green:  {yellow},
		yellow: {red},
		off:    {},
	})
}

func TestMachine_Can(t *testing.T) {
	m := newLight()

	assert.True(t, m.Can(red, green))
	assert.True(t, m.Can(yellow, red))
	assert.False(t, m.Can(red, yellow))
	assert.False(t, m.Can(off, red))
	assert.False(t, m.Can("unknown", red))
}

func TestMachine_Validate_ReturnsTransitionError(t *testing.T) {
	m := newLight()

	require.NoError(t, m.Validate(green, yellow))

	err := m.Validate(green, red)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var tErr *TransitionError[light]
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "light", tErr.Machine)
	assert.Equal(t, green, tErr.From)
	assert.Equal(t, red, tErr.To)
	assert.Contains(t, err.Error(), `"green"`)
}

func TestMachine_Terminal(t *testing.T) {
	m := newLight()

	assert.True(t, m.Terminal(off))
	assert.False(t, m.Terminal(red))
	assert.False(t, m.Terminal("unknown"))
}

func TestMachine_StatesAndNext(t *testing.T) {
	m := newLight()

	assert.Equal(t, []light{red, green, yellow, off}, m.States())
	assert.Equal(t, []light{green, off}, m.Next(red))
	assert.Empty(t, m.Next(off))
	assert.Equal(t, red, m.Initial())
	assert.Equal(t, "light", m.Name())
}

func TestMachine_TableIsCopied(t *testing.T) {
	table := map[light][]light{red: {green}}
	m := New("copy", red, []light{red}, table)

	table[red][0] = off
	assert.True(t, m.Can(red, green))

	next := m.Next(red)
	next[0] = off
	assert.True(t, m.Can(red, green))
}
