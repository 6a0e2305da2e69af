package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	for _, u := range []string{"cm", "m", "in"} {
		assert.True(t, IsValid(u), u)
	}
	for _, u := range []string{"", "mm", "CM", "px"} {
		assert.False(t, IsValid(u), u)
	}
}

func TestGetValidUnitsString(t *testing.T) {
	assert.Equal(t, "cm, m, in", GetValidUnitsString())
}

func TestConvertLength(t *testing.T) {
	assert.Equal(t, 254.0, ConvertLength(254, CM))
	assert.InDelta(t, 2.54, ConvertLength(254, M), 1e-12)
	assert.InDelta(t, 100.0, ConvertLength(254, IN), 1e-12)
	assert.Equal(t, 12.0, ConvertLength(12, "furlong"), "unknown units fall back to cm")
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.41, Round(1.41421356, 2))
	assert.Equal(t, 12.3, Round(12.345, 1))
	assert.Equal(t, 0.0, Round(0.004, 2))
	assert.Equal(t, -2.5, Round(-2.46, 1))
}
