package units

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTimezoneValid(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		expected bool
	}{
		{"valid UTC", "UTC", true},
		{"valid Sao Paulo", "America/Sao_Paulo", true},
		{"invalid", "Invalid/Timezone", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTimezoneValid(tt.timezone))
		})
	}
}

func TestConvertTime(t *testing.T) {
	utcTime := time.Date(2025, 9, 13, 12, 0, 0, 0, time.UTC)

	out, err := ConvertTime(utcTime, "UTC")
	require.NoError(t, err)
	assert.True(t, out.Equal(utcTime))

	out, err = ConvertTime(utcTime, "America/Sao_Paulo")
	require.NoError(t, err)
	assert.Equal(t, 9, out.Hour())

	_, err = ConvertTime(utcTime, "Invalid/Timezone")
	assert.Error(t, err)
}

func TestFormatEpoch(t *testing.T) {
	got, err := FormatEpoch(1757764800.75, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-13 12:00:00", got)

	got, err = FormatEpoch(1757764800, "America/Sao_Paulo")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-13 09:00:00", got)
}

func TestParseRecordTime_RoundTrip(t *testing.T) {
	for _, tz := range []string{"UTC", "America/Sao_Paulo"} {
		s, err := FormatEpoch(1757764800, tz)
		require.NoError(t, err)
		epoch, err := ParseRecordTime(s, tz)
		require.NoError(t, err)
		assert.Equal(t, 1757764800.0, epoch, tz)
	}

	_, err := ParseRecordTime("13/09/2025", "UTC")
	assert.Error(t, err)
}
