package livestock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObservation(t *testing.T) {
	obs, err := DecodeObservation([]byte(`{"id": 7, "position": [100, 1000], "angle": 10, "timestamp": 1000, "camera_idx": 0}`))
	require.NoError(t, err)
	assert.Equal(t, Observation{
		ID:        "7",
		Position:  Position{X: 100, Y: 1000},
		Angle:     10,
		Timestamp: 1000,
		CameraIdx: 0,
	}, obs)
}

func TestDecodeObservation_StringID(t *testing.T) {
	obs, err := DecodeObservation([]byte(`{"id": "cow-12", "position": [1.5, 2.5], "angle": 0, "timestamp": 1.25, "camera_idx": 3}`))
	require.NoError(t, err)
	assert.Equal(t, AnimalID("cow-12"), obs.ID)
	assert.Equal(t, 3, obs.CameraIdx)
}

func TestDecodeObservation_MissingFields(t *testing.T) {
	_, err := DecodeObservation([]byte(`{"id": 7, "angle": 10}`))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"position", "timestamp", "camera_idx"}, verr.Missing)
	assert.Contains(t, err.Error(), "missing fields")
}

func TestDecodeObservation_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		invalid string
	}{
		{"short position", `{"id": 1, "position": [1], "angle": 0, "timestamp": 1, "camera_idx": 0}`, "position"},
		{"fractional camera", `{"id": 1, "position": [1, 2], "angle": 0, "timestamp": 1, "camera_idx": 1.5}`, "camera_idx"},
		{"negative camera", `{"id": 1, "position": [1, 2], "angle": 0, "timestamp": 1, "camera_idx": -1}`, "camera_idx"},
		{"empty id", `{"id": "", "position": [1, 2], "angle": 0, "timestamp": 1, "camera_idx": 0}`, "id"},
		{"negative timestamp", `{"id": 1, "position": [1, 2], "angle": 0, "timestamp": -5, "camera_idx": 0}`, "timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeObservation([]byte(tt.body))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Invalid, tt.invalid)
		})
	}
}

func TestDecodeObservation_NotJSON(t *testing.T) {
	_, err := DecodeObservation([]byte(`not json`))
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestValidate_CameraCount(t *testing.T) {
	obs := Observation{ID: "1", CameraIdx: 4, Timestamp: 1}
	assert.NoError(t, obs.Validate(0))
	assert.Error(t, obs.Validate(4))
	obs.CameraIdx = 3
	assert.NoError(t, obs.Validate(4))
}

func TestParseState(t *testing.T) {
	for in, want := range map[string]State{
		"feeding": Feeding, "Moving": Moving, "comendo": Feeding, "andando": Moving,
	} {
		got, err := ParseState(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseState("sleeping")
	assert.ErrorIs(t, err, ErrUnknownState)
}
