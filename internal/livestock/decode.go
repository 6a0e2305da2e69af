package livestock

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// RequiredFields are the keys every observation payload must carry.
var RequiredFields = []string{"id", "position", "angle", "timestamp", "camera_idx"}

// ValidationError reports an observation rejected before it reaches the
// pipeline.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.Invalid, ", "))
	}
	if len(parts) == 0 {
		return "invalid observation"
	}
	return "invalid observation: " + strings.Join(parts, "; ")
}

// observationPayload is the wire shape sent by camera agents.
type observationPayload struct {
	ID        *AnimalID   `json:"id"`
	Position  *[]float64  `json:"position"`
	Angle     *float64    `json:"angle"`
	Timestamp *float64    `json:"timestamp"`
	CameraIdx *json.Number `json:"camera_idx"`
}

// DecodeObservation parses a camera agent payload. All five fields must be
// present; any missing or malformed field yields a *ValidationError.
func DecodeObservation(data []byte) (Observation, error) {
	var p observationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Observation{}, &ValidationError{Invalid: []string{fmt.Sprintf("body (%v)", err)}}
	}

	verr := &ValidationError{}
	if p.ID == nil {
		verr.Missing = append(verr.Missing, "id")
	}
	if p.Position == nil {
		verr.Missing = append(verr.Missing, "position")
	}
	if p.Angle == nil {
		verr.Missing = append(verr.Missing, "angle")
	}
	if p.Timestamp == nil {
		verr.Missing = append(verr.Missing, "timestamp")
	}
	if p.CameraIdx == nil {
		verr.Missing = append(verr.Missing, "camera_idx")
	}
	if len(verr.Missing) > 0 {
		return Observation{}, verr
	}

	obs := Observation{
		ID:        *p.ID,
		Angle:     *p.Angle,
		Timestamp: *p.Timestamp,
	}
	if pos := *p.Position; len(pos) == 2 {
		obs.Position = Position{X: pos[0], Y: pos[1]}
	} else {
		verr.Invalid = append(verr.Invalid, "position")
	}
	idx, err := p.CameraIdx.Int64()
	if err != nil {
		verr.Invalid = append(verr.Invalid, "camera_idx")
	} else {
		obs.CameraIdx = int(idx)
	}
	if len(verr.Invalid) > 0 {
		return Observation{}, verr
	}

	if err := obs.Validate(0); err != nil {
		return Observation{}, err
	}
	return obs, nil
}

// Validate checks field values. cameraCount bounds camera_idx when positive;
// zero means any non-negative index is accepted.
func (o Observation) Validate(cameraCount int) error {
	verr := &ValidationError{}
	if o.ID == "" {
		verr.Invalid = append(verr.Invalid, "id")
	}
	if !finite(o.Position.X) || !finite(o.Position.Y) {
		verr.Invalid = append(verr.Invalid, "position")
	}
	if !finite(o.Angle) {
		verr.Invalid = append(verr.Invalid, "angle")
	}
	if !finite(o.Timestamp) || o.Timestamp < 0 {
		verr.Invalid = append(verr.Invalid, "timestamp")
	}
	if o.CameraIdx < 0 || (cameraCount > 0 && o.CameraIdx >= cameraCount) {
		verr.Invalid = append(verr.Invalid, "camera_idx")
	}
	if len(verr.Invalid) > 0 {
		return verr
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
