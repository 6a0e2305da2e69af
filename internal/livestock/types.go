// Package livestock holds the barn domain: camera observations, the geometry
// stitcher, the feeding/moving classifier and the per-state time accumulator.
//
// Everything in this package is free of I/O. Persistence lives in
// internal/db (SQLite) and internal/redisstore; orchestration lives in
// internal/pipeline.
package livestock

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AnimalID is an opaque identifier, stable across observations. Camera agents
// send it either as a JSON number or a JSON string; both decode to the same ID.
type AnimalID string

// UnmarshalJSON accepts both `7` and `"7"`.
func (id *AnimalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return errors.New("animal id must not be null")
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = AnimalID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("animal id must be a number or string: %w", err)
	}
	*id = AnimalID(n.String())
	return nil
}

// State is the behavioural state assigned to an observation.
type State string

const (
	Feeding State = "feeding"
	Moving  State = "moving"
)

// ErrUnknownState is returned when a stored state name cannot be parsed.
var ErrUnknownState = errors.New("unknown state")

// States lists every state in report order.
var States = []State{Feeding, Moving}

// ParseState parses a state name. The names written by the first
// Portuguese deployment ("comendo", "andando") are accepted as aliases.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Feeding), "comendo":
		return Feeding, nil
	case string(Moving), "andando":
		return Moving, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// Position is a camera-local pixel coordinate. Y grows downwards.
type Position struct {
	X float64
	Y float64
}

// Observation is one detection of an animal by one camera.
type Observation struct {
	ID        AnimalID
	Position  Position
	Angle     float64 // head tilt, degrees
	Timestamp float64 // epoch seconds
	CameraIdx int
}

// StoredRecord is one processed observation as persisted in an animal's
// history. Records are appended in arrival order; the newest one is used to
// compute the next displacement.
type StoredRecord struct {
	RecordID               string
	AnimalID               AnimalID
	Timestamp              float64
	TimestampFormatted     string
	Position               Position
	Angle                  float64
	State                  State
	CameraIdx              int
	DisplacementPx         float64
	DisplacementCm         float64
	CumulativeStateSeconds float64
	ReceivedAt             time.Time
}

// Observation returns the part of the record needed to compute the next
// displacement.
func (r *StoredRecord) Observation() *Observation {
	if r == nil {
		return nil
	}
	return &Observation{
		ID:        r.AnimalID,
		Position:  r.Position,
		Angle:     r.Angle,
		Timestamp: r.Timestamp,
		CameraIdx: r.CameraIdx,
	}
}

// AccumulatedTime is the running total for one (animal, state) pair.
type AccumulatedTime struct {
	LastTimestamp float64 `json:"last_timestamp"`
	TotalSeconds  float64 `json:"total_seconds"`
}

// Snapshot is the full accumulator state keyed by animal then state.
type Snapshot map[AnimalID]map[State]AccumulatedTime

// Get returns the entry for (id, state) and whether it exists.
func (s Snapshot) Get(id AnimalID, state State) (AccumulatedTime, bool) {
	states, ok := s[id]
	if !ok {
		return AccumulatedTime{}, false
	}
	acc, ok := states[state]
	return acc, ok
}

// Set stores the entry for (id, state), creating the animal's map if needed.
func (s Snapshot) Set(id AnimalID, state State, acc AccumulatedTime) {
	states, ok := s[id]
	if !ok {
		states = make(map[State]AccumulatedTime)
		s[id] = states
	}
	states[state] = acc
}

// Result is what the pipeline reports back for a submitted observation.
type Result struct {
	ID                     AnimalID `json:"id"`
	State                  State    `json:"state"`
	DisplacementPx         float64  `json:"displacement_px"`
	DisplacementCm         float64  `json:"displacement_cm"`
	CameraIdx              int      `json:"camera_idx"`
	CumulativeStateSeconds float64  `json:"cumulative_state_seconds"`
}
