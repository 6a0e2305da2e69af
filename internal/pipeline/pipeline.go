// Package pipeline turns camera observations into classified, persisted
// records and keeps each animal's per-state time totals up to date.
//
// The pipeline holds no domain state between calls. Each Submit reloads the
// animal's last record from the HistoryStore, computes displacement and
// state, advances the accumulator through the AccumulatorStore and appends
// the new record.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/barn.report/internal/config"
	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/monitoring"
	"github.com/banshee-data/barn.report/internal/timeutil"
	"github.com/banshee-data/barn.report/internal/units"
)

// HistoryStore is the append-only per-animal record history.
type HistoryStore interface {
	// LastRecord returns the newest record for id, or nil if the animal has
	// no history or its newest row is malformed.
	LastRecord(ctx context.Context, id livestock.AnimalID) (*livestock.StoredRecord, error)
	// AppendRecord durably appends rec to its animal's history.
	AppendRecord(ctx context.Context, rec *livestock.StoredRecord) error
}

// AccumulatorStore keeps the per-animal, per-state time totals.
type AccumulatorStore interface {
	// UpdateAccumulator applies livestock.Advance to the (id, state) entry
	// atomically and returns the stored result. The bool reports a
	// timestamp regression.
	UpdateAccumulator(ctx context.Context, id livestock.AnimalID, state livestock.State, ts float64) (livestock.AccumulatedTime, bool, error)
	// LoadSnapshot returns every entry.
	LoadSnapshot(ctx context.Context) (livestock.Snapshot, error)
	// SaveSnapshot replaces every entry with snap in one atomic step.
	SaveSnapshot(ctx context.Context, snap livestock.Snapshot) error
}

// Pipeline processes observations for one barn.
type Pipeline struct {
	stitcher    livestock.Stitcher
	classifier  livestock.Classifier
	cameraCount int
	timezone    string

	history      HistoryStore
	accumulators AccumulatorStore
	clock        timeutil.Clock

	locks *keyedMutex
}

// New builds a Pipeline from the barn configuration and its stores.
func New(cfg *config.BarnConfig, history HistoryStore, accumulators AccumulatorStore) *Pipeline {
	return &Pipeline{
		stitcher:     cfg.Stitcher(),
		classifier:   cfg.Classifier(),
		cameraCount:  cfg.GetCameraCount(),
		timezone:     cfg.GetTimezone(),
		history:      history,
		accumulators: accumulators,
		clock:        timeutil.RealClock{},
		locks:        newKeyedMutex(),
	}
}

// SetClock replaces the clock used to stamp ReceivedAt on stored records.
func (p *Pipeline) SetClock(c timeutil.Clock) {
	p.clock = c
}

// Submit processes one observation. Observations for the same animal are
// serialised; different animals proceed in parallel.
//
// A failure to read or write either store is returned as-is and nothing is
// retried. If the accumulator update succeeds and the append then fails, the
// two stores disagree about this observation; the error says so.
func (p *Pipeline) Submit(ctx context.Context, obs livestock.Observation) (livestock.Result, error) {
	if err := obs.Validate(p.cameraCount); err != nil {
		return livestock.Result{}, err
	}

	unlock := p.locks.Lock(obs.ID)
	defer unlock()

	last, err := p.history.LastRecord(ctx, obs.ID)
	if err != nil {
		return livestock.Result{}, fmt.Errorf("load last record for animal %s: %w", obs.ID, err)
	}

	displacementPx := p.stitcher.Displacement(obs, last.Observation())
	displacementCm := p.stitcher.ToCentimetres(displacementPx)
	state := p.classifier.Classify(obs, displacementPx)

	acc, regressed, err := p.accumulators.UpdateAccumulator(ctx, obs.ID, state, obs.Timestamp)
	if err != nil {
		return livestock.Result{}, fmt.Errorf("update %s accumulator for animal %s: %w", state, obs.ID, err)
	}
	if regressed {
		monitoring.DataQualityf("animal %s: %s timestamp %.3f is not after %.3f, time not accumulated",
			obs.ID, state, obs.Timestamp, acc.LastTimestamp)
	}

	formatted, err := units.FormatEpoch(obs.Timestamp, p.timezone)
	if err != nil {
		return livestock.Result{}, fmt.Errorf("format timestamp: %w", err)
	}

	rec := &livestock.StoredRecord{
		RecordID:               uuid.New().String(),
		AnimalID:               obs.ID,
		Timestamp:              obs.Timestamp,
		TimestampFormatted:     formatted,
		Position:               obs.Position,
		Angle:                  obs.Angle,
		State:                  state,
		CameraIdx:              obs.CameraIdx,
		DisplacementPx:         displacementPx,
		DisplacementCm:         displacementCm,
		CumulativeStateSeconds: acc.TotalSeconds,
		ReceivedAt:             p.clock.Now().UTC(),
	}
	if err := p.history.AppendRecord(ctx, rec); err != nil {
		return livestock.Result{}, fmt.Errorf("append record for animal %s (accumulator already updated): %w", obs.ID, err)
	}

	return livestock.Result{
		ID:                     obs.ID,
		State:                  state,
		DisplacementPx:         units.Round(displacementPx, 2),
		DisplacementCm:         units.Round(displacementCm, 2),
		CameraIdx:              obs.CameraIdx,
		CumulativeStateSeconds: units.Round(acc.TotalSeconds, 2),
	}, nil
}

// Snapshot returns the current accumulator snapshot.
func (p *Pipeline) Snapshot(ctx context.Context) (livestock.Snapshot, error) {
	snap, err := p.accumulators.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accumulator snapshot: %w", err)
	}
	return snap, nil
}

// Report returns the formatted accumulated-time report.
func (p *Pipeline) Report(ctx context.Context) (livestock.Report, error) {
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return livestock.BuildReport(snap), nil
}
