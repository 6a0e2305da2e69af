// Package legacy imports data written by the first barn deployment, which
// kept one CSV history per animal (animal_<id>.csv) and the accumulator as a
// single JSON file (tempo_acumulado.json) in a flat folder.
package legacy

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/monitoring"
	"github.com/banshee-data/barn.report/internal/units"
)

// AccumulatorFile is the name of the legacy accumulator snapshot.
const AccumulatorFile = "tempo_acumulado.json"

const historyPrefix = "animal_"

// recordNamespace seeds deterministic record IDs for imported rows.
var recordNamespace = uuid.MustParse("5b0e4c1e-2f4b-4c5e-9b61-7a2f1d3c8e90")

// HistoryStore is where imported records are appended.
type HistoryStore interface {
	HasHistory(ctx context.Context, id livestock.AnimalID) (bool, error)
	AppendRecord(ctx context.Context, rec *livestock.StoredRecord) error
}

// SnapshotStore is where the imported accumulator is merged.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (livestock.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap livestock.Snapshot) error
}

// Summary counts what an import did.
type Summary struct {
	Animals            int
	SkippedAnimals     int
	Records            int
	SkippedRows        int
	AccumulatorEntries int
	KeptEntries        int

	// NoCameraRows counts imported rows with a negative camera index. They
	// are kept in the history but never used as a previous position.
	NoCameraRows int
}

// Importer copies a legacy folder into the stores.
type Importer struct {
	History      HistoryStore
	Accumulators SnapshotStore
	// Timezone the legacy server wrote its timestamps in.
	Timezone string
}

// ImportDir imports every animal_<id>.csv in dir and, if present, the
// accumulator file.
//
// Animals that already have history in the store are skipped whole, so a
// folder can be imported twice without duplicating rows. Accumulator entries
// already in the store win over the legacy values.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Summary, error) {
	var sum Summary

	paths, err := filepath.Glob(filepath.Join(dir, historyPrefix+"*.csv"))
	if err != nil {
		return sum, fmt.Errorf("list histories: %w", err)
	}
	for _, path := range paths {
		id := livestock.AnimalID(strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), historyPrefix), ".csv"))
		if id == "" {
			continue
		}

		has, err := im.History.HasHistory(ctx, id)
		if err != nil {
			return sum, fmt.Errorf("check history for animal %s: %w", id, err)
		}
		if has {
			monitoring.Logf("legacy: animal %s already has history, skipping %s", id, filepath.Base(path))
			sum.SkippedAnimals++
			continue
		}

		records, skipped, err := readHistoryFile(path, id, im.Timezone)
		if err != nil {
			return sum, err
		}
		noCamera := 0
		for _, rec := range records {
			if rec.CameraIdx < 0 {
				noCamera++
			}
			if err := im.History.AppendRecord(ctx, rec); err != nil {
				return sum, fmt.Errorf("append record for animal %s: %w", id, err)
			}
		}
		if noCamera > 0 {
			monitoring.DataQualityf("legacy history %s: %d of %d rows have no camera index; the next live observation starts from zero displacement",
				id, noCamera, len(records))
		}
		sum.NoCameraRows += noCamera
		sum.Animals++
		sum.Records += len(records)
		sum.SkippedRows += skipped
	}

	f, err := os.Open(filepath.Join(dir, AccumulatorFile))
	if errors.Is(err, os.ErrNotExist) {
		return sum, nil
	}
	if err != nil {
		return sum, fmt.Errorf("open accumulator file: %w", err)
	}
	defer f.Close()

	legacySnap, err := ReadAccumulators(f)
	if err != nil {
		return sum, err
	}
	current, err := im.Accumulators.LoadSnapshot(ctx)
	if err != nil {
		return sum, fmt.Errorf("load accumulators: %w", err)
	}
	for id, states := range legacySnap {
		for state, acc := range states {
			if _, ok := current.Get(id, state); ok {
				sum.KeptEntries++
				continue
			}
			current.Set(id, state, acc)
			sum.AccumulatorEntries++
		}
	}
	if sum.AccumulatorEntries > 0 {
		if err := im.Accumulators.SaveSnapshot(ctx, current); err != nil {
			return sum, fmt.Errorf("save accumulators: %w", err)
		}
	}
	return sum, nil
}

func readHistoryFile(path string, id livestock.AnimalID, timezone string) ([]*livestock.StoredRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	records, skipped, err := ReadHistory(f, id, timezone)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	return records, skipped, nil
}

// ReadHistory parses one legacy CSV history. The header row is required.
// Rows that cannot be parsed are skipped, counted and logged.
//
// Columns: timestamp, pos_x, pos_y, angle, state, camera_idx,
// displacement_px, and optionally displacement_cm and
// tempo_total_estado_segundos.
func ReadHistory(r io.Reader, id livestock.AnimalID, timezone string) ([]*livestock.StoredRecord, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 || strings.TrimSpace(header[0]) != "timestamp" {
		return nil, 0, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}

	var (
		records []*livestock.StoredRecord
		skipped int
		line    = 1
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			monitoring.DataQualityf("legacy history %s line %d: %v; skipped", id, line, err)
			skipped++
			continue
		}
		rec, err := parseRow(row, id, timezone)
		if err != nil {
			monitoring.DataQualityf("legacy history %s line %d: %v; skipped", id, line, err)
			skipped++
			continue
		}
		rec.RecordID = uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s:%d", id, line))).String()
		records = append(records, rec)
	}
	return records, skipped, nil
}

func parseRow(row []string, id livestock.AnimalID, timezone string) (*livestock.StoredRecord, error) {
	if len(row) < 7 {
		return nil, fmt.Errorf("expected at least 7 columns, got %d", len(row))
	}
	ts, err := units.ParseRecordTime(strings.TrimSpace(row[0]), timezone)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	floats := make([]float64, 0, 4)
	for _, col := range []int{1, 2, 3, 6} {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", col+1, err)
		}
		floats = append(floats, v)
	}
	state, err := livestock.ParseState(row[4])
	if err != nil {
		return nil, err
	}
	cameraIdx, err := strconv.Atoi(strings.TrimSpace(row[5]))
	if err != nil {
		return nil, fmt.Errorf("camera_idx: %w", err)
	}

	rec := &livestock.StoredRecord{
		AnimalID:           id,
		Timestamp:          ts,
		TimestampFormatted: strings.TrimSpace(row[0]),
		Position:           livestock.Position{X: floats[0], Y: floats[1]},
		Angle:              floats[2],
		State:              state,
		CameraIdx:          cameraIdx,
		DisplacementPx:     floats[3],
	}
	if len(row) > 7 {
		if rec.DisplacementCm, err = strconv.ParseFloat(strings.TrimSpace(row[7]), 64); err != nil {
			return nil, fmt.Errorf("displacement_cm: %w", err)
		}
	}
	if len(row) > 8 {
		if rec.CumulativeStateSeconds, err = strconv.ParseFloat(strings.TrimSpace(row[8]), 64); err != nil {
			return nil, fmt.Errorf("tempo_total_estado_segundos: %w", err)
		}
	}
	return rec, nil
}

type legacyEntry struct {
	LastTimestamp *float64 `json:"ultimo_timestamp"`
	TotalSeconds  *float64 `json:"tempo_total"`
}

// ReadAccumulators parses the legacy accumulator JSON,
// {"<id>": {"<state>": {"ultimo_timestamp": ..., "tempo_total": ...}}}.
// Entries with an unknown state, a missing field or a negative total are
// skipped and logged.
func ReadAccumulators(r io.Reader) (livestock.Snapshot, error) {
	var raw map[string]map[string]legacyEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode accumulator file: %w", err)
	}

	snap := livestock.Snapshot{}
	for id, states := range raw {
		for name, entry := range states {
			state, err := livestock.ParseState(name)
			if err != nil {
				monitoring.DataQualityf("legacy accumulator for animal %s: %v; skipped", id, err)
				continue
			}
			if entry.LastTimestamp == nil || entry.TotalSeconds == nil || *entry.TotalSeconds < 0 {
				monitoring.DataQualityf("legacy accumulator %s/%s is incomplete or negative; skipped", id, state)
				continue
			}
			snap.Set(livestock.AnimalID(id), state, livestock.AccumulatedTime{
				LastTimestamp: *entry.LastTimestamp,
				TotalSeconds:  *entry.TotalSeconds,
			})
		}
	}
	return snap, nil
}
