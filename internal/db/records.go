package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/monitoring"
)

const recordColumns = `record_id, animal_id, timestamp, timestamp_formatted, pos_x, pos_y, angle,
	state, camera_idx, displacement_px, displacement_cm, cumulative_state_seconds, received_at_unix_nanos`

// AnimalSummary describes one animal's stored history.
type AnimalSummary struct {
	ID            livestock.AnimalID `json:"id"`
	RecordCount   int                `json:"record_count"`
	FirstSeenUnix float64            `json:"first_seen_unix"`
	LastSeenUnix  float64            `json:"last_seen_unix"`
	LastState     livestock.State    `json:"last_state"`
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one history row. Rows missing a field the pipeline needs,
// or carrying an unknown state, come back as nil with a data-quality log.
func scanRecord(s rowScanner) (*livestock.StoredRecord, error) {
	var (
		recordID, animalID, formatted, state sql.NullString
		ts, x, y, angle, px, cm, total       sql.NullFloat64
		cameraIdx, receivedAt                sql.NullInt64
	)
	if err := s.Scan(&recordID, &animalID, &ts, &formatted, &x, &y, &angle,
		&state, &cameraIdx, &px, &cm, &total, &receivedAt); err != nil {
		return nil, err
	}

	if !ts.Valid || !x.Valid || !y.Valid || !angle.Valid || !cameraIdx.Valid {
		monitoring.DataQualityf("record %s for animal %s is missing position, angle, camera or timestamp; ignored",
			recordID.String, animalID.String)
		return nil, nil
	}
	parsed, err := livestock.ParseState(state.String)
	if err != nil {
		monitoring.DataQualityf("record %s for animal %s: %v; ignored", recordID.String, animalID.String, err)
		return nil, nil
	}

	rec := &livestock.StoredRecord{
		RecordID:               recordID.String,
		AnimalID:               livestock.AnimalID(animalID.String),
		Timestamp:              ts.Float64,
		TimestampFormatted:     formatted.String,
		Position:               livestock.Position{X: x.Float64, Y: y.Float64},
		Angle:                  angle.Float64,
		State:                  parsed,
		CameraIdx:              int(cameraIdx.Int64),
		DisplacementPx:         px.Float64,
		DisplacementCm:         cm.Float64,
		CumulativeStateSeconds: total.Float64,
	}
	if receivedAt.Valid {
		rec.ReceivedAt = time.Unix(0, receivedAt.Int64).UTC()
	}
	return rec, nil
}

// LastRecord returns the newest record for id. It returns nil, nil when the
// animal has no history, its newest row is malformed, or that row has a
// negative camera index (rows imported from the first deployment, which never
// recorded the camera).
func (db *DB) LastRecord(ctx context.Context, id livestock.AnimalID) (*livestock.StoredRecord, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM animal_records WHERE animal_id = ? ORDER BY id DESC LIMIT 1`,
		string(id))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last record: %w", err)
	}
	if rec != nil && rec.CameraIdx < 0 {
		monitoring.DataQualityf("record %s for animal %s has camera index %d; not used as previous position",
			rec.RecordID, rec.AnimalID, rec.CameraIdx)
		return nil, nil
	}
	return rec, nil
}

// HasHistory reports whether any row, well-formed or not, exists for id.
func (db *DB) HasHistory(ctx context.Context, id livestock.AnimalID) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM animal_records WHERE animal_id = ?)`, string(id)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query history for animal %s: %w", id, err)
	}
	return exists, nil
}

// AppendRecord appends rec to its animal's history.
func (db *DB) AppendRecord(ctx context.Context, rec *livestock.StoredRecord) error {
	var receivedAt any
	if !rec.ReceivedAt.IsZero() {
		receivedAt = rec.ReceivedAt.UnixNano()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO animal_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RecordID, string(rec.AnimalID), rec.Timestamp, rec.TimestampFormatted,
		rec.Position.X, rec.Position.Y, rec.Angle, string(rec.State), rec.CameraIdx,
		rec.DisplacementPx, rec.DisplacementCm, rec.CumulativeStateSeconds, receivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Records returns up to limit of the animal's most recent records, oldest
// first. A limit of zero or less returns the whole history. Malformed rows
// are skipped. ErrNotFound is returned if the animal has no rows at all.
func (db *DB) Records(ctx context.Context, id livestock.AnimalID, limit int) ([]*livestock.StoredRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM (
		SELECT * FROM animal_records WHERE animal_id = ? ORDER BY id DESC`
	args := []any{string(id)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	query += `) ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var (
		records []*livestock.StoredRecord
		seen    int
	)
	for rows.Next() {
		seen++
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if seen == 0 {
		return nil, fmt.Errorf("animal %s: %w", id, ErrNotFound)
	}
	return records, nil
}

// Animals lists every animal with stored history, with the state of its
// newest record.
func (db *DB) Animals(ctx context.Context) ([]AnimalSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.animal_id, agg.n, agg.first_ts, agg.last_ts, r.state
		FROM (
			SELECT animal_id, COUNT(*) AS n, MIN(timestamp) AS first_ts,
			       MAX(timestamp) AS last_ts, MAX(id) AS last_id
			FROM animal_records GROUP BY animal_id
		) agg
		JOIN animal_records r ON r.id = agg.last_id`)
	if err != nil {
		return nil, fmt.Errorf("query animals: %w", err)
	}
	defer rows.Close()

	var out []AnimalSummary
	for rows.Next() {
		var (
			id             string
			n              int
			first, last    sql.NullFloat64
			lastStateValue sql.NullString
		)
		if err := rows.Scan(&id, &n, &first, &last, &lastStateValue); err != nil {
			return nil, fmt.Errorf("scan animal: %w", err)
		}
		summary := AnimalSummary{
			ID:            livestock.AnimalID(id),
			RecordCount:   n,
			FirstSeenUnix: first.Float64,
			LastSeenUnix:  last.Float64,
		}
		if st, err := livestock.ParseState(lastStateValue.String); err == nil {
			summary.LastState = st
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]livestock.AnimalID, len(out))
	byID := make(map[livestock.AnimalID]AnimalSummary, len(out))
	for i, s := range out {
		ids[i] = s.ID
		byID[s.ID] = s
	}
	livestock.SortAnimalIDs(ids)
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out, nil
}
