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

// UpdateAccumulator advances the (id, state) entry to ts inside one write
// transaction and returns the stored value. The bool reports a timestamp
// regression, in which case the entry is left unchanged.
func (db *DB) UpdateAccumulator(ctx context.Context, id livestock.AnimalID, state livestock.State, ts float64) (livestock.AccumulatedTime, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return livestock.AccumulatedTime{}, false, fmt.Errorf("begin accumulator update: %w", err)
	}
	defer tx.Rollback()

	var (
		prev    *livestock.AccumulatedTime
		current livestock.AccumulatedTime
	)
	err = tx.QueryRowContext(ctx,
		`SELECT last_timestamp, total_seconds FROM animal_state_time WHERE animal_id = ? AND state = ?`,
		string(id), string(state),
	).Scan(&current.LastTimestamp, &current.TotalSeconds)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return livestock.AccumulatedTime{}, false, fmt.Errorf("read accumulator: %w", err)
	default:
		prev = &current
	}

	next, regressed := livestock.Advance(prev, ts)
	if regressed {
		return next, true, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO animal_state_time (animal_id, state, last_timestamp, total_seconds, updated_at_unix_nanos)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (animal_id, state) DO UPDATE SET
			last_timestamp = excluded.last_timestamp,
			total_seconds = excluded.total_seconds,
			updated_at_unix_nanos = excluded.updated_at_unix_nanos`,
		string(id), string(state), next.LastTimestamp, next.TotalSeconds, time.Now().UnixNano(),
	); err != nil {
		return livestock.AccumulatedTime{}, false, fmt.Errorf("write accumulator: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return livestock.AccumulatedTime{}, false, fmt.Errorf("commit accumulator: %w", err)
	}
	return next, false, nil
}

// LoadSnapshot returns every accumulator entry. Rows with an unknown state
// are skipped and logged.
func (db *DB) LoadSnapshot(ctx context.Context) (livestock.Snapshot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT animal_id, state, last_timestamp, total_seconds FROM animal_state_time`)
	if err != nil {
		return nil, fmt.Errorf("query accumulators: %w", err)
	}
	defer rows.Close()

	snap := livestock.Snapshot{}
	for rows.Next() {
		var (
			id, stateName string
			acc           livestock.AccumulatedTime
		)
		if err := rows.Scan(&id, &stateName, &acc.LastTimestamp, &acc.TotalSeconds); err != nil {
			return nil, fmt.Errorf("scan accumulator: %w", err)
		}
		state, err := livestock.ParseState(stateName)
		if err != nil {
			monitoring.DataQualityf("accumulator for animal %s: %v; ignored", id, err)
			continue
		}
		snap.Set(livestock.AnimalID(id), state, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

// SaveSnapshot replaces the whole accumulator table with snap in one
// transaction. Readers see either the old or the new table, never a mix.
func (db *DB) SaveSnapshot(ctx context.Context, snap livestock.Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM animal_state_time`); err != nil {
		return fmt.Errorf("clear accumulators: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO animal_state_time (animal_id, state, last_timestamp, total_seconds, updated_at_unix_nanos)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare accumulator insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for id, states := range snap {
		for state, acc := range states {
			if _, err := stmt.ExecContext(ctx, string(id), string(state), acc.LastTimestamp, acc.TotalSeconds, now); err != nil {
				return fmt.Errorf("insert accumulator %s/%s: %w", id, state, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
