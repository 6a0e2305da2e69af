// Package redisstore keeps accumulated per-state time in Redis, for barns
// that run more than one ingest process against a shared accumulator.
//
// Each animal is one hash under KeyPrefix+id; each field is a state name and
// holds the JSON-encoded livestock.AccumulatedTime.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/monitoring"
)

// DefaultMaxRetries bounds how often an update is retried after losing a
// WATCH race.
const DefaultMaxRetries = 50

// ErrContention is returned when an update keeps losing its WATCH race.
var ErrContention = errors.New("accumulator update contended")

// Store is an AccumulatorStore backed by Redis.
type Store struct {
	c          *redis.Client
	prefix     string
	MaxRetries int
}

// New wraps an existing client. prefix namespaces every key the store owns.
func New(c *redis.Client, prefix string) *Store {
	return &Store{c: c, prefix: prefix, MaxRetries: DefaultMaxRetries}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, prefix string) (*Store, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return New(c, prefix), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.c.Close()
}

func (s *Store) key(id livestock.AnimalID) string {
	return s.prefix + string(id)
}

// UpdateAccumulator advances the (id, state) entry under WATCH so that
// concurrent writers to the same animal never lose an update.
func (s *Store) UpdateAccumulator(ctx context.Context, id livestock.AnimalID, state livestock.State, ts float64) (livestock.AccumulatedTime, bool, error) {
	key := s.key(id)
	field := string(state)

	var (
		result    livestock.AccumulatedTime
		regressed bool
	)
	txf := func(tx *redis.Tx) error {
		var prev *livestock.AccumulatedTime
		raw, err := tx.HGet(ctx, key, field).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var acc livestock.AccumulatedTime
			if err := json.Unmarshal(raw, &acc); err != nil {
				return fmt.Errorf("decode %s/%s: %w", id, state, err)
			}
			prev = &acc
		}

		result, regressed = livestock.Advance(prev, ts)
		if regressed {
			return nil
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, field, encoded)
			return nil
		})
		return err
	}

	for i := 0; i < s.MaxRetries; i++ {
		err := s.c.Watch(ctx, txf, key)
		if err == nil {
			return result, regressed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return livestock.AccumulatedTime{}, false, fmt.Errorf("update accumulator %s/%s: %w", id, state, err)
	}
	return livestock.AccumulatedTime{}, false, fmt.Errorf("%s/%s after %d attempts: %w", id, state, s.MaxRetries, ErrContention)
}

func (s *Store) keys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		k, next, err := s.c.Scan(ctx, cursor, s.prefix+"*", 200).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// LoadSnapshot reads every animal hash. Each animal is read atomically but
// the animals are not read at one instant.
func (s *Store) LoadSnapshot(ctx context.Context) (livestock.Snapshot, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan accumulator keys: %w", err)
	}

	snap := livestock.Snapshot{}
	for _, key := range keys {
		fields, err := s.c.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		id := livestock.AnimalID(strings.TrimPrefix(key, s.prefix))
		for name, raw := range fields {
			state, err := livestock.ParseState(name)
			if err != nil {
				monitoring.DataQualityf("redis accumulator for animal %s: %v; ignored", id, err)
				continue
			}
			var acc livestock.AccumulatedTime
			if err := json.Unmarshal([]byte(raw), &acc); err != nil {
				monitoring.DataQualityf("redis accumulator %s/%s is not valid JSON; ignored", id, state)
				continue
			}
			snap.Set(id, state, acc)
		}
	}
	return snap, nil
}

// SaveSnapshot replaces every key under the prefix with snap in a single
// MULTI/EXEC.
func (s *Store) SaveSnapshot(ctx context.Context, snap livestock.Snapshot) error {
	existing, err := s.keys(ctx)
	if err != nil {
		return fmt.Errorf("scan accumulator keys: %w", err)
	}

	_, err = s.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(existing) > 0 {
			p.Del(ctx, existing...)
		}
		for id, states := range snap {
			values := make([]interface{}, 0, 2*len(states))
			for state, acc := range states {
				encoded, err := json.Marshal(acc)
				if err != nil {
					return err
				}
				values = append(values, string(state), encoded)
			}
			if len(values) > 0 {
				p.HSet(ctx, s.key(id), values...)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save accumulator snapshot: %w", err)
	}
	return nil
}
