package main

import (
	"context"
	"fmt"
	"log"

	"github.com/banshee-data/barn.report/internal/config"
	"github.com/banshee-data/barn.report/internal/db"
	"github.com/banshee-data/barn.report/internal/pipeline"
	"github.com/banshee-data/barn.report/internal/redisstore"
	"github.com/banshee-data/barn.report/internal/units"
)

func loadConfig(opts options) (*config.BarnConfig, error) {
	if !units.IsValid(opts.units) {
		return nil, fmt.Errorf("invalid units %q, must be one of: %s", opts.units, units.GetValidUnitsString())
	}
	if opts.configPath == "" {
		return config.EmptyBarnConfig(), nil
	}
	return config.LoadBarnConfig(opts.configPath)
}

// stores is the open history database plus whichever accumulator backend the
// config selects.
type stores struct {
	history      *db.DB
	accumulators pipeline.AccumulatorStore
	redis        *redisstore.Store
}

func openStores(ctx context.Context, cfg *config.BarnConfig, dbPath string) (*stores, error) {
	history, err := db.NewDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	s := &stores{history: history, accumulators: history}

	if cfg.GetAccumulatorBackend() == config.BackendRedis {
		rs, err := redisstore.Dial(ctx, cfg.GetRedisAddr(), cfg.GetRedisKeyPrefix())
		if err != nil {
			history.Close()
			return nil, err
		}
		s.redis = rs
		s.accumulators = rs
		log.Printf("accumulators: redis at %s (prefix %q)", cfg.GetRedisAddr(), cfg.GetRedisKeyPrefix())
	} else {
		log.Printf("accumulators: sqlite at %s", dbPath)
	}
	return s, nil
}

func (s *stores) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
	if err := s.history.Close(); err != nil {
		log.Printf("close database: %v", err)
	}
}
