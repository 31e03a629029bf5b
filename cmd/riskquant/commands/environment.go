package commands

import (
	"context"
	"errors"
	"fmt"

	"riskquant/internal/analysis"
	"riskquant/internal/config"
	"riskquant/internal/history"
	"riskquant/internal/metrics"
	"riskquant/internal/optimize"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// environment is the wired engine plus the resources it owns.
type environment struct {
	Service *analysis.Service
	Metrics *metrics.Recorder
	redis   *redis.Client
}

func newEnvironment(ctx context.Context, cfg *config.AppConfig) (*environment, error) {
	env := &environment{Metrics: metrics.New()}

	persister, err := env.persister(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := history.NewStore(persister)
	if err := store.Load(ctx); err != nil {
		env.Close()
		return nil, err
	}
	env.Metrics.RecordHistoryRisks(len(store.IDs()))

	env.Service = analysis.NewService(cfg.Engine, store, optimize.NewContextHolder(), env.Metrics)
	return env, nil
}

func (e *environment) persister(ctx context.Context, cfg *config.AppConfig) (history.Persister, error) {
	switch cfg.HistoryBackend {
	case "memory":
		log.Warn().Msg("Score history is kept in memory only and is lost on exit")
		return nil, nil
	case "redis":
		e.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := e.redis.Ping(ctx).Err(); err != nil {
			_ = e.redis.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Str("prefix", cfg.Redis.Prefix).Msg("Using redis score history")
		return history.NewRedisPersister(e.redis, cfg.Redis.Prefix), nil
	case "file", "":
		log.Info().Str("path", cfg.HistoryDir).Msg("Using file score history")
		return history.NewFilePersister(cfg.HistoryDir), nil
	default:
		return nil, errors.New("unknown history backend: " + cfg.HistoryBackend)
	}
}

// Close releases backend connections.
func (e *environment) Close() {
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
}
