package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

// historyLen bounds the per-profile run history kept in Redis.
const historyLen = 50

// ErrNotFound is returned when no run has been recorded for a profile.
var ErrNotFound = errors.New("store: not found")

// Store persists workflow run results.
type Store interface {
	SaveRun(ctx context.Context, run *model.RunResult) error
	LastRun(ctx context.Context, profile string) (*model.RunResult, error)
	RecentRuns(ctx context.Context, profile string, limit int) ([]model.RunResult, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// HybridStore keeps the latest runs in Redis and journals every run to Postgres
// when a database is configured.
type HybridStore struct {
	redis   *redis.Client
	PG      *pgxpool.Pool
	journal *Journal
	ttl     time.Duration
	logger  *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid connects to Redis and, if pgURL is set, to Postgres. ttl bounds how
// long run records live in Redis; zero keeps them indefinitely.
func NewHybrid(redisAddr string, redisDB int, redisPass string, ttl time.Duration, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		DB:       redisDB,
		Password: redisPass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	s := &HybridStore{redis: rdb, ttl: ttl, logger: logger}
	if pgURL == "" {
		return s, nil
	}

	cfg, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pgPoolConfig.MaxConns > 0 {
		cfg.MaxConns = pgPoolConfig.MaxConns
	}
	if pgPoolConfig.MinConns > 0 {
		cfg.MinConns = pgPoolConfig.MinConns
	}
	if pgPoolConfig.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
	}
	if pgPoolConfig.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
	}
	if pgPoolConfig.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s.PG = pool
	s.journal = NewJournal(pool, logger)
	return s, nil
}

func lastRunKey(profile string) string { return "rfq:run:last:" + profile }
func historyKey(profile string) string { return "rfq:run:history:" + profile }

// SaveRun writes run as the profile's latest result, pushes it onto the Redis
// history and appends it to the Postgres journal.
func (s *HybridStore) SaveRun(ctx context.Context, run *model.RunResult) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, lastRunKey(run.Profile), data, s.ttl)
	pipe.LPush(ctx, historyKey(run.Profile), data)
	pipe.LTrim(ctx, historyKey(run.Profile), 0, historyLen-1)
	if s.ttl > 0 {
		pipe.Expire(ctx, historyKey(run.Profile), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("store.redis.save_run_failed",
			zap.String("profile", run.Profile),
			zap.Error(err))
		return fmt.Errorf("save run to redis: %w", err)
	}

	if s.journal != nil {
		if err := s.journal.Record(ctx, run); err != nil {
			return fmt.Errorf("journal run: %w", err)
		}
	}
	return nil
}

// LastRun returns the most recent run for profile, or ErrNotFound.
func (s *HybridStore) LastRun(ctx context.Context, profile string) (*model.RunResult, error) {
	var run model.RunResult
	if err := s.GetJSON(ctx, lastRunKey(profile), &run); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// RecentRuns returns up to limit runs for profile, newest first. The Postgres
// journal is preferred when available; Redis holds only the last historyLen.
func (s *HybridStore) RecentRuns(ctx context.Context, profile string, limit int) ([]model.RunResult, error) {
	if limit <= 0 || limit > historyLen {
		limit = historyLen
	}
	if s.journal != nil {
		return s.journal.Recent(ctx, profile, limit)
	}

	raw, err := s.redis.LRange(ctx, historyKey(profile), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	runs := make([]model.RunResult, 0, len(raw))
	for _, item := range raw {
		var r model.RunResult
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			s.logger.Warn("store.redis.bad_history_entry", zap.String("profile", profile), zap.Error(err))
			continue
		}
		runs = append(runs, r)
	}
	return runs, nil
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
