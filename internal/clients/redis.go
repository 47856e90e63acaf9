package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"arc-framework/xrboot/internal/config"
	"arc-framework/xrboot/internal/orchestrator"
	"arc-framework/xrboot/internal/sequencer"
)

const (
	redisReporterName = "redis"
	redisKeyPrefix    = "xrboot:bootstrap:"
	redisLatestKey    = redisKeyPrefix + "latest"
)

// redisStore is the subset of go-redis used by RedisReporter. It is
// implemented by realRedisStore and by test doubles.
type redisStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) (string, error)
	Close() error
}

// realRedisStore adapts *redis.Client so tests need not build *redis.StatusCmd
// values.
type realRedisStore struct {
	client *redis.Client
}

func (r *realRedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *realRedisStore) Ping(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

func (r *realRedisStore) Close() error {
	return r.client.Close()
}

// RedisReporter stores each bootstrap result under its handle id and under a
// "latest" key, both expiring after the configured TTL.
type RedisReporter struct {
	cfg   config.RedisConfig
	cb    *gobreaker.CircuitBreaker
	store redisStore
}

// NewRedisReporter creates a RedisReporter. The connection is opened lazily
// per call.
func NewRedisReporter(cfg config.RedisConfig, cb *gobreaker.CircuitBreaker) *RedisReporter {
	return &RedisReporter{cfg: cfg, cb: cb}
}

func (c *RedisReporter) Name() string { return redisReporterName }

// Report writes res as JSON. Both keys are written in the same breaker call.
func (c *RedisReporter) Report(ctx context.Context, res sequencer.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding bootstrap result: %w", err)
	}

	_, err = c.cb.Execute(func() (any, error) {
		store, release := c.open()
		defer release()

		if err := store.Set(ctx, redisKeyPrefix+res.HandleID, payload, c.cfg.TTL); err != nil {
			return nil, fmt.Errorf("set %s: %w", redisKeyPrefix+res.HandleID, err)
		}
		if err := store.Set(ctx, redisLatestKey, payload, c.cfg.TTL); err != nil {
			return nil, fmt.Errorf("set %s: %w", redisLatestKey, err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("redis report: %w", err)
	}
	return nil
}

// Probe sends PING and expects PONG.
func (c *RedisReporter) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		store, release := c.open()
		defer release()

		val, err := store.Ping(ctx)
		if err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		if val != "PONG" {
			return nil, fmt.Errorf("unexpected PING response: %q", val)
		}
		return nil, nil
	})

	result := orchestrator.ProbeResult{
		Name:      redisReporterName,
		OK:        err == nil,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = breakerError(err)
	}
	return result
}

// open returns the injected store, or a fresh client closed by release.
func (c *RedisReporter) open() (redisStore, func()) {
	if c.store != nil {
		return c.store, func() {}
	}
	s := &realRedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port),
			Password: c.cfg.Password,
			DB:       c.cfg.DB,
		}),
	}
	return s, func() { s.Close() } //nolint:errcheck
}
