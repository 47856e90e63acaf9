package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"arc-framework/xrboot/internal/config"
	"arc-framework/xrboot/internal/orchestrator"
	"arc-framework/xrboot/internal/sequencer"
)

const postgresReporterName = "postgres"

const createAttemptsTable = `CREATE TABLE IF NOT EXISTS bootstrap_attempts (
	id          BIGSERIAL PRIMARY KEY,
	handle_id   TEXT        NOT NULL,
	state       TEXT        NOT NULL,
	outcome     TEXT,
	error       TEXT,
	probe_ms    BIGINT      NOT NULL,
	started_at  TIMESTAMPTZ,
	settled_at  TIMESTAMPTZ,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertAttempt = `INSERT INTO bootstrap_attempts
	(handle_id, state, outcome, error, probe_ms, started_at, settled_at)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)`

// dbConn abstracts the pgxpool.Pool methods used here so tests can inject a
// fake without a database.
type dbConn interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresReporter appends every bootstrap result to bootstrap_attempts.
type PostgresReporter struct {
	cfg     config.PostgresConfig
	cb      *gobreaker.CircuitBreaker
	connect func(ctx context.Context, cfg config.PostgresConfig) (dbConn, error)
}

// NewPostgresReporter creates a PostgresReporter that opens a pool per call.
func NewPostgresReporter(cfg config.PostgresConfig, cb *gobreaker.CircuitBreaker) *PostgresReporter {
	return &PostgresReporter{
		cfg:     cfg,
		cb:      cb,
		connect: realConnect,
	}
}

func (c *PostgresReporter) Name() string { return postgresReporterName }

// Report creates the table if needed and inserts one row for res.
func (c *PostgresReporter) Report(ctx context.Context, res sequencer.Result) error {
	_, err := c.cb.Execute(func() (any, error) {
		db, err := c.connect(ctx, c.cfg)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		if _, err := db.Exec(ctx, createAttemptsTable); err != nil {
			return nil, fmt.Errorf("creating bootstrap_attempts: %w", err)
		}

		tag, err := db.Exec(ctx, insertAttempt,
			res.HandleID,
			res.State.String(),
			res.Outcome,
			res.Error,
			res.ProbeMs,
			res.StartedAt,
			res.SettledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting bootstrap attempt: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return nil, fmt.Errorf("inserting bootstrap attempt: %d rows affected", tag.RowsAffected())
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("postgres report: %w", err)
	}
	return nil
}

// Probe pings the server.
func (c *PostgresReporter) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		db, err := c.connect(ctx, c.cfg)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		if err := db.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		return nil, nil
	})

	result := orchestrator.ProbeResult{
		Name:      postgresReporterName,
		OK:        err == nil,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = breakerError(err)
	}
	return result
}

// realConnect opens a pgxpool.Pool using cfg.
func realConnect(ctx context.Context, cfg config.PostgresConfig) (dbConn, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DB, cfg.SSLMode,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	return pool, nil
}
