package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ApplicationName is reported to PostgreSQL for every pooled connection.
const ApplicationName = "coupon-ledger"

// TxQuerier is implemented by both pgxpool.Pool and pgx.Tx.
// Repository methods that run inside a ledger transaction accept TxQuerier.
type TxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// connectBackOff doubles from one second, so five attempts wait roughly 1s, 2s, 4s, 8s.
func connectBackOff(ctx context.Context, attempts int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// NewPool creates a PostgreSQL connection pool, retrying until a ping succeeds.
// maxRetries below one still makes a single attempt.
func NewPool(ctx context.Context, dsn string, maxRetries int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	attempts := maxRetries
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	connect := func() (*pgxpool.Pool, error) {
		attempt++
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping failed: %w", err)
		}
		return pool, nil
	}
	notify := func(err error, next time.Duration) {
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_retries", attempts).
			Dur("next_retry_in", next).
			Msg("database connection failed, retrying")
	}

	pool, err := backoff.RetryNotifyWithData(connect, connectBackOff(ctx, attempts), notify)
	if err != nil {
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempt, err)
	}

	log.Info().Int("attempts", attempt).Msg("database connection established")
	return pool, nil
}
