// Package dbconn builds a pgxpool.Pool with the connect-time retry and
// health-check conventions of dmitrymomot-foundation/integration/database/pg,
// generalized with this module's own backoff/v4 retry strategy instead of
// that package's bespoke retry loop.
package dbconn

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds the pool-sizing and retry knobs for Connect.
type Config struct {
	ConnectionString string        `env:"DATABASE_URL,required"`
	MaxOpenConns     int32         `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	RetryAttempts    uint64        `env:"DB_RETRY_ATTEMPTS" envDefault:"5"`
	RetryInterval    time.Duration `env:"DB_RETRY_INTERVAL" envDefault:"2s"`
}

// Connect opens a connection pool, retrying transient dial failures with an
// exponential backoff bounded by cfg.RetryAttempts, and verifies
// connectivity with a Ping before returning.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("dbconn: empty connection string")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("dbconn: parse config: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.RetryAttempts)
	b = backoff.WithContext(b, ctx)

	var pool *pgxpool.Pool
	operation := func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("dbconn: open pool: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("dbconn: ping: %w", err)
		}
		pool = p
		return nil
	}

	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return pool, nil
}
