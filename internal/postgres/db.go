package postgres

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool and waits for the server to answer a ping, retrying up to attempts times.
func Connect(ctx context.Context, dsn string, attempts int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if attempts <= 0 {
		attempts = 1
	}
	for i := 1; ; i++ {
		err = pool.Ping(ctx)
		if err == nil {
			return pool, nil
		}
		if i >= attempts {
			break
		}
		log.Printf("waiting for postgres (%d/%d): %v", i, attempts, err)
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	pool.Close()
	return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", attempts, err)
}
