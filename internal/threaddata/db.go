package threaddata

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"strings"
	"time"

	duckdbDriver "github.com/marcboeker/go-duckdb"
)

// OpenDB opens a DuckDB database for thread-level data. An empty dsn opens
// an in-memory database. Every pooled connection is set up for bulk reads
// of one metric column at a time.
func OpenDB(dsn string) (*sql.DB, error) {
	connector, err := duckdbDriver.NewConnector(dsn, func(execer driver.ExecerContext) error {
		bootQueries := []string{
			"SET preserve_insertion_order = false",
		}
		for _, query := range bootQueries {
			if _, err := execer.ExecContext(context.Background(), query, nil); err != nil {
				return fmt.Errorf("%s: %w", query, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open thread database: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// retryConfig bounds the retries of conflicting writes.
type retryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var writeRetry = retryConfig{
	MaxRetries:     5,
	InitialBackoff: 10 * time.Millisecond,
	MaxBackoff:     250 * time.Millisecond,
}

// withRetry runs fn until it succeeds, fails with a non-retryable error or
// the attempts are exhausted. Backoff doubles after each attempt.
func withRetry(ctx context.Context, cfg retryConfig, fn func() error, retryable func(error) bool) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(cfg, attempt)):
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

func backoff(cfg retryConfig, attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt-1)) * float64(cfg.InitialBackoff))
	if cfg.MaxBackoff > 0 && d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	return d
}

// isTransactionConflict matches the errors DuckDB returns when concurrent
// writers collide.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Conflict on update") ||
		strings.Contains(msg, "TransactionContext Error") ||
		strings.Contains(msg, "serialization")
}
