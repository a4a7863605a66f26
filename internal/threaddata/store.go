package threaddata

import (
	"context"
	"database/sql"
	"fmt"
)

// Sample is one thread-level value of a metric at a calling context.
type Sample struct {
	Thread   int     `duckdb:"thread,pk"`
	Metric   int     `duckdb:"metric,pk"`
	CCTIndex int     `duckdb:"cct,pk"`
	Value    float64 `duckdb:"value"`
}

// Rank labels one thread.
type Rank struct {
	Thread int    `duckdb:"thread,pk"`
	Label  string `duckdb:"label"`
}

const schema = `
CREATE TABLE IF NOT EXISTS thread_metrics (
	thread INTEGER NOT NULL,
	metric INTEGER NOT NULL,
	cct    INTEGER NOT NULL,
	value  DOUBLE  NOT NULL,
	PRIMARY KEY (thread, metric, cct)
);
CREATE TABLE IF NOT EXISTS ranks (
	thread INTEGER PRIMARY KEY,
	label  VARCHAR NOT NULL
);
`

// Store keeps thread-level values in DuckDB.
type Store struct {
	db      *sql.DB
	samples *Table[Sample]
	ranks   *Table[Rank]
}

// NewStore creates the schema if needed and returns a store over db.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create thread data schema: %w", err)
	}
	return &Store{
		db:      db,
		samples: NewTable[Sample](db, "thread_metrics"),
		ranks:   NewTable[Rank](db, "ranks"),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ingest writes rank labels (thread i labelled labels[i]) and samples.
func (s *Store) Ingest(ctx context.Context, labels []string, samples []Sample) error {
	ranks := make([]*Rank, len(labels))
	for i, l := range labels {
		ranks[i] = &Rank{Thread: i, Label: l}
	}
	if err := s.ranks.BatchUpsert(ctx, ranks); err != nil {
		return fmt.Errorf("ingest ranks: %w", err)
	}
	rows := make([]*Sample, len(samples))
	for i := range samples {
		rows[i] = &samples[i]
	}
	if err := s.samples.BatchUpsert(ctx, rows); err != nil {
		return fmt.Errorf("ingest samples: %w", err)
	}
	return nil
}

// Metrics returns the value of every thread at cctIndex; threads without a
// sample there read as zero.
func (s *Store) Metrics(ctx context.Context, cctIndex, metric, _ int) ([]float64, error) {
	labels, err := s.RankLabels(ctx)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, ErrUnavailable
	}
	rows, err := s.samples.Query(ctx, s.samples.Select().
		Eq("cct", cctIndex).
		Eq("metric", metric).
		OrderBy("thread"))
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(labels))
	for _, r := range rows {
		if r.Thread >= 0 && r.Thread < len(out) {
			out[r.Thread] = r.Value
		}
	}
	return out, nil
}

// ScopeMetrics returns the values of metric for one thread, the value of the
// scope at cctIndex being at position cctIndex-1.
func (s *Store) ScopeMetrics(ctx context.Context, thread, metric, _ int) ([]float64, error) {
	rows, err := s.samples.Query(ctx, s.samples.Select().
		Eq("thread", thread).
		Eq("metric", metric).
		OrderBy("cct"))
	if err != nil {
		return nil, err
	}
	size := 0
	for _, r := range rows {
		size = max(size, r.CCTIndex)
	}
	out := make([]float64, size)
	for _, r := range rows {
		if r.CCTIndex >= 1 {
			out[r.CCTIndex-1] = r.Value
		}
	}
	return out, nil
}

// RankLabels returns the thread labels ordered by thread id.
func (s *Store) RankLabels(ctx context.Context) ([]string, error) {
	rows, err := s.ranks.Query(ctx, s.ranks.Select().OrderBy("thread"))
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(rows))
	for _, r := range rows {
		labels = append(labels, r.Label)
	}
	return labels, nil
}
