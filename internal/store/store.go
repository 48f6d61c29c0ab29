package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS scout_reports (
	id             UUID PRIMARY KEY,
	thread_id      TEXT NOT NULL,
	product_link   TEXT NOT NULL,
	product_query  TEXT NOT NULL,
	report         TEXT NOT NULL,
	sentiment      JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS scout_reports_thread_idx ON scout_reports (thread_id, created_at DESC);

CREATE TABLE IF NOT EXISTS scout_report_evidence (
	id         UUID PRIMARY KEY,
	report_id  UUID NOT NULL REFERENCES scout_reports (id) ON DELETE CASCADE,
	position   INT NOT NULL,
	source     TEXT NOT NULL,
	content    TEXT NOT NULL,
	url        TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS scout_report_evidence_report_idx ON scout_report_evidence (report_id, position);
`

// EnsureSchema creates the archive tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
