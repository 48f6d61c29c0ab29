package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/scout/internal/state"
)

var ErrNotFound = errors.New("not found")

// ReportRecord is an archived research report with the evidence it was
// written from.
type ReportRecord struct {
	ID           uuid.UUID               `json:"id"`
	ThreadID     string                  `json:"thread_id"`
	ProductLink  string                  `json:"product_link"`
	ProductQuery string                  `json:"product_query"`
	Report       string                  `json:"report"`
	Sentiment    *state.SentimentSummary `json:"sentiment,omitempty"`
	Evidence     []state.Evidence        `json:"evidence,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
}

// SaveReport archives a report and its evidence in one transaction.
func (s *Store) SaveReport(ctx context.Context, rec ReportRecord) (uuid.UUID, error) {
	var sentiment []byte
	if rec.Sentiment != nil {
		b, err := json.Marshal(rec.Sentiment)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal sentiment: %w", err)
		}
		sentiment = b
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO scout_reports (id, thread_id, product_link, product_query, report, sentiment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		id, rec.ThreadID, rec.ProductLink, rec.ProductQuery, rec.Report, sentiment,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert report: %w", err)
	}

	for i, e := range rec.Evidence {
		_, err = tx.Exec(ctx, `
			INSERT INTO scout_report_evidence (id, report_id, position, source, content, url, title)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), id, i, string(e.Source), e.Content, e.URL, e.Metadata["title"],
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert evidence: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// GetReport loads an archived report with its evidence in original order.
func (s *Store) GetReport(ctx context.Context, id uuid.UUID) (*ReportRecord, error) {
	rec := &ReportRecord{ID: id}
	var sentiment []byte
	err := s.pool.QueryRow(ctx, `
		SELECT thread_id, product_link, product_query, report, sentiment, created_at
		FROM scout_reports WHERE id = $1`, id,
	).Scan(&rec.ThreadID, &rec.ProductLink, &rec.ProductQuery, &rec.Report, &sentiment, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if len(sentiment) > 0 {
		rec.Sentiment = &state.SentimentSummary{}
		if err := json.Unmarshal(sentiment, rec.Sentiment); err != nil {
			return nil, fmt.Errorf("decode sentiment: %w", err)
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT source, content, url, title
		FROM scout_report_evidence WHERE report_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get evidence: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e state.Evidence
		var source, title string
		if err := rows.Scan(&source, &e.Content, &e.URL, &title); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		e.Source = state.Source(source)
		if title != "" {
			e.Metadata = map[string]string{"title": title}
		}
		rec.Evidence = append(rec.Evidence, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return rec, nil
}

// ThreadReports lists the IDs of a thread's archived reports, newest first.
func (s *Store) ThreadReports(ctx context.Context, threadID string) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM scout_reports WHERE thread_id = $1
		ORDER BY created_at DESC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan report id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
