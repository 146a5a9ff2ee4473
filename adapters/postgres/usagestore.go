package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/revlens/revlens/domain/report"
	"github.com/revlens/revlens/domain/usage"
	"github.com/revlens/revlens/ports"
)

// UsageStore implements ports.UsageStore using PostgreSQL.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new PostgreSQL usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// RecordBatch stores multiple usage events. ON CONFLICT DO NOTHING makes
// replays idempotent.
func (s *UsageStore) RecordBatch(ctx context.Context, events []usage.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO usage_events (
				id, user_id, model, input_tokens, cached_input_tokens,
				output_tokens, live_search_calls, total_cost, cost_coerced, occurred_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING
		`, e.ID, e.UserID, e.Model, e.InputTokens, e.CachedInputTokens,
			e.OutputTokens, e.LiveSearchCalls, e.TotalCost, e.CostCoerced, e.OccurredAt.UTC())
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to record usage event: %w", err)
		}
	}
	return nil
}

// ListByWindow returns events inside the window, oldest first.
func (s *UsageStore) ListByWindow(ctx context.Context, w report.Window) ([]usage.Event, error) {
	query := `
		SELECT id, user_id, model, input_tokens, cached_input_tokens,
		       output_tokens, live_search_calls, total_cost, cost_coerced, occurred_at
		FROM usage_events
		WHERE TRUE
	`
	query, args := appendWindow(query, nil, w)
	query += " ORDER BY occurred_at, id"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage events: %w", err)
	}
	defer rows.Close()

	var events []usage.Event
	for rows.Next() {
		var e usage.Event
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Model, &e.InputTokens, &e.CachedInputTokens,
			&e.OutputTokens, &e.LiveSearchCalls, &e.TotalCost, &e.CostCoerced, &e.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage events: %w", err)
	}
	return events, nil
}

// Count returns the total event count.
func (s *UsageStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM usage_events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count usage events: %w", err)
	}
	return count, nil
}

// appendWindow adds occurred_at bounds to a query. Nil bounds are unbounded;
// the end bound is inclusive.
func appendWindow(query string, args []any, w report.Window) (string, []any) {
	if w.Start != nil {
		args = append(args, w.Start.UTC())
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if w.End != nil {
		args = append(args, w.End.UTC())
		query += fmt.Sprintf(" AND occurred_at <= $%d", len(args))
	}
	return query, args
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
