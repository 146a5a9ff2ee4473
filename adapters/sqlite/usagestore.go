package sqlite

import (
	"context"

	"github.com/revlens/revlens/domain/report"
	"github.com/revlens/revlens/domain/usage"
	"github.com/revlens/revlens/ports"
)

// UsageStore implements ports.UsageStore using SQLite.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// RecordBatch stores multiple usage events. Events whose ID is already
// recorded are skipped, making replays idempotent.
func (s *UsageStore) RecordBatch(ctx context.Context, events []usage.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO usage_events (
			id, user_id, model, input_tokens, cached_input_tokens,
			output_tokens, live_search_calls, total_cost, cost_coerced, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		// Store timestamp in UTC for consistent querying
		_, err := stmt.ExecContext(ctx,
			e.ID, e.UserID, e.Model, e.InputTokens, e.CachedInputTokens,
			e.OutputTokens, e.LiveSearchCalls, e.TotalCost, e.CostCoerced, e.OccurredAt.UTC(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListByWindow returns events inside the window, oldest first.
func (s *UsageStore) ListByWindow(ctx context.Context, w report.Window) ([]usage.Event, error) {
	query := `
		SELECT id, user_id, model, input_tokens, cached_input_tokens,
		       output_tokens, live_search_calls, total_cost, cost_coerced, occurred_at
		FROM usage_events
		WHERE 1=1
	`
	query, args := appendWindow(query, nil, w)
	query += " ORDER BY occurred_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
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
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the total event count.
func (s *UsageStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_events`).Scan(&count)
	return count, err
}

// appendWindow adds occurred_at bounds to a query. Nil bounds are unbounded;
// the end bound is inclusive. Times are compared in UTC since timestamps are
// stored in UTC.
func appendWindow(query string, args []any, w report.Window) (string, []any) {
	if w.Start != nil {
		query += " AND datetime(occurred_at) >= datetime(?)"
		args = append(args, w.Start.UTC().Format("2006-01-02 15:04:05"))
	}
	if w.End != nil {
		query += " AND datetime(occurred_at) <= datetime(?)"
		args = append(args, w.End.UTC().Format("2006-01-02 15:04:05"))
	}
	return query, args
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
