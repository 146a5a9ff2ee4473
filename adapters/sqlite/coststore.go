package sqlite

import (
	"context"

	"github.com/revlens/revlens/domain/ledger"
	"github.com/revlens/revlens/domain/report"
	"github.com/revlens/revlens/ports"
)

// ExternalCostStore implements ports.ExternalCostStore using SQLite.
type ExternalCostStore struct {
	db *DB
}

// NewExternalCostStore creates a new SQLite external cost store.
func NewExternalCostStore(db *DB) *ExternalCostStore {
	return &ExternalCostStore{db: db}
}

// RecordBatch stores multiple cost records, skipping known IDs.
func (s *ExternalCostStore) RecordBatch(ctx context.Context, records []ledger.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO external_costs (
			id, source, cost, cost_coerced, tokens_used, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID, r.Source, r.Cost, r.CostCoerced, r.TokensUsed, r.OccurredAt.UTC(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListByWindow returns records inside the window, oldest first.
func (s *ExternalCostStore) ListByWindow(ctx context.Context, w report.Window) ([]ledger.Record, error) {
	query := `
		SELECT id, source, cost, cost_coerced, tokens_used, occurred_at
		FROM external_costs
		WHERE 1=1
	`
	query, args := appendWindow(query, nil, w)
	query += " ORDER BY occurred_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var r ledger.Record
		err := rows.Scan(&r.ID, &r.Source, &r.Cost, &r.CostCoerced, &r.TokensUsed, &r.OccurredAt)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Ensure interface compliance.
var _ ports.ExternalCostStore = (*ExternalCostStore)(nil)
