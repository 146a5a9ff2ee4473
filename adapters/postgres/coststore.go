package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/revlens/revlens/domain/ledger"
	"github.com/revlens/revlens/domain/report"
	"github.com/revlens/revlens/ports"
)

// ExternalCostStore implements ports.ExternalCostStore using PostgreSQL.
type ExternalCostStore struct {
	db *DB
}

// NewExternalCostStore creates a new PostgreSQL external cost store.
func NewExternalCostStore(db *DB) *ExternalCostStore {
	return &ExternalCostStore{db: db}
}

// RecordBatch stores multiple cost records, skipping known IDs.
func (s *ExternalCostStore) RecordBatch(ctx context.Context, records []ledger.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO external_costs (id, source, cost, cost_coerced, tokens_used, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Source, r.Cost, r.CostCoerced, r.TokensUsed, r.OccurredAt.UTC())
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to record external cost: %w", err)
		}
	}
	return nil
}

// ListByWindow returns records inside the window, oldest first.
func (s *ExternalCostStore) ListByWindow(ctx context.Context, w report.Window) ([]ledger.Record, error) {
	query := `
		SELECT id, source, cost, cost_coerced, tokens_used, occurred_at
		FROM external_costs
		WHERE TRUE
	`
	query, args := appendWindow(query, nil, w)
	query += " ORDER BY occurred_at, id"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query external costs: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var r ledger.Record
		err := rows.Scan(&r.ID, &r.Source, &r.Cost, &r.CostCoerced, &r.TokensUsed, &r.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan external cost: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating external costs: %w", err)
	}
	return records, nil
}

// Ensure interface compliance.
var _ ports.ExternalCostStore = (*ExternalCostStore)(nil)
