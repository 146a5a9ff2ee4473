package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/revlens/revlens/domain/subscriber"
	"github.com/revlens/revlens/ports"
)

// SubscriberStore implements ports.SubscriberStore using PostgreSQL.
type SubscriberStore struct {
	db *DB
}

// NewSubscriberStore creates a new PostgreSQL subscriber store.
func NewSubscriberStore(db *DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

// Get retrieves a subscriber by ID.
func (s *SubscriberStore) Get(ctx context.Context, id string) (subscriber.Subscriber, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, full_name, tier, is_active, created_at, updated_at
		FROM subscribers
		WHERE id = $1
	`, id)
	return scanSubscriber(row)
}

// GetByEmail retrieves a subscriber by email.
func (s *SubscriberStore) GetByEmail(ctx context.Context, email string) (subscriber.Subscriber, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, full_name, tier, is_active, created_at, updated_at
		FROM subscribers
		WHERE lower(email) = lower($1)
	`, email)
	return scanSubscriber(row)
}

// Create stores a new subscriber.
func (s *SubscriberStore) Create(ctx context.Context, sub subscriber.Subscriber) error {
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO subscribers (id, email, full_name, tier, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sub.ID, sub.Email, sub.FullName, sub.Tier, sub.IsActive, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	return nil
}

// Update modifies an existing subscriber.
func (s *SubscriberStore) Update(ctx context.Context, sub subscriber.Subscriber) error {
	sub.UpdatedAt = time.Now().UTC()

	tag, err := s.db.Exec(ctx, `
		UPDATE subscribers
		SET email = $1, full_name = $2, tier = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`, sub.Email, sub.FullName, sub.Tier, sub.IsActive, sub.UpdatedAt, sub.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrAlreadyExists
		}
		return fmt.Errorf("failed to update subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// List returns subscribers matching the filter, in creation order.
func (s *SubscriberStore) List(ctx context.Context, f ports.SubscriberFilter) ([]subscriber.Subscriber, error) {
	query := `
		SELECT id, email, full_name, tier, is_active, created_at, updated_at
		FROM subscribers
		WHERE TRUE
	`
	var args []any
	if f.ActiveOnly {
		query += " AND is_active"
	}
	if f.Tier != "" {
		args = append(args, f.Tier)
		query += fmt.Sprintf(" AND lower(tier) = lower($%d)", len(args))
	}
	query += " ORDER BY created_at, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var subs []subscriber.Subscriber
	for rows.Next() {
		var sub subscriber.Subscriber
		err := rows.Scan(&sub.ID, &sub.Email, &sub.FullName, &sub.Tier, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscribers: %w", err)
	}
	return subs, nil
}

// Count returns the total subscriber count.
func (s *SubscriberStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count subscribers: %w", err)
	}
	return count, nil
}

func scanSubscriber(row pgx.Row) (subscriber.Subscriber, error) {
	var sub subscriber.Subscriber
	err := row.Scan(&sub.ID, &sub.Email, &sub.FullName, &sub.Tier, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return subscriber.Subscriber{}, ports.ErrNotFound
	}
	if err != nil {
		return subscriber.Subscriber{}, fmt.Errorf("failed to scan subscriber: %w", err)
	}
	return sub, nil
}

// Ensure interface compliance.
var _ ports.SubscriberStore = (*SubscriberStore)(nil)
