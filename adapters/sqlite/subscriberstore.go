package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/revlens/revlens/domain/subscriber"
	"github.com/revlens/revlens/ports"
)

// SubscriberStore implements ports.SubscriberStore using SQLite.
type SubscriberStore struct {
	db *DB
}

// NewSubscriberStore creates a new SQLite subscriber store.
func NewSubscriberStore(db *DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

// Get retrieves a subscriber by ID.
func (s *SubscriberStore) Get(ctx context.Context, id string) (subscriber.Subscriber, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, tier, is_active, created_at, updated_at
		FROM subscribers
		WHERE id = ?
	`, id)
	return scanSubscriber(row)
}

// GetByEmail retrieves a subscriber by email.
func (s *SubscriberStore) GetByEmail(ctx context.Context, email string) (subscriber.Subscriber, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, tier, is_active, created_at, updated_at
		FROM subscribers
		WHERE email = ? COLLATE NOCASE
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (id, email, full_name, tier, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.Email, sub.FullName, sub.Tier, sub.IsActive, sub.CreatedAt, sub.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ports.ErrAlreadyExists
	}
	return err
}

// Update modifies an existing subscriber.
func (s *SubscriberStore) Update(ctx context.Context, sub subscriber.Subscriber) error {
	sub.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE subscribers
		SET email = ?, full_name = ?, tier = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, sub.Email, sub.FullName, sub.Tier, sub.IsActive, sub.UpdatedAt, sub.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ports.ErrAlreadyExists
		}
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// List returns subscribers matching the filter, in creation order.
func (s *SubscriberStore) List(ctx context.Context, f ports.SubscriberFilter) ([]subscriber.Subscriber, error) {
	query := `
		SELECT id, email, full_name, tier, is_active, created_at, updated_at
		FROM subscribers
		WHERE 1=1
	`
	var args []any
	if f.ActiveOnly {
		query += " AND is_active = 1"
	}
	if f.Tier != "" {
		query += " AND tier = ? COLLATE NOCASE"
		args = append(args, f.Tier)
	}
	query += " ORDER BY created_at, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	} else if f.Offset > 0 {
		// SQLite requires LIMIT before OFFSET; -1 means unlimited.
		query += " LIMIT -1"
	}
	if f.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []subscriber.Subscriber
	for rows.Next() {
		sub, err := scanSubscriberRows(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Count returns the total subscriber count.
func (s *SubscriberStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&count)
	return count, err
}

func scanSubscriber(row *sql.Row) (subscriber.Subscriber, error) {
	var sub subscriber.Subscriber
	err := row.Scan(
		&sub.ID, &sub.Email, &sub.FullName, &sub.Tier, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return subscriber.Subscriber{}, ports.ErrNotFound
	}
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	return sub, nil
}

func scanSubscriberRows(rows *sql.Rows) (subscriber.Subscriber, error) {
	var sub subscriber.Subscriber
	err := rows.Scan(
		&sub.ID, &sub.Email, &sub.FullName, &sub.Tier, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	return sub, nil
}

// Ensure interface compliance.
var _ ports.SubscriberStore = (*SubscriberStore)(nil)
