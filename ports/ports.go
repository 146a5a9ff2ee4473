// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/revlens/revlens/domain/ledger"
	"github.com/revlens/revlens/domain/report"
	"github.com/revlens/revlens/domain/subscriber"
	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/domain/usage"
)

// ErrNotFound is returned by stores when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned by stores when a unique key collides.
var ErrAlreadyExists = errors.New("already exists")

// ErrCacheMiss is returned by caches when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// SubscriberFilter narrows List results. The zero value matches everything.
type SubscriberFilter struct {
	Tier       string // raw tier name; empty matches all tiers
	ActiveOnly bool
	Limit      int // 0 = no limit
	Offset     int
}

// SubscriberStore persists subscriber accounts.
type SubscriberStore interface {
	// Get retrieves a subscriber by ID.
	Get(ctx context.Context, id string) (subscriber.Subscriber, error)

	// GetByEmail retrieves a subscriber by email.
	GetByEmail(ctx context.Context, email string) (subscriber.Subscriber, error)

	// Create stores a new subscriber.
	Create(ctx context.Context, s subscriber.Subscriber) error

	// Update modifies an existing subscriber.
	Update(ctx context.Context, s subscriber.Subscriber) error

	// List returns subscribers matching the filter, in creation order.
	List(ctx context.Context, f SubscriberFilter) ([]subscriber.Subscriber, error)

	// Count returns the total subscriber count.
	Count(ctx context.Context) (int, error)
}

// UsageStore persists usage events.
type UsageStore interface {
	// RecordBatch stores multiple usage events. Events whose ID is already
	// recorded are skipped, making replays idempotent.
	RecordBatch(ctx context.Context, events []usage.Event) error

	// ListByWindow returns events whose timestamp falls inside the window,
	// oldest first. Nil bounds are unbounded.
	ListByWindow(ctx context.Context, w report.Window) ([]usage.Event, error)

	// Count returns the total event count.
	Count(ctx context.Context) (int64, error)
}

// ExternalCostStore persists externally sourced cost records.
type ExternalCostStore interface {
	// RecordBatch stores multiple cost records, skipping known IDs.
	RecordBatch(ctx context.Context, records []ledger.Record) error

	// ListByWindow returns records inside the window, oldest first.
	ListByWindow(ctx context.Context, w report.Window) ([]ledger.Record, error)
}

// -----------------------------------------------------------------------------
// Pricing Ports
// -----------------------------------------------------------------------------

// PricingSource supplies the effective monthly price per tier.
type PricingSource interface {
	// Current returns the price table. Implementations fall back to their
	// last known good table rather than failing a report build.
	Current(ctx context.Context) (tier.Pricing, error)

	// Source names where the pricing comes from (e.g. "static", "stripe").
	Source() string
}

// -----------------------------------------------------------------------------
// Cache Ports
// -----------------------------------------------------------------------------

// ReportCache memoizes rendered report artifacts. Implementations must be
// safe to skip: callers recompute on any error.
type ReportCache interface {
	// Get returns the cached artifact for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores an artifact under key for ttl.
	Set(ctx context.Context, key string, artifact []byte, ttl time.Duration) error
}

// -----------------------------------------------------------------------------
// Event Ports
// -----------------------------------------------------------------------------

// EventRecorder accepts usage events for asynchronous persistence.
type EventRecorder interface {
	// Record queues a usage event for persistence. Non-blocking unless the
	// buffer is saturated.
	Record(event usage.Event)

	// Flush forces immediate persistence of queued events.
	Flush(ctx context.Context) error

	// Close stops the recorder and flushes remaining events.
	Close() error
}
