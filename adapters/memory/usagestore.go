package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/revlens/revlens/domain/report"
	"github.com/revlens/revlens/domain/usage"
	"github.com/revlens/revlens/ports"
)

// UsageStore is an in-memory implementation of ports.UsageStore.
type UsageStore struct {
	mu     sync.RWMutex
	events []usage.Event
	known  map[string]bool
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{
		known: make(map[string]bool),
	}
}

// RecordBatch stores multiple usage events, skipping IDs already recorded.
func (s *UsageStore) RecordBatch(ctx context.Context, events []usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if s.known[e.ID] {
			continue
		}
		s.known[e.ID] = true
		s.events = append(s.events, e)
	}
	return nil
}

// ListByWindow returns events inside the window, oldest first.
func (s *UsageStore) ListByWindow(ctx context.Context, w report.Window) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []usage.Event
	for _, e := range s.events {
		if inWindow(e.OccurredAt, w) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})
	return matched, nil
}

// Count returns the total event count.
func (s *UsageStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}

// GetAll returns all events (for testing).
func (s *UsageStore) GetAll() []usage.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]usage.Event{}, s.events...)
}

// Clear removes all events (for testing).
func (s *UsageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.known = make(map[string]bool)
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
