package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/revlens/revlens/domain/ledger"
	"github.com/revlens/revlens/domain/report"
	"github.com/revlens/revlens/ports"
)

// ExternalCostStore is an in-memory implementation of ports.ExternalCostStore.
type ExternalCostStore struct {
	mu      sync.RWMutex
	records []ledger.Record
	known   map[string]bool
}

// NewExternalCostStore creates a new in-memory external cost store.
func NewExternalCostStore() *ExternalCostStore {
	return &ExternalCostStore{
		known: make(map[string]bool),
	}
}

// RecordBatch stores multiple cost records, skipping IDs already recorded.
func (s *ExternalCostStore) RecordBatch(ctx context.Context, records []ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if s.known[r.ID] {
			continue
		}
		s.known[r.ID] = true
		s.records = append(s.records, r)
	}
	return nil
}

// ListByWindow returns records inside the window, oldest first.
func (s *ExternalCostStore) ListByWindow(ctx context.Context, w report.Window) ([]ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []ledger.Record
	for _, r := range s.records {
		if inWindow(r.OccurredAt, w) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})
	return matched, nil
}

// GetAll returns all records (for testing).
func (s *ExternalCostStore) GetAll() []ledger.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ledger.Record{}, s.records...)
}

// Clear removes all records (for testing).
func (s *ExternalCostStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.known = make(map[string]bool)
}

// inWindow reports whether t falls inside the window. Nil bounds are
// unbounded; the end bound is inclusive.
func inWindow(t time.Time, w report.Window) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// Ensure interface compliance.
var _ ports.ExternalCostStore = (*ExternalCostStore)(nil)
