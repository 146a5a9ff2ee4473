// Package memory provides in-memory implementations of storage ports,
// used for tests and development.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/revlens/revlens/domain/subscriber"
	"github.com/revlens/revlens/ports"
)

// SubscriberStore is an in-memory implementation of ports.SubscriberStore.
type SubscriberStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]subscriber.Subscriber
}

// NewSubscriberStore creates a new in-memory subscriber store.
func NewSubscriberStore() *SubscriberStore {
	return &SubscriberStore{
		byID: make(map[string]subscriber.Subscriber),
	}
}

// Get retrieves a subscriber by ID.
func (s *SubscriberStore) Get(ctx context.Context, id string) (subscriber.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.byID[id]
	if !ok {
		return subscriber.Subscriber{}, ports.ErrNotFound
	}
	return sub, nil
}

// GetByEmail retrieves a subscriber by email.
func (s *SubscriberStore) GetByEmail(ctx context.Context, email string) (subscriber.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if strings.EqualFold(s.byID[id].Email, email) {
			return s.byID[id], nil
		}
	}
	return subscriber.Subscriber{}, ports.ErrNotFound
}

// Create stores a new subscriber.
func (s *SubscriberStore) Create(ctx context.Context, sub subscriber.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[sub.ID]; exists {
		return ports.ErrAlreadyExists
	}
	for _, id := range s.order {
		if strings.EqualFold(s.byID[id].Email, sub.Email) {
			return ports.ErrAlreadyExists
		}
	}
	s.byID[sub.ID] = sub
	s.order = append(s.order, sub.ID)
	return nil
}

// Update modifies an existing subscriber.
func (s *SubscriberStore) Update(ctx context.Context, sub subscriber.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[sub.ID]; !exists {
		return ports.ErrNotFound
	}
	s.byID[sub.ID] = sub
	return nil
}

// List returns subscribers matching the filter, in creation order.
func (s *SubscriberStore) List(ctx context.Context, f ports.SubscriberFilter) ([]subscriber.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []subscriber.Subscriber
	for _, id := range s.order {
		sub := s.byID[id]
		if f.ActiveOnly && !sub.IsActive {
			continue
		}
		if f.Tier != "" && !strings.EqualFold(sub.Tier, f.Tier) {
			continue
		}
		matched = append(matched, sub)
	}

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// Count returns the total subscriber count.
func (s *SubscriberStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

// Clear removes all subscribers (for testing).
func (s *SubscriberStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.byID = make(map[string]subscriber.Subscriber)
}

// Ensure interface compliance.
var _ ports.SubscriberStore = (*SubscriberStore)(nil)
