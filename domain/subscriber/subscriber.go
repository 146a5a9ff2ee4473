// Package subscriber provides subscriber value types and pure functions.
package subscriber

import (
	"time"

	"github.com/revlens/revlens/domain/tier"
)

// Subscriber represents one account in the billing population (immutable value type).
// Owned by the identity/billing collaborator; consumed read-only here.
type Subscriber struct {
	ID        string
	Email     string
	FullName  string
	Tier      string // raw tier name as recorded; normalize before use
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Index maps subscriber IDs to subscribers for constant-time joins.
type Index map[string]Subscriber

// NewIndex builds an ID index over subs. Later duplicates win.
// This is a PURE function.
func NewIndex(subs []Subscriber) Index {
	idx := make(Index, len(subs))
	for _, s := range subs {
		idx[s.ID] = s
	}
	return idx
}

// CountActive returns the number of active subscribers.
// This is a PURE function.
func CountActive(subs []Subscriber) int {
	n := 0
	for _, s := range subs {
		if s.IsActive {
			n++
		}
	}
	return n
}

// CountActiveByTier tallies active subscribers per canonical tier.
// Inactive subscribers are skipped. Active subscribers whose tier name does
// not normalize are excluded from the tally and returned by ID so callers
// can surface them.
// This is a PURE function.
func CountActiveByTier(subs []Subscriber, aliasing tier.Aliasing) (map[tier.Tier]int, []string) {
	counts := make(map[tier.Tier]int)
	var unknown []string

	for _, s := range subs {
		if !s.IsActive {
			continue
		}
		t, ok := tier.Normalize(s.Tier, aliasing)
		if !ok {
			unknown = append(unknown, s.ID)
			continue
		}
		counts[t]++
	}

	return counts, unknown
}

// FilterActive returns only the active subscribers, preserving order.
// This is a PURE function.
func FilterActive(subs []Subscriber) []Subscriber {
	active := make([]Subscriber, 0, len(subs))
	for _, s := range subs {
		if s.IsActive {
			active = append(active, s)
		}
	}
	return active
}
