package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/price"

	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/ports"
)

// Stripe resolves tier prices from Stripe price objects. Fetched tables are
// cached for the refresh interval; on fetch failure the last known good
// table is served so a report build never fails on a Stripe outage.
type Stripe struct {
	priceIDs map[tier.Tier]string
	fallback tier.Pricing
	refresh  time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	table     tier.Pricing
	fetchedAt time.Time
}

// NewStripe creates a Stripe-backed pricing source. priceIDs maps raw tier
// names to Stripe price IDs; names that do not resolve to a known tier are
// ignored. Tiers without a price ID keep their fallback price.
func NewStripe(secretKey string, priceIDs map[string]string, aliasing tier.Aliasing, fallback tier.Pricing, refresh time.Duration, log zerolog.Logger) *Stripe {
	stripe.Key = secretKey

	resolved := make(map[tier.Tier]string, len(priceIDs))
	for name, id := range priceIDs {
		t, ok := tier.Normalize(name, aliasing)
		if !ok {
			log.Warn().Str("tier", name).Msg("ignoring stripe price for unknown tier")
			continue
		}
		resolved[t] = id
	}

	if fallback == nil {
		fallback = tier.DefaultPricing()
	}

	return &Stripe{
		priceIDs: resolved,
		fallback: fallback,
		refresh:  refresh,
		log:      log,
	}
}

// Current returns the price table, refetching from Stripe when the cached
// table is older than the refresh interval.
func (s *Stripe) Current(ctx context.Context) (tier.Pricing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table != nil && time.Since(s.fetchedAt) < s.refresh {
		return s.table.Clone(), nil
	}

	fetched, err := s.fetch()
	if err != nil {
		if s.table != nil {
			s.log.Warn().Err(err).Msg("stripe price fetch failed, serving last known prices")
			return s.table.Clone(), nil
		}
		s.log.Warn().Err(err).Msg("stripe price fetch failed, serving fallback prices")
		return s.fallback.Clone(), nil
	}

	s.table = fetched
	s.fetchedAt = time.Now()
	return s.table.Clone(), nil
}

func (s *Stripe) fetch() (tier.Pricing, error) {
	table := s.fallback.Clone()
	for t, id := range s.priceIDs {
		p, err := price.Get(id, nil)
		if err != nil {
			return nil, fmt.Errorf("get price %s: %w", id, err)
		}
		// UnitAmount is in the smallest currency unit.
		table[t] = float64(p.UnitAmount) / 100
	}
	return table, nil
}

// Source names where the pricing comes from.
func (s *Stripe) Source() string {
	return "stripe"
}

// Ensure interface compliance.
var _ ports.PricingSource = (*Stripe)(nil)
