// Package pricing provides implementations of ports.PricingSource.
package pricing

import (
	"context"

	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/ports"
)

// Static serves a fixed price table.
type Static struct {
	table tier.Pricing
}

// NewStatic creates a pricing source over a fixed table. A nil table falls
// back to the built-in defaults.
func NewStatic(table tier.Pricing) *Static {
	if table == nil {
		table = tier.DefaultPricing()
	}
	return &Static{table: table}
}

// Current returns a copy of the price table.
func (s *Static) Current(ctx context.Context) (tier.Pricing, error) {
	return s.table.Clone(), nil
}

// Source names where the pricing comes from.
func (s *Static) Source() string {
	return "static"
}

// Ensure interface compliance.
var _ ports.PricingSource = (*Static)(nil)
