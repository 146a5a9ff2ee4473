// Package tier provides subscription tier value types and pure functions.
package tier

import "strings"

// Tier identifies a subscription plan level.
type Tier string

const (
	Free      Tier = "free"
	Plus      Tier = "plus"
	Basic     Tier = "basic" // legacy name, normally an alias for Plus
	Pro       Tier = "pro"
	Executive Tier = "executive"
)

// Default monthly prices, used when neither configuration nor a pricing
// source supplies a value.
const (
	DefaultFreePrice      float64 = 0
	DefaultPlusPrice      float64 = 18.00
	DefaultProPrice       float64 = 30.00
	DefaultExecutivePrice float64 = 99.00
)

// Aliasing controls how the legacy "basic" tier name is treated.
// Historical subscriber rows carry both names; whether they describe the
// same tier is a deployment decision, so it is configuration, not code.
type Aliasing int

const (
	// MergeBasic folds "basic" into "plus" (the default).
	MergeBasic Aliasing = iota
	// KeepBasic keeps "basic" as a distinct historical bucket.
	KeepBasic
)

// Normalize maps a raw tier name to its canonical Tier.
// Matching is case-insensitive and ignores surrounding whitespace.
// Returns false for names outside the known set.
// This is a PURE function.
func Normalize(name string, aliasing Aliasing) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "free":
		return Free, true
	case "plus":
		return Plus, true
	case "basic":
		if aliasing == MergeBasic {
			return Plus, true
		}
		return Basic, true
	case "pro":
		return Pro, true
	case "executive":
		return Executive, true
	}
	return "", false
}

// Enumeration returns all tiers in their fixed rendering order.
// The basic bucket appears only when aliasing keeps it distinct.
// This is a PURE function.
func Enumeration(aliasing Aliasing) []Tier {
	if aliasing == KeepBasic {
		return []Tier{Free, Plus, Basic, Pro, Executive}
	}
	return []Tier{Free, Plus, Pro, Executive}
}

// Pricing maps tiers to monthly prices.
type Pricing map[Tier]float64

// DefaultPricing returns the built-in monthly price table.
// The basic bucket inherits the plus price.
// This is a PURE function.
func DefaultPricing() Pricing {
	return Pricing{
		Free:      DefaultFreePrice,
		Plus:      DefaultPlusPrice,
		Basic:     DefaultPlusPrice,
		Pro:       DefaultProPrice,
		Executive: DefaultExecutivePrice,
	}
}

// Price returns the monthly price for t. Unknown tiers price at zero.
// This is a PURE function.
func (p Pricing) Price(t Tier) float64 {
	return p[t]
}

// Merge overlays the non-nil entries of overrides onto p and returns the
// result. Neither input is modified.
// This is a PURE function.
func (p Pricing) Merge(overrides Pricing) Pricing {
	merged := make(Pricing, len(p)+len(overrides))
	for t, price := range p {
		merged[t] = price
	}
	for t, price := range overrides {
		merged[t] = price
	}
	return merged
}

// Clone returns a copy of p.
// This is a PURE function.
func (p Pricing) Clone() Pricing {
	clone := make(Pricing, len(p))
	for t, price := range p {
		clone[t] = price
	}
	return clone
}
