package pricing

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/revlens/revlens/config"
	"github.com/revlens/revlens/ports"
)

// FromConfig builds the pricing source named by the configuration.
func FromConfig(holder *config.Holder, log zerolog.Logger) (ports.PricingSource, error) {
	cfg := holder.Get()
	switch cfg.Pricing.Source {
	case "static":
		return NewStatic(nil), nil
	case "", "config":
		return NewConfigSource(holder), nil
	case "stripe":
		return NewStripe(
			cfg.Pricing.StripeKey,
			cfg.Pricing.StripePrices,
			cfg.Tiers.Aliasing(),
			cfg.PricingTable(),
			cfg.Pricing.RefreshInterval,
			log,
		), nil
	default:
		return nil, fmt.Errorf("unknown pricing source %q", cfg.Pricing.Source)
	}
}
