package pricing

import (
	"context"

	"github.com/revlens/revlens/config"
	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/ports"
)

// ConfigSource reads prices from the live configuration, so SIGHUP or file
// reloads take effect without a restart.
type ConfigSource struct {
	holder *config.Holder
}

// NewConfigSource creates a pricing source over a config holder.
func NewConfigSource(holder *config.Holder) *ConfigSource {
	return &ConfigSource{holder: holder}
}

// Current returns the price table from the current configuration.
func (s *ConfigSource) Current(ctx context.Context) (tier.Pricing, error) {
	return s.holder.Get().PricingTable(), nil
}

// Source names where the pricing comes from.
func (s *ConfigSource) Source() string {
	return "config"
}

// Ensure interface compliance.
var _ ports.PricingSource = (*ConfigSource)(nil)
