package pricing_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/revlens/revlens/adapters/pricing"
	"github.com/revlens/revlens/config"
	"github.com/revlens/revlens/domain/tier"
)

func TestStatic_Defaults(t *testing.T) {
	src := pricing.NewStatic(nil)

	table, err := src.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got := table.Price(tier.Pro); got != 30.00 {
		t.Errorf("pro price = %v, want 30.00", got)
	}
	if src.Source() != "static" {
		t.Errorf("Source() = %q, want static", src.Source())
	}
}

func TestStatic_ReturnsCopy(t *testing.T) {
	src := pricing.NewStatic(nil)
	ctx := context.Background()

	first, _ := src.Current(ctx)
	first[tier.Pro] = 999

	second, _ := src.Current(ctx)
	if second.Price(tier.Pro) == 999 {
		t.Error("mutating a returned table leaked into the source")
	}
}

func TestConfigSource_ReadsHolder(t *testing.T) {
	cfg := config.Default()
	cfg.Tiers.Prices = map[string]float64{"pro": 42.00}
	holder := config.NewStaticHolder(cfg, zerolog.Nop())

	src := pricing.NewConfigSource(holder)
	table, err := src.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got := table.Price(tier.Pro); got != 42.00 {
		t.Errorf("pro price = %v, want config override 42.00", got)
	}
	if got := table.Price(tier.Plus); got != 18.00 {
		t.Errorf("plus price = %v, want default 18.00", got)
	}
	if src.Source() != "config" {
		t.Errorf("Source() = %q, want config", src.Source())
	}
}

func TestFromConfig_SelectsSource(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		want    string
		wantErr bool
	}{
		{name: "static", source: "static", want: "static"},
		{name: "config", source: "config", want: "config"},
		{name: "empty defaults to config", source: "", want: "config"},
		{name: "unknown", source: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Pricing.Source = tt.source
			holder := config.NewStaticHolder(cfg, zerolog.Nop())

			src, err := pricing.FromConfig(holder, zerolog.Nop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("FromConfig() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("FromConfig() error = %v", err)
			}
			if src.Source() != tt.want {
				t.Errorf("Source() = %q, want %q", src.Source(), tt.want)
			}
		})
	}
}
