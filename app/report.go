// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/revlens/revlens/adapters/metrics"
	"github.com/revlens/revlens/domain/report"
	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/ports"
)

// ReportService assembles earnings reports from the stores and memoizes
// rendered artifacts in the report cache.
type ReportService struct {
	subscribers ports.SubscriberStore
	usage       ports.UsageStore
	external    ports.ExternalCostStore
	pricing     ports.PricingSource
	cache       ports.ReportCache
	clock       ports.Clock
	metrics     *metrics.Collector
	logger      zerolog.Logger

	aliasing func() tier.Aliasing
	cacheTTL func() time.Duration
}

// ReportServiceConfig contains configuration for ReportService.
// Aliasing and CacheTTL are read per request so hot config reloads take
// effect without a restart.
type ReportServiceConfig struct {
	Aliasing func() tier.Aliasing
	CacheTTL func() time.Duration
}

// NewReportService creates a new report service.
func NewReportService(
	subscribers ports.SubscriberStore,
	usageStore ports.UsageStore,
	external ports.ExternalCostStore,
	pricing ports.PricingSource,
	cache ports.ReportCache,
	clock ports.Clock,
	m *metrics.Collector,
	logger zerolog.Logger,
	cfg ReportServiceConfig,
) *ReportService {
	if cfg.Aliasing == nil {
		cfg.Aliasing = func() tier.Aliasing { return tier.MergeBasic }
	}
	if cfg.CacheTTL == nil {
		cfg.CacheTTL = func() time.Duration { return 60 * time.Second }
	}

	return &ReportService{
		subscribers: subscribers,
		usage:       usageStore,
		external:    external,
		pricing:     pricing,
		cache:       cache,
		clock:       clock,
		metrics:     m,
		logger:      logger.With().Str("service", "report").Logger(),
		aliasing:    cfg.Aliasing,
		cacheTTL:    cfg.CacheTTL,
	}
}

// Build assembles a fresh report for the window, bypassing the cache.
func (s *ReportService) Build(ctx context.Context, w report.Window) (report.Report, error) {
	start := time.Now()

	subs, err := s.subscribers.List(ctx, ports.SubscriberFilter{})
	if err != nil {
		return report.Report{}, fmt.Errorf("list subscribers: %w", err)
	}

	events, err := s.usage.ListByWindow(ctx, w)
	if err != nil {
		return report.Report{}, fmt.Errorf("list usage events: %w", err)
	}

	external, err := s.external.ListByWindow(ctx, w)
	if err != nil {
		return report.Report{}, fmt.Errorf("list external costs: %w", err)
	}

	pricing, err := s.pricing.Current(ctx)
	if err != nil {
		// Pricing sources fall back internally; an error here means even the
		// fallback path failed, so surface it.
		return report.Report{}, fmt.Errorf("resolve pricing: %w", err)
	}

	rep := report.Build(report.Input{
		Window:      w,
		GeneratedAt: s.clock.Now().UTC(),
		Subscribers: subs,
		Events:      events,
		External:    external,
		Pricing:     pricing,
		Aliasing:    s.aliasing(),
	})

	s.metrics.ReportBuildDuration.Observe(time.Since(start).Seconds())
	s.metrics.DataQualityWarnings.Add(float64(len(rep.Warnings)))
	s.metrics.UnattributedEvents.Add(float64(rep.APICosts.UnattributedEvents))

	s.logger.Debug().
		Int("subscribers", len(subs)).
		Int("events", len(events)).
		Int("external_records", len(external)).
		Int("warnings", len(rep.Warnings)).
		Msg("report built")

	return rep, nil
}

// RenderJSON returns the report as indented JSON, served from the cache
// when a fresh artifact exists.
func (s *ReportService) RenderJSON(ctx context.Context, w report.Window) ([]byte, error) {
	return s.render(ctx, w, "json", func(rep report.Report) ([]byte, error) {
		return rep.JSON()
	})
}

// RenderCSV returns the report as a sectioned CSV document.
func (s *ReportService) RenderCSV(ctx context.Context, w report.Window) ([]byte, error) {
	return s.render(ctx, w, "csv", func(rep report.Report) ([]byte, error) {
		return []byte(rep.CSV()), nil
	})
}

func (s *ReportService) render(ctx context.Context, w report.Window, format string, encode func(report.Report) ([]byte, error)) ([]byte, error) {
	key := s.cacheKey(format, w)

	if cached, err := s.cache.Get(ctx, key); err == nil {
		s.metrics.CacheHits.Inc()
		return cached, nil
	} else if !errors.Is(err, ports.ErrCacheMiss) {
		// Cache trouble never fails a report; recompute.
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache read failed")
	}
	s.metrics.CacheMisses.Inc()

	rep, err := s.Build(ctx, w)
	if err != nil {
		return nil, err
	}

	artifact, err := encode(rep)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	s.metrics.ReportsBuilt.WithLabelValues(format).Inc()

	if err := s.cache.Set(ctx, key, artifact, s.cacheTTL()); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}

	return artifact, nil
}

// cacheKey identifies an artifact by format, window, aliasing mode, and
// pricing source. Price changes inside a source are absorbed by the TTL.
func (s *ReportService) cacheKey(format string, w report.Window) string {
	start, end := "-", "-"
	if w.Start != nil {
		start = w.Start.UTC().Format(time.RFC3339)
	}
	if w.End != nil {
		end = w.End.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("report:%s:%s:%s:a%d:%s", format, start, end, s.aliasing(), s.pricing.Source())
}
