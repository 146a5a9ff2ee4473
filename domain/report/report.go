// Package report assembles revenue, cost, and profit figures over usage and
// subscriber data for a reporting window. Everything here is pure: callers
// fetch the collections, Build reduces them, the formatters render the result.
package report

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/revlens/revlens/domain/ledger"
	"github.com/revlens/revlens/domain/subscriber"
	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/domain/usage"
)

// DefaultWindowDays applies when a window is missing either bound.
const DefaultWindowDays = 30

// Window bounds a report. Nil bounds mean unbounded.
type Window struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Days returns the day count used for daily averages: 30 unless both bounds
// are present, otherwise the span rounded up to whole days, minimum 1.
// This is a PURE function.
func (w Window) Days() int {
	if w.Start == nil || w.End == nil {
		return DefaultWindowDays
	}
	days := int(math.Ceil(w.End.Sub(*w.Start).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// Warning kinds accumulated on a report's data-quality side channel.
const (
	WarnCoercedCost       = "coerced_cost"
	WarnCoercedExternal   = "coerced_external_cost"
	WarnUnknownTier       = "unknown_tier"
	WarnUnattributedUsage = "unattributed_usage"
)

// Warning flags a data-quality issue found while assembling a report.
type Warning struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// WindowInfo describes the window a report covers.
type WindowInfo struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	Days  int        `json:"days"`
}

// TierSummary holds the population, revenue, and profit for one tier.
type TierSummary struct {
	Tier         tier.Tier `json:"tier"`
	Subscribers  int       `json:"subscribers"`
	MonthlyPrice float64   `json:"monthly_price"`
	Revenue      float64   `json:"revenue"`
	UsageCost    float64   `json:"usage_cost"`
	Profit       float64   `json:"profit"`
}

// ModelUsage holds accumulated usage for one model.
type ModelUsage struct {
	Model             string  `json:"model"`
	UsageCount        int64   `json:"usage_count"`
	InputTokens       int64   `json:"input_tokens"`
	CachedInputTokens int64   `json:"cached_input_tokens"`
	OutputTokens      int64   `json:"output_tokens"`
	LiveSearchCalls   int64   `json:"live_search_calls"`
	TotalCost         float64 `json:"total_cost"`
	AvgCostPerCall    float64 `json:"avg_cost_per_call"`
}

// UserUsage holds accumulated usage for one user, enriched with subscriber
// identity when the user is known.
type UserUsage struct {
	UserID     string  `json:"user_id"`
	Email      string  `json:"email,omitempty"`
	FullName   string  `json:"full_name,omitempty"`
	Tier       string  `json:"tier,omitempty"`
	UsageCount int64   `json:"usage_count"`
	TotalCost  float64 `json:"total_cost"`
}

// APICosts groups the usage-cost side of a report.
type APICosts struct {
	Total              float64      `json:"total"`
	DailyAverage       float64      `json:"daily_average"`
	ByModel            []ModelUsage `json:"by_model"`
	ByUser             []UserUsage  `json:"by_user"`
	UnattributedEvents int          `json:"unattributed_events"`
}

// SourceCost summarizes one external cost source.
type SourceCost struct {
	Source     string  `json:"source"`
	Records    int64   `json:"records"`
	TokensUsed int64   `json:"tokens_used"`
	TotalCost  float64 `json:"total_cost"`
}

// ExternalCosts summarizes the separately sourced cost ledger.
type ExternalCosts struct {
	Records    int64        `json:"records"`
	TokensUsed int64        `json:"tokens_used"`
	Total      float64      `json:"total"`
	BySource   []SourceCost `json:"by_source,omitempty"`
}

// Report is the computed output bundle for a window. Derived, never
// persisted; recomputed on every request.
type Report struct {
	GeneratedAt       time.Time     `json:"generated_at"`
	Window            WindowInfo    `json:"window"`
	ActiveSubscribers int           `json:"active_subscribers"`
	Tiers             []TierSummary `json:"tiers"`
	TotalRevenue      float64       `json:"total_revenue"`
	APICosts          APICosts      `json:"api_costs"`
	ExternalCosts     ExternalCosts `json:"external_costs"`
	TotalProfit       float64       `json:"total_profit"`
	Margin            string        `json:"margin"`
	DailyAvgProfit    float64       `json:"daily_average_profit"`
	Warnings          []Warning     `json:"data_quality_warnings,omitempty"`
}

// JSON renders the report as indented JSON.
func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Input carries everything Build needs. Collections may be nil; a nil
// pricing table falls back to the defaults.
type Input struct {
	Window      Window
	GeneratedAt time.Time
	Subscribers []subscriber.Subscriber
	Events      []usage.Event
	External    []ledger.Record
	Pricing     tier.Pricing
	Aliasing    tier.Aliasing
}

// MonthlyRevenue multiplies tier populations by their monthly price.
// Tiers outside the enumeration are ignored.
// This is a PURE function.
func MonthlyRevenue(counts map[tier.Tier]int, pricing tier.Pricing, enumeration []tier.Tier) (map[tier.Tier]float64, float64) {
	byTier := make(map[tier.Tier]float64, len(enumeration))
	var total float64
	for _, t := range enumeration {
		revenue := float64(counts[t]) * pricing.Price(t)
		byTier[t] = revenue
		total += revenue
	}
	return byTier, total
}

// CostByTier joins each event's user to a subscriber tier through idx and
// accumulates cost per canonical tier. Events whose user is missing from the
// index, or whose subscriber carries an unrecognized tier name, are dropped
// from the buckets; the dropped count is returned so callers can surface it.
// This is a PURE function.
func CostByTier(events []usage.Event, idx subscriber.Index, aliasing tier.Aliasing) (map[tier.Tier]float64, int) {
	byTier := make(map[tier.Tier]float64)
	dropped := 0

	for _, e := range events {
		s, ok := idx[e.UserID]
		if !ok {
			dropped++
			continue
		}
		t, ok := tier.Normalize(s.Tier, aliasing)
		if !ok {
			dropped++
			continue
		}
		byTier[t] += e.TotalCost
	}

	return byTier, dropped
}

// DailyAverage divides a windowed total by the day count.
// This is a PURE function.
func DailyAverage(total float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	return total / float64(days)
}

// Build reduces the input collections into a Report. Missing collections
// degrade to all-zero figures; nothing here raises an error or panics.
// Sums are scrubbed to 8 decimal places; differences and ratios derived
// from scrubbed sums are left exact so the profit and daily-average
// identities hold as written.
// This is a PURE function.
func Build(in Input) Report {
	pricing := in.Pricing
	if pricing == nil {
		pricing = tier.DefaultPricing()
	}

	days := in.Window.Days()
	idx := subscriber.NewIndex(in.Subscribers)

	counts, unknownTier := subscriber.CountActiveByTier(in.Subscribers, in.Aliasing)
	tierCost, unattributed := CostByTier(in.Events, idx, in.Aliasing)

	enumeration := tier.Enumeration(in.Aliasing)
	revenueByTier, totalRevenue := MonthlyRevenue(counts, pricing, enumeration)
	totalRevenue = round8(totalRevenue)

	tiers := make([]TierSummary, 0, len(enumeration))
	for _, t := range enumeration {
		revenue := round8(revenueByTier[t])
		cost := round8(tierCost[t])
		tiers = append(tiers, TierSummary{
			Tier:         t,
			Subscribers:  counts[t],
			MonthlyPrice: pricing.Price(t),
			Revenue:      revenue,
			UsageCost:    cost,
			Profit:       revenue - cost,
		})
	}

	byModel, modelOrder := usage.CostByModel(in.Events)
	models := make([]ModelUsage, 0, len(modelOrder))
	for _, name := range modelOrder {
		mc := byModel[name]
		total := round8(mc.TotalCost)
		var avg float64
		if mc.UsageCount > 0 {
			avg = total / float64(mc.UsageCount)
		}
		models = append(models, ModelUsage{
			Model:             name,
			UsageCount:        mc.UsageCount,
			InputTokens:       mc.InputTokens,
			CachedInputTokens: mc.CachedInputTokens,
			OutputTokens:      mc.OutputTokens,
			LiveSearchCalls:   mc.LiveSearchCalls,
			TotalCost:         total,
			AvgCostPerCall:    avg,
		})
	}

	byUser, userOrder := usage.CostByUser(in.Events)
	users := make([]UserUsage, 0, len(userOrder))
	for _, id := range userOrder {
		uc := byUser[id]
		row := UserUsage{
			UserID:     id,
			UsageCount: uc.UsageCount,
			TotalCost:  round8(uc.TotalCost),
		}
		if s, ok := idx[id]; ok {
			row.Email = s.Email
			row.FullName = s.FullName
			if t, ok := tier.Normalize(s.Tier, in.Aliasing); ok {
				row.Tier = string(t)
			}
		}
		users = append(users, row)
	}

	totalUsageCost := round8(usage.TotalCost(in.Events))

	extTotal := ledger.Summarize(in.External)
	bySource, sourceOrder := ledger.SummarizeBySource(in.External)
	sources := make([]SourceCost, 0, len(sourceOrder))
	for _, src := range sourceOrder {
		s := bySource[src]
		sources = append(sources, SourceCost{
			Source:     src,
			Records:    s.Records,
			TokensUsed: s.TokensUsed,
			TotalCost:  round8(s.TotalCost),
		})
	}
	externalCost := round8(extTotal.TotalCost)

	totalProfit := totalRevenue - totalUsageCost - externalCost

	return Report{
		GeneratedAt:       in.GeneratedAt,
		Window:            WindowInfo{Start: in.Window.Start, End: in.Window.End, Days: days},
		ActiveSubscribers: subscriber.CountActive(in.Subscribers),
		Tiers:             tiers,
		TotalRevenue:      totalRevenue,
		APICosts: APICosts{
			Total:              totalUsageCost,
			DailyAverage:       DailyAverage(totalUsageCost, days),
			ByModel:            models,
			ByUser:             users,
			UnattributedEvents: unattributed,
		},
		ExternalCosts: ExternalCosts{
			Records:    extTotal.Records,
			TokensUsed: extTotal.TokensUsed,
			Total:      externalCost,
			BySource:   sources,
		},
		TotalProfit:    totalProfit,
		Margin:         FormatMargin(totalProfit, totalRevenue),
		DailyAvgProfit: DailyAverage(totalProfit, days),
		Warnings:       collectWarnings(in.Events, in.External, unknownTier, unattributed),
	}
}

func collectWarnings(events []usage.Event, external []ledger.Record, unknownTier []string, unattributed int) []Warning {
	var warnings []Warning

	for _, e := range events {
		if e.CostCoerced {
			warnings = append(warnings, Warning{
				Kind:   WarnCoercedCost,
				Detail: "usage event " + e.ID + ": malformed total_cost coerced to 0",
			})
		}
	}
	for _, r := range external {
		if r.CostCoerced {
			warnings = append(warnings, Warning{
				Kind:   WarnCoercedExternal,
				Detail: "external cost record " + r.ID + ": malformed cost coerced to 0",
			})
		}
	}
	for _, id := range unknownTier {
		warnings = append(warnings, Warning{
			Kind:   WarnUnknownTier,
			Detail: "subscriber " + id + ": unrecognized tier excluded from tier counts",
		})
	}
	if unattributed > 0 {
		warnings = append(warnings, Warning{
			Kind:   WarnUnattributedUsage,
			Detail: strconv.Itoa(unattributed) + " usage events reference unknown subscribers and were dropped from per-tier costs",
		})
	}

	return warnings
}

// round8 scrubs accumulation noise from a sum at the eighth decimal place,
// the finest granularity costs are rendered with.
func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
