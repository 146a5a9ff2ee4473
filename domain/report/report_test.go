package report_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/revlens/revlens/domain/ledger"
	"github.com/revlens/revlens/domain/report"
	"github.com/revlens/revlens/domain/subscriber"
	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/domain/usage"
)

var generatedAt = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func TestWindowDays(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2Noon := time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)
	jan11 := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		window report.Window
		want   int
	}{
		{"no bounds", report.Window{}, 30},
		{"only start", report.Window{Start: timePtr(jan1)}, 30},
		{"only end", report.Window{End: timePtr(jan11)}, 30},
		{"ten day span", report.Window{Start: timePtr(jan1), End: timePtr(jan11)}, 10},
		{"partial day rounds up", report.Window{Start: timePtr(jan1), End: timePtr(jan2Noon)}, 2},
		{"same instant", report.Window{Start: timePtr(jan1), End: timePtr(jan1)}, 1},
		{"end before start", report.Window{Start: timePtr(jan11), End: timePtr(jan1)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.Days(); got != tt.want {
				t.Errorf("Days() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMonthlyRevenue(t *testing.T) {
	counts := map[tier.Tier]int{
		tier.Free:      3,
		tier.Plus:      2,
		tier.Pro:       4,
		tier.Executive: 1,
	}
	pricing := tier.DefaultPricing()
	enumeration := tier.Enumeration(tier.MergeBasic)

	byTier, total := report.MonthlyRevenue(counts, pricing, enumeration)

	if byTier[tier.Plus] != 36.00 { // 2 * 18.00
		t.Errorf("plus revenue = %v, want 36.00", byTier[tier.Plus])
	}
	if byTier[tier.Pro] != 120.00 { // 4 * 30.00
		t.Errorf("pro revenue = %v, want 120.00", byTier[tier.Pro])
	}
	if total != 255.00 { // 0 + 36 + 120 + 99
		t.Errorf("total = %v, want 255.00", total)
	}
}

// Doubling every price doubles the total.
func TestMonthlyRevenueLinearity(t *testing.T) {
	counts := map[tier.Tier]int{tier.Free: 7, tier.Plus: 5, tier.Pro: 3, tier.Executive: 2}
	enumeration := tier.Enumeration(tier.MergeBasic)
	base := tier.DefaultPricing()

	scaled := tier.Pricing{}
	for tr, price := range base {
		scaled[tr] = price * 2
	}

	_, total := report.MonthlyRevenue(counts, base, enumeration)
	_, doubled := report.MonthlyRevenue(counts, scaled, enumeration)

	if doubled != total*2 {
		t.Errorf("doubled total = %v, want %v", doubled, total*2)
	}
}

func TestCostByTier(t *testing.T) {
	subs := []subscriber.Subscriber{
		{ID: "u1", Tier: "pro", IsActive: true},
		{ID: "u2", Tier: "basic", IsActive: true},
		{ID: "u3", Tier: "platinum", IsActive: true},
	}
	idx := subscriber.NewIndex(subs)
	events := []usage.Event{
		{UserID: "u1", TotalCost: 0.5},
		{UserID: "u1", TotalCost: 0.25},
		{UserID: "u2", TotalCost: 0.125},
		{UserID: "ghost", TotalCost: 10}, // no subscriber: dropped
		{UserID: "u3", TotalCost: 1},     // unrecognized tier: dropped
	}

	byTier, dropped := report.CostByTier(events, idx, tier.MergeBasic)

	if byTier[tier.Pro] != 0.75 {
		t.Errorf("pro cost = %v, want 0.75", byTier[tier.Pro])
	}
	if byTier[tier.Plus] != 0.125 { // basic merges into plus
		t.Errorf("plus cost = %v, want 0.125", byTier[tier.Plus])
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
}

func TestDailyAverage(t *testing.T) {
	if got := report.DailyAverage(10.875, 30); got != 10.875/30 {
		t.Errorf("DailyAverage = %v, want %v", got, 10.875/30)
	}
	if got := report.DailyAverage(100, 0); got != 0 {
		t.Errorf("DailyAverage with zero days = %v, want 0", got)
	}
}

func TestFormatMargin(t *testing.T) {
	tests := []struct {
		name    string
		profit  float64
		revenue float64
		want    string
	}{
		{"zero revenue", 0, 0, "0%"},
		{"zero revenue negative profit", -5, 0, "0%"},
		{"quarter", 50, 200, "25.00%"},
		{"negative margin", -25, 200, "-12.50%"},
		{"over hundred", 300, 200, "150.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := report.FormatMargin(tt.profit, tt.revenue); got != tt.want {
				t.Errorf("FormatMargin(%v, %v) = %q, want %q", tt.profit, tt.revenue, got, tt.want)
			}
		})
	}
}

// buildScenarioInput is shared by the Build and CSV tests: a small
// population exercising tier aliasing, unknown tiers, unattributed usage,
// coerced costs, and two external cost sources over a 30-day January window.
func buildScenarioInput() report.Input {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31 := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	subs := []subscriber.Subscriber{
		{ID: "s_free", Email: "free@example.com", FullName: "Free User", Tier: "free", IsActive: true},
		{ID: "s_pro", Email: "pro@example.com", FullName: "Doe, Jane", Tier: "pro", IsActive: true},
		{ID: "s_pro2", Email: "gone@example.com", FullName: "Gone Pro", Tier: "pro", IsActive: false},
		{ID: "s_plus", Email: "plus@example.com", FullName: "Plus User", Tier: "plus", IsActive: true},
		{ID: "s_basic", Email: "basic@example.com", FullName: "Basic User", Tier: "basic", IsActive: true},
		{ID: "s_exec", Email: "exec@example.com", FullName: "Exec User", Tier: "executive", IsActive: true},
		{ID: "s_mystery", Email: "mystery@example.com", FullName: "Mystery User", Tier: "platinum", IsActive: true},
	}

	events := []usage.Event{
		{ID: "e1", UserID: "s_pro", Model: "grok-3", InputTokens: 1000, OutputTokens: 400, TotalCost: 0.5, OccurredAt: jan1},
		{ID: "e2", UserID: "s_plus", Model: "grok-3", InputTokens: 500, CachedInputTokens: 100, OutputTokens: 200, TotalCost: 0.25, OccurredAt: jan1},
		{ID: "e3", UserID: "s_basic", Model: "grok-3-mini", InputTokens: 300, OutputTokens: 120, LiveSearchCalls: 2, TotalCost: 0.125, OccurredAt: jan1},
		{ID: "e4", UserID: "ghost", Model: "grok-3", InputTokens: 50, OutputTokens: 20, TotalCost: 10, OccurredAt: jan1},
		usage.NewEvent("e5", "s_pro", "grok-3", 10, 0, 5, 0, "bad", jan1),
	}

	external := []ledger.Record{
		{ID: "x1", Source: "content-generation", Cost: 2.5, TokensUsed: 800, OccurredAt: jan1},
		{ID: "x2", Source: "news", Cost: 0.5, OccurredAt: jan1},
	}

	return report.Input{
		Window:      report.Window{Start: timePtr(jan1), End: timePtr(jan31)},
		GeneratedAt: generatedAt,
		Subscribers: subs,
		Events:      events,
		External:    external,
		Pricing:     tier.DefaultPricing(),
		Aliasing:    tier.MergeBasic,
	}
}

func TestBuild(t *testing.T) {
	r := report.Build(buildScenarioInput())

	if r.Window.Days != 30 {
		t.Errorf("Window.Days = %d, want 30", r.Window.Days)
	}
	if r.ActiveSubscribers != 6 { // all actives, including the unknown tier
		t.Errorf("ActiveSubscribers = %d, want 6", r.ActiveSubscribers)
	}

	// Tier rows follow enumeration order with basic merged into plus.
	if len(r.Tiers) != 4 {
		t.Fatalf("len(Tiers) = %d, want 4", len(r.Tiers))
	}
	wantCounts := map[tier.Tier]int{tier.Free: 1, tier.Plus: 2, tier.Pro: 1, tier.Executive: 1}
	for _, ts := range r.Tiers {
		if ts.Subscribers != wantCounts[ts.Tier] {
			t.Errorf("%s subscribers = %d, want %d", ts.Tier, ts.Subscribers, wantCounts[ts.Tier])
		}
	}

	if r.TotalRevenue != 165.00 { // 0 + 2*18 + 30 + 99
		t.Errorf("TotalRevenue = %v, want 165.00", r.TotalRevenue)
	}
	if r.APICosts.Total != 10.875 { // 0.5 + 0.25 + 0.125 + 10 + 0(coerced)
		t.Errorf("APICosts.Total = %v, want 10.875", r.APICosts.Total)
	}
	if r.ExternalCosts.Total != 3.00 {
		t.Errorf("ExternalCosts.Total = %v, want 3.00", r.ExternalCosts.Total)
	}
	if r.ExternalCosts.TokensUsed != 800 {
		t.Errorf("ExternalCosts.TokensUsed = %d, want 800", r.ExternalCosts.TokensUsed)
	}
	if r.TotalProfit != 151.125 { // 165 - 10.875 - 3
		t.Errorf("TotalProfit = %v, want 151.125", r.TotalProfit)
	}
	if r.Margin != "91.59%" { // 151.125 / 165
		t.Errorf("Margin = %q, want 91.59%%", r.Margin)
	}
	if r.APICosts.UnattributedEvents != 1 {
		t.Errorf("UnattributedEvents = %d, want 1", r.APICosts.UnattributedEvents)
	}

	// Models in first-appearance order.
	if len(r.APICosts.ByModel) != 2 {
		t.Fatalf("len(ByModel) = %d, want 2", len(r.APICosts.ByModel))
	}
	if r.APICosts.ByModel[0].Model != "grok-3" || r.APICosts.ByModel[1].Model != "grok-3-mini" {
		t.Errorf("model order = [%s %s], want [grok-3 grok-3-mini]", r.APICosts.ByModel[0].Model, r.APICosts.ByModel[1].Model)
	}
	if r.APICosts.ByModel[0].UsageCount != 4 { // e1, e2, e4, e5
		t.Errorf("grok-3 UsageCount = %d, want 4", r.APICosts.ByModel[0].UsageCount)
	}

	// Per-user rows enriched from the subscriber index; unknown users keep
	// their raw ID with blank identity columns.
	var proRow, ghostRow *report.UserUsage
	for i := range r.APICosts.ByUser {
		switch r.APICosts.ByUser[i].UserID {
		case "s_pro":
			proRow = &r.APICosts.ByUser[i]
		case "ghost":
			ghostRow = &r.APICosts.ByUser[i]
		}
	}
	if proRow == nil || ghostRow == nil {
		t.Fatalf("ByUser missing expected rows: %+v", r.APICosts.ByUser)
	}
	if proRow.UsageCount != 2 || proRow.Email != "pro@example.com" || proRow.Tier != "pro" {
		t.Errorf("s_pro row = %+v, want 2 calls enriched with email and tier", proRow)
	}
	if ghostRow.Email != "" || ghostRow.Tier != "" {
		t.Errorf("ghost row = %+v, want blank identity", ghostRow)
	}

	// One coerced cost, one unknown tier, one unattributed summary.
	kinds := map[string]int{}
	for _, w := range r.Warnings {
		kinds[w.Kind]++
	}
	if kinds[report.WarnCoercedCost] != 1 {
		t.Errorf("coerced_cost warnings = %d, want 1", kinds[report.WarnCoercedCost])
	}
	if kinds[report.WarnUnknownTier] != 1 {
		t.Errorf("unknown_tier warnings = %d, want 1", kinds[report.WarnUnknownTier])
	}
	if kinds[report.WarnUnattributedUsage] != 1 {
		t.Errorf("unattributed_usage warnings = %d, want 1", kinds[report.WarnUnattributedUsage])
	}
}

// The profit identity holds exactly on the reported figures, whatever the input.
func TestBuildProfitIdentity(t *testing.T) {
	inputs := []report.Input{
		buildScenarioInput(),
		{GeneratedAt: generatedAt}, // empty
		{
			GeneratedAt: generatedAt,
			Events:      []usage.Event{{UserID: "u", Model: "m", TotalCost: 0.07}},
			External:    []ledger.Record{{ID: "x", Source: "news", Cost: 99.99}},
		},
	}

	for i, in := range inputs {
		r := report.Build(in)
		if got := r.TotalRevenue - r.APICosts.Total - r.ExternalCosts.Total; r.TotalProfit != got {
			t.Errorf("input %d: TotalProfit = %v, want identity value %v", i, r.TotalProfit, got)
		}
	}
}

func TestBuildDailyAverages(t *testing.T) {
	in := buildScenarioInput()
	in.Window = report.Window{} // no bounds: 30-day default

	r := report.Build(in)

	if r.Window.Days != 30 {
		t.Fatalf("Window.Days = %d, want 30", r.Window.Days)
	}
	if r.APICosts.DailyAverage != r.APICosts.Total/30 {
		t.Errorf("DailyAverage = %v, want %v", r.APICosts.DailyAverage, r.APICosts.Total/30)
	}
	if r.DailyAvgProfit != r.TotalProfit/30 {
		t.Errorf("DailyAvgProfit = %v, want %v", r.DailyAvgProfit, r.TotalProfit/30)
	}
}

func TestBuildEmpty(t *testing.T) {
	r := report.Build(report.Input{GeneratedAt: generatedAt})

	if r.TotalRevenue != 0 || r.APICosts.Total != 0 || r.TotalProfit != 0 {
		t.Errorf("totals = (%v, %v, %v), want all zero", r.TotalRevenue, r.APICosts.Total, r.TotalProfit)
	}
	if r.Margin != "0%" {
		t.Errorf("Margin = %q, want 0%%", r.Margin)
	}
	if len(r.Tiers) != 4 {
		t.Errorf("len(Tiers) = %d, want 4 zero rows", len(r.Tiers))
	}
	for _, ts := range r.Tiers {
		if ts.Subscribers != 0 || ts.Revenue != 0 {
			t.Errorf("tier %s = %+v, want zeros", ts.Tier, ts)
		}
	}
	if len(r.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", r.Warnings)
	}
	if r.Window.Days != 30 {
		t.Errorf("Window.Days = %d, want 30", r.Window.Days)
	}
}

// Costs alone never flip the margin away from its zero-revenue guard.
func TestBuildZeroRevenueNegativeProfit(t *testing.T) {
	r := report.Build(report.Input{
		GeneratedAt: generatedAt,
		Events:      []usage.Event{{UserID: "u", Model: "m", TotalCost: 12.5}},
	})

	if r.TotalProfit != -12.5 {
		t.Errorf("TotalProfit = %v, want -12.5", r.TotalProfit)
	}
	if r.Margin != "0%" {
		t.Errorf("Margin = %q, want 0%% when revenue is zero", r.Margin)
	}
}

func TestBuildKeepBasic(t *testing.T) {
	in := buildScenarioInput()
	in.Aliasing = tier.KeepBasic

	r := report.Build(in)

	if len(r.Tiers) != 5 {
		t.Fatalf("len(Tiers) = %d, want 5 with basic kept", len(r.Tiers))
	}
	var plusRow, basicRow report.TierSummary
	for _, ts := range r.Tiers {
		switch ts.Tier {
		case tier.Plus:
			plusRow = ts
		case tier.Basic:
			basicRow = ts
		}
	}
	if plusRow.Subscribers != 1 || basicRow.Subscribers != 1 {
		t.Errorf("plus/basic subscribers = %d/%d, want 1/1", plusRow.Subscribers, basicRow.Subscribers)
	}
	if basicRow.MonthlyPrice != 18.00 { // basic defaults to the plus price
		t.Errorf("basic MonthlyPrice = %v, want 18.00", basicRow.MonthlyPrice)
	}
	// Revenue total unchanged by the split.
	if r.TotalRevenue != 165.00 {
		t.Errorf("TotalRevenue = %v, want 165.00", r.TotalRevenue)
	}
}

func TestBuildNilPricingFallsBack(t *testing.T) {
	in := buildScenarioInput()
	in.Pricing = nil

	r := report.Build(in)
	if r.TotalRevenue != 165.00 {
		t.Errorf("TotalRevenue = %v, want 165.00 from default pricing", r.TotalRevenue)
	}
}

func TestReportJSON(t *testing.T) {
	r := report.Build(buildScenarioInput())

	raw, err := r.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["margin"] != "91.59%" {
		t.Errorf("margin = %v, want 91.59%% as a string", decoded["margin"])
	}
	if _, ok := decoded["total_revenue"].(float64); !ok {
		t.Errorf("total_revenue = %T, want a JSON number", decoded["total_revenue"])
	}
	if _, ok := decoded["data_quality_warnings"]; !ok {
		t.Error("data_quality_warnings missing from JSON output")
	}
}

func BenchmarkBuild(b *testing.B) {
	subs := make([]subscriber.Subscriber, 500)
	tiers := []string{"free", "plus", "basic", "pro", "executive"}
	for i := range subs {
		subs[i] = subscriber.Subscriber{ID: "u" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26)) + string(rune('a'+i%10)), Tier: tiers[i%len(tiers)], IsActive: i%5 != 0}
	}
	events := make([]usage.Event, 5000)
	models := []string{"grok-3", "grok-3-mini", "grok-2-image"}
	for i := range events {
		events[i] = usage.Event{
			UserID:      subs[i%len(subs)].ID,
			Model:       models[i%len(models)],
			InputTokens: 250,
			TotalCost:   0.0015,
		}
	}
	in := report.Input{
		GeneratedAt: generatedAt,
		Subscribers: subs,
		Events:      events,
		Pricing:     tier.DefaultPricing(),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		report.Build(in)
	}
}
