package report

import (
	"strconv"
	"strings"
	"time"
)

// CSV renders the report as a sequence of labeled sections, each a header
// row followed by comma-separated data rows. Free-text fields are wrapped
// in double quotes so embedded commas survive. Row order follows the tier
// enumeration for tier sections and first-appearance order elsewhere; no
// additional sorting is applied.
// This is a PURE function.
func (r Report) CSV() string {
	var b strings.Builder

	b.WriteString("SUMMARY\n")
	writeRow(&b, "Metric", "Value")
	writeRow(&b, "Report Generated", r.GeneratedAt.UTC().Format(time.RFC3339))
	writeRow(&b, "Window Start", formatBound(r.Window.Start))
	writeRow(&b, "Window End", formatBound(r.Window.End))
	writeRow(&b, "Window Days", strconv.Itoa(r.Window.Days))
	writeRow(&b, "Active Subscribers", strconv.Itoa(r.ActiveSubscribers))
	writeRow(&b, "Total Monthly Revenue", FormatMoney(r.TotalRevenue))
	writeRow(&b, "Total API Cost", FormatMoney(r.APICosts.Total))
	writeRow(&b, "Total Content Generation Cost", FormatMoney(r.ExternalCosts.Total))
	writeRow(&b, "Total Profit", FormatMoney(r.TotalProfit))
	writeRow(&b, "Profit Margin", r.Margin)
	writeRow(&b, "Daily Average API Cost", FormatMoney(r.APICosts.DailyAverage))
	writeRow(&b, "Daily Average Profit", FormatMoney(r.DailyAvgProfit))
	b.WriteByte('\n')

	b.WriteString("REVENUE BY SUBSCRIPTION TIER\n")
	writeRow(&b, "Tier", "Subscribers", "Monthly Price", "Revenue", "Usage Cost", "Profit")
	for _, ts := range r.Tiers {
		writeRow(&b,
			string(ts.Tier),
			strconv.Itoa(ts.Subscribers),
			FormatMoney(ts.MonthlyPrice),
			FormatMoney(ts.Revenue),
			FormatMoney(ts.UsageCost),
			FormatMoney(ts.Profit),
		)
	}
	b.WriteByte('\n')

	b.WriteString("API COSTS BY MODEL\n")
	writeRow(&b, "Model", "Calls", "Input Tokens", "Cached Input Tokens", "Output Tokens", "Live Search Calls", "Total Cost", "Avg Cost Per Call")
	for _, m := range r.APICosts.ByModel {
		writeRow(&b,
			m.Model,
			strconv.FormatInt(m.UsageCount, 10),
			strconv.FormatInt(m.InputTokens, 10),
			strconv.FormatInt(m.CachedInputTokens, 10),
			strconv.FormatInt(m.OutputTokens, 10),
			strconv.FormatInt(m.LiveSearchCalls, 10),
			FormatUnitCost(m.TotalCost),
			FormatUnitCost(m.AvgCostPerCall),
		)
	}
	b.WriteByte('\n')

	b.WriteString("DETAILED USAGE BY USER\n")
	writeRow(&b, "User ID", "Email", "Name", "Tier", "Calls", "Total Cost")
	for _, u := range r.APICosts.ByUser {
		writeRow(&b,
			u.UserID,
			u.Email,
			quoteField(u.FullName),
			u.Tier,
			strconv.FormatInt(u.UsageCount, 10),
			FormatUnitCost(u.TotalCost),
		)
	}
	b.WriteByte('\n')

	b.WriteString("CONTENT GENERATION COSTS\n")
	writeRow(&b, "Source", "Records", "Tokens Used", "Total Cost")
	for _, s := range r.ExternalCosts.BySource {
		writeRow(&b,
			s.Source,
			strconv.FormatInt(s.Records, 10),
			strconv.FormatInt(s.TokensUsed, 10),
			FormatMoney(s.TotalCost),
		)
	}

	if len(r.Warnings) > 0 {
		b.WriteByte('\n')
		b.WriteString("DATA QUALITY WARNINGS\n")
		writeRow(&b, "Kind", "Detail")
		for _, w := range r.Warnings {
			writeRow(&b, w.Kind, quoteField(w.Detail))
		}
	}

	return b.String()
}

func writeRow(b *strings.Builder, fields ...string) {
	b.WriteString(strings.Join(fields, ","))
	b.WriteByte('\n')
}

// quoteField wraps s in double quotes, doubling embedded quotes.
func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "unbounded"
	}
	return t.UTC().Format(time.RFC3339)
}
