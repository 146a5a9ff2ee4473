// Package ledger provides externally sourced cost records and their summation.
// External costs (content generation, news feeds) are a separate stream from
// API usage: they never join to subscribers and only affect total profit.
// All functions are pure - no side effects.
package ledger

import "time"

// Record represents one externally sourced cost entry (immutable value type).
type Record struct {
	ID          string
	Source      string // e.g. "content-generation", "news"
	Cost        float64
	CostCoerced bool // Cost was recovered from a malformed value
	TokensUsed  int64
	OccurredAt  time.Time
}

// Summary aggregates a set of records (value type).
type Summary struct {
	Records    int64
	TokensUsed int64
	TotalCost  float64
}

// Summarize sums records into a Summary.
// This is a PURE function.
func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		s.Records++
		s.TokensUsed += r.TokensUsed
		s.TotalCost += r.Cost
	}
	return s
}

// SummarizeBySource groups records by source in first-appearance order.
// This is a PURE function.
func SummarizeBySource(records []Record) (map[string]Summary, []string) {
	bySource := make(map[string]Summary)
	var order []string

	for _, r := range records {
		s, seen := bySource[r.Source]
		if !seen {
			order = append(order, r.Source)
		}
		s.Records++
		s.TokensUsed += r.TokensUsed
		s.TotalCost += r.Cost
		bySource[r.Source] = s
	}

	return bySource, order
}

// CountCoerced returns how many records carry a coerced cost.
// This is a PURE function.
func CountCoerced(records []Record) int {
	n := 0
	for _, r := range records {
		if r.CostCoerced {
			n++
		}
	}
	return n
}
