// Package usage provides usage event types and cost aggregation functions.
// All functions are pure - no side effects.
package usage

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Event represents a single metered API call (immutable value type).
// Events are produced by the metering API or an external metering service
// and are consumed read-only by the aggregation functions.
type Event struct {
	ID                string
	UserID            string
	Model             string
	InputTokens       int64
	CachedInputTokens int64
	OutputTokens      int64
	LiveSearchCalls   int64
	TotalCost         float64
	CostCoerced       bool // TotalCost was recovered from a malformed value
	OccurredAt        time.Time
}

// NewEvent creates an event, running the raw cost through the lenient parser.
// A zero occurredAt is left zero; callers stamp ingestion time themselves.
func NewEvent(id, userID, model string, inputTokens, cachedInputTokens, outputTokens, liveSearchCalls int64, rawCost any, occurredAt time.Time) Event {
	cost, coerced := ParseAmount(rawCost)
	return Event{
		ID:                id,
		UserID:            userID,
		Model:             model,
		InputTokens:       inputTokens,
		CachedInputTokens: cachedInputTokens,
		OutputTokens:      outputTokens,
		LiveSearchCalls:   liveSearchCalls,
		TotalCost:         cost,
		CostCoerced:       coerced,
		OccurredAt:        occurredAt,
	}
}

// TotalTokens returns the combined token count for the event.
func (e Event) TotalTokens() int64 {
	return e.InputTokens + e.CachedInputTokens + e.OutputTokens
}

// ParseAmount leniently converts a raw monetary value to a non-negative
// float64. Absent values (nil, empty string) parse to 0 without being
// flagged. Anything unparseable, negative, or non-finite is coerced to 0
// and flagged so callers can surface the data-quality problem instead of
// losing it.
// This is a PURE function.
func ParseAmount(raw any) (amount float64, coerced bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return clampAmount(v)
	case float32:
		return clampAmount(float64(v))
	case int:
		return clampAmount(float64(v))
	case int64:
		return clampAmount(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, true
		}
		return clampAmount(f)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, true
		}
		return clampAmount(f)
	}
	return 0, true
}

// clampAmount rejects non-finite and negative amounts.
func clampAmount(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true
	}
	if f < 0 {
		return 0, true
	}
	return f, false
}
