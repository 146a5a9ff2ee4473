// Package meter provides HTTP handlers for the metering ingestion API.
package meter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/revlens/revlens/adapters/metrics"
	"github.com/revlens/revlens/domain/ledger"
	"github.com/revlens/revlens/domain/usage"
	"github.com/revlens/revlens/pkg/jsonapi"
	"github.com/revlens/revlens/ports"
)

// maxTimestampAge bounds how far in the past a submitted event may be.
const maxTimestampAge = 7 * 24 * time.Hour

// maxSeenIDs caps the in-process duplicate-tracking map. Past the cap the
// map resets; the stores still enforce idempotency durably, so a reset only
// turns a fast rejection into a silent store-level skip.
const maxSeenIDs = 100000

// Handler provides metering API endpoints.
type Handler struct {
	recorder ports.EventRecorder
	costs    ports.ExternalCostStore
	clock    ports.Clock
	metrics  *metrics.Collector
	logger   zerolog.Logger

	token    func() string
	maxBatch func() int

	// seen tracks processed event IDs for fast duplicate rejection within a
	// process lifetime; the stores enforce idempotency durably.
	mu   sync.Mutex
	seen map[string]struct{}
}

// Deps contains dependencies for the meter handler.
type Deps struct {
	Recorder ports.EventRecorder
	Costs    ports.ExternalCostStore
	Clock    ports.Clock
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
	Token    func() string
	MaxBatch func() int
}

// NewHandler creates a new metering API handler.
func NewHandler(deps Deps) *Handler {
	if deps.Token == nil {
		deps.Token = func() string { return "" }
	}
	if deps.MaxBatch == nil {
		deps.MaxBatch = func() int { return 1000 }
	}

	return &Handler{
		recorder: deps.Recorder,
		costs:    deps.Costs,
		clock:    deps.Clock,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		token:    deps.Token,
		maxBatch: deps.MaxBatch,
		seen:     make(map[string]struct{}),
	}
}

// Router returns the metering API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(h.AuthMiddleware)

	r.Post("/usage", h.SubmitUsage)
	r.Post("/costs", h.SubmitCosts)

	return r
}

// AuthMiddleware checks the meter token. An empty configured token disables
// authentication (development only).
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := h.token()
		if want == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get("X-Meter-Token")
		if got == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				got = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if got != want {
			jsonapi.WriteUnauthorized(w, "Invalid or missing meter token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// -----------------------------------------------------------------------------
// Request/Response Types
// -----------------------------------------------------------------------------

// UsageEventInput represents a single usage event in the request.
// TotalCost is deliberately untyped: malformed values are coerced to 0 and
// flagged rather than rejected.
type UsageEventInput struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	Model             string `json:"model"`
	InputTokens       int64  `json:"input_tokens"`
	CachedInputTokens int64  `json:"cached_input_tokens"`
	OutputTokens      int64  `json:"output_tokens"`
	LiveSearchCalls   int64  `json:"live_search_calls"`
	TotalCost         any    `json:"total_cost"`
	OccurredAt        string `json:"occurred_at,omitempty"`
}

// CostRecordInput represents a single external cost record in the request.
type CostRecordInput struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Cost       any    `json:"cost"`
	TokensUsed int64  `json:"tokens_used"`
	OccurredAt string `json:"occurred_at,omitempty"`
}

type usageRequest struct {
	Data []struct {
		Type       string          `json:"type"`
		Attributes UsageEventInput `json:"attributes"`
	} `json:"data"`
}

type costsRequest struct {
	Data []struct {
		Type       string          `json:"type"`
		Attributes CostRecordInput `json:"attributes"`
	} `json:"data"`
}

// EventError represents an error for a specific event in the batch.
type EventError struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// SubmitUsage handles POST /api/v1/meter/usage.
// Accepts a batch of usage events. Events are validated individually: a bad
// event is rejected with a per-event error while the rest of the batch is
// accepted. Malformed costs never reject an event; they are coerced to 0 and
// surfaced as data-quality warnings on reports.
func (h *Handler) SubmitUsage(w http.ResponseWriter, r *http.Request) {
	var req usageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.WriteBadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}
	if !h.checkBatchSize(w, len(req.Data)) {
		return
	}

	var (
		accepted    int
		rejected    int
		coerced     int
		eventErrors []EventError
	)
	now := h.clock.Now().UTC()

	for i, item := range req.Data {
		input := item.Attributes

		if code, detail := h.validateEvent(input.ID, input.OccurredAt, now); code != "" {
			eventErrors = append(eventErrors, EventError{Index: i, ID: input.ID, Code: code, Detail: detail})
			h.metrics.EventsRejected.WithLabelValues(code).Inc()
			rejected++
			continue
		}
		if input.InputTokens < 0 || input.CachedInputTokens < 0 || input.OutputTokens < 0 || input.LiveSearchCalls < 0 {
			eventErrors = append(eventErrors, EventError{
				Index: i, ID: input.ID, Code: "validation_error", Detail: "token counts must be >= 0",
			})
			h.metrics.EventsRejected.WithLabelValues("validation_error").Inc()
			rejected++
			continue
		}

		occurredAt := now
		if input.OccurredAt != "" {
			occurredAt, _ = time.Parse(time.RFC3339, input.OccurredAt)
		}

		event := usage.NewEvent(
			input.ID, input.UserID, input.Model,
			input.InputTokens, input.CachedInputTokens, input.OutputTokens, input.LiveSearchCalls,
			input.TotalCost, occurredAt,
		)
		if event.CostCoerced {
			coerced++
			h.metrics.EventsCoerced.Inc()
		}

		h.markSeen(input.ID)
		h.recorder.Record(event)
		h.metrics.EventsIngested.Inc()
		accepted++
	}

	h.writeBatchResult(w, accepted, rejected, coerced, eventErrors)
}

// SubmitCosts handles POST /api/v1/meter/costs.
// Accepts a batch of externally sourced cost records, such as content
// generation spend.
func (h *Handler) SubmitCosts(w http.ResponseWriter, r *http.Request) {
	var req costsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.WriteBadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}
	if !h.checkBatchSize(w, len(req.Data)) {
		return
	}

	var (
		accepted    int
		rejected    int
		coerced     int
		eventErrors []EventError
		records     []ledger.Record
	)
	now := h.clock.Now().UTC()

	for i, item := range req.Data {
		input := item.Attributes

		if code, detail := h.validateEvent(input.ID, input.OccurredAt, now); code != "" {
			eventErrors = append(eventErrors, EventError{Index: i, ID: input.ID, Code: code, Detail: detail})
			h.metrics.EventsRejected.WithLabelValues(code).Inc()
			rejected++
			continue
		}
		if input.Source == "" {
			eventErrors = append(eventErrors, EventError{
				Index: i, ID: input.ID, Code: "validation_error", Detail: "source is required",
			})
			h.metrics.EventsRejected.WithLabelValues("validation_error").Inc()
			rejected++
			continue
		}
		if input.TokensUsed < 0 {
			eventErrors = append(eventErrors, EventError{
				Index: i, ID: input.ID, Code: "validation_error", Detail: "tokens_used must be >= 0",
			})
			h.metrics.EventsRejected.WithLabelValues("validation_error").Inc()
			rejected++
			continue
		}

		occurredAt := now
		if input.OccurredAt != "" {
			occurredAt, _ = time.Parse(time.RFC3339, input.OccurredAt)
		}

		cost, wasCoerced := usage.ParseAmount(input.Cost)
		if wasCoerced {
			coerced++
			h.metrics.EventsCoerced.Inc()
		}

		h.markSeen(input.ID)
		records = append(records, ledger.Record{
			ID:          input.ID,
			Source:      input.Source,
			Cost:        cost,
			CostCoerced: wasCoerced,
			TokensUsed:  input.TokensUsed,
			OccurredAt:  occurredAt,
		})
		h.metrics.EventsIngested.Inc()
		accepted++
	}

	if len(records) > 0 {
		if err := h.costs.RecordBatch(r.Context(), records); err != nil {
			h.logger.Error().Err(err).Int("count", len(records)).Msg("cost batch write failed")
			jsonapi.WriteInternalError(w, "Failed to store cost records")
			return
		}
	}

	h.writeBatchResult(w, accepted, rejected, coerced, eventErrors)
}

// -----------------------------------------------------------------------------
// Shared validation
// -----------------------------------------------------------------------------

func (h *Handler) checkBatchSize(w http.ResponseWriter, n int) bool {
	if n == 0 {
		jsonapi.WriteValidationError(w, "data", "At least one event is required")
		return false
	}
	if max := h.maxBatch(); n > max {
		jsonapi.WriteValidationError(w, "data", fmt.Sprintf("Maximum %d events per batch", max))
		return false
	}
	return true
}

// validateEvent checks the fields every submission kind shares. It returns
// an empty code when the event passes.
func (h *Handler) validateEvent(id, occurredAt string, now time.Time) (code, detail string) {
	if id == "" {
		return "validation_error", "id is required"
	}
	if h.isSeen(id) {
		return "duplicate_event", "Event with this ID already processed"
	}

	if occurredAt != "" {
		ts, err := time.Parse(time.RFC3339, occurredAt)
		if err != nil {
			return "invalid_timestamp", "occurred_at must be in RFC3339 format"
		}
		if ts.After(now.Add(time.Minute)) {
			return "invalid_timestamp", "occurred_at cannot be in the future"
		}
		if now.Sub(ts) > maxTimestampAge {
			return "invalid_timestamp", fmt.Sprintf("occurred_at cannot be older than %d days", int(maxTimestampAge.Hours()/24))
		}
	}
	return "", ""
}

func (h *Handler) isSeen(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.seen[id]
	return ok
}

func (h *Handler) markSeen(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.seen) >= maxSeenIDs {
		h.seen = make(map[string]struct{})
	}
	h.seen[id] = struct{}{}
}

func (h *Handler) writeBatchResult(w http.ResponseWriter, accepted, rejected, coerced int, eventErrors []EventError) {
	if accepted == 0 && rejected > 0 {
		jsonapi.WriteError(w, jsonapi.ErrValidation("data", "All events failed validation"))
		return
	}
	if eventErrors == nil {
		eventErrors = []EventError{}
	}
	jsonapi.WriteAccepted(w, jsonapi.Meta{
		"accepted": accepted,
		"rejected": rejected,
		"coerced":  coerced,
		"errors":   eventErrors,
	})
}
