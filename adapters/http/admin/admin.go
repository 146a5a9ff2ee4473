// Package admin provides HTTP handlers for the admin API.
package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/revlens/revlens/app"
	"github.com/revlens/revlens/domain/report"
	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/pkg/jsonapi"
	"github.com/revlens/revlens/ports"
)

// Handler provides admin API endpoints.
type Handler struct {
	reports     *app.ReportService
	subscribers ports.SubscriberStore
	pricing     ports.PricingSource
	clock       ports.Clock
	idgen       ports.IDGenerator
	logger      zerolog.Logger

	token    func() string
	aliasing func() tier.Aliasing
}

// Deps contains dependencies for the admin handler.
// Token and Aliasing are read per request so config reloads take effect.
type Deps struct {
	Reports     *app.ReportService
	Subscribers ports.SubscriberStore
	Pricing     ports.PricingSource
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      zerolog.Logger
	Token       func() string
	Aliasing    func() tier.Aliasing
}

// NewHandler creates a new admin API handler.
func NewHandler(deps Deps) *Handler {
	if deps.Token == nil {
		deps.Token = func() string { return "" }
	}
	if deps.Aliasing == nil {
		deps.Aliasing = func() tier.Aliasing { return tier.MergeBasic }
	}

	return &Handler{
		reports:     deps.Reports,
		subscribers: deps.Subscribers,
		pricing:     deps.Pricing,
		clock:       deps.Clock,
		idgen:       deps.IDGen,
		logger:      deps.Logger,
		token:       deps.Token,
		aliasing:    deps.Aliasing,
	}
}

// Router returns the admin API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(h.AuthMiddleware)

	r.Get("/reports/earnings", h.GetEarningsReport)
	r.Get("/reports/earnings/export", h.ExportEarningsReport)

	r.Get("/usage/models", h.GetUsageByModel)
	r.Get("/usage/users", h.GetUsageByUser)

	r.Get("/subscribers", h.ListSubscribers)
	r.Post("/subscribers", h.CreateSubscriber)
	r.Get("/subscribers/summary", h.GetSubscriberSummary)
	r.Get("/subscribers/{id}", h.GetSubscriber)
	r.Patch("/subscribers/{id}", h.UpdateSubscriber)

	r.Get("/pricing", h.GetPricing)

	return r
}

// AuthMiddleware checks the admin token on every request. An empty
// configured token disables authentication (development only).
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := h.token()
		if want == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get("X-Admin-Token")
		if got == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				got = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if got != want {
			jsonapi.WriteUnauthorized(w, "Invalid or missing admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// windowFromQuery parses the optional start_date/end_date query parameters
// (start/end accepted as short aliases). Both RFC3339 timestamps and bare
// dates are accepted; a bare end date covers the whole day.
func windowFromQuery(r *http.Request) (report.Window, *jsonapi.Error) {
	var w report.Window

	if raw, param := windowParam(r, "start_date", "start"); raw != "" {
		t, _, err := parseTimeParam(raw)
		if err != nil {
			e := jsonapi.ErrInvalidParameter(param, "must be an RFC3339 timestamp or YYYY-MM-DD date")
			return report.Window{}, &e
		}
		w.Start = &t
	}
	if raw, param := windowParam(r, "end_date", "end"); raw != "" {
		t, dateOnly, err := parseTimeParam(raw)
		if err != nil {
			e := jsonapi.ErrInvalidParameter(param, "must be an RFC3339 timestamp or YYYY-MM-DD date")
			return report.Window{}, &e
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		w.End = &t
	}

	if w.Start != nil && w.End != nil && w.End.Before(*w.Start) {
		e := jsonapi.ErrInvalidParameter("end_date", "must not be before start_date")
		return report.Window{}, &e
	}

	return w, nil
}

// windowParam returns the value of the canonical query parameter, falling
// back to its short alias, along with the name that supplied the value.
func windowParam(r *http.Request, name, alias string) (value, param string) {
	q := r.URL.Query()
	if v := q.Get(name); v != "" {
		return v, name
	}
	return q.Get(alias), alias
}

func parseTimeParam(raw string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	if t, err = time.Parse("2006-01-02", raw); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, err
}
