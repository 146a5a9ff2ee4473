package admin

import (
	"fmt"
	"net/http"

	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/pkg/jsonapi"
)

// GetEarningsReport handles GET /admin/v1/reports/earnings.
// Returns the full earnings report for the window as JSON.
func (h *Handler) GetEarningsReport(w http.ResponseWriter, r *http.Request) {
	window, perr := windowFromQuery(r)
	if perr != nil {
		jsonapi.WriteError(w, *perr)
		return
	}

	artifact, err := h.reports.RenderJSON(r.Context(), window)
	if err != nil {
		h.logger.Error().Err(err).Msg("earnings report build failed")
		jsonapi.WriteInternalError(w, "Failed to build earnings report")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(artifact)
}

// ExportEarningsReport handles GET /admin/v1/reports/earnings/export.
// Returns the report as a CSV download.
func (h *Handler) ExportEarningsReport(w http.ResponseWriter, r *http.Request) {
	window, perr := windowFromQuery(r)
	if perr != nil {
		jsonapi.WriteError(w, *perr)
		return
	}

	artifact, err := h.reports.RenderCSV(r.Context(), window)
	if err != nil {
		h.logger.Error().Err(err).Msg("earnings report export failed")
		jsonapi.WriteInternalError(w, "Failed to export earnings report")
		return
	}

	filename := fmt.Sprintf("earnings-report-%s.csv", h.clock.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename=`+filename)
	w.Write(artifact)
}

// GetUsageByModel handles GET /admin/v1/usage/models.
func (h *Handler) GetUsageByModel(w http.ResponseWriter, r *http.Request) {
	window, perr := windowFromQuery(r)
	if perr != nil {
		jsonapi.WriteError(w, *perr)
		return
	}

	rep, err := h.reports.Build(r.Context(), window)
	if err != nil {
		h.logger.Error().Err(err).Msg("model usage build failed")
		jsonapi.WriteInternalError(w, "Failed to aggregate model usage")
		return
	}

	resources := make([]jsonapi.Resource, 0, len(rep.APICosts.ByModel))
	for _, m := range rep.APICosts.ByModel {
		resources = append(resources, jsonapi.Resource{
			Type: "model_usage",
			ID:   m.Model,
			Attributes: map[string]any{
				"usage_count":         m.UsageCount,
				"input_tokens":        m.InputTokens,
				"cached_input_tokens": m.CachedInputTokens,
				"output_tokens":       m.OutputTokens,
				"live_search_calls":   m.LiveSearchCalls,
				"total_cost":          m.TotalCost,
				"avg_cost_per_call":   m.AvgCostPerCall,
			},
		})
	}

	jsonapi.WriteCollection(w, http.StatusOK, resources, jsonapi.Meta{
		"total_cost":    rep.APICosts.Total,
		"daily_average": rep.APICosts.DailyAverage,
		"window_days":   rep.Window.Days,
	})
}

// GetUsageByUser handles GET /admin/v1/usage/users.
func (h *Handler) GetUsageByUser(w http.ResponseWriter, r *http.Request) {
	window, perr := windowFromQuery(r)
	if perr != nil {
		jsonapi.WriteError(w, *perr)
		return
	}

	rep, err := h.reports.Build(r.Context(), window)
	if err != nil {
		h.logger.Error().Err(err).Msg("user usage build failed")
		jsonapi.WriteInternalError(w, "Failed to aggregate user usage")
		return
	}

	resources := make([]jsonapi.Resource, 0, len(rep.APICosts.ByUser))
	for _, u := range rep.APICosts.ByUser {
		attrs := map[string]any{
			"usage_count": u.UsageCount,
			"total_cost":  u.TotalCost,
		}
		if u.Email != "" {
			attrs["email"] = u.Email
		}
		if u.FullName != "" {
			attrs["full_name"] = u.FullName
		}
		if u.Tier != "" {
			attrs["tier"] = u.Tier
		}
		resources = append(resources, jsonapi.Resource{
			Type:       "user_usage",
			ID:         u.UserID,
			Attributes: attrs,
		})
	}

	jsonapi.WriteCollection(w, http.StatusOK, resources, jsonapi.Meta{
		"total_cost":          rep.APICosts.Total,
		"unattributed_events": rep.APICosts.UnattributedEvents,
		"window_days":         rep.Window.Days,
	})
}

// GetPricing handles GET /admin/v1/pricing.
func (h *Handler) GetPricing(w http.ResponseWriter, r *http.Request) {
	table, err := h.pricing.Current(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("pricing resolution failed")
		jsonapi.WriteInternalError(w, "Failed to resolve pricing")
		return
	}

	enumeration := tier.Enumeration(h.aliasing())
	resources := make([]jsonapi.Resource, 0, len(enumeration))
	for _, t := range enumeration {
		resources = append(resources, jsonapi.Resource{
			Type: "tier_prices",
			ID:   string(t),
			Attributes: map[string]any{
				"monthly_price": table.Price(t),
			},
		})
	}

	jsonapi.WriteCollection(w, http.StatusOK, resources, jsonapi.Meta{
		"source": h.pricing.Source(),
	})
}
