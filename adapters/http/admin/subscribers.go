package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/revlens/revlens/domain/subscriber"
	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/pkg/jsonapi"
	"github.com/revlens/revlens/ports"
)

// TypeSubscriber is the JSON:API resource type for subscribers.
const TypeSubscriber = "subscribers"

// SubscriberAttributes represents subscriber fields in requests.
type SubscriberAttributes struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Tier     string `json:"tier"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// SubscriberRequest represents a create or update request body.
type SubscriberRequest struct {
	Data struct {
		Type       string               `json:"type"`
		ID         string               `json:"id,omitempty"`
		Attributes SubscriberAttributes `json:"attributes"`
	} `json:"data"`
}

// ListSubscribers handles GET /admin/v1/subscribers.
// Supports ?tier=, ?active=true, ?limit=, ?offset=.
func (h *Handler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := ports.SubscriberFilter{
		Tier:       q.Get("tier"),
		ActiveOnly: q.Get("active") == "true",
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("limit", "must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("offset", "must be a non-negative integer"))
			return
		}
		filter.Offset = n
	}

	subs, err := h.subscribers.List(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("subscriber list failed")
		jsonapi.WriteInternalError(w, "Failed to list subscribers")
		return
	}

	total, err := h.subscribers.Count(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("subscriber count failed")
		jsonapi.WriteInternalError(w, "Failed to count subscribers")
		return
	}

	resources := make([]jsonapi.Resource, 0, len(subs))
	for _, sub := range subs {
		resources = append(resources, subscriberResource(sub))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, jsonapi.Meta{"total": total})
}

// GetSubscriber handles GET /admin/v1/subscribers/{id}.
func (h *Handler) GetSubscriber(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sub, err := h.subscribers.Get(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		jsonapi.WriteError(w, jsonapi.ErrNotFoundWithID(TypeSubscriber, id))
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("subscriber get failed")
		jsonapi.WriteInternalError(w, "Failed to load subscriber")
		return
	}

	jsonapi.WriteResource(w, http.StatusOK, subscriberResource(sub))
}

// CreateSubscriber handles POST /admin/v1/subscribers.
func (h *Handler) CreateSubscriber(w http.ResponseWriter, r *http.Request) {
	var req SubscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.WriteBadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	attrs := req.Data.Attributes
	if attrs.Email == "" {
		jsonapi.WriteValidationError(w, "email", "email is required")
		return
	}
	tierName := attrs.Tier
	if tierName == "" {
		tierName = string(tier.Free)
	}
	if _, ok := tier.Normalize(tierName, h.aliasing()); !ok {
		jsonapi.WriteValidationError(w, "tier", "unrecognized tier name")
		return
	}

	now := h.clock.Now().UTC()
	sub := subscriber.Subscriber{
		ID:        req.Data.ID,
		Email:     attrs.Email,
		FullName:  attrs.FullName,
		Tier:      tierName,
		IsActive:  attrs.IsActive == nil || *attrs.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if sub.ID == "" {
		sub.ID = h.idgen.New()
	}

	if err := h.subscribers.Create(r.Context(), sub); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			jsonapi.WriteError(w, jsonapi.ErrConflict("A subscriber with this ID or email already exists"))
			return
		}
		h.logger.Error().Err(err).Msg("subscriber create failed")
		jsonapi.WriteInternalError(w, "Failed to create subscriber")
		return
	}

	jsonapi.WriteCreated(w, subscriberResource(sub), "/admin/v1/subscribers/"+sub.ID)
}

// UpdateSubscriber handles PATCH /admin/v1/subscribers/{id}.
// Absent attributes keep their current value.
func (h *Handler) UpdateSubscriber(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sub, err := h.subscribers.Get(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		jsonapi.WriteError(w, jsonapi.ErrNotFoundWithID(TypeSubscriber, id))
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("subscriber load failed")
		jsonapi.WriteInternalError(w, "Failed to load subscriber")
		return
	}

	var req struct {
		Data struct {
			Attributes struct {
				Email    *string `json:"email"`
				FullName *string `json:"full_name"`
				Tier     *string `json:"tier"`
				IsActive *bool   `json:"is_active"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.WriteBadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	attrs := req.Data.Attributes
	if attrs.Email != nil {
		if *attrs.Email == "" {
			jsonapi.WriteValidationError(w, "email", "email must not be empty")
			return
		}
		sub.Email = *attrs.Email
	}
	if attrs.FullName != nil {
		sub.FullName = *attrs.FullName
	}
	if attrs.Tier != nil {
		if _, ok := tier.Normalize(*attrs.Tier, h.aliasing()); !ok {
			jsonapi.WriteValidationError(w, "tier", "unrecognized tier name")
			return
		}
		sub.Tier = *attrs.Tier
	}
	if attrs.IsActive != nil {
		sub.IsActive = *attrs.IsActive
	}
	sub.UpdatedAt = h.clock.Now().UTC()

	if err := h.subscribers.Update(r.Context(), sub); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			jsonapi.WriteError(w, jsonapi.ErrConflict("A subscriber with this email already exists"))
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("subscriber update failed")
		jsonapi.WriteInternalError(w, "Failed to update subscriber")
		return
	}

	jsonapi.WriteResource(w, http.StatusOK, subscriberResource(sub))
}

// GetSubscriberSummary handles GET /admin/v1/subscribers/summary.
// Returns active counts per canonical tier.
func (h *Handler) GetSubscriberSummary(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscribers.List(r.Context(), ports.SubscriberFilter{})
	if err != nil {
		h.logger.Error().Err(err).Msg("subscriber summary failed")
		jsonapi.WriteInternalError(w, "Failed to summarize subscribers")
		return
	}

	aliasing := h.aliasing()
	counts, unknown := subscriber.CountActiveByTier(subs, aliasing)

	byTier := make(map[string]int, len(counts))
	for _, t := range tier.Enumeration(aliasing) {
		byTier[string(t)] = counts[t]
	}

	meta := jsonapi.Meta{
		"total":   len(subs),
		"active":  subscriber.CountActive(subs),
		"by_tier": byTier,
	}
	if len(unknown) > 0 {
		meta["unknown_tier_subscribers"] = unknown
	}
	jsonapi.WriteMeta(w, http.StatusOK, meta)
}

func subscriberResource(sub subscriber.Subscriber) jsonapi.Resource {
	return jsonapi.Resource{
		Type: TypeSubscriber,
		ID:   sub.ID,
		Attributes: map[string]any{
			"email":      sub.Email,
			"full_name":  sub.FullName,
			"tier":       sub.Tier,
			"is_active":  sub.IsActive,
			"created_at": sub.CreatedAt.UTC().Format(time.RFC3339),
			"updated_at": sub.UpdatedAt.UTC().Format(time.RFC3339),
		},
	}
}
