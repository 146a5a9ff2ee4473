package admin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/revlens/revlens/adapters/clock"
	"github.com/revlens/revlens/adapters/http/admin"
	"github.com/revlens/revlens/adapters/idgen"
	"github.com/revlens/revlens/adapters/memory"
	"github.com/revlens/revlens/adapters/metrics"
	"github.com/revlens/revlens/adapters/pricing"
	"github.com/revlens/revlens/adapters/rediscache"
	"github.com/revlens/revlens/app"
	"github.com/revlens/revlens/domain/ledger"
	"github.com/revlens/revlens/domain/subscriber"
	"github.com/revlens/revlens/domain/usage"
)

type fixture struct {
	handler     *admin.Handler
	subscribers *memory.SubscriberStore
	usage       *memory.UsageStore
	costs       *memory.ExternalCostStore
	clock       *clock.Fake
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()

	subs := memory.NewSubscriberStore()
	events := memory.NewUsageStore()
	costs := memory.NewExternalCostStore()
	fake := clock.NewFake(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	source := pricing.NewStatic(nil)

	reports := app.NewReportService(
		subs, events, costs, source, rediscache.Noop{}, fake, m, zerolog.Nop(),
		app.ReportServiceConfig{},
	)

	var tokenFn func() string
	if token != "" {
		tokenFn = func() string { return token }
	}

	h := admin.NewHandler(admin.Deps{
		Reports:     reports,
		Subscribers: subs,
		Pricing:     source,
		Clock:       fake,
		IDGen:       idgen.NewSequential("sub"),
		Logger:      zerolog.Nop(),
		Token:       tokenFn,
	})

	return &fixture{handler: h, subscribers: subs, usage: events, costs: costs, clock: fake}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	created := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, sub := range []subscriber.Subscriber{
		{ID: "u1", Email: "pro@example.com", FullName: "Pat Pro", Tier: "pro", IsActive: true, CreatedAt: created, UpdatedAt: created},
		{ID: "u2", Email: "plus@example.com", FullName: "Perry Plus", Tier: "plus", IsActive: true, CreatedAt: created, UpdatedAt: created},
		{ID: "u3", Email: "gone@example.com", FullName: "Gone Pro", Tier: "pro", IsActive: false, CreatedAt: created, UpdatedAt: created},
	} {
		if err := f.subscribers.Create(ctx, sub); err != nil {
			t.Fatalf("seed subscriber %s: %v", sub.ID, err)
		}
	}

	events := []usage.Event{
		{ID: "e1", UserID: "u1", Model: "grok-2", InputTokens: 1000, OutputTokens: 200, TotalCost: 4.0, OccurredAt: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{ID: "e2", UserID: "u2", Model: "grok-3", InputTokens: 500, OutputTokens: 100, TotalCost: 1.0, OccurredAt: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
	}
	if err := f.usage.RecordBatch(ctx, events); err != nil {
		t.Fatalf("seed usage: %v", err)
	}

	records := []ledger.Record{
		{ID: "c1", Source: "content-generation", Cost: 5.0, TokensUsed: 10000, OccurredAt: time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)},
	}
	if err := f.costs.RecordBatch(ctx, records); err != nil {
		t.Fatalf("seed costs: %v", err)
	}
}

func (f *fixture) do(t *testing.T, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/vnd.api+json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.Router().ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t, "admin-secret")

	rec := f.do(t, http.MethodGet, "/pricing", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("No token: expected 401, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/pricing", "", map[string]string{"X-Admin-Token": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Wrong token: expected 401, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/pricing", "", map[string]string{"X-Admin-Token": "admin-secret"})
	if rec.Code != http.StatusOK {
		t.Errorf("Header token: expected 200, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/pricing", "", map[string]string{"Authorization": "Bearer admin-secret"})
	if rec.Code != http.StatusOK {
		t.Errorf("Bearer token: expected 200, got %d", rec.Code)
	}
}

func TestGetEarningsReport(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/reports/earnings", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var rep struct {
		ActiveSubscribers int     `json:"active_subscribers"`
		TotalRevenue      float64 `json:"total_revenue"`
		APICosts          struct {
			Total float64 `json:"total"`
		} `json:"api_costs"`
		ExternalCosts struct {
			Total float64 `json:"total"`
		} `json:"external_costs"`
		TotalProfit float64 `json:"total_profit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("Unmarshal report: %v", err)
	}

	// 1 pro ($30) + 1 plus ($18), less $5 API and $5 external costs.
	if rep.ActiveSubscribers != 2 {
		t.Errorf("ActiveSubscribers = %d, want 2", rep.ActiveSubscribers)
	}
	if rep.TotalRevenue != 48.0 {
		t.Errorf("TotalRevenue = %v, want 48.0", rep.TotalRevenue)
	}
	if rep.APICosts.Total != 5.0 {
		t.Errorf("APICosts.Total = %v, want 5.0", rep.APICosts.Total)
	}
	if rep.ExternalCosts.Total != 5.0 {
		t.Errorf("ExternalCosts.Total = %v, want 5.0", rep.ExternalCosts.Total)
	}
	if rep.TotalProfit != 38.0 {
		t.Errorf("TotalProfit = %v, want 38.0", rep.TotalProfit)
	}
}

func TestGetEarningsReport_DateParamNames(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	// start_date/end_date select the same window as the short aliases.
	rec := f.do(t, http.MethodGet, "/reports/earnings?start_date=2024-03-09&end_date=2024-03-10", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var rep struct {
		Window struct {
			Days int `json:"days"`
		} `json:"window"`
		APICosts struct {
			Total float64 `json:"total"`
		} `json:"api_costs"`
	}
	json.Unmarshal(rec.Body.Bytes(), &rep)

	if rep.APICosts.Total != 4.0 {
		t.Errorf("APICosts.Total = %v, want 4.0", rep.APICosts.Total)
	}
	if rep.Window.Days != 2 {
		t.Errorf("Window.Days = %d, want 2 (window parameters ignored?)", rep.Window.Days)
	}
}

func TestGetEarningsReport_InvalidWindow(t *testing.T) {
	f := newFixture(t, "")

	tests := []struct {
		name   string
		target string
	}{
		{"bad start", "/reports/earnings?start=notadate"},
		{"bad start_date", "/reports/earnings?start_date=notadate"},
		{"bad end_date", "/reports/earnings?end_date=13/01/2024"},
		{"bad end", "/reports/earnings?end=13/01/2024"},
		{"end before start", "/reports/earnings?start=2024-03-10&end=2024-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target, "", nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetEarningsReport_Windowed(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	// Only e1 ($4) falls inside March 9-10.
	rec := f.do(t, http.MethodGet, "/reports/earnings?start=2024-03-09&end=2024-03-10", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var rep struct {
		Window struct {
			Days int `json:"days"`
		} `json:"window"`
		APICosts struct {
			Total float64 `json:"total"`
		} `json:"api_costs"`
	}
	json.Unmarshal(rec.Body.Bytes(), &rep)

	if rep.APICosts.Total != 4.0 {
		t.Errorf("APICosts.Total = %v, want 4.0", rep.APICosts.Total)
	}
	if rep.Window.Days != 2 {
		t.Errorf("Window.Days = %d, want 2", rep.Window.Days)
	}
}

func TestExportEarningsReport(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/reports/earnings/export", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %q", ct)
	}
	want := `attachment; filename=earnings-report-2024-04-01.csv`
	if cd := rec.Header().Get("Content-Disposition"); cd != want {
		t.Errorf("Content-Disposition = %q, want %q", cd, want)
	}

	body := rec.Body.String()
	for _, section := range []string{"SUMMARY", "REVENUE BY SUBSCRIPTION TIER", "API COSTS BY MODEL"} {
		if !strings.Contains(body, section) {
			t.Errorf("CSV missing section %q", section)
		}
	}
}

func TestGetUsageByModel(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/usage/models", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Data []struct {
			Type       string         `json:"type"`
			ID         string         `json:"id"`
			Attributes map[string]any `json:"attributes"`
		} `json:"data"`
		Meta map[string]any `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(result.Data) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(result.Data))
	}
	// Models appear in first-seen order across the event stream.
	if result.Data[0].ID != "grok-2" || result.Data[1].ID != "grok-3" {
		t.Errorf("Unexpected model order: %s, %s", result.Data[0].ID, result.Data[1].ID)
	}
	if result.Data[0].Attributes["total_cost"] != 4.0 {
		t.Errorf("grok-2 total_cost = %v, want 4.0", result.Data[0].Attributes["total_cost"])
	}
	if result.Meta["total_cost"] != 5.0 {
		t.Errorf("meta total_cost = %v, want 5.0", result.Meta["total_cost"])
	}
}

func TestGetUsageByUser(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/usage/users", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Data []struct {
			ID         string         `json:"id"`
			Attributes map[string]any `json:"attributes"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &result)

	if len(result.Data) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(result.Data))
	}
	if result.Data[0].ID != "u1" {
		t.Errorf("Expected u1 first (first seen), got %s", result.Data[0].ID)
	}
	if result.Data[0].Attributes["email"] != "pro@example.com" {
		t.Errorf("Expected email attribution, got %v", result.Data[0].Attributes["email"])
	}
}

func TestCreateSubscriber(t *testing.T) {
	f := newFixture(t, "")

	body := `{"data": {"type": "subscribers", "attributes": {"email": "new@example.com", "full_name": "New Person", "tier": "plus"}}}`

	rec := f.do(t, http.MethodPost, "/subscribers", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "/admin/v1/subscribers/") {
		t.Errorf("Unexpected Location: %q", loc)
	}

	var result struct {
		Data struct {
			ID         string         `json:"id"`
			Attributes map[string]any `json:"attributes"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &result)

	if result.Data.ID == "" {
		t.Error("Expected generated ID")
	}
	if result.Data.Attributes["tier"] != "plus" {
		t.Errorf("tier = %v, want plus", result.Data.Attributes["tier"])
	}
	if result.Data.Attributes["is_active"] != true {
		t.Error("Expected is_active to default to true")
	}

	// Duplicate email conflicts.
	rec = f.do(t, http.MethodPost, "/subscribers", body, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("Duplicate: expected 409, got %d", rec.Code)
	}
}

func TestCreateSubscriber_Validation(t *testing.T) {
	f := newFixture(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"missing email", `{"data": {"type": "subscribers", "attributes": {"full_name": "No Email"}}}`},
		{"unknown tier", `{"data": {"type": "subscribers", "attributes": {"email": "a@b.c", "tier": "platinum"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/subscribers", tt.body, nil)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("Expected 422, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUpdateSubscriber(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	body := `{"data": {"attributes": {"tier": "executive", "is_active": false}}}`

	rec := f.do(t, http.MethodPatch, "/subscribers/u2", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	sub, err := f.subscribers.Get(context.Background(), "u2")
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if sub.Tier != "executive" || sub.IsActive {
		t.Errorf("Update not applied: %+v", sub)
	}
	if sub.Email != "plus@example.com" {
		t.Errorf("Absent attributes must keep their value, email = %q", sub.Email)
	}
	if !sub.UpdatedAt.Equal(f.clock.Now().UTC()) {
		t.Errorf("UpdatedAt = %v, want clock time", sub.UpdatedAt)
	}

	rec = f.do(t, http.MethodPatch, "/subscribers/missing", body, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Missing subscriber: expected 404, got %d", rec.Code)
	}
}

func TestListSubscribers(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/subscribers?tier=pro&active=true", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
		Meta map[string]any `json:"meta"`
	}
	json.Unmarshal(rec.Body.Bytes(), &result)

	if len(result.Data) != 1 || result.Data[0].ID != "u1" {
		t.Errorf("Expected only u1, got %+v", result.Data)
	}
	if result.Meta["total"] != 3.0 {
		t.Errorf("meta total = %v, want 3", result.Meta["total"])
	}

	rec = f.do(t, http.MethodGet, "/subscribers?limit=bogus", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Bad limit: expected 400, got %d", rec.Code)
	}
}

func TestGetSubscriberSummary(t *testing.T) {
	f := newFixture(t, "")
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/subscribers/summary", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Meta struct {
			Total  int            `json:"total"`
			Active int            `json:"active"`
			ByTier map[string]int `json:"by_tier"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if result.Meta.Total != 3 || result.Meta.Active != 2 {
		t.Errorf("total/active = %d/%d, want 3/2", result.Meta.Total, result.Meta.Active)
	}
	if result.Meta.ByTier["pro"] != 1 || result.Meta.ByTier["plus"] != 1 {
		t.Errorf("Unexpected by_tier: %v", result.Meta.ByTier)
	}
	if result.Meta.ByTier["free"] != 0 {
		t.Errorf("Expected free tier present with 0, got %v", result.Meta.ByTier)
	}
}

func TestGetPricing(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodGet, "/pricing", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Data []struct {
			ID         string         `json:"id"`
			Attributes map[string]any `json:"attributes"`
		} `json:"data"`
		Meta map[string]any `json:"meta"`
	}
	json.Unmarshal(rec.Body.Bytes(), &result)

	prices := make(map[string]any, len(result.Data))
	for _, r := range result.Data {
		prices[r.ID] = r.Attributes["monthly_price"]
	}
	if prices["pro"] != 30.0 {
		t.Errorf("pro price = %v, want 30.0", prices["pro"])
	}
	if prices["executive"] != 99.0 {
		t.Errorf("executive price = %v, want 99.0", prices["executive"])
	}
	if _, ok := prices["basic"]; ok {
		t.Error("basic should be merged away under default aliasing")
	}
	if result.Meta["source"] != "static" {
		t.Errorf("meta source = %v, want static", result.Meta["source"])
	}
}
