package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/estimator/content"
	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/localize"
	"github.com/hyperengineering/estimator/internal/reconcile"
	"github.com/hyperengineering/estimator/internal/search"
	"github.com/hyperengineering/estimator/internal/snapshot"
	"github.com/hyperengineering/estimator/internal/store"
	"github.com/hyperengineering/estimator/internal/types"
)

// memStore is an in-memory store.TemplateStore.
type memStore struct {
	mu      sync.Mutex
	rows    map[string]types.TemplateRow
	usage   []string
	pingErr error
	listErr error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]types.TemplateRow{}}
}

func (m *memStore) GetTemplate(_ context.Context, id string) (*types.TemplateRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

func (m *memStore) InsertTemplate(_ context.Context, row types.TemplateRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[row.JobTypeID]; ok {
		return store.ErrDuplicateTemplate
	}
	m.rows[row.JobTypeID] = row
	return nil
}

func (m *memStore) SetTemplateActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	row.IsActive = active
	m.rows[id] = row
	return nil
}

func (m *memStore) ListTemplates(context.Context) ([]types.TemplateRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]types.TemplateRow, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) IncrementUsage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || !row.IsActive {
		return store.ErrNotFound
	}
	row.UsageCount++
	m.rows[id] = row
	m.usage = append(m.usage, id)
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }
func (m *memStore) Close() error               { return nil }

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, time.Duration) (reconcile.ReleaseFunc, error) {
	return nil, reconcile.ErrLockHeld
}

type fakeExporter struct {
	rows []types.TemplateRow
	err  error
}

func (f *fakeExporter) Publish(_ context.Context, rows []types.TemplateRow) (*types.ExportResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rows = rows
	return &types.ExportResponse{ObjectKey: "exports/templates.json", Count: len(rows)}, nil
}

type testEnv struct {
	store    *memStore
	exporter *fakeExporter
	router   http.Handler
}

const testAPIKey = "test-api-key"

func newTestEnv(t *testing.T, opts ...reconcile.Option) *testEnv {
	t.Helper()
	cat, err := catalog.Load(content.FS)
	if err != nil {
		t.Fatalf("catalog.Load() error = %v", err)
	}
	bundles, err := localize.LoadBundles(content.FS)
	if err != nil {
		t.Fatalf("LoadBundles() error = %v", err)
	}
	provider, err := localize.NewProvider("en", bundles...)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	env := &testEnv{store: newMemStore(), exporter: &fakeExporter{}}
	rec := reconcile.New(env.store, catalog.NewRegistry(cat), reconcile.NewState(), opts...)
	h := NewHandler(Deps{
		Catalog:    cat,
		Localizer:  provider,
		Templates:  env.store,
		Reconciler: rec,
		Searcher:   search.NewIndex(cat, nil),
		Exporter:   env.exporter,
		APIKey:     testAPIKey,
		Version:    "test",
	})
	env.router = NewRouter(h)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func adminHeader() http.Header {
	return http.Header{"Authorization": {"Bearer " + testAPIKey}}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[types.HealthResponse](t, rec)
	if resp.Status != "healthy" || resp.Version != "test" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Trades != 2 || resp.JobTypes == 0 {
		t.Errorf("Trades = %d, JobTypes = %d", resp.Trades, resp.JobTypes)
	}
	if resp.SearchMode != "keyword" || resp.Seeded {
		t.Errorf("SearchMode = %q, Seeded = %v", resp.SearchMode, resp.Seeded)
	}
}

func TestHealth_StoreDown(t *testing.T) {
	env := newTestEnv(t)
	env.store.pingErr = errors.New("connection refused")
	rec := env.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp := decode[types.HealthResponse](t, rec); resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
}

func TestListTrades_Localized(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		path     string
		header   http.Header
		wantLang string
		wantName string
	}{
		{"default", "/api/v1/trades", nil, "en", "Bathroom Remodel"},
		{"query", "/api/v1/trades?lang=es", nil, "es", "Remodelación de baño"},
		{"accept-language", "/api/v1/trades", http.Header{"Accept-Language": {"es-MX,es;q=0.9"}}, "es", "Remodelación de baño"},
		{"unsupported", "/api/v1/trades?lang=fr", nil, "en", "Bathroom Remodel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, nil, tt.header)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := rec.Header().Get("Content-Language"); got != tt.wantLang {
				t.Errorf("Content-Language = %q, want %q", got, tt.wantLang)
			}
			resp := decode[types.TradesResponse](t, rec)
			if resp.Language != tt.wantLang {
				t.Errorf("Language = %q, want %q", resp.Language, tt.wantLang)
			}
			if len(resp.Trades) != 2 || resp.Trades[0].Name != tt.wantName {
				t.Errorf("first trade name = %q, want %q", resp.Trades[0].Name, tt.wantName)
			}
		})
	}
}

func TestGetTrade(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/trades/roofing", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp := decode[types.TradeResponse](t, rec); resp.Trade.ID != "roofing" {
		t.Errorf("Trade.ID = %q", resp.Trade.ID)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/trades/plumbing", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestGetJobType(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/trades/bathroom-remodel/job-types/tub-to-shower?lang=es", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[types.JobTypeResponse](t, rec)
	if resp.JobType.Name != "Conversión de bañera a ducha" {
		t.Errorf("Name = %q", resp.JobType.Name)
	}
	if resp.JobType.BasePriceRange != (catalog.PriceRange{Low: 8500, High: 12000}) {
		t.Errorf("BasePriceRange = %+v", resp.JobType.BasePriceRange)
	}

	// Job type exists, but under another trade.
	rec = env.do(t, http.MethodGet, "/api/v1/trades/roofing/job-types/tub-to-shower", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateEstimate(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{
		"trade_id":    "bathroom-remodel",
		"job_type_id": "tub-to-shower",
		"selection":   map[string]any{"glass-door": "framed", "niche": true},
	}

	rec := env.do(t, http.MethodPost, "/api/v1/estimates", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[types.EstimateResponse](t, rec)
	if resp.Estimate.PriceRangeLow != 9750 || resp.Estimate.PriceRangeHigh != 13250 {
		t.Errorf("price = %d-%d, want 9750-13250", resp.Estimate.PriceRangeLow, resp.Estimate.PriceRangeHigh)
	}
	last := resp.Estimate.ScopeSections[len(resp.Estimate.ScopeSections)-1]
	if len(last.Items) != 2 || !strings.Contains(last.Items[0], "niche") || !strings.Contains(last.Items[1], "framed") {
		t.Errorf("addenda = %+v, want niche then framed", last.Items)
	}
	if resp.Language != "en" || resp.JobTypeName != "Tub-to-Shower Conversion" {
		t.Errorf("Language = %q, JobTypeName = %q", resp.Language, resp.JobTypeName)
	}
}

func TestCreateEstimate_RequestLanguageWins(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{
		"trade_id":    "bathroom-remodel",
		"job_type_id": "tub-to-shower",
		"language":    "es",
		"selection":   map[string]any{"niche": true},
	}
	rec := env.do(t, http.MethodPost, "/api/v1/estimates", body, http.Header{"Accept-Language": {"en"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[types.EstimateResponse](t, rec)
	if resp.Language != "es" || rec.Header().Get("Content-Language") != "es" {
		t.Errorf("Language = %q, Content-Language = %q", resp.Language, rec.Header().Get("Content-Language"))
	}
	if resp.Estimate.PriceRangeLow != 8950 {
		t.Errorf("PriceRangeLow = %d, want 8950", resp.Estimate.PriceRangeLow)
	}
}

func TestCreateEstimate_RecordsUsageForActiveTemplate(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodPost, "/api/v1/templates/reconcile", nil, adminHeader()); rec.Code != http.StatusOK {
		t.Fatalf("reconcile status = %d", rec.Code)
	}
	body := map[string]any{"trade_id": "bathroom-remodel", "job_type_id": "tub-to-shower"}
	if rec := env.do(t, http.MethodPost, "/api/v1/estimates", body, nil); rec.Code != http.StatusOK {
		t.Fatalf("estimate status = %d", rec.Code)
	}
	row, err := env.store.GetTemplate(context.Background(), "tub-to-shower")
	if err != nil {
		t.Fatalf("GetTemplate() error = %v", err)
	}
	if row.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", row.UsageCount)
	}
}

func TestCreateEstimate_UsageFailureDoesNotFailRequest(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"trade_id": "bathroom-remodel", "job_type_id": "tub-to-shower"}
	rec := env.do(t, http.MethodPost, "/api/v1/estimates", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with no template row", rec.Code)
	}
	if len(env.store.usage) != 0 {
		t.Errorf("usage = %v, want none", env.store.usage)
	}
}

func TestCreateEstimate_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		body      any
		wantCode  int
		wantField string
	}{
		{"malformed json", `{"trade_id":`, http.StatusBadRequest, ""},
		{"missing ids", map[string]any{}, http.StatusUnprocessableEntity, "trade_id"},
		{"unknown trade", map[string]any{"trade_id": "plumbing", "job_type_id": "x"}, http.StatusNotFound, ""},
		{"unknown job type", map[string]any{"trade_id": "roofing", "job_type_id": "tub-to-shower"}, http.StatusNotFound, ""},
		{
			"unknown choice",
			map[string]any{"trade_id": "bathroom-remodel", "job_type_id": "tub-to-shower", "selection": map[string]any{"glass-door": "stained"}},
			http.StatusUnprocessableEntity, "selection.glass-door",
		},
		{
			"unknown option",
			map[string]any{"trade_id": "bathroom-remodel", "job_type_id": "tub-to-shower", "selection": map[string]any{"sauna": true}},
			http.StatusUnprocessableEntity, "selection.sauna",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/estimates", tt.body, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantField == "" {
				return
			}
			p := decode[ProblemWithErrors](t, rec)
			if len(p.Errors) == 0 || p.Errors[0].Field != tt.wantField {
				t.Errorf("errors = %+v, want field %q", p.Errors, tt.wantField)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/search?q=vanity&lang=es", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[types.SearchResponse](t, rec)
	if resp.Mode != search.ModeKeyword || len(resp.Hits) == 0 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Hits[0].JobTypeID != "vanity-replacement" || resp.Hits[0].TradeName != "Remodelación de baño" {
		t.Errorf("first hit = %+v", resp.Hits[0])
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"empty query", "/api/v1/search", http.StatusBadRequest},
		{"bad limit", "/api/v1/search?q=roof&limit=abc", http.StatusBadRequest},
		{"limit too large", "/api/v1/search?q=roof&limit=500", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, http.MethodGet, tt.path, nil, nil); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec = env.do(t, http.MethodGet, "/api/v1/search?q=xylophone", nil, nil)
	if resp := decode[types.SearchResponse](t, rec); resp.Hits == nil {
		t.Error("Hits = null, want empty array")
	}
}

func TestAdminRoutes_RequireAPIKey(t *testing.T) {
	env := newTestEnv(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/templates"},
		{http.MethodPost, "/api/v1/templates/reconcile"},
		{http.MethodPost, "/api/v1/templates/export"},
	} {
		rec := env.do(t, route.method, route.path, nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", route.method, route.path, rec.Code)
		}
	}
}

func TestReconcileTemplates(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/templates/reconcile", nil, adminHeader())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	first := decode[types.ReconcileResponse](t, rec)
	if first.Inserted == 0 || !first.Complete || first.Error != "" {
		t.Errorf("first pass = %+v", first)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/templates/reconcile", nil, adminHeader())
	second := decode[types.ReconcileResponse](t, rec)
	if second.Inserted != 0 || second.Activated != 0 || !second.Complete {
		t.Errorf("second pass = %+v, want no-op", second)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/templates", nil, adminHeader())
	list := decode[types.TemplateListResponse](t, rec)
	if list.Count != first.Inserted {
		t.Errorf("Count = %d, want %d", list.Count, first.Inserted)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	if !decode[types.HealthResponse](t, rec).Seeded {
		t.Error("Seeded = false after a complete pass")
	}
}

func TestReconcileTemplates_LockHeld(t *testing.T) {
	env := newTestEnv(t, reconcile.WithLocker(heldLocker{}))
	rec := env.do(t, http.MethodPost, "/api/v1/templates/reconcile", nil, adminHeader())
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestListTemplates_StoreError(t *testing.T) {
	env := newTestEnv(t)
	env.store.listErr = errors.New("disk I/O error")
	rec := env.do(t, http.MethodGet, "/api/v1/templates", nil, adminHeader())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk") {
		t.Error("internal error detail leaked to client")
	}
}

func TestExportTemplates(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/templates/reconcile", nil, adminHeader())

	rec := env.do(t, http.MethodPost, "/api/v1/templates/export", nil, adminHeader())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[types.ExportResponse](t, rec)
	if resp.Count == 0 || resp.Count != len(env.exporter.rows) {
		t.Errorf("Count = %d, exported %d", resp.Count, len(env.exporter.rows))
	}

	env.exporter.err = snapshot.ErrNotConfigured
	rec = env.do(t, http.MethodPost, "/api/v1/templates/export", nil, adminHeader())
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
