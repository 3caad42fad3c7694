package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/estimate"
	"github.com/hyperengineering/estimator/internal/identity"
	"github.com/hyperengineering/estimator/internal/reconcile"
	"github.com/hyperengineering/estimator/internal/store"
	"github.com/hyperengineering/estimator/internal/types"
	"github.com/hyperengineering/estimator/internal/validation"
)

// maxSearchLimit caps the limit query parameter on /search.
const maxSearchLimit = 50

// Localizer overlays translations onto catalog content.
type Localizer interface {
	LanguageMatcher
	SourceLanguage() string
	Languages() []string
	Localize(jobType catalog.JobType, tradeID, lang string) catalog.JobType
	LocalizeTrade(trade catalog.Trade, lang string) catalog.Trade
}

// Reconciler runs template reconciliation.
type Reconciler interface {
	Reconcile(ctx context.Context) reconcile.Result
	State() *reconcile.State
}

// Searcher ranks job types for a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]types.SearchHit, string, error)
	Semantic() bool
}

// Exporter publishes template exports.
type Exporter interface {
	Publish(ctx context.Context, rows []types.TemplateRow) (*types.ExportResponse, error)
}

// Deps are the collaborators a Handler serves from.
type Deps struct {
	Catalog        *catalog.Catalog
	Localizer      Localizer
	Templates      store.TemplateStore
	Reconciler     Reconciler
	Searcher       Searcher
	Exporter       Exporter
	APIKey         string
	Version        string
	EmbeddingModel string
}

// Handler implements the API handlers
type Handler struct {
	catalog        *catalog.Catalog
	localizer      Localizer
	templates      store.TemplateStore
	reconciler     Reconciler
	searcher       Searcher
	exporter       Exporter
	apiKey         string
	version        string
	embeddingModel string
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		catalog:        d.Catalog,
		localizer:      d.Localizer,
		templates:      d.Templates,
		reconciler:     d.Reconciler,
		searcher:       d.Searcher,
		exporter:       d.Exporter,
		apiKey:         d.APIKey,
		version:        d.Version,
		embeddingModel: d.EmbeddingModel,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) language(r *http.Request) string {
	return LanguageFromContext(r.Context(), h.localizer.SourceLanguage())
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Trades:    len(h.catalog.ListTrades()),
		JobTypes:  h.catalog.JobTypeCount(),
		Languages: h.localizer.Languages(),
		Seeded:    h.reconciler.State().Done(),
	}
	resp.SearchMode = "keyword"
	if h.searcher.Semantic() {
		resp.SearchMode = "semantic"
		resp.EmbeddingModel = h.embeddingModel
	}

	status := http.StatusOK
	if err := h.templates.Ping(r.Context()); err != nil {
		slog.Warn("health check: template store unreachable", "error", err)
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// ListTrades handles GET /api/v1/trades
func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	lang := h.language(r)
	trades := h.catalog.ListTrades()
	for i, t := range trades {
		trades[i] = h.localizer.LocalizeTrade(t, lang)
	}
	writeJSON(w, http.StatusOK, types.TradesResponse{Language: lang, Trades: trades})
}

// GetTrade handles GET /api/v1/trades/{tradeID}
func (h *Handler) GetTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := h.catalog.GetTrade(chi.URLParam(r, "tradeID"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	lang := h.language(r)
	writeJSON(w, http.StatusOK, types.TradeResponse{
		Language: lang,
		Trade:    h.localizer.LocalizeTrade(trade, lang),
	})
}

// GetJobType handles GET /api/v1/trades/{tradeID}/job-types/{jobTypeID}
func (h *Handler) GetJobType(w http.ResponseWriter, r *http.Request) {
	tradeID := chi.URLParam(r, "tradeID")
	jt, err := h.catalog.GetJobType(tradeID, chi.URLParam(r, "jobTypeID"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	lang := h.language(r)
	writeJSON(w, http.StatusOK, types.JobTypeResponse{
		Language: lang,
		TradeID:  tradeID,
		JobType:  h.localizer.Localize(jt, tradeID, lang),
	})
}

// CreateEstimate handles POST /api/v1/estimates
func (h *Handler) CreateEstimate(w http.ResponseWriter, r *http.Request) {
	var req types.EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("trade_id", req.TradeID))
	c.Add(validation.ValidateRequired("job_type_id", req.JobTypeID))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	jt, err := h.catalog.GetJobType(req.TradeID, req.JobTypeID)
	if err != nil {
		MapError(w, r, err)
		return
	}

	lang := h.language(r)
	if req.Language != "" {
		lang = h.localizer.Match(req.Language)
	}
	w.Header().Set("Content-Language", lang)
	localized := h.localizer.Localize(jt, req.TradeID, lang)

	est, err := estimate.Compose(localized, req.Selection)
	if err != nil {
		MapError(w, r, err)
		return
	}

	h.recordUsage(r, req.JobTypeID)

	selection := req.Selection
	if selection == nil {
		selection = estimate.Selection{}
	}
	writeJSON(w, http.StatusOK, types.EstimateResponse{
		TradeID:     req.TradeID,
		JobTypeID:   req.JobTypeID,
		JobTypeName: localized.Name,
		Language:    lang,
		Selection:   selection,
		Estimate:    est,
	})
}

// recordUsage bumps the template usage counter. Failures never fail the request.
func (h *Handler) recordUsage(r *http.Request, jobTypeID string) {
	err := h.templates.IncrementUsage(r.Context(), jobTypeID)
	attrs := []any{"job_type_id", jobTypeID}
	if id, ok := identity.FromContext(r.Context()); ok {
		attrs = append(attrs, "identity_id", id.ID)
	}
	switch {
	case err == nil:
		slog.Debug("estimate composed", attrs...)
	case errors.Is(err, store.ErrNotFound):
		slog.Debug("usage not recorded: no active template", attrs...)
	default:
		slog.Warn("usage not recorded", append(attrs, "error", err)...)
	}
}

// Search handles GET /api/v1/search?q=...&limit=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSearchLimit {
			WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit))
			return
		}
		limit = n
	}

	hits, mode, err := h.searcher.Search(r.Context(), q, limit)
	if err != nil {
		MapError(w, r, err)
		return
	}

	lang := h.language(r)
	for i, hit := range hits {
		if trade, err := h.catalog.GetTrade(hit.TradeID); err == nil {
			localized := h.localizer.LocalizeTrade(trade, lang)
			hits[i].TradeName = localized.Name
			for _, jt := range localized.JobTypes {
				if jt.ID == hit.JobTypeID {
					hits[i].JobTypeName = jt.Name
				}
			}
		}
	}
	if hits == nil {
		hits = []types.SearchHit{}
	}
	writeJSON(w, http.StatusOK, types.SearchResponse{Query: q, Mode: mode, Hits: hits})
}

// ListTemplates handles GET /api/v1/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	rows, err := h.templates.ListTemplates(r.Context())
	if err != nil {
		slog.Error("list templates failed", "error", err)
		MapError(w, r, err)
		return
	}
	if rows == nil {
		rows = []types.TemplateRow{}
	}
	writeJSON(w, http.StatusOK, types.TemplateListResponse{Count: len(rows), Templates: rows})
}

// ReconcileTemplates handles POST /api/v1/templates/reconcile
func (h *Handler) ReconcileTemplates(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res := h.reconciler.Reconcile(r.Context())
	if errors.Is(res.Err, reconcile.ErrLockHeld) {
		MapError(w, r, res.Err)
		return
	}

	resp := types.ReconcileResponse{
		Inserted:   res.Inserted,
		Activated:  res.Activated,
		Complete:   res.Complete,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if res.Err != nil {
		resp.Error = "reconciliation stopped early; see server logs"
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportTemplates handles POST /api/v1/templates/export
func (h *Handler) ExportTemplates(w http.ResponseWriter, r *http.Request) {
	rows, err := h.templates.ListTemplates(r.Context())
	if err != nil {
		slog.Error("export: list templates failed", "error", err)
		MapError(w, r, err)
		return
	}

	resp, err := h.exporter.Publish(r.Context(), rows)
	if err != nil {
		slog.Warn("export failed", "error", err)
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
