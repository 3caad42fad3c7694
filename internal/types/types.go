package types

import (
	"time"

	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/estimate"
)

// SystemActor is the created_by value for rows written by reconciliation.
const SystemActor = "system"

// TemplateRow is a persisted job template. JobTypeID is the natural key.
type TemplateRow struct {
	ID            string                 `json:"id"`
	JobTypeID     string                 `json:"job_type_id"`
	TradeID       string                 `json:"trade_id"`
	TradeName     string                 `json:"trade_name"`
	JobTypeName   string                 `json:"job_type_name"`
	BaseScope     []string               `json:"base_scope"`
	ScopeSections []catalog.ScopeSection `json:"scope_sections,omitempty"`
	Options       []catalog.JobOption    `json:"options"`
	BasePriceLow  int                    `json:"base_price_low"`
	BasePriceHigh int                    `json:"base_price_high"`
	EstimatedDays *catalog.DayRange      `json:"estimated_days,omitempty"`
	Warranty      string                 `json:"warranty,omitempty"`
	Exclusions    []string               `json:"exclusions,omitempty"`
	IsDefault     bool                   `json:"is_default"`
	IsActive      bool                   `json:"is_active"`
	CreatedBy     string                 `json:"created_by"`
	UsageCount    int64                  `json:"usage_count"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// JobType rebuilds the catalog view of a stored template.
func (r TemplateRow) JobType() catalog.JobType {
	return catalog.JobType{
		ID:             r.JobTypeID,
		Name:           r.JobTypeName,
		BaseScope:      r.BaseScope,
		ScopeSections:  r.ScopeSections,
		Options:        r.Options,
		BasePriceRange: catalog.PriceRange{Low: r.BasePriceLow, High: r.BasePriceHigh},
		EstimatedDays:  r.EstimatedDays,
		Warranty:       r.Warranty,
		Exclusions:     r.Exclusions,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string   `json:"status"`
	Version        string   `json:"version"`
	Trades         int      `json:"trades"`
	JobTypes       int      `json:"job_types"`
	Languages      []string `json:"languages"`
	SearchMode     string   `json:"search_mode"`
	EmbeddingModel string   `json:"embedding_model,omitempty"`
	Seeded         bool     `json:"seeded"`
}

// TradesResponse lists the catalog in the negotiated language.
type TradesResponse struct {
	Language string          `json:"language"`
	Trades   []catalog.Trade `json:"trades"`
}

// TradeResponse is a single localized trade.
type TradeResponse struct {
	Language string        `json:"language"`
	Trade    catalog.Trade `json:"trade"`
}

// JobTypeResponse is a single localized job type.
type JobTypeResponse struct {
	Language string          `json:"language"`
	TradeID  string          `json:"trade_id"`
	JobType  catalog.JobType `json:"job_type"`
}

// EstimateRequest asks for an estimate of one job type with the given option picks.
type EstimateRequest struct {
	TradeID   string             `json:"trade_id"`
	JobTypeID string             `json:"job_type_id"`
	Language  string             `json:"language,omitempty"`
	Selection estimate.Selection `json:"selection"`
}

// EstimateResponse wraps a composed estimate with the inputs that produced it.
type EstimateResponse struct {
	TradeID     string             `json:"trade_id"`
	JobTypeID   string             `json:"job_type_id"`
	JobTypeName string             `json:"job_type_name"`
	Language    string             `json:"language"`
	Selection   estimate.Selection `json:"selection"`
	Estimate    estimate.Estimate  `json:"estimate"`
}

// SearchHit is one ranked job type returned by search.
type SearchHit struct {
	TradeID     string  `json:"trade_id"`
	TradeName   string  `json:"trade_name"`
	JobTypeID   string  `json:"job_type_id"`
	JobTypeName string  `json:"job_type_name"`
	Score       float64 `json:"score"`
}

// SearchResponse is the result of a job-type search.
type SearchResponse struct {
	Query string      `json:"query"`
	Mode  string      `json:"mode"`
	Hits  []SearchHit `json:"hits"`
}

// TemplateListResponse lists persisted templates.
type TemplateListResponse struct {
	Count     int           `json:"count"`
	Templates []TemplateRow `json:"templates"`
}

// ReconcileResponse reports the outcome of a reconciliation pass.
type ReconcileResponse struct {
	Inserted   int    `json:"inserted"`
	Activated  int    `json:"activated"`
	Complete   bool   `json:"complete"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ExportResponse describes an uploaded template export.
type ExportResponse struct {
	ObjectKey string     `json:"object_key"`
	Count     int        `json:"count"`
	URL       string     `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
