package client

import (
	"time"

	"github.com/hyperengineering/estimator/internal/types"
)

// Wire types shared with the server.
type (
	HealthResponse       = types.HealthResponse
	TradesResponse       = types.TradesResponse
	TradeResponse        = types.TradeResponse
	JobTypeResponse      = types.JobTypeResponse
	EstimateRequest      = types.EstimateRequest
	EstimateResponse     = types.EstimateResponse
	SearchResponse       = types.SearchResponse
	TemplateListResponse = types.TemplateListResponse
	ReconcileResponse    = types.ReconcileResponse
	ExportResponse       = types.ExportResponse
)

// Config holds the client configuration
type Config struct {
	BaseURL  string        // Estimator service URL, e.g. http://localhost:8080
	APIKey   string        // Admin API key, only needed for template routes
	Language string        // Preferred response language (Accept-Language)
	Timeout  time.Duration // Per-request timeout (default: 30 seconds)
}

// FieldError is a field-level validation failure from a 422 response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
