// Package client is a Go client for the estimator HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to an estimator server.
type Client struct {
	baseURL  string
	apiKey   string
	language string
	http     *http.Client
}

// New creates a new Client
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		apiKey:   config.APIKey,
		language: config.Language,
		http:     &http.Client{Timeout: config.Timeout},
	}, nil
}

// Health returns the server health report.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	return call[HealthResponse](ctx, c, http.MethodGet, "/api/v1/health", nil)
}

// ListTrades returns every trade localized into the client's language.
func (c *Client) ListTrades(ctx context.Context) (*TradesResponse, error) {
	return call[TradesResponse](ctx, c, http.MethodGet, "/api/v1/trades", nil)
}

// GetTrade returns one trade.
func (c *Client) GetTrade(ctx context.Context, tradeID string) (*TradeResponse, error) {
	return call[TradeResponse](ctx, c, http.MethodGet, "/api/v1/trades/"+url.PathEscape(tradeID), nil)
}

// GetJobType returns one job type with its options.
func (c *Client) GetJobType(ctx context.Context, tradeID, jobTypeID string) (*JobTypeResponse, error) {
	path := "/api/v1/trades/" + url.PathEscape(tradeID) + "/job-types/" + url.PathEscape(jobTypeID)
	return call[JobTypeResponse](ctx, c, http.MethodGet, path, nil)
}

// CreateEstimate composes an estimate for a selection.
func (c *Client) CreateEstimate(ctx context.Context, req EstimateRequest) (*EstimateResponse, error) {
	return call[EstimateResponse](ctx, c, http.MethodPost, "/api/v1/estimates", req)
}

// Search ranks job types against a free-text query. limit <= 0 uses the
// server default.
func (c *Client) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return call[SearchResponse](ctx, c, http.MethodGet, "/api/v1/search?"+q.Encode(), nil)
}

// ListTemplates returns the persisted template rows. Requires an API key.
func (c *Client) ListTemplates(ctx context.Context) (*TemplateListResponse, error) {
	return call[TemplateListResponse](ctx, c, http.MethodGet, "/api/v1/templates", nil)
}

// ReconcileTemplates runs a reconciliation pass. Requires an API key.
func (c *Client) ReconcileTemplates(ctx context.Context) (*ReconcileResponse, error) {
	return call[ReconcileResponse](ctx, c, http.MethodPost, "/api/v1/templates/reconcile", nil)
}

// ExportTemplates publishes a template export. Requires an API key.
func (c *Client) ExportTemplates(ctx context.Context) (*ExportResponse, error) {
	return call[ExportResponse](ctx, c, http.MethodPost, "/api/v1/templates/export", nil)
}

func call[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	var out T
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends a request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
