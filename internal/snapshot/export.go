package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/estimator/internal/types"
)

// Document is the serialized form of a template export.
type Document struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Count       int                 `json:"count"`
	Templates   []types.TemplateRow `json:"templates"`
}

// Encode writes rows as an indented JSON export document.
func Encode(w io.Writer, rows []types.TemplateRow, generatedAt time.Time) error {
	if rows == nil {
		rows = []types.TemplateRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{GeneratedAt: generatedAt.UTC(), Count: len(rows), Templates: rows})
}

// Exporter publishes template exports through an Uploader.
type Exporter struct {
	uploader Uploader
	prefix   string
	now      func() time.Time
}

// NewExporter creates an Exporter writing objects under prefix.
func NewExporter(u Uploader, prefix string) *Exporter {
	return &Exporter{uploader: u, prefix: prefix, now: time.Now}
}

// Publish uploads rows as a new export object and returns a download URL.
// Returns ErrNotConfigured when no S3 bucket is configured.
func (e *Exporter) Publish(ctx context.Context, rows []types.TemplateRow) (*types.ExportResponse, error) {
	now := e.now().UTC()
	key := e.objectKey(now)

	var buf bytes.Buffer
	if err := Encode(&buf, rows, now); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	if err := e.uploader.Upload(ctx, key, buf.Bytes(), "application/json"); err != nil {
		return nil, err
	}

	resp := &types.ExportResponse{ObjectKey: key, Count: len(rows)}
	u, expiry, err := e.uploader.PresignedURL(ctx, key)
	if err != nil {
		return nil, err
	}
	resp.URL = u
	resp.ExpiresAt = &expiry
	return resp, nil
}

// objectKey returns {prefix}/templates-{yyyymmdd}-{ulid}.json.
func (e *Exporter) objectKey(at time.Time) string {
	name := fmt.Sprintf("templates-%s-%s.json", at.Format("20060102"), ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()))
	return path.Join(e.prefix, name)
}
