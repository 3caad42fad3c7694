package store

import (
	"context"

	"github.com/hyperengineering/estimator/internal/types"
)

// TemplateStore persists job templates keyed by job-type id.
type TemplateStore interface {
	// GetTemplate returns the row for a job-type id or ErrNotFound.
	GetTemplate(ctx context.Context, jobTypeID string) (*types.TemplateRow, error)
	// InsertTemplate writes a new row. ErrDuplicateTemplate is returned when a
	// row for the same job-type id already exists.
	InsertTemplate(ctx context.Context, row types.TemplateRow) error
	// SetTemplateActive flips the active flag without touching any other column
	// except updated_at.
	SetTemplateActive(ctx context.Context, jobTypeID string, active bool) error
	ListTemplates(ctx context.Context) ([]types.TemplateRow, error)
	// IncrementUsage bumps usage_count on an active row.
	IncrementUsage(ctx context.Context, jobTypeID string) error
	Ping(ctx context.Context) error
	Close() error
}
