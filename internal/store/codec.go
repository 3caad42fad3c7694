package store

import (
	"encoding/json"
	"fmt"

	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/types"
)

const templateColumns = `id, job_type_id, trade_id, trade_name, job_type_name,
	base_scope, scope_sections, options, base_price_low, base_price_high,
	estimated_days, warranty, exclusions, is_default, is_active, created_by,
	usage_count, created_at, updated_at`

// jsonColumns holds the JSON-encoded columns of a template row.
type jsonColumns struct {
	BaseScope     []byte
	ScopeSections []byte
	Options       []byte
	EstimatedDays []byte
	Exclusions    []byte
}

func marshalList[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	return json.Marshal(v)
}

func encodeColumns(row types.TemplateRow) (jsonColumns, error) {
	var (
		cols jsonColumns
		err  error
	)
	if cols.BaseScope, err = marshalList(row.BaseScope); err != nil {
		return cols, fmt.Errorf("encode base_scope: %w", err)
	}
	if cols.ScopeSections, err = marshalList(row.ScopeSections); err != nil {
		return cols, fmt.Errorf("encode scope_sections: %w", err)
	}
	if cols.Options, err = marshalList(row.Options); err != nil {
		return cols, fmt.Errorf("encode options: %w", err)
	}
	if cols.Exclusions, err = marshalList(row.Exclusions); err != nil {
		return cols, fmt.Errorf("encode exclusions: %w", err)
	}
	if row.EstimatedDays != nil {
		if cols.EstimatedDays, err = json.Marshal(row.EstimatedDays); err != nil {
			return cols, fmt.Errorf("encode estimated_days: %w", err)
		}
	}
	return cols, nil
}

// estimatedDaysArg returns nil for an absent range so the column stays NULL.
func (c jsonColumns) estimatedDaysArg() any {
	if c.EstimatedDays == nil {
		return nil
	}
	return string(c.EstimatedDays)
}

func decodeColumns(row *types.TemplateRow, cols jsonColumns) error {
	if err := json.Unmarshal(cols.BaseScope, &row.BaseScope); err != nil {
		return fmt.Errorf("decode base_scope: %w", err)
	}
	var sections []catalog.ScopeSection
	if err := json.Unmarshal(cols.ScopeSections, &sections); err != nil {
		return fmt.Errorf("decode scope_sections: %w", err)
	}
	if len(sections) > 0 {
		row.ScopeSections = sections
	}
	if err := json.Unmarshal(cols.Options, &row.Options); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	var exclusions []string
	if err := json.Unmarshal(cols.Exclusions, &exclusions); err != nil {
		return fmt.Errorf("decode exclusions: %w", err)
	}
	if len(exclusions) > 0 {
		row.Exclusions = exclusions
	}
	if len(cols.EstimatedDays) > 0 && string(cols.EstimatedDays) != "null" {
		var days catalog.DayRange
		if err := json.Unmarshal(cols.EstimatedDays, &days); err != nil {
			return fmt.Errorf("decode estimated_days: %w", err)
		}
		row.EstimatedDays = &days
	}
	return nil
}
