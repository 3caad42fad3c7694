// Package estimate composes priced, ordered estimates from a job type and
// a set of option picks.
package estimate

import (
	"maps"
	"slices"

	"github.com/hyperengineering/estimator/internal/catalog"
)

// OptionsSectionTitle titles the addenda section collecting option scope lines.
const OptionsSectionTitle = "Options"

// Estimate is the priced scope document produced by Compose.
type Estimate struct {
	PriceRangeLow  int                    `json:"price_range_low"`
	PriceRangeHigh int                    `json:"price_range_high"`
	ScopeSections  []catalog.ScopeSection `json:"scope_sections"`
	Warranty       string                 `json:"warranty,omitempty"`
	Exclusions     []string               `json:"exclusions,omitempty"`
	EstimatedDays  *catalog.DayRange      `json:"estimated_days,omitempty"`
}

// Compose merges sel into jobType. It is pure: the same inputs always yield
// deep-equal output, and nothing reachable from jobType is modified.
//
// Options are applied in catalog order, so appended scope lines do not
// depend on how the selection was submitted. Price modifiers are added to
// both ends of the range; negative totals are clamped to zero.
func Compose(jobType catalog.JobType, sel Selection) (Estimate, error) {
	if err := checkSelection(jobType, sel); err != nil {
		return Estimate{}, err
	}

	low, high := jobType.BasePriceRange.Low, jobType.BasePriceRange.High
	var addenda []string

	for _, opt := range jobType.Options {
		pick, ok := sel[opt.ID]
		if !ok {
			continue
		}

		switch opt.Type {
		case catalog.OptionBoolean:
			if !pick.On() {
				continue
			}
			low += opt.Modifier()
			high += opt.Modifier()
			if opt.ScopeAddition != "" {
				addenda = append(addenda, opt.ScopeAddition)
			}

		case catalog.OptionSelect:
			if !pick.IsChoice() || pick.Value() == "" {
				continue
			}
			choice, ok := opt.Choice(pick.Value())
			if !ok {
				return Estimate{}, &SelectionError{OptionID: opt.ID, Pick: pick, Reason: "not one of the declared choices"}
			}
			low += choice.PriceModifier
			high += choice.PriceModifier
			if choice.ScopeAddition != "" {
				addenda = append(addenda, choice.ScopeAddition)
			}
		}
	}

	sections := baseSections(jobType)
	if len(addenda) > 0 {
		sections = append(sections, catalog.ScopeSection{Title: OptionsSectionTitle, Items: addenda})
	}

	est := Estimate{
		PriceRangeLow:  max(low, 0),
		PriceRangeHigh: max(high, 0),
		ScopeSections:  sections,
		Warranty:       jobType.Warranty,
		Exclusions:     slices.Clone(jobType.Exclusions),
	}
	if jobType.EstimatedDays != nil {
		days := *jobType.EstimatedDays
		est.EstimatedDays = &days
	}
	return est, nil
}

// checkSelection rejects picks for unknown options and picks of the wrong
// kind before any pricing happens. Keys are checked in sorted order so the
// reported error is stable.
func checkSelection(jobType catalog.JobType, sel Selection) error {
	for _, id := range slices.Sorted(maps.Keys(sel)) {
		pick := sel[id]
		opt, ok := jobType.Option(id)
		if !ok {
			return &SelectionError{OptionID: id, Pick: pick, Reason: "unknown option"}
		}

		switch {
		case opt.Type == catalog.OptionBoolean && !pick.IsToggle():
			return &SelectionError{OptionID: id, Pick: pick, Reason: "boolean option needs true or false"}
		case opt.Type == catalog.OptionSelect && pick.IsToggle() && pick.On():
			return &SelectionError{OptionID: id, Pick: pick, Reason: "select option needs a choice value"}
		case opt.Type == catalog.OptionSelect && !pick.IsToggle() && !pick.IsChoice():
			return &SelectionError{OptionID: id, Pick: pick, Reason: "empty pick"}
		}
	}
	return nil
}

// baseSections copies the job type's sections, or wraps the flat base
// scope in a single untitled section.
func baseSections(jobType catalog.JobType) []catalog.ScopeSection {
	if len(jobType.ScopeSections) == 0 {
		return []catalog.ScopeSection{{Items: slices.Clone(jobType.BaseScope)}}
	}
	out := make([]catalog.ScopeSection, len(jobType.ScopeSections))
	for i, s := range jobType.ScopeSections {
		out[i] = catalog.ScopeSection{Title: s.Title, Items: slices.Clone(s.Items)}
	}
	return out
}
