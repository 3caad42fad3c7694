package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hyperengineering/estimator/internal/validation"
)

// LoadError lists every structural problem found in a catalog.
type LoadError struct {
	Errors []validation.ValidationError
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if len(e.Errors) == 0 {
		return ErrInvalidCatalog.Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.Error())
	}
	return ErrInvalidCatalog.Error() + ": " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidCatalog for errors.Is() compatibility.
func (e *LoadError) Unwrap() error {
	return ErrInvalidCatalog
}

// Validate checks the structural rules the composer and reconciler rely on:
// unique ids, ordered price ranges, well-formed options, and scope sections
// that agree with the flat base scope.
func Validate(trades []Trade) error {
	var c validation.Collector
	tradeIDs := validation.Unique{}
	jobTypeIDs := validation.Unique{}

	for ti, t := range trades {
		tp := fmt.Sprintf("trades[%d]", ti)
		c.Add(validation.ValidateRequired(tp+".id", t.ID))
		c.Add(validation.ValidateRequired(tp+".name", t.Name))
		c.Add(tradeIDs.Check(tp+".id", t.ID))

		for ji, jt := range t.JobTypes {
			validateJobType(&c, fmt.Sprintf("%s.job_types[%d]", tp, ji), jt, jobTypeIDs)
		}
	}

	if c.HasErrors() {
		return &LoadError{Errors: c.Errors()}
	}
	return nil
}

func validateJobType(c *validation.Collector, path string, jt JobType, seen validation.Unique) {
	c.Add(validation.ValidateRequired(path+".id", jt.ID))
	c.Add(validation.ValidateRequired(path+".name", jt.Name))
	c.Add(seen.Check(path+".id", jt.ID))

	if len(jt.BaseScope) == 0 {
		c.Addf(path+".base_scope", "must contain at least one item")
	}
	if len(jt.ScopeSections) > 0 && !slices.Equal(FlattenSections(jt.ScopeSections), jt.BaseScope) {
		c.Addf(path+".scope_sections", "items must match base_scope in content and order")
	}

	c.Add(validation.ValidateNonNegative(path+".base_price_range.low", jt.BasePriceRange.Low))
	c.Add(validation.ValidateOrdered(path+".base_price_range", jt.BasePriceRange.Low, jt.BasePriceRange.High))
	if jt.EstimatedDays != nil {
		c.Add(validation.ValidateOrdered(path+".estimated_days", jt.EstimatedDays.Low, jt.EstimatedDays.High))
	}

	optionIDs := validation.Unique{}
	for oi, o := range jt.Options {
		op := fmt.Sprintf("%s.options[%d]", path, oi)
		c.Add(validation.ValidateRequired(op+".id", o.ID))
		c.Add(validation.ValidateRequired(op+".label", o.Label))
		c.Add(optionIDs.Check(op+".id", o.ID))
		c.Add(validation.ValidateEnum(op+".type", string(o.Type), []string{string(OptionBoolean), string(OptionSelect)}))

		switch o.Type {
		case OptionBoolean:
			if len(o.Choices) > 0 {
				c.Addf(op+".choices", "boolean options must not declare choices")
			}
		case OptionSelect:
			if len(o.Choices) == 0 {
				c.Addf(op+".choices", "select options need at least one choice")
			}
			values := validation.Unique{}
			for ci, ch := range o.Choices {
				cp := fmt.Sprintf("%s.choices[%d]", op, ci)
				c.Add(validation.ValidateRequired(cp+".value", ch.Value))
				c.Add(validation.ValidateRequired(cp+".label", ch.Label))
				c.Add(values.Check(cp+".value", ch.Value))
			}
		}
	}
}
