package localize

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/validation"
)

// BundleGlob matches translation files inside a content filesystem.
const BundleGlob = "translations/*.yaml"

// ErrInvalidBundle indicates a translation bundle failed structural validation.
var ErrInvalidBundle = errors.New("invalid translation bundle")

// Bundle holds every translation for one language, keyed by
// trade id, then job-type id.
type Bundle struct {
	Language   string                                   `yaml:"language"`
	TradeNames map[string]string                        `yaml:"trade_names,omitempty"`
	Trades     map[string]map[string]JobTypeTranslation `yaml:"trades"`
}

// JobTypeTranslation overlays the content fields of a JobType.
// Empty fields fall back to the source content.
type JobTypeTranslation struct {
	Name          string                       `yaml:"name,omitempty"`
	BaseScope     []string                     `yaml:"base_scope,omitempty"`
	ScopeSections []catalog.ScopeSection       `yaml:"scope_sections,omitempty"`
	Warranty      string                       `yaml:"warranty,omitempty"`
	Exclusions    []string                     `yaml:"exclusions,omitempty"`
	Options       map[string]OptionTranslation `yaml:"options,omitempty"`
}

// OptionTranslation overlays an option's label and scope addition.
// Label is required; choices are matched by their untranslated value.
type OptionTranslation struct {
	Label         string              `yaml:"label"`
	ScopeAddition string              `yaml:"scope_addition,omitempty"`
	Choices       []ChoiceTranslation `yaml:"choices,omitempty"`
}

// ChoiceTranslation overlays one choice of a select option.
type ChoiceTranslation struct {
	Value         string `yaml:"value"`
	Label         string `yaml:"label"`
	ScopeAddition string `yaml:"scope_addition,omitempty"`
}

// LoadBundles reads one bundle per YAML file from fsys.
// A filesystem without translation files yields no bundles.
func LoadBundles(fsys fs.FS) ([]Bundle, error) {
	paths, err := fs.Glob(fsys, BundleGlob)
	if err != nil {
		return nil, fmt.Errorf("glob translation files: %w", err)
	}

	bundles := make([]Bundle, 0, len(paths))
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("reading translation file %s: %w", p, err)
		}

		var b Bundle
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&b); err != nil {
			return nil, fmt.Errorf("parsing translation file %s: %w", p, err)
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// Validate reports missing required labels and inconsistent scope content.
func (b Bundle) Validate() error {
	var c validation.Collector
	c.Add(validation.ValidateRequired("language", b.Language))

	for tradeID, jobs := range b.Trades {
		for jobID, jt := range jobs {
			path := fmt.Sprintf("trades.%s.%s", tradeID, jobID)
			if len(jt.BaseScope) > 0 && len(jt.ScopeSections) > 0 &&
				!slices.Equal(catalog.FlattenSections(jt.ScopeSections), jt.BaseScope) {
				c.Addf(path+".scope_sections", "items must match base_scope in content and order")
			}
			for optID, ot := range jt.Options {
				op := fmt.Sprintf("%s.options.%s", path, optID)
				c.Add(validation.ValidateRequired(op+".label", ot.Label))
				values := validation.Unique{}
				for i, ch := range ot.Choices {
					cp := fmt.Sprintf("%s.choices[%d]", op, i)
					c.Add(validation.ValidateRequired(cp+".value", ch.Value))
					c.Add(validation.ValidateRequired(cp+".label", ch.Label))
					c.Add(values.Check(cp+".value", ch.Value))
				}
			}
		}
	}

	if c.HasErrors() {
		errs := c.Errors()
		if len(errs) == 1 {
			return fmt.Errorf("%w: %s", ErrInvalidBundle, errs[0].Error())
		}
		return fmt.Errorf("%w: %s (and %d more)", ErrInvalidBundle, errs[0].Error(), len(errs)-1)
	}
	return nil
}
