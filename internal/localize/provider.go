// Package localize overlays translated content onto structural catalog
// templates without forking them.
package localize

import (
	"fmt"
	"slices"

	"golang.org/x/text/language"

	"github.com/hyperengineering/estimator/internal/catalog"
)

// Provider is the translation registry for one source catalog.
// It is built once from a declarative set of bundles and never mutated,
// so it is safe for concurrent use.
type Provider struct {
	source    string
	bundles   map[string]Bundle
	supported []language.Tag
	matcher   language.Matcher
}

// NewProvider indexes bundles by language. The source language needs no
// bundle; a bundle for it, or two bundles for one language, is an error.
func NewProvider(source string, bundles ...Bundle) (*Provider, error) {
	srcTag, err := language.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse source language %q: %w", source, err)
	}

	p := &Provider{
		source:    srcTag.String(),
		bundles:   make(map[string]Bundle, len(bundles)),
		supported: []language.Tag{srcTag},
	}

	for _, b := range bundles {
		tag, err := language.Parse(b.Language)
		if err != nil {
			return nil, fmt.Errorf("parse bundle language %q: %w", b.Language, err)
		}
		key := tag.String()
		if key == p.source {
			return nil, fmt.Errorf("%w: bundle for source language %q", ErrInvalidBundle, key)
		}
		if _, dup := p.bundles[key]; dup {
			return nil, fmt.Errorf("%w: duplicate bundle for %q", ErrInvalidBundle, key)
		}
		p.bundles[key] = b
		p.supported = append(p.supported, tag)
	}

	p.matcher = language.NewMatcher(p.supported)
	return p, nil
}

// SourceLanguage returns the language the catalog is authored in.
func (p *Provider) SourceLanguage() string {
	return p.source
}

// Languages returns the source language followed by every bundle language.
func (p *Provider) Languages() []string {
	out := make([]string, len(p.supported))
	for i, t := range p.supported {
		out[i] = t.String()
	}
	return out
}

// Match picks the best supported language for a request. Each argument may
// be a single tag ("es") or an Accept-Language header value; the first
// argument that yields a confident match wins. Falls back to the source language.
func (p *Provider) Match(requested ...string) string {
	for _, r := range requested {
		if r == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(r)
		if err != nil || len(tags) == 0 {
			continue
		}
		_, idx, conf := p.matcher.Match(tags...)
		if conf != language.No {
			return p.supported[idx].String()
		}
	}
	return p.source
}

// Localize returns jobType with the content of lang's bundle overlaid.
//
// The source language, a trade without translations, and a job type
// without an entry all return jobType unchanged. Structural fields (ids,
// option types, price modifiers, choice values) are never altered and no
// option or choice is ever dropped. Localize never fails.
func (p *Provider) Localize(jobType catalog.JobType, tradeID, lang string) catalog.JobType {
	b, ok := p.bundleFor(lang)
	if !ok {
		return jobType
	}
	tr, ok := b.Trades[tradeID][jobType.ID]
	if !ok {
		return jobType
	}
	return overlayJobType(jobType, tr)
}

// LocalizeTrade localizes the trade name and every job type of a trade.
func (p *Provider) LocalizeTrade(trade catalog.Trade, lang string) catalog.Trade {
	b, ok := p.bundleFor(lang)
	if !ok {
		return trade
	}

	out := trade
	if name := b.TradeNames[trade.ID]; name != "" {
		out.Name = name
	}
	if jobs := b.Trades[trade.ID]; len(jobs) > 0 {
		out.JobTypes = make([]catalog.JobType, len(trade.JobTypes))
		for i, jt := range trade.JobTypes {
			if tr, ok := jobs[jt.ID]; ok {
				out.JobTypes[i] = overlayJobType(jt, tr)
			} else {
				out.JobTypes[i] = jt
			}
		}
	}
	return out
}

// bundleFor resolves lang to a bundle, trying the exact tag and then its base language.
func (p *Provider) bundleFor(lang string) (Bundle, bool) {
	tag, err := language.Parse(lang)
	if err != nil {
		return Bundle{}, false
	}
	key := tag.String()
	if key == p.source {
		return Bundle{}, false
	}
	if b, ok := p.bundles[key]; ok {
		return b, true
	}
	base, _ := tag.Base()
	b, ok := p.bundles[base.String()]
	return b, ok
}

func overlayJobType(src catalog.JobType, tr JobTypeTranslation) catalog.JobType {
	out := src

	if tr.Name != "" {
		out.Name = tr.Name
	}
	if tr.Warranty != "" {
		out.Warranty = tr.Warranty
	}
	if len(tr.Exclusions) > 0 {
		out.Exclusions = slices.Clone(tr.Exclusions)
	}

	switch {
	case len(tr.ScopeSections) > 0:
		out.ScopeSections = cloneSections(tr.ScopeSections)
		if len(tr.BaseScope) > 0 {
			out.BaseScope = slices.Clone(tr.BaseScope)
		} else {
			out.BaseScope = catalog.FlattenSections(tr.ScopeSections)
		}
	case len(tr.BaseScope) > 0:
		out.BaseScope = slices.Clone(tr.BaseScope)
		out.ScopeSections = alignSections(src.ScopeSections, out.BaseScope)
	}

	if len(tr.Options) > 0 {
		out.Options = make([]catalog.JobOption, len(src.Options))
		for i, o := range src.Options {
			if ot, ok := tr.Options[o.ID]; ok {
				out.Options[i] = overlayOption(o, ot)
			} else {
				out.Options[i] = o
			}
		}
	}

	return out
}

func overlayOption(src catalog.JobOption, tr OptionTranslation) catalog.JobOption {
	out := src
	if tr.Label != "" {
		out.Label = tr.Label
	}
	if tr.ScopeAddition != "" {
		out.ScopeAddition = tr.ScopeAddition
	}
	if len(tr.Choices) == 0 || len(src.Choices) == 0 {
		return out
	}

	byValue := make(map[string]ChoiceTranslation, len(tr.Choices))
	for _, ct := range tr.Choices {
		byValue[ct.Value] = ct
	}

	out.Choices = make([]catalog.Choice, len(src.Choices))
	for i, ch := range src.Choices {
		out.Choices[i] = ch
		ct, ok := byValue[ch.Value]
		if !ok {
			continue
		}
		if ct.Label != "" {
			out.Choices[i].Label = ct.Label
		}
		if ct.ScopeAddition != "" {
			out.Choices[i].ScopeAddition = ct.ScopeAddition
		}
	}
	return out
}

// alignSections redistributes translated base-scope items into the source
// section layout so sections and base scope stay consistent. When the item
// counts differ the sections are dropped and rendering falls back to the
// flat base scope.
func alignSections(src []catalog.ScopeSection, items []string) []catalog.ScopeSection {
	if len(src) == 0 {
		return nil
	}
	if len(catalog.FlattenSections(src)) != len(items) {
		return nil
	}

	out := make([]catalog.ScopeSection, len(src))
	pos := 0
	for i, s := range src {
		out[i] = catalog.ScopeSection{
			Title: s.Title,
			Items: slices.Clone(items[pos : pos+len(s.Items)]),
		}
		pos += len(s.Items)
	}
	return out
}

func cloneSections(in []catalog.ScopeSection) []catalog.ScopeSection {
	out := make([]catalog.ScopeSection, len(in))
	for i, s := range in {
		out[i] = catalog.ScopeSection{Title: s.Title, Items: slices.Clone(s.Items)}
	}
	return out
}
