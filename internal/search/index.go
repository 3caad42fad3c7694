// Package search ranks catalog job types against free-text queries.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/embedding"
	"github.com/hyperengineering/estimator/internal/types"
)

// Search modes reported to callers.
const (
	ModeSemantic = "semantic"
	ModeKeyword  = "keyword"
)

// DefaultLimit caps results when the caller passes no limit.
const DefaultLimit = 10

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("search query is empty")

type document struct {
	tradeID     string
	tradeName   string
	jobTypeID   string
	jobTypeName string
	text        string
	nameTokens  map[string]struct{}
	bodyTokens  map[string]struct{}
}

// Index holds one document per job type. Vectors are attached by Build and
// searched semantically once present; until then queries use keyword scoring.
type Index struct {
	docs     []document
	embedder embedding.Embedder

	mu      sync.RWMutex
	vectors [][]float32
}

// NewIndex builds the keyword index for a catalog. embedder may be nil.
func NewIndex(c *catalog.Catalog, embedder embedding.Embedder) *Index {
	idx := &Index{embedder: embedder}
	for _, t := range c.ListTrades() {
		for _, jt := range t.JobTypes {
			idx.docs = append(idx.docs, newDocument(t, jt))
		}
	}
	return idx
}

func newDocument(t catalog.Trade, jt catalog.JobType) document {
	var body []string
	body = append(body, jt.BaseScope...)
	for _, opt := range jt.Options {
		body = append(body, opt.Label, opt.ScopeAddition)
		for _, ch := range opt.Choices {
			body = append(body, ch.Label, ch.ScopeAddition)
		}
	}

	name := t.Name + " " + jt.Name
	return document{
		tradeID:     t.ID,
		tradeName:   t.Name,
		jobTypeID:   jt.ID,
		jobTypeName: jt.Name,
		text:        name + ". " + strings.Join(body, ". "),
		nameTokens:  tokenSet(name + " " + jt.ID),
		bodyTokens:  tokenSet(strings.Join(body, " ")),
	}
}

// Len returns the number of indexed job types.
func (idx *Index) Len() int {
	return len(idx.docs)
}

// Semantic reports whether vectors are loaded.
func (idx *Index) Semantic() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.vectors != nil
}

// Build embeds every document. It is a no-op without an embedder.
func (idx *Index) Build(ctx context.Context) error {
	if idx.embedder == nil || len(idx.docs) == 0 {
		return nil
	}
	texts := make([]string, len(idx.docs))
	for i, d := range idx.docs {
		texts[i] = d.text
	}
	vecs, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("build search index: %w", err)
	}
	if len(vecs) != len(idx.docs) {
		return fmt.Errorf("build search index: got %d vectors for %d job types", len(vecs), len(idx.docs))
	}

	idx.mu.Lock()
	idx.vectors = vecs
	idx.mu.Unlock()
	return nil
}

// Search returns up to limit hits and the mode that produced them. A failed
// query embedding falls back to keyword scoring.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]types.SearchHit, string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, "", ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	idx.mu.RLock()
	vectors := idx.vectors
	idx.mu.RUnlock()

	if vectors != nil {
		qv, err := idx.embedder.Embed(ctx, query)
		if err == nil {
			return idx.rank(limit, func(i int) float64 {
				return cosine(qv, vectors[i])
			}), ModeSemantic, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		slog.Warn("query embedding failed, using keyword search",
			"component", "search",
			"error", err,
		)
	}

	terms := tokens(query)
	return idx.rank(limit, func(i int) float64 {
		return keywordScore(terms, idx.docs[i])
	}), ModeKeyword, nil
}

// rank scores every document, drops non-positive scores and sorts by score
// then catalog order.
func (idx *Index) rank(limit int, score func(i int) float64) []types.SearchHit {
	type scored struct {
		pos   int
		score float64
	}
	var all []scored
	for i := range idx.docs {
		if s := score(i); s > 0 {
			all = append(all, scored{i, s})
		}
	}
	slices.SortStableFunc(all, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return a.pos - b.pos
	})
	if len(all) > limit {
		all = all[:limit]
	}

	hits := make([]types.SearchHit, len(all))
	for i, s := range all {
		d := idx.docs[s.pos]
		hits[i] = types.SearchHit{
			TradeID:     d.tradeID,
			TradeName:   d.tradeName,
			JobTypeID:   d.jobTypeID,
			JobTypeName: d.jobTypeName,
			Score:       math.Round(s.score*1e4) / 1e4,
		}
	}
	return hits
}

// keywordScore weights name matches twice as heavily as body matches and
// normalises by the number of query terms.
func keywordScore(terms []string, d document) float64 {
	if len(terms) == 0 {
		return 0
	}
	var score float64
	for _, term := range terms {
		if _, ok := d.nameTokens[term]; ok {
			score += 2
		} else if _, ok := d.bodyTokens[term]; ok {
			score++
		}
	}
	return score / float64(2*len(terms))
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokens(s) {
		set[t] = struct{}{}
	}
	return set
}
