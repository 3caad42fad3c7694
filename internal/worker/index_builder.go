package worker

import (
	"context"
	"log/slog"
	"time"
)

// SearchIndex is the part of the search index the builder drives.
type SearchIndex interface {
	Build(ctx context.Context) error
	Semantic() bool
}

// IndexBuilder embeds the catalog for semantic search in the background,
// retrying on failure. Search stays in keyword mode until a build succeeds.
type IndexBuilder struct {
	index       SearchIndex
	interval    time.Duration
	maxAttempts int
}

// NewIndexBuilder creates a builder that retries every interval, up to
// maxAttempts builds in total.
func NewIndexBuilder(index SearchIndex, interval time.Duration, maxAttempts int) *IndexBuilder {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &IndexBuilder{index: index, interval: interval, maxAttempts: maxAttempts}
}

// Run builds immediately, then retries on each tick until a build succeeds,
// attempts run out or ctx is cancelled.
func (b *IndexBuilder) Run(ctx context.Context) {
	if b.tryBuild(ctx, 1) {
		return
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for attempt := 2; attempt <= b.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b.tryBuild(ctx, attempt) {
				return
			}
		}
	}

	slog.Error("search index build abandoned, keyword search only",
		"component", "worker",
		"worker", "index-builder",
		"attempts", b.maxAttempts,
	)
}

func (b *IndexBuilder) tryBuild(ctx context.Context, attempt int) bool {
	start := time.Now()
	if err := b.index.Build(ctx); err != nil {
		if ctx.Err() != nil {
			return true // Graceful shutdown
		}
		slog.Warn("search index build failed, will retry",
			"component", "worker",
			"worker", "index-builder",
			"attempt", attempt,
			"error", err,
		)
		return false
	}

	slog.Info("search index built",
		"component", "worker",
		"worker", "index-builder",
		"semantic", b.index.Semantic(),
		"attempt", attempt,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return true
}
