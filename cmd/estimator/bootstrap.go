package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/hyperengineering/estimator/content"
	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/config"
	"github.com/hyperengineering/estimator/internal/localize"
	"github.com/hyperengineering/estimator/internal/reconcile"
	"github.com/hyperengineering/estimator/internal/store"
)

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the process logger: JSON by default, text when asked.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// contentFS returns the catalog content: the embedded default, or dir when set.
func contentFS(dir string) fs.FS {
	if dir == "" {
		return content.FS
	}
	return os.DirFS(dir)
}

// loadContent loads the catalog and its translation bundles.
func loadContent(cfg config.CatalogConfig) (*catalog.Catalog, *localize.Provider, error) {
	fsys := contentFS(cfg.Dir)

	cat, err := catalog.Load(fsys)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	bundles, err := localize.LoadBundles(fsys)
	if err != nil {
		return nil, nil, fmt.Errorf("load translations: %w", err)
	}
	provider, err := localize.NewProvider(cfg.SourceLanguage, bundles...)
	if err != nil {
		return nil, nil, fmt.Errorf("load translations: %w", err)
	}
	return cat, provider, nil
}

// openStore opens the configured template store.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.TemplateStore, error) {
	if cfg.Driver == config.DriverPostgres {
		pg, err := store.NewPostgresStore(ctx, store.PostgresOptions{
			DSN:      cfg.DSN,
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	lite, err := store.NewSQLiteStore(cfg.Path)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

// newLocker returns a Redis lock when a URL is configured, otherwise a no-op.
func newLocker(ctx context.Context, cfg config.RedisConfig) (reconcile.Locker, error) {
	if cfg.URL == "" {
		return reconcile.NoopLocker{}, nil
	}
	l, err := reconcile.NewRedisLocker(ctx, cfg.URL, cfg.LockKey)
	if err != nil {
		return nil, err
	}
	slog.Info("reconcile lock enabled", "key", cfg.LockKey)
	return l, nil
}

func closeAll(st store.TemplateStore, locker reconcile.Locker) {
	if c, ok := locker.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Error("lock client close error", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}
}
