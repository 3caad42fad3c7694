package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/estimator/internal/api"
	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/config"
	"github.com/hyperengineering/estimator/internal/embedding"
	"github.com/hyperengineering/estimator/internal/reconcile"
	"github.com/hyperengineering/estimator/internal/search"
	"github.com/hyperengineering/estimator/internal/snapshot"
	"github.com/hyperengineering/estimator/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

const (
	indexRetryInterval = 30 * time.Second
	indexMaxAttempts   = 10
)

var rootCmd = &cobra.Command{
	Use:          "estimator",
	Short:        "Estimator - trade catalog and estimate service",
	RunE:         runServe,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(templatesCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 3. Initialize logger
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 4. Load catalog and translations
	cat, localizer, err := loadContent(cfg.Catalog)
	if err != nil {
		return err
	}
	slog.Info("catalog loaded",
		"trades", len(cat.ListTrades()),
		"job_types", cat.JobTypeCount(),
		"languages", localizer.Languages(),
	)

	// 5. Initialize template store (migrations run on open)
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "driver", cfg.Database.Driver)

	// 6. Reconciler, with a Redis lock when configured
	locker, err := newLocker(ctx, cfg.Redis)
	if err != nil {
		st.Close()
		return err
	}
	reconciler := reconcile.New(st, catalog.NewRegistry(cat), reconcile.NewState(),
		reconcile.WithLocker(locker),
		reconcile.WithLockTTL(time.Duration(cfg.Reconcile.LockTTL)),
		reconcile.WithActor(cfg.Reconcile.CreatedBy),
	)

	// 7. Search index; semantic only with an embedding key
	var embedder embedding.Embedder
	if cfg.SearchEnabled() {
		embedder = embedding.NewOpenAI(cfg.Embedding.APIKey, cfg.Embedding.Model)
		slog.Info("embedder initialized", "model", cfg.Embedding.Model)
	}
	index := search.NewIndex(cat, embedder)

	// 8. Export storage
	uploader, err := snapshot.NewUploader(cfg.Snapshot)
	if err != nil {
		closeAll(st, locker)
		return err
	}

	// 9. Initialize HTTP router
	handler := api.NewHandler(api.Deps{
		Catalog:        cat,
		Localizer:      localizer,
		Templates:      st,
		Reconciler:     reconciler,
		Searcher:       index,
		Exporter:       snapshot.NewExporter(uploader, cfg.Snapshot.Prefix),
		APIKey:         cfg.Auth.APIKey,
		Version:        Version,
		EmbeddingModel: cfg.Embedding.Model,
	})
	if cfg.Auth.APIKey == "" {
		slog.Warn("admin API is unauthenticated", "reason", "dev_mode")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 10. Background workers
	var wg sync.WaitGroup
	if cfg.Reconcile.OnStartup {
		startWorker(ctx, &wg, "startup-reconcile", func(ctx context.Context) {
			res, ran := reconciler.EnsureSeeded(ctx)
			if ran && res.Err != nil {
				slog.Warn("startup reconciliation incomplete", "error", res.Err)
			}
		})
	}
	if cfg.Reconcile.Schedule != "" {
		scheduler, err := worker.NewReconcileScheduler(reconciler, cfg.Reconcile.Schedule)
		if err != nil {
			closeAll(st, locker)
			return err
		}
		startWorker(ctx, &wg, "reconcile-scheduler", scheduler.Run)
	}
	if embedder != nil {
		builder := worker.NewIndexBuilder(index, indexRetryInterval, indexMaxAttempts)
		startWorker(ctx, &wg, "index-builder", builder.Run)
	}

	// 11. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	wg.Wait()
	closeAll(st, locker)

	slog.Info("shutdown complete")
	return nil
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
