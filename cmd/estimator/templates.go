package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/config"
	"github.com/hyperengineering/estimator/internal/reconcile"
	"github.com/hyperengineering/estimator/internal/snapshot"
	"github.com/hyperengineering/estimator/internal/store"
	"github.com/hyperengineering/estimator/internal/types"
)

var (
	templatesJSONOutput bool
	exportOutPath       string
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage persisted job templates",
	Long:  "Reconcile, list and export the template table without running the server.",
}

var templatesReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Insert or reactivate default templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplatesReconcile,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplatesList,
}

var templatesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export templates as JSON",
	Long: `Export every persisted template as a JSON document.

With --out the document is written to a file ("-" for stdout). Otherwise it is
uploaded to the configured snapshot bucket and a pre-signed URL is printed.`,
	Args: cobra.NoArgs,
	RunE: runTemplatesExport,
}

func init() {
	templatesCmd.PersistentFlags().BoolVar(&templatesJSONOutput, "json", false,
		"Output in JSON format")
	templatesExportCmd.Flags().StringVar(&exportOutPath, "out", "",
		"Write the export to this file instead of uploading (\"-\" for stdout)")

	templatesCmd.AddCommand(templatesReconcileCmd)
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesExportCmd)
}

// openToolingStore loads tooling config and opens the configured store.
func openToolingStore(ctx context.Context) (*config.Config, store.TemplateStore, error) {
	cfg, err := config.LoadForTooling()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

func runTemplatesReconcile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, st, err := openToolingStore(ctx)
	if err != nil {
		return err
	}
	cat, _, err := loadContent(cfg.Catalog)
	if err != nil {
		st.Close()
		return err
	}
	locker, err := newLocker(ctx, cfg.Redis)
	if err != nil {
		st.Close()
		return err
	}
	defer closeAll(st, locker)

	r := reconcile.New(st, catalog.NewRegistry(cat), reconcile.NewState(),
		reconcile.WithLocker(locker),
		reconcile.WithLockTTL(time.Duration(cfg.Reconcile.LockTTL)),
		reconcile.WithActor(cfg.Reconcile.CreatedBy),
	)

	start := time.Now()
	res := r.Reconcile(ctx)

	out := cmd.OutOrStdout()
	if templatesJSONOutput {
		resp := map[string]any{
			"inserted":    res.Inserted,
			"activated":   res.Activated,
			"complete":    res.Complete,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if res.Err != nil {
			resp["error"] = res.Err.Error()
		}
		if err := printJSON(out, resp); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Inserted:  %d\n", res.Inserted)
		fmt.Fprintf(out, "Activated: %d\n", res.Activated)
		fmt.Fprintf(out, "Complete:  %t\n", res.Complete)
	}

	if res.Err != nil {
		return fmt.Errorf("reconcile: %w", res.Err)
	}
	return nil
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, st, err := openToolingStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}

	out := cmd.OutOrStdout()
	if templatesJSONOutput {
		return printJSON(out, map[string]any{
			"templates": rows,
			"count":     len(rows),
		})
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No templates found. Run 'estimator templates reconcile' to seed defaults.")
		return nil
	}

	w := newTabWriter(out)
	fmt.Fprintln(w, "JOB TYPE\tTRADE\tACTIVE\tDEFAULT\tUSAGE\tCREATED BY\tUPDATED")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%d\t%s\t%s\n",
			r.JobTypeID,
			r.TradeID,
			r.IsActive,
			r.IsDefault,
			r.UsageCount,
			orDash(r.CreatedBy),
			r.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func runTemplatesExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, st, err := openToolingStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}

	out := cmd.OutOrStdout()
	if exportOutPath != "" {
		return writeExport(out, exportOutPath, rows)
	}

	uploader, err := snapshot.NewUploader(cfg.Snapshot)
	if err != nil {
		return err
	}
	resp, err := snapshot.NewExporter(uploader, cfg.Snapshot.Prefix).Publish(ctx, rows)
	if errors.Is(err, snapshot.ErrNotConfigured) {
		return fmt.Errorf("%w: set ESTIMATOR_SNAPSHOT_BUCKET or pass --out", err)
	}
	if err != nil {
		return err
	}

	if templatesJSONOutput {
		return printJSON(out, resp)
	}
	fmt.Fprintf(out, "Object:  %s\n", resp.ObjectKey)
	fmt.Fprintf(out, "Count:   %d\n", resp.Count)
	if resp.URL != "" {
		fmt.Fprintf(out, "URL:     %s\n", resp.URL)
	}
	return nil
}

// writeExport writes the export document to path, or to out when path is "-".
func writeExport(out io.Writer, path string, rows []types.TemplateRow) error {
	if path == "-" {
		return snapshot.Encode(out, rows, time.Now())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := snapshot.Encode(f, rows, time.Now()); err != nil {
		f.Close()
		return fmt.Errorf("write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(out, "Exported %d templates to %s\n", len(rows), path)
	return nil
}
