package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/config"
	"github.com/hyperengineering/estimator/internal/localize"
)

var (
	catalogDirOverride string
	catalogLang        string
	catalogJSONOutput  bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the trade catalog",
	Long:  "List trades and job types and inspect a job type's options, localized on request.",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trades and their job types",
	Args:  cobra.NoArgs,
	RunE:  runCatalogList,
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <trade-id> [job-type-id]",
	Short: "Show a trade or one of its job types",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCatalogShow,
}

func init() {
	catalogCmd.PersistentFlags().StringVar(&catalogDirOverride, "catalog-dir", "",
		"Catalog directory with trades/ and translations/ (overrides config and ESTIMATOR_CATALOG_DIR)")
	catalogCmd.PersistentFlags().StringVar(&catalogLang, "lang", "",
		"Language to localize into (defaults to the source language)")
	catalogCmd.PersistentFlags().BoolVar(&catalogJSONOutput, "json", false,
		"Output in JSON format")

	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogShowCmd)
}

// resolveContent loads the catalog for offline commands with an optional
// directory override, and resolves the requested language.
func resolveContent(dirOverride, lang string) (*catalog.Catalog, *localize.Provider, string, error) {
	cfg, err := config.LoadForTooling()
	if err != nil {
		return nil, nil, "", fmt.Errorf("load config: %w", err)
	}
	if dirOverride != "" {
		cfg.Catalog.Dir = dirOverride
	}

	cat, provider, err := loadContent(cfg.Catalog)
	if err != nil {
		return nil, nil, "", err
	}
	if lang == "" {
		return cat, provider, provider.SourceLanguage(), nil
	}
	return cat, provider, provider.Match(lang), nil
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	cat, provider, lang, err := resolveContent(catalogDirOverride, catalogLang)
	if err != nil {
		return err
	}

	trades := cat.ListTrades()
	for i, t := range trades {
		trades[i] = provider.LocalizeTrade(t, lang)
	}

	out := cmd.OutOrStdout()
	if catalogJSONOutput {
		return printJSON(out, map[string]any{
			"language": lang,
			"trades":   trades,
		})
	}

	w := newTabWriter(out)
	fmt.Fprintln(w, "TRADE\tJOB TYPE\tNAME\tPRICE RANGE\tOPTIONS")
	for _, t := range trades {
		for _, jt := range t.JobTypes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				t.ID,
				jt.ID,
				jt.Name,
				formatRange(jt.BasePriceRange.Low, jt.BasePriceRange.High),
				len(jt.Options),
			)
		}
	}
	return w.Flush()
}

func runCatalogShow(cmd *cobra.Command, args []string) error {
	cat, provider, lang, err := resolveContent(catalogDirOverride, catalogLang)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		trade, err := cat.GetTrade(args[0])
		if err != nil {
			return err
		}
		trade = provider.LocalizeTrade(trade, lang)
		if catalogJSONOutput {
			return printJSON(out, map[string]any{"language": lang, "trade": trade})
		}
		fmt.Fprintf(out, "Trade:     %s (%s)\n", trade.Name, trade.ID)
		fmt.Fprintf(out, "Job types: %d\n", len(trade.JobTypes))
		for _, jt := range trade.JobTypes {
			fmt.Fprintf(out, "  %-24s %s\n", jt.ID, jt.Name)
		}
		return nil
	}

	jt, err := cat.GetJobType(args[0], args[1])
	if err != nil {
		return err
	}
	jt = provider.Localize(jt, args[0], lang)
	if catalogJSONOutput {
		return printJSON(out, map[string]any{"language": lang, "trade_id": args[0], "job_type": jt})
	}
	printJobType(out, jt)
	return nil
}

func printJobType(out io.Writer, jt catalog.JobType) {
	fmt.Fprintf(out, "Job type:  %s (%s)\n", jt.Name, jt.ID)
	fmt.Fprintf(out, "Price:     %s\n", formatRange(jt.BasePriceRange.Low, jt.BasePriceRange.High))
	if jt.EstimatedDays != nil {
		fmt.Fprintf(out, "Duration:  %d-%d days\n", jt.EstimatedDays.Low, jt.EstimatedDays.High)
	}
	if jt.Warranty != "" {
		fmt.Fprintf(out, "Warranty:  %s\n", jt.Warranty)
	}

	fmt.Fprintln(out, "Scope:")
	for _, item := range jt.BaseScope {
		fmt.Fprintf(out, "  - %s\n", item)
	}

	if len(jt.Options) == 0 {
		return
	}
	fmt.Fprintln(out, "Options:")
	for _, opt := range jt.Options {
		switch opt.Type {
		case catalog.OptionSelect:
			fmt.Fprintf(out, "  %s (select): %s\n", opt.ID, opt.Label)
			for _, ch := range opt.Choices {
				fmt.Fprintf(out, "    %-12s %+d  %s\n", ch.Value, ch.PriceModifier, ch.Label)
			}
		default:
			fmt.Fprintf(out, "  %s (boolean): %s %+d\n", opt.ID, opt.Label, opt.Modifier())
		}
	}
}

func formatRange(low, high int) string {
	return fmt.Sprintf("%d-%d", low, high)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// orDash renders empty strings as "-" in tables.
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
