package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/estimate"
)

var (
	estimateSelections []string
	estimateLang       string
	estimateCatalogDir string
	estimateJSONOutput bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <trade-id> <job-type-id>",
	Short: "Compose an estimate for a job type",
	Long: `Compose an estimate offline from the catalog.

Options are picked with --select option=value: boolean options take true or
false, select options take a choice value.`,
	Example: "  estimator estimate bathroom-remodel tub-to-shower --select niche=true --select glass-door=framed",
	Args:    cobra.ExactArgs(2),
	RunE:    runEstimate,
}

func init() {
	estimateCmd.Flags().StringArrayVar(&estimateSelections, "select", nil,
		"Option pick as option=value (repeatable)")
	estimateCmd.Flags().StringVar(&estimateLang, "lang", "",
		"Language to localize into (defaults to the source language)")
	estimateCmd.Flags().StringVar(&estimateCatalogDir, "catalog-dir", "",
		"Catalog directory with trades/ and translations/")
	estimateCmd.Flags().BoolVar(&estimateJSONOutput, "json", false,
		"Output in JSON format")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	tradeID, jobTypeID := args[0], args[1]

	cat, provider, lang, err := resolveContent(estimateCatalogDir, estimateLang)
	if err != nil {
		return err
	}
	jt, err := cat.GetJobType(tradeID, jobTypeID)
	if err != nil {
		return err
	}

	sel, err := parseSelection(jt, estimateSelections)
	if err != nil {
		return err
	}

	localized := provider.Localize(jt, tradeID, lang)
	est, err := estimate.Compose(localized, sel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if estimateJSONOutput {
		return printJSON(out, map[string]any{
			"trade_id":    tradeID,
			"job_type_id": jobTypeID,
			"language":    lang,
			"selection":   sel,
			"estimate":    est,
		})
	}

	fmt.Fprintf(out, "%s\n", localized.Name)
	fmt.Fprintf(out, "Price: %s\n", formatRange(est.PriceRangeLow, est.PriceRangeHigh))
	if est.EstimatedDays != nil {
		fmt.Fprintf(out, "Duration: %d-%d days\n", est.EstimatedDays.Low, est.EstimatedDays.High)
	}
	for _, section := range est.ScopeSections {
		fmt.Fprintf(out, "\n%s\n", orDash(section.Title))
		for _, item := range section.Items {
			fmt.Fprintf(out, "  - %s\n", item)
		}
	}
	if est.Warranty != "" {
		fmt.Fprintf(out, "\nWarranty: %s\n", est.Warranty)
	}
	if len(est.Exclusions) > 0 {
		fmt.Fprintln(out, "\nExclusions:")
		for _, ex := range est.Exclusions {
			fmt.Fprintf(out, "  - %s\n", ex)
		}
	}
	return nil
}

// parseSelection turns option=value flags into a Selection. Values for
// boolean options parse as bools; anything else is a choice value and is
// checked by Compose.
func parseSelection(jt catalog.JobType, flags []string) (estimate.Selection, error) {
	sel := estimate.Selection{}
	for _, f := range flags {
		id, value, ok := strings.Cut(f, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("--select %q: want option=value", f)
		}
		value = strings.TrimSpace(value)

		opt, known := jt.Option(id)
		if known && opt.Type == catalog.OptionBoolean {
			on, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("--select %q: boolean option takes true or false", f)
			}
			sel[id] = estimate.Toggle(on)
			continue
		}
		sel[id] = estimate.Choose(value)
	}
	return sel, nil
}
