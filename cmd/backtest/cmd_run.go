package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/backtester/internal/modules/backtest"
)

var (
	runDefinitionPath string
	runFormat         string
	runOnly           string
)

// runCmd implements 'backtest run'
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run backtest definitions against the history database",
	Long: `Run every definition in a YAML file and print each report.

Example definition file:
  backtests:
    - name: markowitz
      assets: [sh000300, sz399005, sz399006]
      benchmarks: [sh000300]
      window_months: 6
      objective: max_sharpe
      from: "2010-06-01"

Examples:
  backtest run --definition backtests.yaml
  backtest run --definition backtests.yaml --only markowitz --format csv
  backtest run --definition backtests.yaml --format json > reports.json`,
	RunE: runBacktests,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runDefinitionPath, "definition", "d", "backtests.yaml", "Path to the definition file")
	runCmd.Flags().StringVar(&runFormat, "format", "table", "Output format: table, csv, json")
	runCmd.Flags().StringVar(&runOnly, "only", "", "Run only the definition with this name")
}

func runBacktests(cmd *cobra.Command, args []string) error {
	switch runFormat {
	case "table", "csv", "json":
	default:
		return fmt.Errorf("unknown format %q", runFormat)
	}

	definitions, err := backtest.LoadDefinitions(runDefinitionPath)
	if err != nil {
		return err
	}
	if runOnly != "" {
		var selected []backtest.Definition
		for _, def := range definitions {
			if def.Name == runOnly {
				selected = append(selected, def)
			}
		}
		if len(selected) == 0 {
			return fmt.Errorf("no definition named %q in %s", runOnly, runDefinitionPath)
		}
		definitions = selected
	}

	ctx := cmd.Context()
	container, log, err := wire(ctx)
	if err != nil {
		return err
	}
	defer container.Close()

	out := cmd.OutOrStdout()
	var runs []*backtest.Run
	var errs []error
	for _, def := range definitions {
		run, err := container.BacktestService.Run(ctx, def)
		if err != nil {
			log.Error().Err(err).Str("definition", def.Name).Msg("Backtest failed")
			errs = append(errs, fmt.Errorf("%s: %w", def.Name, err))
			continue
		}
		runs = append(runs, run)
		if runFormat != "json" {
			if err := printRun(out, run, runFormat); err != nil {
				return err
			}
		}
	}

	if runFormat == "json" {
		reports := make([]interface{}, 0, len(runs))
		for _, run := range runs {
			reports = append(reports, map[string]interface{}{
				"run":    run.Summary(),
				"report": run.Report,
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	}

	return errors.Join(errs...)
}

func printRun(w io.Writer, run *backtest.Run, format string) error {
	if format == "csv" {
		return run.Report.WriteCSV(w)
	}

	s := run.Summary()
	fmt.Fprintf(w, "\n%s  (%s, %d-month window, run %s)\n", s.Name, s.Objective, s.WindowMonths, s.ID)
	fmt.Fprintf(w, "%d periods, %d optimizer fallbacks\n\n", s.Periods, s.Fallbacks)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIES\tMETRIC\tVALUE")
	for _, m := range run.Report.Metrics() {
		value := "n/a"
		if m.Value != nil {
			value = fmt.Sprintf("%.6g", *m.Value)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Series, m.Name, value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, warning := range run.Report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}
