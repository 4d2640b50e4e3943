package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listLimit int

// runsCmd is the parent command for stored runs
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored backtest runs",
}

// runsListCmd implements 'backtest runs list'
var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, _, err := wire(cmd.Context())
		if err != nil {
			return err
		}
		defer container.Close()

		runs, err := container.BacktestService.List(cmd.Context(), listLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tOBJECTIVE\tWINDOW\tCREATED\tPERIODS\tFALLBACKS\tANN. RETURN\tMAX DD")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%dm\t%s\t%d\t%d\t%.4f\t%.4f\n",
				r.ID, r.Name, r.Objective, r.WindowMonths, r.CreatedAt.Format("2006-01-02 15:04"),
				r.Periods, r.Fallbacks, r.AnnualizedReturn, r.MaxDrawdown)
		}
		return tw.Flush()
	},
}

// runsShowCmd implements 'backtest runs show <id>'
var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the report of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, _, err := wire(cmd.Context())
		if err != nil {
			return err
		}
		defer container.Close()

		run, err := container.BacktestService.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printRun(cmd.OutOrStdout(), run, runFormat)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd)

	runsListCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of runs")
	runsShowCmd.Flags().StringVar(&runFormat, "format", "table", "Output format: table, csv")
}
