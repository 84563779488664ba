package main

import (
	"fmt"

	"github.com/YKarmar/ApplyTracker/internal/pipeline"
	"github.com/spf13/cobra"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the tracking pipeline once",
	Long:  "Fetches LinkedIn application emails, records new applications with company research and emails the summary if anything new was found.",
	Args:  cobra.NoArgs,
	RunE:  runOnceCmd,
}

func init() {
	rootCmd.AddCommand(runCommand)
}

func runOnceCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.Validate(); err != nil {
		return err
	}

	state, err := pipeline.NewRunState(a.store)
	if err != nil {
		return err
	}

	report, err := a.runner(cmd.Context(), nil).Run(cmd.Context(), state)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Fetched %d applications: %d new, %d already tracked, %d status updates\n",
		report.Fetched, report.New, report.Known, report.Updated)
	for _, ja := range report.Applications {
		fmt.Fprintf(out, "  • %s - %s (%s) [%s]\n", ja.Company, ja.Title, ja.Status, ja.Date)
	}
	if len(report.EnrichmentFailures) > 0 {
		fmt.Fprintf(out, "Company research failed for: %v (run backfill later)\n", report.EnrichmentFailures)
	}
	if report.NotifyError != "" {
		fmt.Fprintf(out, "Summary email not sent: %s\n", report.NotifyError)
	}
	return nil
}
