package main

import (
	"fmt"

	"github.com/YKarmar/ApplyTracker/internal/exporter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backfillCommand = &cobra.Command{
	Use:   "backfill",
	Short: "Fill in missing company research for stored applications",
	Args:  cobra.NoArgs,
	RunE:  backfillCmd,
}

var dedupeCommand = &cobra.Command{
	Use:   "dedupe",
	Short: "Collapse duplicate applications and rewrite the CSV in the current format",
	Args:  cobra.NoArgs,
	RunE:  dedupeCmd,
}

var statsCommand = &cobra.Command{
	Use:   "stats",
	Short: "Print status and company statistics for stored applications",
	Args:  cobra.NoArgs,
	RunE:  statsCmd,
}

func init() {
	rootCmd.AddCommand(backfillCommand, dedupeCommand, statsCommand)
}

func backfillCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.ValidateLLM(); err != nil {
		return err
	}

	records, err := a.store.LoadAll()
	if err != nil {
		return err
	}

	res, err := a.reconciler(a.analyzer()).Backfill(cmd.Context(), records)
	if err != nil {
		return err
	}
	if res.Filled > 0 {
		if err := a.store.Persist(res.Records); err != nil {
			return err
		}
	}

	a.logger.Info("调研补全完成",
		zap.Int("filled", res.Filled),
		zap.Int("enricher_calls", res.EnricherCalls),
		zap.Int("failures", len(res.EnrichmentFailures)))
	fmt.Fprintf(cmd.OutOrStdout(), "Research added to %d applications (%d companies queried, %d failed)\n",
		res.Filled, res.EnricherCalls, len(res.EnrichmentFailures))
	return nil
}

func dedupeCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	records, stats, err := a.store.LoadWithStats()
	if err != nil {
		return err
	}
	if !stats.FileExists {
		fmt.Fprintf(cmd.OutOrStdout(), "No store at %s, nothing to do\n", a.store.Path())
		return nil
	}
	if err := a.store.Persist(records); err != nil {
		return err
	}

	a.logger.Info("去重完成",
		zap.Int("rows", stats.Rows),
		zap.Int("collapsed", stats.Collapsed),
		zap.Bool("legacy", stats.Legacy))
	fmt.Fprintf(cmd.OutOrStdout(), "Kept %d applications, removed %d duplicates\n", len(records), stats.Collapsed)
	if stats.Legacy {
		fmt.Fprintln(cmd.OutOrStdout(), "Migrated legacy CSV header to the current format")
	}
	return nil
}

func statsCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.store.LoadAll()
	if err != nil {
		return err
	}
	exporter.PrintJobStatistics(cmd.OutOrStdout(), records)
	return nil
}
