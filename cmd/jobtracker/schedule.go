package main

import (
	"context"
	"fmt"

	"github.com/YKarmar/ApplyTracker/internal/metrics"
	"github.com/YKarmar/ApplyTracker/internal/pipeline"
	"github.com/YKarmar/ApplyTracker/internal/scheduler"
	"github.com/YKarmar/ApplyTracker/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var scheduleCommand = &cobra.Command{
	Use:   "schedule",
	Short: "Run immediately, then every day at schedule.at",
	Long: `Runs the pipeline once on start and then daily at the configured local time (SCHEDULE_AT, default 09:00).
A run that is still in progress delays the next trigger instead of overlapping it.

When server.addr or PORT is set, a status endpoint is served with /healthz, /status and /metrics.`,
	Args: cobra.NoArgs,
	RunE: scheduleCmd,
}

func init() {
	rootCmd.AddCommand(scheduleCommand)
}

func scheduleCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.Validate(); err != nil {
		return err
	}
	hour, minute, err := a.cfg.ScheduleClock()
	if err != nil {
		return err
	}

	// 启动时先检查 CSV，损坏时直接退出而不是等到第一次运行
	if _, err := a.store.LoadAll(); err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	state, err := pipeline.NewRunState(a.store)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	m := metrics.New()
	status := server.New(m, a.logger.Named("server"))
	runner := a.runner(ctx, m)

	sched, err := scheduler.New(hour, minute, func(ctx context.Context) error {
		report, err := runner.Run(ctx, state)
		status.Record(report)
		return err
	}, a.logger.Named("scheduler"))
	if err != nil {
		return err
	}
	status.SetNextRun(sched.Next)

	g, ctx := errgroup.WithContext(ctx)
	if addr := a.cfg.Server.Addr; addr != "" {
		g.Go(func() error {
			return status.ListenAndServe(ctx, addr)
		})
	}
	g.Go(func() error {
		return sched.Run(ctx)
	})
	return g.Wait()
}
