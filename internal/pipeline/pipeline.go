// Package pipeline 串起一次完整运行：抓取、对账、写盘、发送汇总。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/exporter"
	"github.com/YKarmar/ApplyTracker/internal/metrics"
	"github.com/YKarmar/ApplyTracker/internal/reconciler"
	"github.com/YKarmar/ApplyTracker/internal/store"
	"github.com/YKarmar/ApplyTracker/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Fetcher interface {
	FetchApplications(ctx context.Context) ([]types.JobApplication, error)
}

type Notifier interface {
	Send(ctx context.Context, applications []types.JobApplication, attachmentPath string) error
}

// Store *store.CSVStore 的子集
type Store interface {
	Path() string
	LoadAll() ([]types.JobApplication, error)
	Persist(applications []types.JobApplication) error
	Meta() (store.Meta, error)
	SaveMeta(meta store.Meta) error
}

// RunState 跨运行传递的状态，由调用方持有
type RunState struct {
	Store   Store
	RunID   string
	LastRun time.Time
}

// NewRunState 从元数据恢复上次运行时间
func NewRunState(st Store) (*RunState, error) {
	meta, err := st.Meta()
	if err != nil {
		return nil, err
	}
	return &RunState{Store: st, LastRun: meta.LastRun}, nil
}

// Report 一次运行的结果，同时作为 /status 的输出
type Report struct {
	RunID              string                 `json:"run_id"`
	StartedAt          time.Time              `json:"started_at"`
	FinishedAt         time.Time              `json:"finished_at"`
	Fetched            int                    `json:"fetched"`
	New                int                    `json:"new"`
	Known              int                    `json:"known"`
	Duplicates         int                    `json:"duplicates"`
	Updated            int                    `json:"updated"`
	Unmatched          int                    `json:"unmatched,omitempty"`
	EnricherCalls      int                    `json:"enricher_calls"`
	EnrichmentFailures []string               `json:"enrichment_failures,omitempty"`
	Notified           bool                   `json:"notified"`
	NotifyError        string                 `json:"notify_error,omitempty"`
	Error              string                 `json:"error,omitempty"`
	Applications       []types.JobApplication `json:"applications,omitempty"`
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type Runner struct {
	fetcher    Fetcher
	reconciler *reconciler.Reconciler
	notifier   Notifier
	summary    *exporter.SummaryLog
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

type Option func(*Runner)

// WithSummaryLog 每次成功运行后追加汇总
func WithSummaryLog(l *exporter.SummaryLog) Option {
	return func(r *Runner) { r.summary = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func NewRunner(fetcher Fetcher, rec *reconciler.Reconciler, notifier Notifier, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		fetcher:    fetcher,
		reconciler: rec,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 执行一次完整流程。抓取失败或存储损坏时返回错误且不写盘；
// 调研失败和邮件发送失败只记录在 Report 里
func (r *Runner) Run(ctx context.Context, state *RunState) (*Report, error) {
	state.RunID = uuid.NewString()
	report := &Report{RunID: state.RunID, StartedAt: r.now()}
	logger := r.logger.With(zap.String("run_id", report.RunID))
	logger.Info("开始运行", zap.Time("last_run", state.LastRun))

	outcome, err := r.run(ctx, state, report, logger)
	report.FinishedAt = r.now()

	if err != nil {
		outcome = metrics.OutcomeFailed
		report.Error = err.Error()
		logger.Error("运行失败", zap.Error(err), zap.Duration("cost", report.Duration()))
	} else {
		state.LastRun = report.StartedAt
		if r.summary != nil {
			if serr := r.summary.Append(report.StartedAt, report.RunID, report.Applications); serr != nil {
				logger.Warn("写入汇总日志失败", zap.Error(serr))
			}
		}
		logger.Info("运行完成",
			zap.Int("fetched", report.Fetched),
			zap.Int("new", report.New),
			zap.Int("known", report.Known),
			zap.Int("updated", report.Updated),
			zap.Int("enrichment_failures", len(report.EnrichmentFailures)),
			zap.Bool("notified", report.Notified),
			zap.Duration("cost", report.Duration()))
	}

	r.metrics.ObserveRun(outcome, report.Duration(), report.Fetched, report.New, len(report.EnrichmentFailures))
	return report, err
}

func (r *Runner) run(ctx context.Context, state *RunState, report *Report, logger *zap.Logger) (string, error) {
	existing, err := state.Store.LoadAll()
	if err != nil {
		return "", fmt.Errorf("load store: %w", err)
	}

	fetched, err := r.fetcher.FetchApplications(ctx)
	if err != nil {
		var fetchErr *types.FetchError
		if !errors.As(err, &fetchErr) {
			err = &types.FetchError{Op: "fetch", Err: err}
		}
		return "", err
	}
	report.Fetched = len(fetched)

	res, err := r.reconciler.Reconcile(ctx, existing, fetched)
	report.EnricherCalls = res.EnricherCalls
	for _, e := range res.EnrichmentFailures {
		report.EnrichmentFailures = append(report.EnrichmentFailures, e.Company)
	}
	if err != nil {
		return "", fmt.Errorf("reconcile: %w", err)
	}
	report.Known = res.Known
	report.Duplicates = res.Duplicates
	report.Updated = res.Updated
	report.Unmatched = res.Unmatched
	report.New = len(res.New)
	report.Applications = res.New

	if len(res.New) == 0 {
		if res.Updated > 0 {
			// 只有状态变化时写盘但不发邮件
			if err := state.Store.Persist(res.Merged); err != nil {
				return "", fmt.Errorf("persist store: %w", err)
			}
			logger.Info("已更新申请状态", zap.Int("updated", res.Updated))
		} else {
			logger.Info("没有新的申请记录，跳过写盘和邮件", zap.Int("fetched", report.Fetched))
		}
		r.saveMeta(state, report, len(res.Merged), logger)
		return metrics.OutcomeNoNew, nil
	}

	if err := state.Store.Persist(res.Merged); err != nil {
		return "", fmt.Errorf("persist store: %w", err)
	}
	for _, app := range res.New {
		logger.Info("新增申请记录",
			zap.String("identity", app.ID),
			zap.String("company", app.Company),
			zap.String("title", app.Title))
	}
	r.saveMeta(state, report, len(res.Merged), logger)

	err = r.notifier.Send(ctx, res.New, state.Store.Path())
	r.metrics.ObserveNotification(err)
	if err != nil {
		report.NotifyError = err.Error()
		logger.Error("汇总邮件发送失败，数据已保存", zap.Error(err))
	} else {
		report.Notified = true
	}
	return metrics.OutcomeOK, nil
}

// 元数据写失败不影响本次结果，CSV 才是唯一数据源
func (r *Runner) saveMeta(state *RunState, report *Report, count int, logger *zap.Logger) {
	meta := store.Meta{LastRun: report.StartedAt, LastRunID: report.RunID, RecordCount: count}
	if err := state.Store.SaveMeta(meta); err != nil {
		logger.Warn("写入运行元数据失败", zap.Error(err))
	}
}
