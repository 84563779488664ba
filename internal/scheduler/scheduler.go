package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job 一次任务，返回的错误只记录不中断调度
type Job func(ctx context.Context) error

// Scheduler 启动时立即跑一次，之后每天固定时间触发；同一时刻最多一个任务在跑
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	job      Job
	logger   *zap.Logger
}

// New hour/minute 为本地时间
func New(hour, minute int, job Job, logger *zap.Logger) (*Scheduler, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid schedule time %02d:%02d", hour, minute)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	return &Scheduler{
		spec:     spec,
		schedule: schedule,
		job:      job,
		logger:   logger,
	}, nil
}

// Next 下一次定时触发的时间
func (s *Scheduler) Next(now time.Time) time.Time {
	return s.schedule.Next(now)
}

// Run 阻塞直到 ctx 结束，返回前等待正在执行的任务完成
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{l: s.logger.Sugar()}
	// 立即执行和定时触发共用同一个包装，保证串行
	wrapped := s.wrap(ctx)

	c := cron.New(cron.WithLocation(time.Local), cron.WithLogger(cl))
	if _, err := c.AddJob(s.spec, wrapped); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	c.Start()
	s.logger.Info("调度已启动", zap.String("spec", s.spec), zap.Time("next", s.Next(time.Now())))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		wrapped.Run()
	}()

	<-ctx.Done()
	s.logger.Info("收到退出信号，等待当前任务结束")
	<-c.Stop().Done()
	wg.Wait()
	return nil
}

// wrap 外层恢复 panic，内层在上一次未结束时排队等待
func (s *Scheduler) wrap(ctx context.Context) cron.Job {
	cl := cronLogger{l: s.logger.Sugar()}
	return cron.NewChain(
		cron.Recover(cl),
		cron.DelayIfStillRunning(cl),
	).Then(cron.FuncJob(func() { s.runOnce(ctx) }))
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error("任务执行失败", zap.Error(err), zap.Duration("cost", time.Since(start)))
		return
	}
	s.logger.Debug("任务执行完成", zap.Duration("cost", time.Since(start)))
}

// cronLogger 把 cron 的日志接到 zap
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
