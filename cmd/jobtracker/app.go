package main

import (
	"context"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/analyzer"
	"github.com/YKarmar/ApplyTracker/internal/client"
	"github.com/YKarmar/ApplyTracker/internal/config"
	"github.com/YKarmar/ApplyTracker/internal/exporter"
	"github.com/YKarmar/ApplyTracker/internal/logging"
	"github.com/YKarmar/ApplyTracker/internal/metrics"
	"github.com/YKarmar/ApplyTracker/internal/notifier"
	"github.com/YKarmar/ApplyTracker/internal/pipeline"
	"github.com/YKarmar/ApplyTracker/internal/reconciler"
	"github.com/YKarmar/ApplyTracker/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app 各子命令共用的依赖
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.CSVStore

	closeLog func()
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	logger, closeLog, err := logging.New(logging.Options{Dir: cfg.Storage.LogDir, Level: level})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store.NewCSVStore(cfg.Storage.File),
		closeLog: closeLog,
	}, nil
}

func (a *app) Close() {
	a.closeLog()
}

func (a *app) analyzer() *analyzer.JobAnalyzer {
	return analyzer.NewJobAnalyzer(analyzer.LLMConfig{
		APIBase:     a.cfg.LLM.APIBase,
		APIKey:      a.cfg.LLM.APIKey,
		Model:       a.cfg.LLM.Model,
		Temperature: *a.cfg.LLM.Temperature,
		MaxTokens:   a.cfg.LLM.MaxTokens,
	})
}

func (a *app) reconciler(ja *analyzer.JobAnalyzer) *reconciler.Reconciler {
	return reconciler.New(ja, a.logger.Named("reconciler"))
}

// runner 按配置组装完整流水线
func (a *app) runner(ctx context.Context, m *metrics.Metrics) *pipeline.Runner {
	cfg := a.cfg

	imapCfg := client.IMAPConfig{
		Host:     cfg.IMAP.Host,
		Email:    cfg.Account.Address,
		Password: cfg.Account.Password,
		Timeout:  2 * time.Minute,
	}
	if cfg.UsesOAuth() {
		imapCfg.TokenSource = client.NewTokenSource(ctx,
			cfg.IMAP.OAuthClientID, cfg.IMAP.OAuthClientSecret, cfg.IMAP.OAuthRefreshToken,
			client.GoogleEndpoint)
	}
	mailbox := client.NewIMAPMailbox(imapCfg, a.logger.Named("imap"))

	ja := a.analyzer()
	fetcher := client.NewFetcher(mailbox, ja, client.EmailQuery{
		Sender:    cfg.Fetch.Sender,
		MaxEmails: cfg.Fetch.MaxEmails,
		Folders:   cfg.IMAP.Folders,
		Lookback:  time.Duration(cfg.Fetch.SinceDays) * 24 * time.Hour,
	}, a.logger.Named("fetcher"))

	dialer := notifier.NewSMTPDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.Account.Address, cfg.Account.Password)
	emailNotifier := notifier.NewEmailNotifier(dialer, cfg.Account.Address, cfg.Account.Recipient, a.logger.Named("notifier"))

	return pipeline.NewRunner(fetcher, a.reconciler(ja), emailNotifier, a.logger,
		pipeline.WithSummaryLog(exporter.NewSummaryLog(cfg.Storage.LogDir)),
		pipeline.WithMetrics(m))
}
