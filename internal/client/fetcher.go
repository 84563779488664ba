package client

import (
	"context"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/types"
	"go.uber.org/zap"
)

// Mailbox 邮件来源
type Mailbox interface {
	FetchEmails(ctx context.Context, query EmailQuery) ([]types.Email, error)
}

// Extractor 从单封邮件中提取申请记录，非申请邮件返回 nil, nil
type Extractor interface {
	ExtractApplication(ctx context.Context, email types.Email) (*types.JobApplication, error)
}

// Fetcher 把 LinkedIn 通知邮件转换成申请记录
type Fetcher struct {
	mailbox   Mailbox
	extractor Extractor
	query     EmailQuery
	logger    *zap.Logger
	now       func() time.Time
}

func NewFetcher(mailbox Mailbox, extractor Extractor, query EmailQuery, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		mailbox:   mailbox,
		extractor: extractor,
		query:     query,
		logger:    logger,
		now:       time.Now,
	}
}

// FetchApplications 邮箱不可用时返回 FetchError；单封邮件解析失败只记日志
func (f *Fetcher) FetchApplications(ctx context.Context) ([]types.JobApplication, error) {
	query := f.query
	if query.Lookback > 0 {
		query.Since = f.now().Add(-query.Lookback)
	}
	emails, err := f.mailbox.FetchEmails(ctx, query)
	if err != nil {
		return nil, &types.FetchError{Op: "mailbox", Err: err}
	}
	f.logger.Info("获取邮件完成", zap.Int("emails", len(emails)))

	var applications []types.JobApplication
	for i, email := range emails {
		if err := ctx.Err(); err != nil {
			return nil, &types.FetchError{Op: "extract", Err: err}
		}

		app, ok := ParseConfirmation(email)
		if !ok {
			if f.extractor == nil {
				continue
			}
			app, err = f.extractor.ExtractApplication(ctx, email)
			if err != nil {
				f.logger.Warn("提取申请信息失败，已跳过",
					zap.Int("index", i+1),
					zap.String("subject", email.Subject),
					zap.Error(err))
				continue
			}
			if app == nil {
				f.logger.Debug("非申请类邮件", zap.String("subject", email.Subject))
				continue
			}
		}

		if app.URL == "" {
			app.URL = email.JobURL
		}
		if app.JobID == "" {
			_, app.JobID = FindJobURL(app.URL)
		}
		if app.SourceID == "" {
			app.SourceID = email.MessageID
		}
		applications = append(applications, *app)
	}

	return applications, nil
}
