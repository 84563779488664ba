// Package notifier 通过 SMTP 发送每日申请汇总，附带完整 CSV。
package notifier

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/types"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// AttachmentName 附件在邮件里的文件名，和磁盘上的实际文件名无关
const AttachmentName = "job_applications.csv"

// Dialer 建立 SMTP 连接，*gomail.Dialer 即可满足
type Dialer interface {
	Dial() (gomail.SendCloser, error)
}

// NewSMTPDialer 587 端口由 gomail 自动 STARTTLS，465 走 SSL
func NewSMTPDialer(host string, port int, username, password string) *gomail.Dialer {
	return gomail.NewDialer(host, port, username, password)
}

type EmailNotifier struct {
	dialer Dialer // 有接口用接口
	from   string
	to     string
	logger *zap.Logger
	now    func() time.Time
}

func NewEmailNotifier(dialer Dialer, from, to string, logger *zap.Logger) *EmailNotifier {
	if to == "" {
		to = from
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{
		dialer: dialer,
		from:   from,
		to:     to,
		logger: logger,
		now:    time.Now,
	}
}

// Send 发送新增申请汇总；任何失败都包装成 DeliveryError
func (n *EmailNotifier) Send(ctx context.Context, applications []types.JobApplication, attachmentPath string) error {
	if err := ctx.Err(); err != nil {
		return n.fail(err)
	}

	now := n.now()
	body, err := RenderSummary(now, applications)
	if err != nil {
		return n.fail(err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to)
	m.SetHeader("Subject", Subject(now))
	m.SetBody("text/html", body)

	if attachmentPath != "" {
		// gomail 在写出时才读附件，提前检查好给出明确错误
		if _, err := os.Stat(attachmentPath); err != nil {
			return n.fail(fmt.Errorf("attachment: %w", err))
		}
		m.Attach(attachmentPath, gomail.Rename(AttachmentName))
	}

	s, err := n.dialer.Dial()
	if err != nil {
		return n.fail(fmt.Errorf("dial smtp: %w", err))
	}
	defer s.Close()

	if err := gomail.Send(s, m); err != nil {
		return n.fail(err)
	}

	n.logger.Info("汇总邮件已发送",
		zap.String("to", n.to),
		zap.Int("applications", len(applications)))
	return nil
}

func (n *EmailNotifier) fail(err error) error {
	return &types.DeliveryError{To: n.to, Err: err}
}
