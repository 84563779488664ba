package client

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/types"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// 邮件查询参数
type EmailQuery struct {
	Sender    string
	Since     time.Time
	MaxEmails int
	Folders   []string

	// 大于 0 时每次抓取按当前时间重新计算 Since
	Lookback time.Duration
}

// IMAP 连接配置
type IMAPConfig struct {
	Host     string // host:port
	Email    string
	Password string

	// 非空时走 OAUTHBEARER，否则用应用密码 LOGIN
	TokenSource oauth2.TokenSource
	// 整个抓取过程的超时
	Timeout     time.Duration
}

// IMAPMailbox 通过 IMAP 拉取 LinkedIn 邮件
type IMAPMailbox struct {
	config IMAPConfig
	logger *zap.Logger
	dial   func(addr string) (*client.Client, error)
}

func NewIMAPMailbox(config IMAPConfig, logger *zap.Logger) *IMAPMailbox {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IMAPMailbox{
		config: config,
		logger: logger,
		dial: func(addr string) (*client.Client, error) {
			return client.DialTLS(addr, nil)
		},
	}
}

// FetchEmails 连接、登录并按文件夹抓取邮件
func (m *IMAPMailbox) FetchEmails(ctx context.Context, query EmailQuery) ([]types.Email, error) {
	if m.config.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	c, err := m.dial(m.config.Host)
	if err != nil {
		return nil, fmt.Errorf("连接IMAP服务器失败: %w", err)
	}

	// ctx 取消时直接断开连接，让阻塞中的命令返回
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Terminate()
		case <-stop:
		}
	}()
	defer c.Logout()

	if err := m.authenticate(ctx, c); err != nil {
		return nil, fmt.Errorf("IMAP登录失败: %w", err)
	}

	folders := query.Folders
	if len(folders) == 0 {
		folders = []string{"INBOX"}
	}

	var emails []types.Email
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		folderEmails, err := m.fetchFromFolder(c, folder, query)
		if err != nil {
			return nil, fmt.Errorf("获取文件夹 %s 失败: %w", folder, err)
		}
		emails = append(emails, folderEmails...)
	}

	return emails, nil
}

func (m *IMAPMailbox) authenticate(ctx context.Context, c *client.Client) error {
	if m.config.TokenSource == nil {
		return c.Login(m.config.Email, m.config.Password)
	}

	token, err := m.config.TokenSource.Token()
	if err != nil {
		return fmt.Errorf("refresh oauth token: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Authenticate(sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: m.config.Email,
		Token:    token.AccessToken,
	}))
}

func (m *IMAPMailbox) fetchFromFolder(c *client.Client, folder string, query EmailQuery) ([]types.Email, error) {
	// 只读方式选择文件夹，不改变已读状态
	mbox, err := c.Select(folder, true)
	if err != nil {
		return nil, err
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	if query.Sender != "" {
		criteria.Header.Add("From", query.Sender)
	}
	if !query.Since.IsZero() {
		criteria.Since = query.Since
	}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	// 只取最新的 MaxEmails 封
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if query.MaxEmails > 0 && len(uids) > query.MaxEmails {
		uids = uids[len(uids)-query.MaxEmails:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var emails []types.Email
	for msg := range messages {
		email, err := m.convertToEmail(msg, section, folder)
		if err != nil {
			m.logger.Warn("解析邮件失败，已跳过",
				zap.String("folder", folder),
				zap.Uint32("uid", msg.Uid),
				zap.Error(err))
			continue
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, err
	}

	return emails, nil
}

func (m *IMAPMailbox) convertToEmail(msg *imap.Message, section *imap.BodySectionName, folder string) (types.Email, error) {
	body := msg.GetBody(section)
	if body == nil {
		return types.Email{}, fmt.Errorf("server did not return message body")
	}

	email, err := ParseMessage(body)
	if err != nil {
		return types.Email{}, err
	}
	email.ID = fmt.Sprintf("%s/%d", folder, msg.Uid)
	email.Folder = folder
	if email.Date.IsZero() {
		email.Date = msg.InternalDate
	}
	if email.MessageID == "" {
		email.MessageID = email.ID
	}
	return email, nil
}
