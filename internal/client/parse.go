package client

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/YKarmar/ApplyTracker/internal/types"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

var jobURLRe = regexp.MustCompile(`https?://(?:[a-z]+\.)?linkedin\.com/(?:comm/)?jobs/view/(\d+)`)

// ParseMessage 解析 RFC822 邮件，取纯文本正文；只有 HTML 时转换成文本
func ParseMessage(r io.Reader) (types.Email, error) {
	var email types.Email

	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return email, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	header := mr.Header
	email.Subject, _ = header.Subject()
	email.Date, _ = header.Date()
	email.MessageID, _ = header.MessageID()
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		email.From = from[0].Address
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return email, fmt.Errorf("read part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		b, err := io.ReadAll(part.Body)
		if err != nil {
			return email, fmt.Errorf("read body: %w", err)
		}

		switch contentType {
		case "text/plain":
			if email.BodyText == "" {
				email.BodyText = string(b)
			}
		case "text/html":
			if email.BodyHTML == "" {
				email.BodyHTML = string(b)
			}
		}
	}

	if email.BodyHTML != "" {
		text, jobURL := htmlToText(email.BodyHTML)
		if email.BodyText == "" {
			email.BodyText = text
		}
		email.JobURL = jobURL
	}
	if email.JobURL == "" {
		email.JobURL, _ = FindJobURL(email.BodyText)
	}

	return email, nil
}

// htmlToText 按块级元素换行提取文本，同时找第一个职位链接
func htmlToText(html string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}

	var jobURL string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if u, _ := FindJobURL(href); u != "" {
			jobURL = u
			return false
		}
		return true
	})

	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, tr, li, h1, h2, h3, h4, table").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), jobURL
}

// FindJobURL 返回规范化的职位链接和职位ID
func FindJobURL(text string) (string, string) {
	m := jobURLRe.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	return "https://www.linkedin.com/jobs/view/" + m[1] + "/", m[1]
}

var (
	sentToRe   = regexp.MustCompile(`(?i)^\s*(?:[^,]+,\s*)?your application was sent to (.+?)\s*$`)
	viewedByRe = regexp.MustCompile(`(?i)^\s*(?:[^,]+,\s*)?your application was viewed by (.+?)\s*$`)
	appliedOn  = regexp.MustCompile(`(?i)^applied on (.+)$`)
)

// ParseConfirmation 直接按 LinkedIn 确认邮件的固定格式解析，失败时交给 LLM
func ParseConfirmation(email types.Email) (*types.JobApplication, bool) {
	var company string
	var status types.Status
	if m := sentToRe.FindStringSubmatch(email.Subject); m != nil {
		company, status = m[1], types.StatusApplied
	} else if m := viewedByRe.FindStringSubmatch(email.Subject); m != nil {
		company, status = m[1], types.StatusViewed
	} else {
		return nil, false
	}

	app := &types.JobApplication{
		Company:  company,
		Status:   status,
		URL:      email.JobURL,
		SourceID: email.MessageID,
	}

	// 正文里公司行形如 "Acme · Berlin, Germany (Remote)"，上一行是职位
	lines := strings.Split(email.BodyText, "\n")
	prev := ""
	for _, raw := range lines {
		line := strings.Join(strings.Fields(raw), " ")
		if line == "" {
			continue
		}
		if app.Title == "" {
			if rest, ok := strings.CutPrefix(line, company+" · "); ok && prev != "" {
				app.Title = prev
				app.Location = rest
			}
		}
		if m := appliedOn.FindStringSubmatch(line); m != nil && app.Date == "" {
			app.Date = m[1]
		}
		prev = line
	}

	if app.Title == "" {
		return nil, false
	}
	// 查看通知只带状态，日期留空，由对账合并到原申请上
	if app.Date == "" && status == types.StatusApplied && !email.Date.IsZero() {
		app.Date = email.Date.Format("2006-01-02")
	}
	if _, jobID := FindJobURL(app.URL); jobID != "" {
		app.JobID = jobID
	}
	return app, true
}
