package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/types"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// LLM客户端配置
type LLMConfig struct {
	APIBase     string  `json:"api_base"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Timeout     time.Duration
}

// 求职邮件分析器，同时负责公司调研
type JobAnalyzer struct {
	llmConfig LLMConfig
	client    *openai.Client
}

// 创建求职分析器
func NewJobAnalyzer(config LLMConfig) *JobAnalyzer {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithRequestTimeout(config.Timeout),
		option.WithMaxRetries(1),
	}
	if config.APIBase != "" {
		base := config.APIBase
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	return &JobAnalyzer{
		llmConfig: config,
		client:    openai.NewClient(opts...),
	}
}

// Research 生成简短的公司调研
func (ja *JobAnalyzer) Research(ctx context.Context, company string) (string, error) {
	company = cleanText(company)
	if company == "" {
		return "", &types.EnrichmentError{Company: company, Err: errors.New("empty company name")}
	}

	prompt := fmt.Sprintf(`
Provide a brief, factual summary of %s as a company. Include:
- Core business/industry
- Company size and founded date (if known)
- Key products or services
- Notable company culture aspects

Keep it under 150 words. Be concise and factual.
`, company)

	text, err := ja.callLLM(ctx,
		"You are a helpful assistant that provides concise company research for job applicants.",
		prompt, ja.llmConfig.Temperature, ja.llmConfig.MaxTokens)
	if err != nil {
		return "", &types.EnrichmentError{Company: company, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &types.EnrichmentError{Company: company, Err: errors.New("empty research text")}
	}
	return text, nil
}

// ExtractApplication 从 LinkedIn 邮件中提取申请信息；不是申请类邮件时返回 nil, nil
func (ja *JobAnalyzer) ExtractApplication(ctx context.Context, email types.Email) (*types.JobApplication, error) {
	prompt := fmt.Sprintf(`
Extract the following details from this LinkedIn job application email:

- Whether the email is about one of my own job applications (not a job alert or recommendation)
- Job Title
- Company Name
- Application Status (e.g. Submitted, Viewed, Interview, Rejected)
- Date of Application
- Job location (if present)

Return ONLY valid JSON in this format:
{
  "is_application": true,
  "title": "...",
  "company": "...",
  "status": "...",
  "date": "...",
  "location": "..."
}

Email subject: %s
Email date: %s
Email content:
"""
%s
"""
`, email.Subject, email.Date.Format("2006-01-02"), truncateText(email.BodyText, 2000))

	response, err := ja.callLLM(ctx,
		"You are a helpful assistant that extracts job application details from emails.",
		prompt, 0.1, 300)
	if err != nil {
		return nil, fmt.Errorf("LLM analysis failed: %w", err)
	}

	var result struct {
		IsApplication *bool  `json:"is_application"`
		Title         string `json:"title"`
		Company       string `json:"company"`
		Status        string `json:"status"`
		Date          string `json:"date"`
		Location      string `json:"location"`
	}

	// 清理响应文本，提取JSON部分
	jsonStr := extractJSON(response)
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("parse JSON response: %w, response: %s", err, response)
	}
	if result.IsApplication != nil && !*result.IsApplication {
		return nil, nil
	}

	app := &types.JobApplication{
		Company:  cleanText(result.Company),
		Title:    cleanText(result.Title),
		Status:   NormalizeJobStatus(result.Status),
		Date:     cleanPlaceholder(result.Date),
		Location: cleanPlaceholder(result.Location),
		URL:      email.JobURL,
		SourceID: email.MessageID,
	}
	if app.Company == "" || app.Title == "" {
		return nil, fmt.Errorf("incomplete extraction: company=%q title=%q", app.Company, app.Title)
	}
	if app.Date == "" && app.Status == types.StatusApplied && !email.Date.IsZero() {
		app.Date = email.Date.Format("2006-01-02")
	}
	return app, nil
}

// 调用LLM API
func (ja *JobAnalyzer) callLLM(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		}),
		Model:       openai.F(openai.ChatModel(ja.llmConfig.Model)),
		Temperature: openai.F(temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.F(int64(maxTokens))
	}

	completion, err := ja.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return completion.Choices[0].Message.Content, nil
}

// 辅助函数

// 截断文本到指定长度，按字符截断避免切坏 UTF-8
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

// 提取JSON字符串
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	end := strings.LastIndex(text, "}")
	if end == -1 || end <= start {
		return text
	}

	return text[start : end+1]
}

var spaceRe = regexp.MustCompile(`\s+`)

// 清理文本
func cleanText(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// 模型对缺失字段常用的占位词
func cleanPlaceholder(text string) string {
	text = cleanText(text)
	switch strings.ToLower(text) {
	case "...", "not provided", "not specified", "not available", "n/a", "unknown", "none":
		return ""
	}
	return text
}

// NormalizeJobStatus 标准化求职状态
func NormalizeJobStatus(status string) types.Status {
	status = strings.ToUpper(strings.TrimSpace(status))

	switch status {
	case "APPLIED", "APPLICATION", "SUBMITTED", "SENT", "APPLICATION SUBMITTED":
		return types.StatusApplied
	case "VIEWED", "APPLICATION VIEWED", "SEEN":
		return types.StatusViewed
	case "INTERVIEW", "INTERVIEWING", "PHONE SCREEN":
		return types.StatusInterview
	case "OFFER", "ACCEPTED":
		return types.StatusOffer
	case "REJECTED", "DECLINED", "NOT SELECTED":
		return types.StatusRejected
	case "WITHDRAWN":
		return types.StatusWithdrawn
	default:
		return types.StatusOther
	}
}
