package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/types"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Account struct {
		Address   string `yaml:"address"`
		Password  string `yaml:"password"`
		Recipient string `yaml:"recipient"`
	} `yaml:"account"`
	IMAP struct {
		Host              string   `yaml:"host"`
		Provider          string   `yaml:"provider"`
		Folders           []string `yaml:"folders"`
		OAuthClientID     string   `yaml:"oauth_client_id"`
		OAuthClientSecret string   `yaml:"oauth_client_secret"`
		OAuthRefreshToken string   `yaml:"oauth_refresh_token"`
	} `yaml:"imap"`
	SMTP struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"smtp"`
	Fetch struct {
		Sender    string `yaml:"sender"`
		SinceDays int    `yaml:"since_days"`
		MaxEmails int    `yaml:"max_emails"`
	} `yaml:"fetch"`
	LLM struct {
		APIBase     string   `yaml:"api_base"`
		APIKey      string   `yaml:"api_key"`
		Model       string   `yaml:"model"`
		Temperature *float64 `yaml:"temperature"` // 未设置时为 0.7，可以显式设为 0
		MaxTokens   int      `yaml:"max_tokens"`
	} `yaml:"llm"`
	Storage struct {
		DataDir string `yaml:"data_dir"`
		File    string `yaml:"file"`
		LogDir  string `yaml:"log_dir"`
	} `yaml:"storage"`
	Schedule struct {
		At string `yaml:"at"` // HH:MM 本地时间
	} `yaml:"schedule"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// Load 加载 .env 与配置文件，环境变量优先
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			// 替换环境变量 ${VAR_NAME} 格式
			content := expandEnvVars(string(b))
			if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
				return nil, fmt.Errorf("parse yaml: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
			// 默认配置文件可以不存在，全部走环境变量
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.Model, "OPENAI_MODEL")
	setString(&c.LLM.APIBase, "OPENAI_BASE_URL")
	setString(&c.Account.Address, "EMAIL_ADDRESS")
	setString(&c.Account.Password, "EMAIL_PASSWORD")
	setString(&c.Account.Recipient, "EMAIL_RECIPIENT")
	setString(&c.SMTP.Host, "SMTP_SERVER")
	setString(&c.IMAP.Host, "IMAP_SERVER")
	setString(&c.IMAP.OAuthClientID, "OAUTH_CLIENT_ID")
	setString(&c.IMAP.OAuthClientSecret, "OAUTH_CLIENT_SECRET")
	setString(&c.IMAP.OAuthRefreshToken, "OAUTH_REFRESH_TOKEN")
	setString(&c.Storage.DataDir, "DATA_DIR")
	setString(&c.Schedule.At, "SCHEDULE_AT")

	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &types.ConfigError{Key: "SMTP_PORT", Reason: fmt.Sprintf("not a number: %q", v)}
		}
		c.SMTP.Port = port
	}
	if v := os.Getenv("PORT"); v != "" && c.Server.Addr == "" {
		c.Server.Addr = ":" + v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Account.Recipient == "" {
		c.Account.Recipient = c.Account.Address
	}

	if c.IMAP.Provider == "" {
		c.IMAP.Provider = inferEmailProvider(c.Account.Address)
	}
	if c.IMAP.Host == "" {
		c.IMAP.Host = inferIMAPHost(c.Account.Address)
	}
	if len(c.IMAP.Folders) == 0 {
		c.IMAP.Folders = []string{"INBOX"}
	}

	if c.SMTP.Host == "" {
		c.SMTP.Host = inferSMTPHost(c.Account.Address)
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}

	if c.Fetch.Sender == "" {
		c.Fetch.Sender = "jobs-noreply@linkedin.com"
	}
	// 和旧脚本一致，每次只看最近 20 封
	if c.Fetch.MaxEmails <= 0 {
		c.Fetch.MaxEmails = 20
	}
	if c.Fetch.SinceDays <= 0 {
		c.Fetch.SinceDays = 30
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-3.5-turbo"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 200
	}
	if c.LLM.Temperature == nil {
		t := 0.7
		c.LLM.Temperature = &t
	}

	if c.Storage.DataDir == "" {
		c.Storage.DataDir = defaultDataDir()
	}
	if c.Storage.File == "" {
		c.Storage.File = filepath.Join(c.Storage.DataDir, "job_applications.csv")
	}
	if c.Storage.LogDir == "" {
		c.Storage.LogDir = filepath.Join(c.Storage.DataDir, "logs")
	}

	if c.Schedule.At == "" {
		c.Schedule.At = "09:00"
	}
}

// Validate 在任何网络调用前检查必填项
func (c *Config) Validate() error {
	if err := c.ValidateLLM(); err != nil {
		return err
	}
	if c.Account.Address == "" {
		return &types.ConfigError{Key: "EMAIL_ADDRESS", Reason: "is required"}
	}
	if !strings.Contains(c.Account.Address, "@") {
		return &types.ConfigError{Key: "EMAIL_ADDRESS", Reason: fmt.Sprintf("invalid address %q", c.Account.Address)}
	}
	if c.Account.Password == "" {
		return &types.ConfigError{Key: "EMAIL_PASSWORD", Reason: "is required"}
	}
	if c.IMAP.Host == "" {
		return &types.ConfigError{Key: "IMAP_SERVER", Reason: "cannot be inferred from address, set it explicitly"}
	}
	if c.SMTP.Host == "" {
		return &types.ConfigError{Key: "SMTP_SERVER", Reason: "cannot be inferred from address, set it explicitly"}
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return &types.ConfigError{Key: "SMTP_PORT", Reason: fmt.Sprintf("out of range: %d", c.SMTP.Port)}
	}
	if _, _, err := c.ScheduleClock(); err != nil {
		return err
	}
	return nil
}

// ValidateLLM 只需要调研能力的命令（backfill）用这个
func (c *Config) ValidateLLM() error {
	if c.LLM.APIKey == "" {
		return &types.ConfigError{Key: "OPENAI_API_KEY", Reason: "is required"}
	}
	return nil
}

// ScheduleClock 解析每日触发时间
func (c *Config) ScheduleClock() (hour, minute int, err error) {
	t, perr := time.Parse("15:04", strings.TrimSpace(c.Schedule.At))
	if perr != nil {
		return 0, 0, &types.ConfigError{Key: "SCHEDULE_AT", Reason: fmt.Sprintf("want HH:MM, got %q", c.Schedule.At)}
	}
	return t.Hour(), t.Minute(), nil
}

// UsesOAuth IMAP 是否走 OAUTHBEARER
func (c *Config) UsesOAuth() bool {
	return c.IMAP.OAuthRefreshToken != "" && c.IMAP.OAuthClientID != ""
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// 部署在挂载盘上时优先用 /data
func defaultDataDir() string {
	if fi, err := os.Stat("/data"); err == nil && fi.IsDir() {
		return "/data"
	}
	return "."
}

// expandEnvVars 替换 ${VAR_NAME} 格式的环境变量
func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return match // 如果环境变量不存在，保持原样
	})
}

// inferEmailProvider 根据邮箱地址推断提供商
func inferEmailProvider(email string) string {
	email = strings.ToLower(email)

	if strings.Contains(email, "@gmail.com") || strings.Contains(email, "@googlemail.com") {
		return "gmail"
	}
	if strings.Contains(email, "@outlook.com") || strings.Contains(email, "@hotmail.com") || strings.Contains(email, "@live.com") {
		return "outlook"
	}
	if strings.Contains(email, "@yahoo.com") || strings.Contains(email, "@yahoo.co.") {
		return "yahoo"
	}

	return "custom"
}

// inferIMAPHost 根据邮箱地址推断IMAP主机
func inferIMAPHost(email string) string {
	switch inferEmailProvider(email) {
	case "gmail":
		return "imap.gmail.com:993"
	case "outlook":
		return "outlook.office365.com:993"
	case "yahoo":
		return "imap.mail.yahoo.com:993"
	default:
		return "" // 需要手动配置
	}
}

// inferSMTPHost 根据邮箱地址推断SMTP主机
func inferSMTPHost(email string) string {
	switch inferEmailProvider(email) {
	case "outlook":
		return "smtp.office365.com"
	case "yahoo":
		return "smtp.mail.yahoo.com"
	default:
		return "smtp.gmail.com"
	}
}
