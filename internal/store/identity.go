package store

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/types"
)

var spaceRe = regexp.MustCompile(`\s+`)

// LinkedIn 邮件和模型输出里见过的日期格式，按优先级排列
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"01/02/2006",
	"2006/01/02",
	"Mon, 2 Jan 2006",
}

// IdentityOf 公司 + 职位 + 日期 推导出的记录主键
func IdentityOf(app types.JobApplication) string {
	key := strings.ToLower(CleanText(app.Company)) + "\x1f" +
		strings.ToLower(CleanText(app.Title)) + "\x1f" +
		NormalizeDate(app.Date)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// CompanyKey 公司名比较用的归一化形式
func CompanyKey(company string) string {
	return strings.ToLower(CleanText(company))
}

// CleanText 去掉首尾空白并合并连续空白
func CleanText(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// NormalizeDate 能解析的日期统一成 YYYY-MM-DD，否则返回清理后的原文
func NormalizeDate(s string) string {
	s = CleanText(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
