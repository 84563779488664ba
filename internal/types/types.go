package types

import (
	"strings"
	"time"
)

type Status string

const (
	StatusApplied   Status = "APPLIED"   // 已投递
	StatusViewed    Status = "VIEWED"    // 简历被查看
	StatusInterview Status = "INTERVIEW" // 面试中
	StatusOffer     Status = "OFFER"     // 收到offer
	StatusRejected  Status = "REJECTED"  // 被拒绝
	StatusWithdrawn Status = "WITHDRAWN" // 撤回申请
	StatusOther     Status = "OTHER"     // 其他状态
)

// 从邮箱抓取的原始邮件
type Email struct {
	ID        string
	From      string
	Subject   string
	Date      time.Time
	BodyText  string
	BodyHTML  string
	MessageID string
	Folder    string
	// 邮件正文中第一个 linkedin.com/jobs/view 链接
	JobURL string
}

// 一条 LinkedIn 求职申请记录
type JobApplication struct {
	ID        string    `json:"id"`
	Company   string    `json:"company"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	Date      string    `json:"date"`
	Location  string    `json:"location,omitempty"`
	URL       string    `json:"url,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	Research  string    `json:"research,omitempty"`
	SourceID  string    `json:"source_id,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
}

// 是否已经有公司调研内容
func (a JobApplication) HasResearch() bool {
	return strings.TrimSpace(a.Research) != ""
}
