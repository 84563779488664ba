package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/types"
)

const SummaryLogName = "job_summary_log.txt"

// SummaryLog 每次运行向 job_summary_log.txt 追加一段纯文本汇总
type SummaryLog struct {
	path string
}

func NewSummaryLog(logDir string) *SummaryLog {
	return &SummaryLog{path: filepath.Join(logDir, SummaryLogName)}
}

func (l *SummaryLog) Path() string {
	return l.path
}

// Append 写入一次运行的汇总，没有新记录时也会记一笔
func (l *SummaryLog) Append(at time.Time, runID string, applications []types.JobApplication) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open summary log: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(FormatSummary(at, runID, applications)); err != nil {
		return fmt.Errorf("write summary log: %w", err)
	}
	return nil
}

func FormatSummary(at time.Time, runID string, applications []types.JobApplication) string {
	var b strings.Builder
	rule := strings.Repeat("=", 80)

	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "Job Application Summary - %s", at.Format("2006-01-02 15:04:05"))
	if runID != "" {
		fmt.Fprintf(&b, " (run %s)", runID)
	}
	fmt.Fprintf(&b, "\n%s\n\n", rule)

	if len(applications) == 0 {
		b.WriteString("No new job applications were processed.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Found %d new job applications:\n\n", len(applications))
	for i, app := range applications {
		fmt.Fprintf(&b, "Application %d:\n", i+1)
		fmt.Fprintf(&b, "  Position: %s\n", app.Title)
		fmt.Fprintf(&b, "  Company: %s\n", app.Company)
		fmt.Fprintf(&b, "  Status: %s\n", app.Status)
		fmt.Fprintf(&b, "  Date: %s\n", app.Date)
		b.WriteString(strings.Repeat("-", 50) + "\n")
	}
	return b.String()
}
