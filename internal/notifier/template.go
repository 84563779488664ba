package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/exporter"
	"github.com/YKarmar/ApplyTracker/internal/store"
	"github.com/YKarmar/ApplyTracker/internal/types"
)

// 调研摘录的最大长度（字符）
const excerptLimit = 300

var summaryTmpl = template.Must(template.New("summary").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
<h2>Job Applications Summary for {{.Date}}</h2>
<table style="width: 100%; border-collapse: collapse; margin-bottom: 20px;">
<tr style="background-color: #f2f2f2;">
<th style="padding: 8px; text-align: left; border: 1px solid #ddd;">Job Title</th>
<th style="padding: 8px; text-align: left; border: 1px solid #ddd;">Company</th>
<th style="padding: 8px; text-align: left; border: 1px solid #ddd;">Status</th>
<th style="padding: 8px; text-align: left; border: 1px solid #ddd;">Application Date</th>
</tr>
{{- range .Applications}}
<tr>
<td style="padding: 8px; border: 1px solid #ddd;">{{if .URL}}<a href="{{.URL}}">{{.Title}}</a>{{else}}{{.Title}}{{end}}</td>
<td style="padding: 8px; border: 1px solid #ddd;">{{.Company}}</td>
<td style="padding: 8px; border: 1px solid #ddd;">{{.Status}}</td>
<td style="padding: 8px; border: 1px solid #ddd;">{{.Date}}</td>
</tr>
{{- end}}
</table>
<h3>Daily Statistics</h3>
<p>Total applications submitted today: <strong>{{.Stats.Total}}</strong></p>
<p>Companies applied to: <strong>{{.Stats.Companies}}</strong></p>
<ul>
{{- range .Stats.ByStatus}}
<li>{{.Status}}: {{.Count}}</li>
{{- end}}
</ul>
{{- if .Highlights}}
<h3>Company Research Highlights</h3>
{{- range .Highlights}}
<div style="background-color: #f0f7ff; padding: 12px; margin-bottom: 10px;">
<h4>{{.Company}}</h4>
<p>{{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
</div>
{{- end}}
{{- end}}
<p>The full list of applications is available in the attached CSV file.</p>
</body>
</html>
`))

type highlight struct {
	Company string
	Lines   []string
}

type summaryData struct {
	Date         string
	Applications []types.JobApplication
	Stats        exporter.Statistics
	Highlights   []highlight
}

// Subject 汇总邮件标题
func Subject(now time.Time) string {
	return "LinkedIn Job Application Tracker - " + now.Format("2006-01-02")
}

// RenderSummary 渲染新增申请的 HTML 汇总
func RenderSummary(now time.Time, applications []types.JobApplication) (string, error) {
	data := summaryData{
		Date:         now.Format("January 2, 2006"),
		Applications: applications,
		Stats:        exporter.ComputeStatistics(applications, 0),
		Highlights:   highlights(applications),
	}

	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return buf.String(), nil
}

// 每家公司只展示一次调研摘录，过短的内容跳过
func highlights(applications []types.JobApplication) []highlight {
	var out []highlight
	seen := make(map[string]struct{})
	for _, app := range applications {
		research := strings.TrimSpace(app.Research)
		if len([]rune(research)) <= 10 {
			continue
		}
		key := store.CompanyKey(app.Company)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, highlight{
			Company: store.CleanText(app.Company),
			Lines:   strings.Split(excerpt(research, excerptLimit), "\n"),
		})
	}
	return out
}

func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit-3])) + "..."
}
