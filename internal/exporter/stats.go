package exporter

import (
	"fmt"
	"io"
	"sort"

	"github.com/YKarmar/ApplyTracker/internal/store"
	"github.com/YKarmar/ApplyTracker/internal/types"
)

type StatusCount struct {
	Status types.Status
	Count  int
}

type CompanyCount struct {
	Company string
	Count   int
}

// Statistics 一组申请记录的汇总
type Statistics struct {
	Total        int
	Companies    int
	ByStatus     []StatusCount
	TopCompanies []CompanyCount
}

// ComputeStatistics 统计状态分布和投递最多的公司，topN<=0 表示不限
func ComputeStatistics(applications []types.JobApplication, topN int) Statistics {
	stats := Statistics{Total: len(applications)}

	statusCount := make(map[types.Status]int)
	companyCount := make(map[string]int)
	// 公司名按规范化后的键合并，展示第一次出现的写法
	display := make(map[string]string)
	for _, app := range applications {
		statusCount[app.Status]++
		key := store.CompanyKey(app.Company)
		if key == "" {
			continue
		}
		if _, ok := display[key]; !ok {
			display[key] = store.CleanText(app.Company)
		}
		companyCount[key]++
	}

	for status, count := range statusCount {
		stats.ByStatus = append(stats.ByStatus, StatusCount{Status: status, Count: count})
	}
	sort.Slice(stats.ByStatus, func(i, j int) bool {
		if stats.ByStatus[i].Count != stats.ByStatus[j].Count {
			return stats.ByStatus[i].Count > stats.ByStatus[j].Count
		}
		return stats.ByStatus[i].Status < stats.ByStatus[j].Status
	})

	stats.Companies = len(companyCount)
	for key, count := range companyCount {
		stats.TopCompanies = append(stats.TopCompanies, CompanyCount{Company: display[key], Count: count})
	}
	sort.Slice(stats.TopCompanies, func(i, j int) bool {
		if stats.TopCompanies[i].Count != stats.TopCompanies[j].Count {
			return stats.TopCompanies[i].Count > stats.TopCompanies[j].Count
		}
		return stats.TopCompanies[i].Company < stats.TopCompanies[j].Company
	})
	if topN > 0 && len(stats.TopCompanies) > topN {
		stats.TopCompanies = stats.TopCompanies[:topN]
	}

	return stats
}

var statusNames = map[types.Status]string{
	types.StatusApplied:   "已申请",
	types.StatusViewed:    "已查看",
	types.StatusInterview: "面试",
	types.StatusOffer:     "收到Offer",
	types.StatusRejected:  "被拒绝",
	types.StatusWithdrawn: "撤回申请",
	types.StatusOther:     "其他状态",
}

// PrintJobStatistics 打印简要统计信息
func PrintJobStatistics(w io.Writer, applications []types.JobApplication) {
	if len(applications) == 0 {
		fmt.Fprintln(w, "没有找到求职申请记录")
		return
	}

	stats := ComputeStatistics(applications, 5)

	fmt.Fprintf(w, "\n=== 求职申请统计 ===\n")
	fmt.Fprintf(w, "总共 %d 条申请记录\n\n", stats.Total)

	fmt.Fprintln(w, "状态分布:")
	for _, sc := range stats.ByStatus {
		name := statusNames[sc.Status]
		if name == "" {
			name = string(sc.Status)
		}
		fmt.Fprintf(w, "  %s: %d 条\n", name, sc.Count)
	}

	fmt.Fprintf(w, "\n涉及公司数量: %d 家\n", stats.Companies)
	if len(stats.TopCompanies) > 0 {
		fmt.Fprintln(w, "\n投递最多的公司:")
		for _, cc := range stats.TopCompanies {
			fmt.Fprintf(w, "  %s: %d 次\n", cc.Company, cc.Count)
		}
	}

	missing := 0
	for _, app := range applications {
		if !app.HasResearch() {
			missing++
		}
	}
	if missing > 0 {
		fmt.Fprintf(w, "\n缺少公司调研的记录: %d 条\n", missing)
	}
}
