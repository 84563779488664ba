// Package reconciler merges freshly fetched applications into the stored
// history and decides which of them are new for this run.
package reconciler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/store"
	"github.com/YKarmar/ApplyTracker/internal/types"
	"go.uber.org/zap"
)

// Enricher 给公司名返回调研文本
type Enricher interface {
	Research(ctx context.Context, company string) (string, error)
}

// Result 一次对账的结果
type Result struct {
	// Merged 已有记录 + 新记录，用于整体写回
	Merged []types.JobApplication
	// New 本次新增，顺序与抓取顺序一致
	New []types.JobApplication
	// Known 抓到且库里已存在的记录数
	Known int
	// Duplicates 同一批抓取中重复出现的记录数
	Duplicates int
	// Updated 被状态邮件推进了状态的已有记录数
	Updated int
	// Unmatched 找不到对应申请的状态邮件数
	Unmatched int
	// EnricherCalls 实际调用调研接口的次数
	EnricherCalls int
	// EnrichmentFailures 调研失败的公司
	EnrichmentFailures []*types.EnrichmentError
}

type Reconciler struct {
	enricher Enricher
	logger   *zap.Logger
	now      func() time.Time
}

func New(enricher Enricher, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		enricher: enricher,
		logger:   logger,
		now:      time.Now,
	}
}

// Reconcile 不写盘，只计算新增集合和合并结果。
// 没有申请日期的非 APPLIED 记录视为状态更新，只推进已有记录的状态，不会新增记录。
func (r *Reconciler) Reconcile(ctx context.Context, existing, fetched []types.JobApplication) (Result, error) {
	var res Result

	known := make(map[string]struct{}, len(existing))
	for _, app := range existing {
		known[store.IdentityOf(app)] = struct{}{}
	}
	batch := make(map[string]struct{}, len(fetched))

	cache := NewResearchCache(existing)
	seenAt := r.now().UTC()

	var updates []types.JobApplication
	for _, app := range fetched {
		if IsStatusUpdate(app) {
			updates = append(updates, app)
			continue
		}
		id := store.IdentityOf(app)
		if _, ok := known[id]; ok {
			res.Known++
			continue
		}
		// 同一批里重复的记录只保留第一条
		if _, ok := batch[id]; ok {
			res.Duplicates++
			continue
		}
		batch[id] = struct{}{}

		app.ID = id
		if app.FirstSeen.IsZero() {
			app.FirstSeen = seenAt
		}

		research, err := r.research(ctx, cache, app.Company, &res)
		if err != nil {
			return res, err
		}
		app.Research = research
		res.New = append(res.New, app)
	}

	res.Merged = make([]types.JobApplication, 0, len(existing)+len(res.New))
	res.Merged = append(res.Merged, existing...)
	res.Merged = append(res.Merged, res.New...)

	for _, u := range updates {
		r.applyStatus(&res, len(existing), u)
	}
	return res, nil
}

// IsStatusUpdate 没有申请日期的查看/面试/拒绝等邮件只携带状态
func IsStatusUpdate(app types.JobApplication) bool {
	return store.NormalizeDate(app.Date) == "" && app.Status != "" && app.Status != types.StatusApplied
}

// applyStatus 把状态邮件合并到对应申请上，有 JobID 时按 JobID 匹配，否则按公司+职位
func (r *Reconciler) applyStatus(res *Result, existingLen int, u types.JobApplication) {
	idx := findTarget(res.Merged, u)
	if idx < 0 {
		res.Unmatched++
		r.logger.Info("状态邮件没有对应的申请记录，已跳过",
			zap.String("company", u.Company),
			zap.String("title", u.Title),
			zap.String("status", string(u.Status)))
		return
	}

	target := &res.Merged[idx]
	if statusRank(u.Status) <= statusRank(target.Status) {
		return
	}
	target.Status = u.Status
	if target.URL == "" {
		target.URL = u.URL
	}
	if target.JobID == "" {
		target.JobID = u.JobID
	}
	if idx >= existingLen {
		// 本批新增的记录同时更新 New，保证通知里的状态一致
		res.New[idx-existingLen] = *target
		return
	}
	res.Updated++
}

// findTarget 返回最近一条匹配的记录下标，找不到返回 -1
func findTarget(apps []types.JobApplication, u types.JobApplication) int {
	if u.JobID != "" {
		for i := len(apps) - 1; i >= 0; i-- {
			if apps[i].JobID == u.JobID {
				return i
			}
		}
	}
	company := store.CompanyKey(u.Company)
	title := strings.ToLower(store.CleanText(u.Title))
	if company == "" || title == "" {
		return -1
	}
	for i := len(apps) - 1; i >= 0; i-- {
		if store.CompanyKey(apps[i].Company) == company &&
			strings.ToLower(store.CleanText(apps[i].Title)) == title {
			return i
		}
	}
	return -1
}

// statusRank 状态只前进不后退，OTHER 不覆盖任何状态
func statusRank(s types.Status) int {
	switch s {
	case types.StatusApplied:
		return 1
	case types.StatusViewed:
		return 2
	case types.StatusInterview:
		return 3
	case types.StatusOffer, types.StatusRejected, types.StatusWithdrawn:
		return 4
	default:
		return 0
	}
}

// research 每个公司每次运行最多调用一次 Enricher，失败只记日志
func (r *Reconciler) research(ctx context.Context, cache *ResearchCache, company string, res *Result) (string, error) {
	if text, ok := cache.Lookup(company); ok {
		return text, nil
	}
	if cache.Attempted(company) {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	res.EnricherCalls++
	text, err := r.enricher.Research(ctx, company)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		var enrichErr *types.EnrichmentError
		if !errors.As(err, &enrichErr) {
			enrichErr = &types.EnrichmentError{Company: company, Err: err}
		}
		res.EnrichmentFailures = append(res.EnrichmentFailures, enrichErr)
		r.logger.Warn("公司调研失败，记录将以空调研写入",
			zap.String("company", company),
			zap.Error(err))
		cache.MarkAttempted(company)
		return "", nil
	}

	cache.Store(company, text)
	return text, nil
}
