package reconciler

import (
	"github.com/YKarmar/ApplyTracker/internal/store"
	"github.com/YKarmar/ApplyTracker/internal/types"
)

// ResearchCache 单次运行内的 公司 -> 调研文本 映射
type ResearchCache struct {
	texts     map[string]string
	attempted map[string]struct{}
}

// NewResearchCache 先用已有记录里的调研内容预热
func NewResearchCache(existing []types.JobApplication) *ResearchCache {
	c := &ResearchCache{
		texts:     make(map[string]string),
		attempted: make(map[string]struct{}),
	}
	for _, app := range existing {
		if app.HasResearch() {
			c.Store(app.Company, app.Research)
		}
	}
	return c
}

func (c *ResearchCache) Lookup(company string) (string, bool) {
	text, ok := c.texts[store.CompanyKey(company)]
	return text, ok
}

// Store 保留第一次出现的非空文本
func (c *ResearchCache) Store(company, text string) {
	if text == "" {
		c.MarkAttempted(company)
		return
	}
	key := store.CompanyKey(company)
	if _, ok := c.texts[key]; !ok {
		c.texts[key] = text
	}
}

func (c *ResearchCache) MarkAttempted(company string) {
	c.attempted[store.CompanyKey(company)] = struct{}{}
}

func (c *ResearchCache) Attempted(company string) bool {
	_, ok := c.attempted[store.CompanyKey(company)]
	return ok
}

// Len 已有调研的公司数
func (c *ResearchCache) Len() int {
	return len(c.texts)
}
