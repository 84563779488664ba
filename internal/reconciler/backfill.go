package reconciler

import (
	"context"

	"github.com/YKarmar/ApplyTracker/internal/types"
)

// BackfillResult 补全调研的结果
type BackfillResult struct {
	Records            []types.JobApplication
	Filled             int
	EnricherCalls      int
	EnrichmentFailures []*types.EnrichmentError
}

// Backfill 给已有但调研为空的记录补上公司调研，每家公司最多调用一次
func (r *Reconciler) Backfill(ctx context.Context, records []types.JobApplication) (BackfillResult, error) {
	var res Result
	out := BackfillResult{Records: make([]types.JobApplication, len(records))}
	copy(out.Records, records)

	cache := NewResearchCache(records)
	for i := range out.Records {
		app := &out.Records[i]
		if app.HasResearch() {
			continue
		}

		text, err := r.research(ctx, cache, app.Company, &res)
		if err != nil {
			out.EnricherCalls = res.EnricherCalls
			out.EnrichmentFailures = res.EnrichmentFailures
			return out, err
		}
		if text != "" {
			app.Research = text
			out.Filled++
		}
	}

	out.EnricherCalls = res.EnricherCalls
	out.EnrichmentFailures = res.EnrichmentFailures
	return out, nil
}
