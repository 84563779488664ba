package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/YKarmar/ApplyTracker/internal/exporter"
	"github.com/YKarmar/ApplyTracker/internal/metrics"
	"github.com/YKarmar/ApplyTracker/internal/reconciler"
	"github.com/YKarmar/ApplyTracker/internal/store"
	"github.com/YKarmar/ApplyTracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	apps  []types.JobApplication
	err   error
	calls int
}

func (f *fakeFetcher) FetchApplications(context.Context) ([]types.JobApplication, error) {
	f.calls++
	return f.apps, f.err
}

type fakeEnricher struct {
	calls map[string]int
	fail  map[string]bool
}

func (f *fakeEnricher) Research(_ context.Context, company string) (string, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[company]++
	if f.fail[company] {
		return "", &types.EnrichmentError{Company: company, Err: errors.New("rate limited")}
	}
	return "About " + company, nil
}

type sent struct {
	apps []types.JobApplication
	path string
}

type fakeNotifier struct {
	sent []sent
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, apps []types.JobApplication, path string) error {
	f.sent = append(f.sent, sent{apps: apps, path: path})
	return f.err
}

// failingStore 模拟写盘失败
type failingStore struct {
	*store.CSVStore
}

func (failingStore) Persist([]types.JobApplication) error {
	return errors.New("disk full")
}

type harness struct {
	dir      string
	store    *store.CSVStore
	fetcher  *fakeFetcher
	enricher *fakeEnricher
	notifier *fakeNotifier
	metrics  *metrics.Metrics
	summary  *exporter.SummaryLog
	runner   *Runner
}

func newHarness(t *testing.T, fetched ...types.JobApplication) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		dir:      dir,
		store:    store.NewCSVStore(filepath.Join(dir, "job_applications.csv")),
		fetcher:  &fakeFetcher{apps: fetched},
		enricher: &fakeEnricher{},
		notifier: &fakeNotifier{},
		metrics:  metrics.New(),
		summary:  exporter.NewSummaryLog(filepath.Join(dir, "logs")),
	}
	h.runner = NewRunner(h.fetcher, reconciler.New(h.enricher, nil), h.notifier, nil,
		WithSummaryLog(h.summary), WithMetrics(h.metrics))
	return h
}

func (h *harness) state(t *testing.T) *RunState {
	t.Helper()
	state, err := NewRunState(h.store)
	require.NoError(t, err)
	return state
}

func (h *harness) metricsText(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func app(company, title, date string) types.JobApplication {
	return types.JobApplication{Company: company, Title: title, Status: types.StatusApplied, Date: date}
}

func TestRunner_FirstRun(t *testing.T) {
	h := newHarness(t,
		app("Acme", "Backend Engineer", "2024-01-15"),
		app("Acme", "Platform Engineer", "2024-01-15"),
	)
	state := h.state(t)

	report, err := h.runner.Run(context.Background(), state)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, report.RunID, state.RunID)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.New)
	assert.Zero(t, report.Known)
	assert.Equal(t, 1, report.EnricherCalls)
	assert.True(t, report.Notified)
	assert.Equal(t, report.StartedAt, state.LastRun)

	// 同一公司只调研一次
	assert.Equal(t, map[string]int{"Acme": 1}, h.enricher.calls)

	stored, err := h.store.LoadAll()
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, a := range stored {
		assert.Equal(t, "About Acme", a.Research)
		assert.Equal(t, store.IdentityOf(a), a.ID)
	}

	require.Len(t, h.notifier.sent, 1)
	assert.Len(t, h.notifier.sent[0].apps, 2)
	assert.Equal(t, h.store.Path(), h.notifier.sent[0].path)

	meta, err := h.store.Meta()
	require.NoError(t, err)
	assert.Equal(t, 2, meta.RecordCount)
	assert.Equal(t, report.RunID, meta.LastRunID)

	summary, err := os.ReadFile(h.summary.Path())
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Found 2 new job applications")

	assert.Contains(t, h.metricsText(t), `jobtracker_runs_total{outcome="ok"} 1`)
}

func TestRunner_SecondRunIsIdempotent(t *testing.T) {
	h := newHarness(t, app("Acme", "Backend Engineer", "2024-01-15"))
	state := h.state(t)

	_, err := h.runner.Run(context.Background(), state)
	require.NoError(t, err)
	firstID := state.RunID
	before, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)

	report, err := h.runner.Run(context.Background(), state)
	require.NoError(t, err)

	assert.NotEqual(t, firstID, report.RunID)
	assert.Zero(t, report.New)
	assert.Equal(t, 1, report.Known)
	assert.False(t, report.Notified)
	assert.Len(t, h.notifier.sent, 1)
	assert.Equal(t, map[string]int{"Acme": 1}, h.enricher.calls)

	after, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	meta, err := h.store.Meta()
	require.NoError(t, err)
	assert.Equal(t, report.RunID, meta.LastRunID)
	assert.Equal(t, 1, meta.RecordCount)

	summary, err := os.ReadFile(h.summary.Path())
	require.NoError(t, err)
	assert.Contains(t, string(summary), "No new job applications were processed.")
	assert.Contains(t, h.metricsText(t), `jobtracker_runs_total{outcome="no_new"} 1`)
}

func TestRunner_ViewedEmailUpdatesStatus(t *testing.T) {
	sentApp := types.JobApplication{
		Company: "Globex", Title: "Site Reliability Engineer", Status: types.StatusApplied,
		Date: "January 15, 2024", JobID: "99887766",
	}
	viewedApp := types.JobApplication{
		Company: "Globex", Title: "Site Reliability Engineer", Status: types.StatusViewed, JobID: "99887766",
	}

	t.Run("same fetch", func(t *testing.T) {
		h := newHarness(t, sentApp, viewedApp)

		report, err := h.runner.Run(context.Background(), h.state(t))
		require.NoError(t, err)
		assert.Equal(t, 1, report.New)

		stored, err := h.store.LoadAll()
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, types.StatusViewed, stored[0].Status)
		assert.Equal(t, "2024-01-15", store.NormalizeDate(stored[0].Date))
		assert.Equal(t, map[string]int{"Globex": 1}, h.enricher.calls)
	})

	t.Run("later run", func(t *testing.T) {
		h := newHarness(t, sentApp)
		state := h.state(t)
		_, err := h.runner.Run(context.Background(), state)
		require.NoError(t, err)

		h.fetcher.apps = []types.JobApplication{sentApp, viewedApp}
		report, err := h.runner.Run(context.Background(), state)
		require.NoError(t, err)

		assert.Zero(t, report.New)
		assert.Equal(t, 1, report.Known)
		assert.Equal(t, 1, report.Updated)
		assert.False(t, report.Notified)
		assert.Len(t, h.notifier.sent, 1)
		assert.Equal(t, map[string]int{"Globex": 1}, h.enricher.calls)

		stored, err := h.store.LoadAll()
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, types.StatusViewed, stored[0].Status)
		assert.Equal(t, "About Globex", stored[0].Research)
	})
}

func TestRunner_KnownCompanyReusesResearch(t *testing.T) {
	h := newHarness(t, app("Acme", "Backend Engineer", "2024-01-15"))
	existing := app("ACME", "Designer", "2023-12-01")
	existing.Research = "Stored research"
	require.NoError(t, h.store.Persist([]types.JobApplication{existing}))

	report, err := h.runner.Run(context.Background(), h.state(t))
	require.NoError(t, err)

	assert.Equal(t, 1, report.New)
	assert.Zero(t, report.EnricherCalls)
	assert.Equal(t, "Stored research", h.notifier.sent[0].apps[0].Research)
}

func TestRunner_EnrichmentFailureIsNotFatal(t *testing.T) {
	h := newHarness(t,
		app("Acme", "Backend Engineer", "2024-01-15"),
		app("Acme", "Platform Engineer", "2024-01-15"),
	)
	h.enricher.fail = map[string]bool{"Acme": true}

	report, err := h.runner.Run(context.Background(), h.state(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"Acme"}, report.EnrichmentFailures)
	assert.Equal(t, 1, h.enricher.calls["Acme"])
	assert.True(t, report.Notified)

	stored, err := h.store.LoadAll()
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Empty(t, stored[0].Research)
}

func TestRunner_FatalErrors(t *testing.T) {
	seed := app("Globex", "SRE", "2024-01-01")

	testCases := []struct {
		name       string
		setup      func(t *testing.T, h *harness) *RunState
		fetchErr   error
		assertErr  func(t *testing.T, err error)
		wantFetchs int
	}{
		{
			name: "fetch error",
			setup: func(t *testing.T, h *harness) *RunState {
				require.NoError(t, h.store.Persist([]types.JobApplication{seed}))
				return h.state(t)
			},
			fetchErr: errors.New("imap: connection reset"),
			assertErr: func(t *testing.T, err error) {
				var fetchErr *types.FetchError
				assert.ErrorAs(t, err, &fetchErr)
			},
			wantFetchs: 1,
		},
		{
			name: "corrupt store",
			setup: func(t *testing.T, h *harness) *RunState {
				require.NoError(t, os.WriteFile(h.store.Path(), []byte("not,a,valid,header\n"), 0o644))
				return h.state(t)
			},
			assertErr: func(t *testing.T, err error) {
				var corrupt *types.StoreCorruptError
				assert.ErrorAs(t, err, &corrupt)
			},
		},
		{
			name: "persist failure",
			setup: func(t *testing.T, h *harness) *RunState {
				require.NoError(t, h.store.Persist([]types.JobApplication{seed}))
				return &RunState{Store: failingStore{h.store}}
			},
			assertErr: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "disk full")
			},
			wantFetchs: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, app("Acme", "Backend Engineer", "2024-01-15"))
			h.fetcher.err = tc.fetchErr
			state := tc.setup(t, h)
			before, _ := os.ReadFile(h.store.Path())

			report, err := h.runner.Run(context.Background(), state)
			require.Error(t, err)
			tc.assertErr(t, err)

			assert.NotEmpty(t, report.Error)
			assert.True(t, state.LastRun.IsZero())
			assert.Equal(t, tc.wantFetchs, h.fetcher.calls)
			assert.Empty(t, h.notifier.sent)

			after, _ := os.ReadFile(h.store.Path())
			assert.Equal(t, before, after)

			_, statErr := os.Stat(h.summary.Path())
			assert.ErrorIs(t, statErr, os.ErrNotExist)
			assert.Contains(t, h.metricsText(t), `jobtracker_runs_total{outcome="failed"} 1`)
		})
	}
}

func TestRunner_NotifyFailureKeepsData(t *testing.T) {
	h := newHarness(t, app("Acme", "Backend Engineer", "2024-01-15"))
	h.notifier.err = &types.DeliveryError{To: "me@example.com", Err: errors.New("auth failed")}

	report, err := h.runner.Run(context.Background(), h.state(t))
	require.NoError(t, err)

	assert.False(t, report.Notified)
	assert.Contains(t, report.NotifyError, "auth failed")

	stored, err := h.store.LoadAll()
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Contains(t, h.metricsText(t), `jobtracker_notifications_total{result="failed"} 1`)
}

func TestNewRunState(t *testing.T) {
	h := newHarness(t)
	state := h.state(t)
	assert.True(t, state.LastRun.IsZero())
	assert.Same(t, h.store, state.Store)
}
