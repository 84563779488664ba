package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jobtracker"

// 运行结果标签
const (
	OutcomeOK     = "ok"
	OutcomeNoNew  = "no_new"
	OutcomeFailed = "failed"
)

// Metrics 流水线运行指标；nil 接收者上的方法都是空操作
type Metrics struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	runDuration    prometheus.Summary
	fetched        prometheus.Counter
	added          prometheus.Counter
	enrichFailures prometheus.Counter
	notifications  *prometheus.CounterVec
	lastSuccess    prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"outcome"}),
		runDuration: factory.NewSummary(prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Objectives: map[float64]float64{
				0.5:  0.05,
				0.9:  0.01,
				0.99: 0.001,
			},
		}),
		fetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_fetched_total",
			Help:      "Applications returned by the fetcher",
		}),
		added: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_new_total",
			Help:      "Applications added to the store",
		}),
		enrichFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_failures_total",
			Help:      "Company research calls that failed",
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Summary emails by result",
		}, []string{"result"}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
	}
}

// ObserveRun 记录一次运行
func (m *Metrics) ObserveRun(outcome string, duration time.Duration, fetched, added, enrichFailures int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.fetched.Add(float64(fetched))
	m.added.Add(float64(added))
	m.enrichFailures.Add(float64(enrichFailures))
	if outcome != OutcomeFailed {
		m.lastSuccess.SetToCurrentTime()
	}
}

func (m *Metrics) ObserveNotification(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.notifications.WithLabelValues("failed").Inc()
		return
	}
	m.notifications.WithLabelValues("sent").Inc()
}

// Registry 供测试读取指标
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
