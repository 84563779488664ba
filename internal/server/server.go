// Package server 提供运行状态的 HTTP 接口：健康检查、最近一次运行报告和 Prometheus 指标。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/metrics"
	"github.com/YKarmar/ApplyTracker/internal/pipeline"
	"go.uber.org/zap"
)

const healthMessage = "LinkedIn Job Application Tracker is running"

// 状态接口的返回
type StatusResponse struct {
	Status     string           `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	NextRun    *time.Time       `json:"next_run,omitempty"`
	LastReport *pipeline.Report `json:"last_report,omitempty"`
}

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type StatusServer struct {
	metrics *metrics.Metrics
	logger  *zap.Logger
	started time.Time

	mu   sync.RWMutex
	last *pipeline.Report
	next func(time.Time) time.Time
	now  func() time.Time
}

func New(m *metrics.Metrics, logger *zap.Logger) *StatusServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusServer{
		metrics: m,
		logger:  logger,
		started: time.Now(),
		now:     time.Now,
	}
}

// Record 保存最近一次运行报告
func (s *StatusServer) Record(report *pipeline.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = report
}

// SetNextRun 注入下一次触发时间的计算方式
func (s *StatusServer) SetNextRun(next func(time.Time) time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = next
}

func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// ListenAndServe 阻塞直到 ctx 结束后优雅关闭
func (s *StatusServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("状态服务启动", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/healthz" {
		s.sendError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(healthMessage))
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.RLock()
	resp := StatusResponse{
		Status:     "idle",
		StartedAt:  s.started,
		LastReport: s.last,
	}
	if s.next != nil {
		next := s.next(s.now())
		resp.NextRun = &next
	}
	s.mu.RUnlock()

	if resp.LastReport != nil {
		resp.Status = "ok"
		if resp.LastReport.Error != "" {
			resp.Status = "failed"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("写入状态响应失败", zap.Error(err))
	}
}

func (s *StatusServer) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: message})
}
