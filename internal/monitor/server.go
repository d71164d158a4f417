package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// Gatherer — источник свежего ServiceStatus (status.Reporter).
type Gatherer interface {
	Gather(ctx context.Context) domain.ServiceStatus
}

// Server отдает состояние сервиса по HTTP: /health, /status, /metrics.
type Server struct {
	router   *chi.Mux
	gatherer Gatherer
	metrics  *Metrics
	gather   prometheus.Gatherer
	logger   *zap.Logger

	guard func(http.Handler) http.Handler

	mu   sync.RWMutex
	last *domain.ServiceStatus
}

type ServerOption func(*Server)

// WithAuth закрывает эндпоинты /status* переданным middleware. /health и /metrics остаются открытыми.
func WithAuth(mw func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.guard = mw }
}

// NewServer регистрирует gauge статуса в reg и отдает reg на /metrics.
func NewServer(g Gatherer, reg *prometheus.Registry, logger *zap.Logger, opts ...ServerOption) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		router:   chi.NewRouter(),
		gatherer: g,
		metrics:  NewMetrics(reg),
		gather:   reg,
		logger:   logger.Named("monitor-api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Group(func(r chi.Router) {
		if s.guard != nil {
			r.Use(s.guard)
		}
		r.Get("/status", s.handleStatus)
		r.Get("/status/last", s.handleLast)
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
}

// handleStatus собирает свежий статус на каждый запрос.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Refresh(r.Context())
	writeJSON(w, http.StatusOK, st)
}

// handleLast отдает снимок последнего фонового обновления без обращения к коллабораторам.
func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no status gathered yet"})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

// Refresh собирает статус, обновляет gauge и запоминает снимок.
func (s *Server) Refresh(ctx context.Context) domain.ServiceStatus {
	st := s.gatherer.Gather(ctx)
	s.metrics.Update(st)

	s.mu.Lock()
	s.last = &st
	s.mu.Unlock()

	s.logger.Debug("status refreshed",
		zap.Bool("healthy", st.Healthy),
		zap.Int("unavailable", len(st.Unavailable)),
	)
	return st
}

// RunRefresher обновляет статус сразу и далее по тикеру, пока жив ctx.
func (s *Server) RunRefresher(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
