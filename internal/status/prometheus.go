package status

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// PrometheusSource отвечает на запросы метрик через HTTP API Prometheus.
// Каждое имя метрики — PromQL-шаблон с подстановками $service и $window.
type PrometheusSource struct {
	api     v1.API
	service string
	queries map[string]string
	logger  *zap.Logger
}

func NewPrometheusSource(address, service string, queries map[string]string, logger *zap.Logger) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("%w: prometheus client: %v", domain.ErrConfiguration, err)
	}
	return &PrometheusSource{
		api:     v1.NewAPI(client),
		service: service,
		queries: queries,
		logger:  logger.Named("prometheus"),
	}, nil
}

func (s *PrometheusSource) Metric(ctx context.Context, name string, window time.Duration) (float64, error) {
	tmpl, ok := s.queries[name]
	if !ok || strings.TrimSpace(tmpl) == "" {
		return 0, fmt.Errorf("%w: no query configured for %s", domain.ErrCollaboratorUnavailable, name)
	}
	query := expandQuery(tmpl, s.service, window)

	val, warnings, err := s.api.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: prometheus: %v", domain.ErrCollaboratorUnavailable, err)
	}
	if len(warnings) > 0 {
		s.logger.Debug("query returned warnings", zap.String("metric", name), zap.Strings("warnings", warnings))
	}

	var f float64
	switch v := val.(type) {
	case model.Vector:
		if len(v) == 0 {
			return 0, fmt.Errorf("%w: %s over %s", domain.ErrNoDatapoint, name, window)
		}
		f = float64(v[0].Value)
	case *model.Scalar:
		f = float64(v.Value)
	default:
		return 0, fmt.Errorf("%w: unexpected result type %s for %s", domain.ErrCollaboratorUnavailable, val.Type(), name)
	}

	// rate()/rate() без трафика дает NaN — это отсутствие точек, а не ноль
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s over %s", domain.ErrNoDatapoint, name, window)
	}
	return f, nil
}

func expandQuery(tmpl, service string, window time.Duration) string {
	return strings.NewReplacer(
		"$service", service,
		"$window", model.Duration(window).String(),
	).Replace(tmpl)
}
