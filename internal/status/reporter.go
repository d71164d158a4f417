package status

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/mlserve-probe/internal/domain"
	"github.com/xela07ax/mlserve-probe/internal/infra"
)

// Reporter собирает ServiceStatus из коллабораторов. Каждое поле деградирует само по себе:
// отказ одного источника помечает только его поля как unavailable.
type Reporter struct {
	target  string
	service domain.ServiceID
	window  time.Duration

	health  HealthProber
	scale   ScaleSource
	metrics MetricSource

	logger      *zap.Logger
	now         func() time.Time
	callTimeout time.Duration
}

// DefaultCallTimeout — дедлайн одного вызова коллаборатора. Зависший источник дает unavailable.
const DefaultCallTimeout = 10 * time.Second

type Option func(*Reporter)

// WithCallTimeout задает дедлайн одного вызова коллаборатора. d <= 0 оставляет значение по умолчанию.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithClock подменяет часы (тесты, детерминированные отчеты).
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

func NewReporter(target string, service domain.ServiceID, window time.Duration,
	health HealthProber, scale ScaleSource, metrics MetricSource,
	logger *zap.Logger, opts ...Option,
) *Reporter {
	r := &Reporter{
		target:      target,
		service:     service,
		window:      window,
		health:      health,
		scale:       scale,
		metrics:     metrics,
		logger:      logger.Named("status"),
		now:         time.Now,
		callTimeout: DefaultCallTimeout,
	}
	if r.health == nil {
		r.health = Unconfigured{Name: "health prober"}
	}
	if r.scale == nil {
		r.scale = Unconfigured{Name: "scaling source"}
	}
	if r.metrics == nil {
		r.metrics = Unconfigured{Name: "metrics source"}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Gather — полный отчет: liveness, scaling, resources, traffic.
func (r *Reporter) Gather(ctx context.Context) domain.ServiceStatus {
	return r.GatherSections(ctx, domain.SectionsAll)
}

// Health — только liveness.
func (r *Reporter) Health(ctx context.Context) domain.ServiceStatus {
	return r.GatherSections(ctx, domain.SectionLiveness)
}

// Metrics — scaling, resources и traffic без проверки здоровья.
func (r *Reporter) Metrics(ctx context.Context) domain.ServiceStatus {
	return r.GatherSections(ctx, domain.SectionsMetrics)
}

// GatherSections опрашивает коллабораторов параллельно. Каждая горутина пишет только
// в свою локальную переменную, слияние — после Wait, поэтому гонок нет.
func (r *Reporter) GatherSections(ctx context.Context, sections domain.Section) domain.ServiceStatus {
	st := domain.ServiceStatus{
		CheckedAt: r.now(),
		Target:    r.target,
		Service:   r.service,
		Window:    r.window,
	}

	var (
		g errgroup.Group

		healthy      bool
		healthDetail string
		healthErr    error

		scale    domain.ScaleState
		scaleErr error

		cpu, mem, count, avg             float64
		cpuErr, memErr, countErr, avgErr error
	)

	if sections.Has(domain.SectionLiveness) {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
			defer cancel()
			healthy, healthDetail, healthErr = r.health.ProbeHealth(callCtx)
			return nil
		})
	}
	if sections.Has(domain.SectionScaling) {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
			defer cancel()
			scale, scaleErr = r.scale.ScaleState(callCtx, r.service)
			return nil
		})
	}
	if sections.Has(domain.SectionResources) {
		g.Go(func() error {
			cpu, cpuErr = r.metric(ctx, infra.MetricCPU)
			return nil
		})
		g.Go(func() error {
			mem, memErr = r.metric(ctx, infra.MetricMemory)
			return nil
		})
	}
	if sections.Has(domain.SectionTraffic) {
		g.Go(func() error {
			count, countErr = r.metric(ctx, infra.MetricRequestCount)
			return nil
		})
		g.Go(func() error {
			avg, avgErr = r.metric(ctx, infra.MetricResponseTime)
			return nil
		})
	}
	_ = g.Wait() // горутины не возвращают ошибок: отказы — это данные

	if sections.Has(domain.SectionLiveness) {
		if healthErr != nil {
			st.MarkUnavailable(domain.FieldHealth, healthErr)
			st.HealthDetail = healthErr.Error()
		} else {
			st.Healthy = healthy
			st.HealthDetail = healthDetail
		}
	}
	if sections.Has(domain.SectionScaling) {
		if scaleErr != nil {
			st.MarkUnavailable(domain.FieldScaling, scaleErr)
		} else {
			st.RunningTasks = ptr(scale.RunningTasks)
			st.DesiredTasks = ptr(scale.DesiredTasks)
		}
	}
	if sections.Has(domain.SectionResources) {
		st.CPUUtil = r.floatField(&st, domain.FieldCPU, cpu, cpuErr)
		st.MemUtil = r.floatField(&st, domain.FieldMemory, mem, memErr)
	}
	if sections.Has(domain.SectionTraffic) {
		if countErr != nil {
			st.MarkUnavailable(domain.FieldRequestCount, countErr)
		} else {
			st.RequestCountWindow = ptr(int64(math.Round(count)))
		}
		st.AvgResponseTimeWindow = r.floatField(&st, domain.FieldAvgResponseTime, avg, avgErr)
	}

	if len(st.Unavailable) > 0 {
		r.logger.Debug("status gathered with unavailable fields", zap.Any("unavailable", st.Unavailable))
	}
	return st
}

func (r *Reporter) metric(ctx context.Context, name string) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	return r.metrics.Metric(callCtx, name, r.window)
}

func (r *Reporter) floatField(st *domain.ServiceStatus, field string, v float64, err error) *float64 {
	if err != nil {
		st.MarkUnavailable(field, err)
		return nil
	}
	return ptr(v)
}

func ptr[T any](v T) *T {
	return &v
}
