package engine

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

type Metrics struct {
	// Latency: сколько заняла одна проба, по исходу
	ProbeDuration *prometheus.HistogramVec

	// Traffic: сколько проб отправлено, по исходу и коду ответа
	ProbesTotal *prometheus.CounterVec

	// Saturation: сколько проб сейчас в полете
	InFlight prometheus.Gauge

	// Целевая частота текущего прогона
	TargetRPS prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ProbeDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mlserve_probe_duration_seconds",
			Help:    "Histogram of probe latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"outcome"}),

		ProbesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mlserve_probes_total",
			Help: "Total number of probes by outcome and status code.",
		}, []string{"outcome", "code"}), // code = 0 для транспортных ошибок

		InFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "mlserve_probes_in_flight",
			Help: "Current number of probes awaiting a response.",
		}),

		TargetRPS: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "mlserve_target_rps",
			Help: "Configured target request rate of the current run.",
		}),
	}
}

// Observe учитывает завершенную пробу.
func (m *Metrics) Observe(res domain.ProbeResult) {
	outcome := res.Outcome.String()
	m.ProbeDuration.WithLabelValues(outcome).Observe(res.Elapsed.Seconds())
	m.ProbesTotal.WithLabelValues(outcome, strconv.Itoa(res.StatusCode)).Inc()
}
