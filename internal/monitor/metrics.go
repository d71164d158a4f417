package monitor

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// Metrics — последний снимок ServiceStatus в виде gauge для скрейпа.
// Недоступное поле выставляется в NaN, а mlserve_status_field_available{field} — в 0.
type Metrics struct {
	Healthy         prometheus.Gauge
	RunningTasks    prometheus.Gauge
	DesiredTasks    prometheus.Gauge
	CPUUtil         prometheus.Gauge
	MemUtil         prometheus.Gauge
	RequestCount    prometheus.Gauge
	AvgResponseTime prometheus.Gauge
	FieldAvailable  *prometheus.GaugeVec
	LastCheck       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Healthy: f.NewGauge(prometheus.GaugeOpts{
			Name: "mlserve_status_healthy",
			Help: "1 if the service health endpoint reported healthy.",
		}),
		RunningTasks: f.NewGauge(prometheus.GaugeOpts{
			Name: "mlserve_status_running_tasks",
			Help: "Running task count reported by the scaling source.",
		}),
		DesiredTasks: f.NewGauge(prometheus.GaugeOpts{
			Name: "mlserve_status_desired_tasks",
			Help: "Desired task count reported by the scaling source.",
		}),
		CPUUtil: f.NewGauge(prometheus.GaugeOpts{
			Name: "mlserve_status_cpu_utilization_percent",
			Help: "Average CPU utilization over the status window.",
		}),
		MemUtil: f.NewGauge(prometheus.GaugeOpts{
			Name: "mlserve_status_memory_utilization_percent",
			Help: "Average memory utilization over the status window.",
		}),
		RequestCount: f.NewGauge(prometheus.GaugeOpts{
			Name: "mlserve_status_requests_window",
			Help: "Requests served over the status window.",
		}),
		AvgResponseTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "mlserve_status_avg_response_seconds",
			Help: "Average response time over the status window.",
		}),
		FieldAvailable: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mlserve_status_field_available",
			Help: "1 if the status field was gathered, 0 if its collaborator failed.",
		}, []string{"field"}),
		LastCheck: f.NewGauge(prometheus.GaugeOpts{
			Name: "mlserve_status_last_check_timestamp_seconds",
			Help: "Unix time of the last status gather.",
		}),
	}
}

// Update переносит снимок в gauge.
func (m *Metrics) Update(st domain.ServiceStatus) {
	if st.Healthy {
		m.Healthy.Set(1)
	} else {
		m.Healthy.Set(0)
	}
	setInt(m.RunningTasks, st.RunningTasks)
	setInt(m.DesiredTasks, st.DesiredTasks)
	setFloat(m.CPUUtil, st.CPUUtil)
	setFloat(m.MemUtil, st.MemUtil)
	if st.RequestCountWindow != nil {
		m.RequestCount.Set(float64(*st.RequestCountWindow))
	} else {
		m.RequestCount.Set(math.NaN())
	}
	setFloat(m.AvgResponseTime, st.AvgResponseTimeWindow)

	for _, field := range []string{
		domain.FieldHealth, domain.FieldScaling, domain.FieldCPU,
		domain.FieldMemory, domain.FieldRequestCount, domain.FieldAvgResponseTime,
	} {
		if _, down := st.Unavailable[field]; down {
			m.FieldAvailable.WithLabelValues(field).Set(0)
		} else {
			m.FieldAvailable.WithLabelValues(field).Set(1)
		}
	}
	m.LastCheck.Set(float64(st.CheckedAt.Unix()))
}

func setInt(g prometheus.Gauge, v *int) {
	if v == nil {
		g.Set(math.NaN())
		return
	}
	g.Set(float64(*v))
}

func setFloat(g prometheus.Gauge, v *float64) {
	if v == nil {
		g.Set(math.NaN())
		return
	}
	g.Set(*v)
}
