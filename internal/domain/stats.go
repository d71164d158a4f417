package domain

import "time"

// AggregateStats целиком выводится из финального набора ProbeResult одного прогона.
// Повторный расчет по тому же набору дает тот же результат.
type AggregateStats struct {
	Total               int `json:"total_requests" yaml:"total_requests"`
	SuccessCount        int `json:"success_count" yaml:"success_count"`
	HTTPErrorCount      int `json:"http_error_count" yaml:"http_error_count"`
	TransportErrorCount int `json:"transport_error_count" yaml:"transport_error_count"`
	ErrorCount          int `json:"error_count" yaml:"error_count"`

	// Сумма задержек по Success и HTTPError
	TotalElapsed time.Duration `json:"total_elapsed" yaml:"total_elapsed"`
	// Фактическое окно прогона: от первого старта до последнего завершения
	Span        time.Duration `json:"span" yaml:"span"`
	AchievedRPS float64       `json:"achieved_rps" yaml:"achieved_rps"`
	SuccessRate float64       `json:"success_rate" yaml:"success_rate"` // 0..1

	MeanLatency time.Duration `json:"mean_latency" yaml:"mean_latency"`
	MinLatency  time.Duration `json:"min_latency" yaml:"min_latency"`
	MaxLatency  time.Duration `json:"max_latency" yaml:"max_latency"`
	P50         time.Duration `json:"p50" yaml:"p50"`
	P90         time.Duration `json:"p90" yaml:"p90"`
	P95         time.Duration `json:"p95" yaml:"p95"`
	P99         time.Duration `json:"p99" yaml:"p99"`

	StatusCodes map[int]int `json:"status_codes" yaml:"status_codes"`
}

// Empty — прогон не дал ни одного результата ("no data").
func (s AggregateStats) Empty() bool {
	return s.Total == 0
}

type LatencyBand string

const (
	LatencyExcellent  LatencyBand = "Excellent"
	LatencyGood       LatencyBand = "Good"
	LatencyAcceptable LatencyBand = "Acceptable"
	LatencyPoor       LatencyBand = "Poor"
)

type SuccessBand string

const (
	SuccessExcellent SuccessBand = "Excellent"
	SuccessGood      SuccessBand = "Good"
	SuccessPoor      SuccessBand = "Poor"
)

// Verdict — качественная оценка статистики по фиксированным порогам.
type Verdict struct {
	Latency LatencyBand `json:"latency_band" yaml:"latency_band"`
	Success SuccessBand `json:"success_band" yaml:"success_band"`
	NoData  bool        `json:"no_data" yaml:"no_data"`
}
