package stats

import (
	"time"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// LatencyThreshold: средняя задержка строго меньше Below попадает в Band.
type LatencyThreshold struct {
	Band  domain.LatencyBand
	Below time.Duration
}

// SuccessThreshold: доля успешных запросов не меньше AtLeast попадает в Band.
type SuccessThreshold struct {
	Band    domain.SuccessBand
	AtLeast float64
}

// Thresholds — таблицы порогов, от самой строгой полосы к самой мягкой.
// Все, что не попало ни в одну строку, получает Poor.
type Thresholds struct {
	Latency []LatencyThreshold
	Success []SuccessThreshold
}

// NewThresholds собирает таблицы из значений конфига.
func NewThresholds(excellent, good, acceptable time.Duration, successExcellent, successGood float64) Thresholds {
	return Thresholds{
		Latency: []LatencyThreshold{
			{Band: domain.LatencyExcellent, Below: excellent},
			{Band: domain.LatencyGood, Below: good},
			{Band: domain.LatencyAcceptable, Below: acceptable},
		},
		Success: []SuccessThreshold{
			{Band: domain.SuccessExcellent, AtLeast: successExcellent},
			{Band: domain.SuccessGood, AtLeast: successGood},
		},
	}
}

// DefaultThresholds:
//
//	band       | mean latency | success rate
//	Excellent  | < 1s         | >= 95%
//	Good       | < 2s         | >= 90%
//	Acceptable | < 5s         | -
//	Poor       | >= 5s        | < 90%
func DefaultThresholds() Thresholds {
	return NewThresholds(time.Second, 2*time.Second, 5*time.Second, 0.95, 0.90)
}

// Evaluate — чистый поиск по таблицам.
func (t Thresholds) Evaluate(s domain.AggregateStats) domain.Verdict {
	v := domain.Verdict{
		Latency: domain.LatencyPoor,
		Success: domain.SuccessPoor,
		NoData:  s.Empty(),
	}
	// Ни одного ответа — средней задержки нет, нулевое среднее не должно выглядеть как Excellent
	hasLatency := s.SuccessCount+s.HTTPErrorCount > 0
	for _, th := range t.Latency {
		if hasLatency && s.MeanLatency < th.Below {
			v.Latency = th.Band
			break
		}
	}
	for _, th := range t.Success {
		if s.SuccessRate >= th.AtLeast {
			v.Success = th.Band
			break
		}
	}
	return v
}

// Evaluate оценивает статистику по порогам по умолчанию.
func Evaluate(s domain.AggregateStats) domain.Verdict {
	return DefaultThresholds().Evaluate(s)
}
