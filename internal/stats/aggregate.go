package stats

import (
	"time"

	"github.com/codahale/hdrhistogram"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// Диапазон гистограммы задержек в микросекундах: 1µs .. 1h, 3 значащих цифры.
const (
	histMin     = 1
	histMax     = int64(time.Hour / time.Microsecond)
	histSigFigs = 3
)

// Aggregate сводит набор результатов в статистику. Функция чистая и тотальная:
// порядок входа не важен, пустой вход дает нули без деления на ноль.
func Aggregate(results []domain.ProbeResult) domain.AggregateStats {
	s := domain.AggregateStats{StatusCodes: make(map[int]int)}
	if len(results) == 0 {
		return s
	}

	hist := hdrhistogram.New(histMin, histMax, histSigFigs)
	var (
		first, last time.Time
		latencyN    int64
	)

	for _, r := range results {
		s.Total++
		switch r.Outcome {
		case domain.OutcomeSuccess:
			s.SuccessCount++
		case domain.OutcomeHTTPError:
			s.HTTPErrorCount++
		default:
			s.TransportErrorCount++
		}
		if r.StatusCode != 0 {
			s.StatusCodes[r.StatusCode]++
		}

		if first.IsZero() || r.StartedAt.Before(first) {
			first = r.StartedAt
		}
		if end := r.CompletedAt(); end.After(last) {
			last = end
		}

		// Транспортные ошибки считаем, но в задержки не пускаем
		if !r.HasLatency() {
			continue
		}
		if latencyN == 0 || r.Elapsed < s.MinLatency {
			s.MinLatency = r.Elapsed
		}
		if r.Elapsed > s.MaxLatency {
			s.MaxLatency = r.Elapsed
		}
		latencyN++
		s.TotalElapsed += r.Elapsed
		_ = hist.RecordValue(clampMicros(r.Elapsed))
	}

	s.ErrorCount = s.HTTPErrorCount + s.TransportErrorCount
	s.SuccessRate = float64(s.SuccessCount) / float64(s.Total)

	// RPS считаем по фактическому окну, а не по заданной длительности
	s.Span = last.Sub(first)
	if s.Span > 0 {
		s.AchievedRPS = float64(s.Total) / s.Span.Seconds()
	}

	if latencyN > 0 {
		s.MeanLatency = s.TotalElapsed / time.Duration(latencyN)
		s.P50 = quantile(hist, 50)
		s.P90 = quantile(hist, 90)
		s.P95 = quantile(hist, 95)
		s.P99 = quantile(hist, 99)
	}
	return s
}

func clampMicros(d time.Duration) int64 {
	us := d.Microseconds()
	switch {
	case us < histMin:
		return histMin
	case us > histMax:
		return histMax
	default:
		return us
	}
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}
