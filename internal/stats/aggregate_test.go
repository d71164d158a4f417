package stats

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func result(offset, elapsed time.Duration, outcome domain.Outcome, code int) domain.ProbeResult {
	return domain.ProbeResult{
		StartedAt:  t0.Add(offset),
		Elapsed:    elapsed,
		Outcome:    outcome,
		StatusCode: code,
	}
}

func mixedResults() []domain.ProbeResult {
	var out []domain.ProbeResult
	for i := range 60 {
		out = append(out, result(time.Duration(i)*50*time.Millisecond, time.Duration(100+i*7)*time.Millisecond, domain.OutcomeSuccess, 200))
	}
	for i := range 25 {
		out = append(out, result(time.Duration(i)*80*time.Millisecond, 300*time.Millisecond, domain.OutcomeHTTPError, 500+i%4))
	}
	for i := range 15 {
		out = append(out, result(time.Duration(i)*120*time.Millisecond, 10*time.Second, domain.OutcomeTransportError, 0))
	}
	return out
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil)
	require.Zero(t, s.Total)
	require.Zero(t, s.SuccessRate)
	require.Zero(t, s.AchievedRPS)
	require.Zero(t, s.MeanLatency)
	require.True(t, s.Empty())
	require.NotNil(t, s.StatusCodes)
}

func TestAggregate_CountsAddUp(t *testing.T) {
	s := Aggregate(mixedResults())
	require.Equal(t, 100, s.Total)
	require.Equal(t, 60, s.SuccessCount)
	require.Equal(t, 25, s.HTTPErrorCount)
	require.Equal(t, 15, s.TransportErrorCount)
	require.Equal(t, s.Total, s.SuccessCount+s.HTTPErrorCount+s.TransportErrorCount)
	require.Equal(t, s.HTTPErrorCount+s.TransportErrorCount, s.ErrorCount)
	require.InDelta(t, 0.60, s.SuccessRate, 1e-9)
	require.Equal(t, 60, s.StatusCodes[200])
	require.NotContains(t, s.StatusCodes, 0)
}

func TestAggregate_TransportErrorsExcludedFromLatency(t *testing.T) {
	s := Aggregate(mixedResults())
	require.Less(t, s.MaxLatency, 10*time.Second)
	require.Less(t, s.P99, 2*time.Second)

	var sum time.Duration
	for _, r := range mixedResults() {
		if r.HasLatency() {
			sum += r.Elapsed
		}
	}
	require.Equal(t, sum, s.TotalElapsed)
	require.Equal(t, sum/85, s.MeanLatency)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	base := Aggregate(mixedResults())
	rng := rand.New(rand.NewPCG(1, 2))
	for range 10 {
		shuffled := mixedResults()
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		require.Equal(t, base, Aggregate(shuffled))
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	in := mixedResults()
	require.Equal(t, Aggregate(in), Aggregate(in))
}

func TestAggregate_AchievedRPSUsesObservedSpan(t *testing.T) {
	// 10 запросов за 1.9s + 100ms последнего ответа = окно 2s, независимо от заданной длительности
	var in []domain.ProbeResult
	for i := range 10 {
		in = append(in, result(time.Duration(i)*211*time.Millisecond, 100*time.Millisecond, domain.OutcomeSuccess, 200))
	}
	in[9].StartedAt = t0.Add(1900 * time.Millisecond)

	s := Aggregate(in)
	require.Equal(t, 2*time.Second, s.Span)
	require.InDelta(t, 5.0, s.AchievedRPS, 1e-9)
}

func TestAggregate_Percentiles(t *testing.T) {
	var in []domain.ProbeResult
	for i := 1; i <= 100; i++ {
		in = append(in, result(0, time.Duration(i)*time.Millisecond, domain.OutcomeSuccess, 200))
	}
	s := Aggregate(in)
	require.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(time.Millisecond))
	require.InDelta(t, float64(95*time.Millisecond), float64(s.P95), float64(time.Millisecond))
	require.InDelta(t, float64(99*time.Millisecond), float64(s.P99), float64(time.Millisecond))
	require.Equal(t, time.Millisecond, s.MinLatency)
	require.Equal(t, 100*time.Millisecond, s.MaxLatency)
}

func TestAggregate_AllTransportErrors(t *testing.T) {
	var in []domain.ProbeResult
	for i := range 20 {
		in = append(in, result(time.Duration(i)*100*time.Millisecond, time.Second, domain.OutcomeTransportError, 0))
	}
	s := Aggregate(in)
	require.Equal(t, 20, s.Total)
	require.Zero(t, s.SuccessCount)
	require.Equal(t, 20, s.TransportErrorCount)
	require.Zero(t, s.MeanLatency)
	require.Zero(t, s.SuccessRate)
	require.Positive(t, s.AchievedRPS)
}
