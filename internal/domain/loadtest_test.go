package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() LoadTestConfig {
	return LoadTestConfig{
		TargetURL:      "http://localhost:8000/predict",
		TargetRPS:      10,
		Duration:       10 * time.Second,
		Concurrency:    5,
		RequestTimeout: time.Second,
	}
}

func TestLoadTestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*LoadTestConfig)
		ok     bool
	}{
		{"valid", func(*LoadTestConfig) {}, true},
		{"no target", func(c *LoadTestConfig) { c.TargetURL = "  " }, false},
		{"zero concurrency", func(c *LoadTestConfig) { c.Concurrency = 0 }, false},
		{"zero rps", func(c *LoadTestConfig) { c.TargetRPS = 0 }, false},
		{"negative duration", func(c *LoadTestConfig) { c.Duration = -time.Second }, false},
		{"unknown pacing", func(c *LoadTestConfig) { c.Pacing = "burst" }, false},
		{"token bucket", func(c *LoadTestConfig) { c.Pacing = PacingTokenBucket }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestLoadTestConfig_Interval(t *testing.T) {
	cfg := validConfig()
	require.Equal(t, 500*time.Millisecond, cfg.Interval())

	cfg.Concurrency = 12
	cfg.TargetRPS = 300
	require.Equal(t, 40*time.Millisecond, cfg.Interval())

	cfg.TargetRPS = 0
	require.Zero(t, cfg.Interval())

	cfg.TargetRPS = 1e-12
	require.Equal(t, time.Duration(math.MaxInt64), cfg.Interval())
	cfg.TargetRPS = math.SmallestNonzeroFloat64
	require.Positive(t, cfg.Interval())
}

func TestLoadTestConfig_RequestMethod(t *testing.T) {
	cfg := validConfig()
	require.Equal(t, "POST", cfg.RequestMethod())
	cfg.Method = "GET"
	require.Equal(t, "GET", cfg.RequestMethod())
}

func TestParsePacing(t *testing.T) {
	p, err := ParsePacing("")
	require.NoError(t, err)
	require.Equal(t, PacingOpenLoop, p)

	p, err = ParsePacing(" Token-Bucket ")
	require.NoError(t, err)
	require.Equal(t, PacingTokenBucket, p)

	_, err = ParsePacing("closed-loop")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestProbeResult_HasLatency(t *testing.T) {
	require.True(t, ProbeResult{Outcome: OutcomeSuccess}.HasLatency())
	require.True(t, ProbeResult{Outcome: OutcomeHTTPError}.HasLatency())
	require.False(t, ProbeResult{Outcome: OutcomeTransportError}.HasLatency())

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := ProbeResult{StartedAt: start, Elapsed: 250 * time.Millisecond}
	require.Equal(t, start.Add(250*time.Millisecond), r.CompletedAt())
}
