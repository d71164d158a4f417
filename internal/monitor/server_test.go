package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

type fakeGatherer struct {
	calls atomic.Int32
}

func (f *fakeGatherer) Gather(context.Context) domain.ServiceStatus {
	f.calls.Add(1)
	running, desired := 2, 3
	cpu := 41.5
	st := domain.ServiceStatus{
		CheckedAt:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Target:       "http://localhost:8000",
		Healthy:      true,
		HealthDetail: "healthy",
		RunningTasks: &running,
		DesiredTasks: &desired,
		CPUUtil:      &cpu,
	}
	st.MarkUnavailable(domain.FieldMemory, errors.New("metrics source down"))
	st.MarkUnavailable(domain.FieldRequestCount, domain.ErrNoDatapoint)
	st.MarkUnavailable(domain.FieldAvgResponseTime, domain.ErrNoDatapoint)
	return st
}

func newTestServer(t *testing.T) (*Server, *fakeGatherer, *httptest.Server) {
	t.Helper()
	g := &fakeGatherer{}
	s := NewServer(g, prometheus.NewRegistry(), zap.NewNop())
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, g, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Health(t *testing.T) {
	_, g, ts := newTestServer(t)
	code, body := get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"ok"}`, body)
	require.Zero(t, g.calls.Load())
}

func TestServer_StatusGathersFresh(t *testing.T) {
	_, g, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/status")
	require.Equal(t, http.StatusOK, code)

	var st domain.ServiceStatus
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	require.True(t, st.Healthy)
	require.Equal(t, 2, *st.RunningTasks)
	require.Nil(t, st.MemUtil)
	require.Equal(t, "metrics source down", st.Unavailable[domain.FieldMemory])

	get(t, ts.URL+"/status")
	require.Equal(t, int32(2), g.calls.Load())
}

func TestServer_LastBeforeAndAfterRefresh(t *testing.T) {
	s, _, ts := newTestServer(t)

	code, _ := get(t, ts.URL+"/status/last")
	require.Equal(t, http.StatusServiceUnavailable, code)

	s.Refresh(context.Background())
	code, body := get(t, ts.URL+"/status/last")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"healthy":true`)
}

func TestServer_MetricsExposeSnapshot(t *testing.T) {
	s, _, ts := newTestServer(t)
	s.Refresh(context.Background())

	require.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Healthy))
	require.Equal(t, 3.0, testutil.ToFloat64(s.metrics.DesiredTasks))
	require.Equal(t, 1.0, testutil.ToFloat64(s.metrics.FieldAvailable.WithLabelValues(domain.FieldCPU)))
	require.Equal(t, 0.0, testutil.ToFloat64(s.metrics.FieldAvailable.WithLabelValues(domain.FieldMemory)))

	code, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "mlserve_status_healthy 1")
	require.Contains(t, body, "mlserve_status_memory_utilization_percent NaN")
	require.True(t, strings.Contains(body, `mlserve_status_field_available{field="scaling"} 1`))
}

func TestServer_RunRefresher(t *testing.T) {
	s, g, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunRefresher(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return g.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop after cancel")
	}
}

func TestServer_WithAuthGuardsStatusOnly(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
	g := &fakeGatherer{}
	ts := httptest.NewServer(NewServer(g, prometheus.NewRegistry(), zap.NewNop(), WithAuth(deny)))
	t.Cleanup(ts.Close)

	code, _ := get(t, ts.URL+"/status")
	require.Equal(t, http.StatusUnauthorized, code)
	code, _ = get(t, ts.URL+"/status/last")
	require.Equal(t, http.StatusUnauthorized, code)
	require.Zero(t, g.calls.Load())

	code, _ = get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, code)
	code, _ = get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
}
