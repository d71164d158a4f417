package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xela07ax/mlserve-probe/internal/domain"
	"github.com/xela07ax/mlserve-probe/internal/infra"
	"github.com/xela07ax/mlserve-probe/internal/probe"
)

type fakeHashes struct {
	data map[string]map[string]string
	err  error
	keys []string
}

func (f *fakeHashes) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	f.keys = append(f.keys, key)
	return redis.NewMapStringStringResult(f.data[key], f.err)
}

func TestRedisScaleSource(t *testing.T) {
	hashes := &fakeHashes{data: map[string]map[string]string{
		"mlserve:scale:mlserve-cluster:mlserve-api": {"running": "2", "desired": "3"},
		"mlserve:scale:mlserve-cluster:broken":      {"running": "two", "desired": "3"},
		"mlserve:scale:mlserve-cluster:partial":     {"running": "1"},
	}}
	src := NewRedisScaleSource(hashes, "")

	st, err := src.ScaleState(context.Background(), svc)
	require.NoError(t, err)
	require.Equal(t, domain.ScaleState{RunningTasks: 2, DesiredTasks: 3}, st)
	require.Equal(t, "mlserve:scale:mlserve-cluster:mlserve-api", hashes.keys[0])

	_, err = src.ScaleState(context.Background(), domain.ServiceID{Cluster: "mlserve-cluster", Service: "missing"})
	require.ErrorIs(t, err, domain.ErrNoDatapoint)

	_, err = src.ScaleState(context.Background(), domain.ServiceID{Cluster: "mlserve-cluster", Service: "broken"})
	require.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)

	_, err = src.ScaleState(context.Background(), domain.ServiceID{Cluster: "mlserve-cluster", Service: "partial"})
	require.ErrorIs(t, err, domain.ErrNoDatapoint)

	down := NewRedisScaleSource(&fakeHashes{err: errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")}, "")
	_, err = down.ScaleState(context.Background(), svc)
	require.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
}

func newPrometheusFake(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		body, ok := responses[r.Form.Get("query")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":"error","errorType":"bad_data","error":"unknown query"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPrometheusSource(t *testing.T) {
	queries := map[string]string{
		infra.MetricCPU:          `avg(cpu{service="$service"}[$window])`,
		infra.MetricMemory:       `avg(mem{service="$service"}[$window])`,
		infra.MetricRequestCount: `sum(req{service="$service"}[$window])`,
		infra.MetricResponseTime: `latency{service="$service"}[$window]`,
	}
	srv := newPrometheusFake(t, map[string]string{
		`avg(cpu{service="mlserve-api"}[5m])`: `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1714564800,"42.5"]}]}}`,
		`avg(mem{service="mlserve-api"}[5m])`: `{"status":"success","data":{"resultType":"vector","result":[]}}`,
		`sum(req{service="mlserve-api"}[5m])`: `{"status":"success","data":{"resultType":"scalar","result":[1714564800,"900"]}}`,
		`latency{service="mlserve-api"}[5m]`:  `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1714564800,"NaN"]}]}}`,
	})

	src, err := NewPrometheusSource(srv.URL, "mlserve-api", queries, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	v, err := src.Metric(ctx, infra.MetricCPU, 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 42.5, v)

	_, err = src.Metric(ctx, infra.MetricMemory, 5*time.Minute)
	require.ErrorIs(t, err, domain.ErrNoDatapoint)

	v, err = src.Metric(ctx, infra.MetricRequestCount, 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 900.0, v)

	_, err = src.Metric(ctx, infra.MetricResponseTime, 5*time.Minute)
	require.ErrorIs(t, err, domain.ErrNoDatapoint)

	_, err = src.Metric(ctx, infra.MetricCPU, time.Minute)
	require.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)

	_, err = src.Metric(ctx, "gpu_utilization", time.Minute)
	require.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
}

func TestExpandQuery(t *testing.T) {
	q := expandQuery(`rate(x{service="$service"}[$window])`, "api", 90*time.Second)
	require.Equal(t, `rate(x{service="api"}[1m30s])`, q)
}

func TestGRPCHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("mlserve.Predictor", healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := NewGRPCHealth(lis.Addr().String(), "")
	require.NoError(t, err)
	defer h.Close()

	ok, detail, err := h.ProbeHealth(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "SERVING", detail)

	pred, err := NewGRPCHealth(lis.Addr().String(), "mlserve.Predictor")
	require.NoError(t, err)
	defer pred.Close()

	ok, detail, err = pred.ProbeHealth(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "NOT_SERVING", detail)
}

func TestHTTPHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","message":"ML API is running"}`))
	}))
	defer srv.Close()

	h := NewHTTPHealth(probe.New(time.Second, 1, zap.NewNop()), srv.URL+"/health")
	ok, detail, err := h.ProbeHealth(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, detail, "healthy")
}

type blockingScale struct{}

func (blockingScale) ScaleState(ctx context.Context, _ domain.ServiceID) (domain.ScaleState, error) {
	<-ctx.Done()
	return domain.ScaleState{}, fmt.Errorf("%w: %v", domain.ErrCollaboratorUnavailable, ctx.Err())
}

func TestReporter_HungCollaboratorsTimeOut(t *testing.T) {
	prom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(prom.Close)

	src, err := NewPrometheusSource(prom.URL, "mlserve-api", infra.DefaultQueries(), zap.NewNop())
	require.NoError(t, err)

	r := NewReporter("http://localhost:8000", svc, 5*time.Minute,
		fakeHealth{healthy: true, detail: "healthy"}, blockingScale{}, src, zap.NewNop(),
		WithCallTimeout(100*time.Millisecond))

	done := make(chan domain.ServiceStatus, 1)
	go func() { done <- r.Gather(context.Background()) }()

	var st domain.ServiceStatus
	select {
	case st = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Gather blocked on a hung collaborator")
	}

	require.True(t, st.Healthy)
	require.Nil(t, st.CPUUtil)
	require.Nil(t, st.MemUtil)
	require.Nil(t, st.RequestCountWindow)
	require.Nil(t, st.AvgResponseTimeWindow)
	require.Nil(t, st.RunningTasks)
	require.Contains(t, st.Unavailable, domain.FieldCPU)
	require.Contains(t, st.Unavailable, domain.FieldAvgResponseTime)
	require.Contains(t, st.Unavailable[domain.FieldScaling], "deadline exceeded")
	require.NotContains(t, st.Unavailable, domain.FieldHealth)
}

func TestReporter_CallTimeoutOption(t *testing.T) {
	r := NewReporter("http://localhost:8000", svc, time.Minute, nil, nil, nil, zap.NewNop())
	require.Equal(t, DefaultCallTimeout, r.callTimeout)

	r = NewReporter("http://localhost:8000", svc, time.Minute, nil, nil, nil, zap.NewNop(), WithCallTimeout(0))
	require.Equal(t, DefaultCallTimeout, r.callTimeout)

	r = NewReporter("http://localhost:8000", svc, time.Minute, nil, nil, nil, zap.NewNop(), WithCallTimeout(3*time.Second))
	require.Equal(t, 3*time.Second, r.callTimeout)
}
