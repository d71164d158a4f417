package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xela07ax/mlserve-probe/internal/domain"
	"github.com/xela07ax/mlserve-probe/internal/infra"
)

func startService(t *testing.T, health int) string {
	t.Helper()
	t.Chdir(t.TempDir())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(health)
			_, _ = w.Write([]byte(`{"status":"healthy","message":"ML API is running"}`))
		case "/predict":
			_, _ = w.Write([]byte(`{"predicted_class":0,"confidence":0.64,"model_version":"v1.0","features_used":36}`))
		case "/":
			_, _ = w.Write([]byte(`{"message":"ML prediction API","version":"1.0.0","status":"running","endpoints":{"predict":"/predict","health":"/health"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMonitor_Health(t *testing.T) {
	url := startService(t, http.StatusOK)
	out, err := execute("health", "--url", url)
	require.NoError(t, err)
	require.Contains(t, out, "--- Liveness ---")
	require.NotContains(t, out, "--- Scaling ---")

	url = startService(t, http.StatusInternalServerError)
	_, err = execute("health", "--url", url)
	require.ErrorIs(t, err, domain.ErrPreconditionFailed)
	require.Equal(t, infra.ExitPrecondition, infra.ExitCode(err))
}

// Коллабораторы метрик не настроены: отчет все равно строится, поля помечены unavailable
func TestMonitor_ReportWithoutCollaborators(t *testing.T) {
	url := startService(t, http.StatusOK)
	path := filepath.Join(t.TempDir(), "status.json")

	out, err := execute("report", "--url", url, "--window", "10m", "--out", path)
	require.NoError(t, err)
	require.Contains(t, out, "--- Liveness ---")
	require.Contains(t, out, "--- Resources ---")
	require.Contains(t, out, "unavailable (collaborator unavailable: metrics source")
	require.Contains(t, out, "10m0s")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		WindowSeconds float64              `json:"window_seconds"`
		Status        domain.ServiceStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, 600.0, doc.WindowSeconds)
	require.True(t, doc.Status.Healthy)
	require.Nil(t, doc.Status.CPUUtil)
	require.Contains(t, doc.Status.Unavailable, domain.FieldScaling)
}

func TestMonitor_MetricsFromPrometheus(t *testing.T) {
	url := startService(t, http.StatusOK)
	prom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1714564800,"37.5"]}]}}`))
	}))
	defer prom.Close()
	t.Setenv("MONITOR_PROMETHEUS_URL", prom.URL)

	out, err := execute("metrics", "--url", url)
	require.NoError(t, err)
	require.NotContains(t, out, "--- Liveness ---")
	require.Contains(t, out, "37.50%")
	require.Contains(t, out, "unavailable (collaborator unavailable: scaling source")
}

func TestMonitor_TestMode(t *testing.T) {
	url := startService(t, http.StatusOK)
	out, err := execute("test", "--url", url)
	require.NoError(t, err)
	require.Contains(t, out, "0.6400")
}

func TestMonitor_Info(t *testing.T) {
	url := startService(t, http.StatusOK)
	out, err := execute("info", "--url", url)
	require.NoError(t, err)
	require.Contains(t, out, "ML prediction API")
	require.Contains(t, out, "--- Configuration ---")
	require.Contains(t, out, "300 rps, 1m0s, 12 workers")
	require.Contains(t, out, "10 rps, 10s, 5 workers")
}

func TestMonitor_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute("dashboard")
	require.ErrorIs(t, err, infra.ErrUsage)

	_, err = execute("report", "--window", "0s")
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = execute("report", "--url", "")
	require.ErrorIs(t, err, domain.ErrConfiguration)

	t.Setenv("MONITOR_HEALTH_PROTOCOL", "grpc")
	_, err = execute("report")
	require.ErrorIs(t, err, domain.ErrConfiguration)
}
