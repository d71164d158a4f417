package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// CheckPath проверяет расширение файла отчета до запуска прогона.
func CheckPath(path string) error {
	if path == "" {
		return nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return nil
	default:
		return fmt.Errorf("%w: report file %q must end with .json, .yaml or .yml", domain.ErrConfiguration, path)
	}
}

// Машиночитаемые копии отчетов: длительности в миллисекундах, доли в процентах.

type loadDocument struct {
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	Mode        string         `json:"mode" yaml:"mode"`
	RunID       string         `json:"run_id" yaml:"run_id"`
	Config      loadConfigDoc  `json:"config" yaml:"config"`
	Requests    requestsDoc    `json:"requests" yaml:"requests"`
	Rates       ratesDoc       `json:"rates" yaml:"rates"`
	Verdict     domain.Verdict `json:"verdict" yaml:"verdict"`
}

type loadConfigDoc struct {
	Target           string  `json:"target" yaml:"target"`
	Method           string  `json:"method" yaml:"method"`
	TargetRPS        float64 `json:"target_rps" yaml:"target_rps"`
	DurationMS       int64   `json:"duration_ms" yaml:"duration_ms"`
	Concurrency      int     `json:"concurrency" yaml:"concurrency"`
	RequestTimeoutMS int64   `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	Pacing           string  `json:"pacing" yaml:"pacing"`
}

type requestsDoc struct {
	Total           int         `json:"total" yaml:"total"`
	Success         int         `json:"success" yaml:"success"`
	HTTPErrors      int         `json:"http_errors" yaml:"http_errors"`
	TransportErrors int         `json:"transport_errors" yaml:"transport_errors"`
	Errors          int         `json:"errors" yaml:"errors"`
	StatusCodes     map[int]int `json:"status_codes" yaml:"status_codes"`
}

type ratesDoc struct {
	SuccessRatePct float64 `json:"success_rate_pct" yaml:"success_rate_pct"`
	AchievedRPS    float64 `json:"achieved_rps" yaml:"achieved_rps"`
	SpanMS         float64 `json:"span_ms" yaml:"span_ms"`
	MeanMS         float64 `json:"latency_mean_ms" yaml:"latency_mean_ms"`
	MinMS          float64 `json:"latency_min_ms" yaml:"latency_min_ms"`
	MaxMS          float64 `json:"latency_max_ms" yaml:"latency_max_ms"`
	P50MS          float64 `json:"latency_p50_ms" yaml:"latency_p50_ms"`
	P90MS          float64 `json:"latency_p90_ms" yaml:"latency_p90_ms"`
	P95MS          float64 `json:"latency_p95_ms" yaml:"latency_p95_ms"`
	P99MS          float64 `json:"latency_p99_ms" yaml:"latency_p99_ms"`
}

type statusDocument struct {
	GeneratedAt time.Time            `json:"generated_at" yaml:"generated_at"`
	Mode        string               `json:"mode" yaml:"mode"`
	WindowSec   float64              `json:"window_seconds" yaml:"window_seconds"`
	Status      domain.ServiceStatus `json:"status" yaml:"status"`
}

func (r LoadReport) document() loadDocument {
	s := r.Stats
	return loadDocument{
		GeneratedAt: r.GeneratedAt.UTC(),
		Mode:        r.Mode,
		RunID:       r.RunID,
		Config: loadConfigDoc{
			Target:           r.Config.TargetURL,
			Method:           r.Config.RequestMethod(),
			TargetRPS:        r.Config.TargetRPS,
			DurationMS:       r.Config.Duration.Milliseconds(),
			Concurrency:      r.Config.Concurrency,
			RequestTimeoutMS: r.Config.RequestTimeout.Milliseconds(),
			Pacing:           pacingName(r.Config.Pacing),
		},
		Requests: requestsDoc{
			Total:           s.Total,
			Success:         s.SuccessCount,
			HTTPErrors:      s.HTTPErrorCount,
			TransportErrors: s.TransportErrorCount,
			Errors:          s.ErrorCount,
			StatusCodes:     s.StatusCodes,
		},
		Rates: ratesDoc{
			SuccessRatePct: s.SuccessRate * 100,
			AchievedRPS:    s.AchievedRPS,
			SpanMS:         msFloat(s.Span),
			MeanMS:         msFloat(s.MeanLatency),
			MinMS:          msFloat(s.MinLatency),
			MaxMS:          msFloat(s.MaxLatency),
			P50MS:          msFloat(s.P50),
			P90MS:          msFloat(s.P90),
			P95MS:          msFloat(s.P95),
			P99MS:          msFloat(s.P99),
		},
		Verdict: r.Verdict,
	}
}

func (r StatusReport) document() statusDocument {
	return statusDocument{
		GeneratedAt: r.GeneratedAt.UTC(),
		Mode:        r.Mode,
		WindowSec:   r.Status.Window.Seconds(),
		Status:      r.Status,
	}
}

// WriteLoadFile сохраняет отчет прогона в JSON или YAML по расширению path.
func WriteLoadFile(path string, r LoadReport) error {
	return writeDocument(path, r.document())
}

// WriteStatusFile сохраняет отчет о состоянии в JSON или YAML по расширению path.
func WriteStatusFile(path string, r StatusReport) error {
	return writeDocument(path, r.document())
}

func writeDocument(path string, doc any) error {
	if err := CheckPath(path); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	default:
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

func msFloat(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
