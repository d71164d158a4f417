package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// LoadReport — все, что нужно для отчета нагрузочного прогона. Время генерации
// передает вызывающий, поэтому рендер детерминирован.
type LoadReport struct {
	GeneratedAt time.Time
	Mode        string
	RunID       string
	Config      domain.LoadTestConfig
	Stats       domain.AggregateStats
	Verdict     domain.Verdict
}

// StatusReport — отчет о состоянии сервиса. Sections задает, какие секции печатать.
type StatusReport struct {
	GeneratedAt time.Time
	Mode        string
	Sections    domain.Section
	Status      domain.ServiceStatus
}

// PredictionReport — один функциональный вызов /predict.
type PredictionReport struct {
	GeneratedAt time.Time
	Mode        string
	Target      string
	Result      domain.ProbeResult
	Prediction  *domain.PredictionResponse
	Err         string
}

// Setting — пара имя/значение для секции конфигурации в info.
type Setting struct {
	Name  string
	Value string
}

type InfoReport struct {
	GeneratedAt time.Time
	Target      string
	Info        *domain.ServiceInfo
	Err         string
	Settings    []Setting
}

// printer накапливает первую ошибку записи, чтобы не проверять каждую строку.
type printer struct {
	w   io.Writer
	p   *message.Printer
	err error
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, p: message.NewPrinter(language.English)}
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = p.p.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) field(name string, format string, args ...any) {
	p.line("%-28s "+format, append([]any{name + ":"}, args...)...)
}

func (p *printer) header(title string) {
	p.line("=== %s ===", title)
}

func (p *printer) section(title string) {
	p.line("")
	p.line("--- %s ---", title)
}

// RenderLoad печатает секции строго по порядку: заголовок, счетчики, расчетные показатели, вердикт.
func RenderLoad(w io.Writer, r LoadReport) error {
	p := newPrinter(w)
	cfg := r.Config
	s := r.Stats

	p.header("Load test report")
	p.field("Generated", "%s", timestamp(r.GeneratedAt))
	p.field("Mode", "%s", r.Mode)
	p.field("Run ID", "%s", r.RunID)
	p.field("Target", "%s %s", cfg.RequestMethod(), cfg.TargetURL)
	p.field("Target RPS", "%.2f", cfg.TargetRPS)
	p.field("Duration", "%s", cfg.Duration)
	p.field("Concurrency", "%d", cfg.Concurrency)
	p.field("Request timeout", "%s", cfg.RequestTimeout)
	p.field("Pacing", "%s", pacingName(cfg.Pacing))

	p.section("Requests")
	p.field("Total", "%d", s.Total)
	p.field("Success", "%d", s.SuccessCount)
	p.field("HTTP errors", "%d", s.HTTPErrorCount)
	p.field("Transport errors", "%d", s.TransportErrorCount)
	p.field("Errors total", "%d", s.ErrorCount)
	p.field("Status codes", "%s", statusCodes(p.p, s.StatusCodes))

	p.section("Rates")
	p.field("Success rate", "%.2f%%", s.SuccessRate*100)
	p.field("Achieved RPS", "%.2f (target %.2f)", s.AchievedRPS, cfg.TargetRPS)
	p.field("Observed span", "%s", s.Span.Round(time.Millisecond))
	if s.SuccessCount+s.HTTPErrorCount > 0 {
		p.field("Latency mean", "%s", ms(s.MeanLatency))
		p.field("Latency min / max", "%s / %s", ms(s.MinLatency), ms(s.MaxLatency))
		p.field("Latency p50 / p90", "%s / %s", ms(s.P50), ms(s.P90))
		p.field("Latency p95 / p99", "%s / %s", ms(s.P95), ms(s.P99))
	} else {
		p.field("Latency", "n/a (no responses received)")
	}

	p.section("Verdict")
	if r.Verdict.NoData {
		p.line("no data: no requests were completed")
	} else {
		p.field("Latency", "%s", r.Verdict.Latency)
		p.field("Success rate", "%s", r.Verdict.Success)
	}
	return p.err
}

// RenderStatus печатает выбранные секции: заголовок, liveness, scaling, resources, traffic.
// Недоступное поле печатается как "unavailable (<причина>)".
func RenderStatus(w io.Writer, r StatusReport) error {
	p := newPrinter(w)
	st := r.Status
	sections := r.Sections
	if sections == 0 {
		sections = domain.SectionsAll
	}

	p.header("Service status report")
	p.field("Generated", "%s", timestamp(r.GeneratedAt))
	p.field("Mode", "%s", r.Mode)
	p.field("Checked at", "%s", timestamp(st.CheckedAt))
	p.field("Target", "%s", st.Target)
	p.field("Service", "%s", st.Service)
	p.field("Window", "%s", st.Window)

	if sections.Has(domain.SectionLiveness) {
		p.section("Liveness")
		if reason, ok := st.Unavailable[domain.FieldHealth]; ok {
			p.field("Healthy", "no, unavailable (%s)", reason)
		} else {
			p.field("Healthy", "%s", yesNo(st.Healthy))
			if st.HealthDetail != "" {
				p.field("Detail", "%s", st.HealthDetail)
			}
		}
	}

	if sections.Has(domain.SectionScaling) {
		p.section("Scaling")
		p.field("Running tasks", "%s", intValue(p.p, st.RunningTasks, st.Unavailable[domain.FieldScaling]))
		p.field("Desired tasks", "%s", intValue(p.p, st.DesiredTasks, st.Unavailable[domain.FieldScaling]))
	}

	if sections.Has(domain.SectionResources) {
		p.section("Resources")
		p.field("CPU utilization", "%s", percentValue(p.p, st.CPUUtil, st.Unavailable[domain.FieldCPU]))
		p.field("Memory utilization", "%s", percentValue(p.p, st.MemUtil, st.Unavailable[domain.FieldMemory]))
	}

	if sections.Has(domain.SectionTraffic) {
		p.section("Traffic")
		count := unavailable(st.Unavailable[domain.FieldRequestCount])
		if st.RequestCountWindow != nil {
			count = p.p.Sprintf("%d", *st.RequestCountWindow)
		}
		p.field("Requests in window", "%s", count)

		avg := unavailable(st.Unavailable[domain.FieldAvgResponseTime])
		if st.AvgResponseTimeWindow != nil {
			avg = ms(time.Duration(*st.AvgResponseTimeWindow * float64(time.Second)))
		}
		p.field("Avg response time", "%s", avg)
	}
	return p.err
}

// RenderPrediction печатает результат одиночного вызова /predict.
func RenderPrediction(w io.Writer, r PredictionReport) error {
	p := newPrinter(w)
	res := r.Result

	p.header("Prediction check")
	p.field("Generated", "%s", timestamp(r.GeneratedAt))
	p.field("Mode", "%s", r.Mode)
	p.field("Target", "POST %s", r.Target)
	p.field("Request ID", "%s", res.RequestID)
	p.field("Outcome", "%s", res.Outcome)
	if res.StatusCode != 0 {
		p.field("Status code", "%d", res.StatusCode)
	}
	if res.Outcome != domain.OutcomeTransportError {
		p.field("Latency", "%s", ms(res.Elapsed))
	}

	p.section("Prediction")
	if r.Prediction == nil {
		p.field("Result", "failed (%s)", r.Err)
		return p.err
	}
	pred := r.Prediction
	p.field("Predicted class", "%d", pred.PredictedClass)
	p.field("Confidence", "%.4f", pred.Confidence)
	if pred.ModelVersion != "" {
		p.field("Model version", "%s", pred.ModelVersion)
	}
	if pred.FeaturesUsed != 0 {
		p.field("Features used", "%d", pred.FeaturesUsed)
	}
	for _, class := range slices.Sorted(maps.Keys(pred.Probabilities)) {
		p.field("P(class "+class+")", "%.4f", pred.Probabilities[class])
	}
	return p.err
}

// RenderInfo печатает ответ GET / и итоговую конфигурацию монитора.
func RenderInfo(w io.Writer, r InfoReport) error {
	p := newPrinter(w)

	p.header("Service info")
	p.field("Generated", "%s", timestamp(r.GeneratedAt))
	p.field("Target", "%s", r.Target)
	if r.Info == nil {
		p.field("Service", "%s", unavailable(r.Err))
	} else {
		p.field("Message", "%s", r.Info.Message)
		p.field("Version", "%s", r.Info.Version)
		p.field("Status", "%s", r.Info.Status)
		for _, name := range slices.Sorted(maps.Keys(r.Info.Endpoints)) {
			p.field("Endpoint "+name, "%s", r.Info.Endpoints[name])
		}
	}

	p.section("Configuration")
	for _, s := range r.Settings {
		p.field(s.Name, "%s", s.Value)
	}
	return p.err
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func pacingName(p domain.Pacing) string {
	if p == "" {
		return string(domain.PacingOpenLoop)
	}
	return string(p)
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.1f ms", float64(d)/float64(time.Millisecond))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func unavailable(reason string) string {
	if reason == "" {
		return "unavailable"
	}
	return "unavailable (" + reason + ")"
}

func intValue(p *message.Printer, v *int, reason string) string {
	if v == nil {
		return unavailable(reason)
	}
	return p.Sprintf("%d", *v)
}

func percentValue(p *message.Printer, v *float64, reason string) string {
	if v == nil {
		return unavailable(reason)
	}
	return p.Sprintf("%.2f%%", *v)
}

func statusCodes(p *message.Printer, codes map[int]int) string {
	if len(codes) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(codes))
	for _, code := range slices.Sorted(maps.Keys(codes)) {
		parts = append(parts, p.Sprintf("%d=%d", code, codes[code]))
	}
	return strings.Join(parts, " ")
}
