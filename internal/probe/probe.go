package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// maxBodyBytes — сколько тела ответа сохраняем в ProbeResult.Body.
const maxBodyBytes = 64 << 10

const userAgent = "mlserve-probe"

// TokenSource выдает bearer-токен для заголовка Authorization.
type TokenSource interface {
	Token() (string, error)
}

// Prober выполняет один замеренный запрос и классифицирует исход.
// Ошибки никогда не поднимаются наверх: любой отказ — это данные в ProbeResult.
type Prober struct {
	client   *http.Client
	tokens   TokenSource
	keepBody bool
	check    func([]byte) error
	logger   *zap.Logger
}

type Option func(*Prober)

// WithTokenSource добавляет Authorization: Bearer к каждому запросу.
func WithTokenSource(ts TokenSource) Option {
	return func(p *Prober) { p.tokens = ts }
}

// WithBody сохраняет тело ответа (режимы single/test).
func WithBody() Option {
	return func(p *Prober) { p.keepBody = true }
}

// WithResponseCheck проверяет тело 2xx ответа в Probe. Не прошедший проверку
// ответ считается HTTPError: код сохраняется, причина попадает в Err.
func WithResponseCheck(check func([]byte) error) Option {
	return func(p *Prober) { p.check = check }
}

// WithHTTPClient подменяет клиент целиком (тесты, кастомный транспорт).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) { p.client = c }
}

// New создает пробер. timeout — таймаут одного запроса, не всего прогона,
// чтобы одно зависшее соединение не заблокировало воркер.
func New(timeout time.Duration, maxConns int, logger *zap.Logger, opts ...Option) *Prober {
	if maxConns < 1 {
		maxConns = 1
	}
	p := &Prober{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        maxConns * 2,
				MaxIdleConnsPerHost: maxConns * 2,
				IdleConnTimeout:     90 * time.Second,
			},
			// Редирект — это тоже ответ сервиса, классифицируем его сами
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.Named("probe"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe отправляет один запрос и замеряет время от отправки до полного ответа.
func (p *Prober) Probe(ctx context.Context, method, url string, payload []byte) domain.ProbeResult {
	if p.check == nil {
		return p.do(ctx, method, url, payload, p.keepBody)
	}

	res := p.do(ctx, method, url, payload, true)
	if res.Outcome == domain.OutcomeSuccess {
		if err := p.check(res.Body); err != nil {
			res.Outcome = domain.OutcomeHTTPError
			res.Err = "malformed body: " + err.Error()
		}
	}
	if !p.keepBody {
		res.Body = nil
	}
	return res
}

func (p *Prober) do(ctx context.Context, method, url string, payload []byte, keepBody bool) (res domain.ProbeResult) {
	res = domain.ProbeResult{
		RequestID: uuid.NewString(),
		StartedAt: time.Now(),
		Outcome:   domain.OutcomeTransportError,
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		res.Err = fmt.Sprintf("build request: %v", err)
		return res
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", res.RequestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.tokens != nil {
		tok, err := p.tokens.Token()
		if err != nil {
			res.Err = fmt.Sprintf("auth token: %v", err)
			return res
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	res.StartedAt = start
	resp, err := p.client.Do(req)
	if err != nil {
		res.Elapsed = time.Since(start)
		res.Err = describeTransportError(err)
		return res
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			p.logger.Debug("close response body", zap.Error(err))
		}
	}()

	// Ответ считается полученным только после вычитки тела
	var data []byte
	if keepBody {
		data, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err == nil {
			_, err = io.Copy(io.Discard, resp.Body)
		}
	} else {
		_, err = io.Copy(io.Discard, resp.Body)
	}
	res.Elapsed = time.Since(start)
	res.StatusCode = resp.StatusCode
	if err != nil {
		res.Err = "read body: " + describeTransportError(err)
		return res
	}

	res.Body = data
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res.Outcome = domain.OutcomeSuccess
	} else {
		res.Outcome = domain.OutcomeHTTPError
	}
	return res
}

func describeTransportError(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "timeout: " + err.Error()
	}
	return err.Error()
}

// Health выполняет GET /health. 200 — здоров, любой другой ответ — нет.
// Ошибка возвращается только при отказе транспорта.
func (p *Prober) Health(ctx context.Context, url string) (bool, string, error) {
	res := p.do(ctx, http.MethodGet, url, nil, true)
	switch {
	case res.Outcome == domain.OutcomeTransportError:
		return false, "", fmt.Errorf("health endpoint unreachable: %s", res.Err)
	case res.StatusCode != http.StatusOK:
		return false, fmt.Sprintf("HTTP %d %s", res.StatusCode, healthMessage(res.Body)), nil
	default:
		return true, healthMessage(res.Body), nil
	}
}

// healthMessage достает status/message из тела {"status": ..., "message": ...}.
func healthMessage(body []byte) string {
	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch {
	case payload.Status != "" && payload.Message != "":
		return payload.Status + ": " + payload.Message
	case payload.Status != "":
		return payload.Status
	default:
		return payload.Message
	}
}

// Predict — один функциональный вызов POST /predict с проверкой тела ответа.
func (p *Prober) Predict(ctx context.Context, url string, payload []byte) (domain.PredictionResponse, domain.ProbeResult, error) {
	res := p.do(ctx, http.MethodPost, url, payload, true)
	switch res.Outcome {
	case domain.OutcomeTransportError:
		return domain.PredictionResponse{}, res, fmt.Errorf("predict request failed: %s", res.Err)
	case domain.OutcomeHTTPError:
		return domain.PredictionResponse{}, res, fmt.Errorf("predict returned HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(res.Body)))
	}
	pred, err := domain.DecodePrediction(res.Body)
	if err != nil {
		return domain.PredictionResponse{}, res, err
	}
	return pred, res, nil
}

// Info запрашивает корневой эндпоинт сервиса.
func (p *Prober) Info(ctx context.Context, url string) (domain.ServiceInfo, error) {
	res := p.do(ctx, http.MethodGet, url, nil, true)
	if res.Outcome != domain.OutcomeSuccess {
		if res.Err != "" {
			return domain.ServiceInfo{}, fmt.Errorf("info request failed: %s", res.Err)
		}
		return domain.ServiceInfo{}, fmt.Errorf("info returned HTTP %d", res.StatusCode)
	}
	var info domain.ServiceInfo
	if err := json.Unmarshal(res.Body, &info); err != nil {
		return domain.ServiceInfo{}, fmt.Errorf("decode service info: %w", err)
	}
	return info, nil
}
