package domain

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

// Pacing определяет способ ограничения частоты запросов.
type Pacing string

const (
	// PacingOpenLoop — фиксированная пауза concurrency/target_rps после каждой итерации.
	// Задержка ответа из паузы не вычитается.
	PacingOpenLoop Pacing = "open-loop"
	// PacingTokenBucket — общий для всех воркеров token bucket.
	PacingTokenBucket Pacing = "token-bucket"
)

// ParsePacing разбирает значение из конфига/флагов. Пустая строка — open-loop.
func ParsePacing(s string) (Pacing, error) {
	switch Pacing(strings.ToLower(strings.TrimSpace(s))) {
	case "", PacingOpenLoop:
		return PacingOpenLoop, nil
	case PacingTokenBucket:
		return PacingTokenBucket, nil
	default:
		return "", fmt.Errorf("%w: unknown pacing %q (want open-loop or token-bucket)", ErrConfiguration, s)
	}
}

// LoadTestConfig неизменна в течение одного прогона.
type LoadTestConfig struct {
	TargetURL      string        `json:"target_url" yaml:"target_url"`
	Method         string        `json:"method" yaml:"method"`
	TargetRPS      float64       `json:"target_rps" yaml:"target_rps"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
	Concurrency    int           `json:"concurrency" yaml:"concurrency"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
	Pacing         Pacing        `json:"pacing" yaml:"pacing"`
	Payload        []byte        `json:"-" yaml:"-"`
}

func (c LoadTestConfig) Validate() error {
	if strings.TrimSpace(c.TargetURL) == "" {
		return fmt.Errorf("%w: target url is required", ErrConfiguration)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrConfiguration, c.Concurrency)
	}
	if c.TargetRPS <= 0 {
		return fmt.Errorf("%w: target rps must be > 0, got %v", ErrConfiguration, c.TargetRPS)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be > 0, got %v", ErrConfiguration, c.Duration)
	}
	if _, err := ParsePacing(string(c.Pacing)); err != nil {
		return err
	}
	return nil
}

// Interval — пауза воркера между итерациями в open-loop режиме.
// Умноженная на число воркеров, она дает примерно target_rps.
func (c LoadTestConfig) Interval() time.Duration {
	if c.TargetRPS <= 0 {
		return 0
	}
	ns := float64(c.Concurrency) / c.TargetRPS * float64(time.Second)
	// Крошечный rps переполняет int64: отрицательная пауза отключила бы ограничение
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// RequestMethod возвращает метод запроса: POST по умолчанию.
func (c LoadTestConfig) RequestMethod() string {
	if c.Method == "" {
		return http.MethodPost
	}
	return c.Method
}
