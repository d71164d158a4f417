package engine

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// Pacer — пауза воркера после итерации. Ошибка означает, что новых итераций не будет.
type Pacer interface {
	Pause(ctx context.Context) error
}

// NewPacer выбирает стратегию ограничения частоты по конфигу прогона.
func NewPacer(cfg domain.LoadTestConfig) (Pacer, error) {
	pacing, err := domain.ParsePacing(string(cfg.Pacing))
	if err != nil {
		return nil, err
	}
	switch pacing {
	case domain.PacingTokenBucket:
		// Один bucket на весь пул: воркеры делят общий бюджет target_rps
		return &tokenBucketPacer{limiter: rate.NewLimiter(rate.Limit(cfg.TargetRPS), 1)}, nil
	default:
		return openLoopPacer{interval: cfg.Interval()}, nil
	}
}

// openLoopPacer спит фиксированный интервал. Задержка ответа не вычитается,
// поэтому при медленном сервисе фактическая частота ниже целевой.
type openLoopPacer struct {
	interval time.Duration
}

func (p openLoopPacer) Pause(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.interval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type tokenBucketPacer struct {
	limiter *rate.Limiter
}

// Pause ждет токен. Если токен не успеет до дедлайна, Wait вернет ошибку сразу.
func (p *tokenBucketPacer) Pause(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
