package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// GuardSettings — внешняя политика для коллабораторов. Сам Reporter не ретраит.
type GuardSettings struct {
	Name     string
	Attempts uint          // 1 — без повторов
	Delay    time.Duration // пауза между попытками
	Failures uint32        // подряд отказов до размыкания
	Timeout  time.Duration // сколько держим цепь разомкнутой
}

// Guard — предохранитель + ретраи вокруг вызова коллаборатора.
type Guard struct {
	cb       *gobreaker.CircuitBreaker
	attempts uint
	delay    time.Duration
}

func NewGuard(s GuardSettings) *Guard {
	attempts := s.Attempts
	if attempts == 0 {
		attempts = 1 // 0 в retry-go значит "бесконечно"
	}
	failures := s.Failures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Пустое окно метрик — ответ, а не отказ источника
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNoDatapoint)
		},
	})

	return &Guard{cb: cb, attempts: attempts, delay: s.Delay}
}

func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(g.attempts),
			retry.Delay(g.delay),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return !errors.Is(err, domain.ErrNoDatapoint)
			}),
		)
		return nil, r.Do(func() error { return fn(ctx) })
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrCollaboratorUnavailable, err)
	}
	return err
}

// State — текущее состояние предохранителя (для метрик и логов).
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}

// GuardedScale оборачивает ScaleSource в Guard.
type GuardedScale struct {
	next  ScaleSource
	guard *Guard
}

func NewGuardedScale(next ScaleSource, g *Guard) *GuardedScale {
	return &GuardedScale{next: next, guard: g}
}

func (s *GuardedScale) ScaleState(ctx context.Context, id domain.ServiceID) (domain.ScaleState, error) {
	var out domain.ScaleState
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.next.ScaleState(ctx, id)
		return err
	})
	return out, err
}

// GuardedMetrics оборачивает MetricSource в Guard.
type GuardedMetrics struct {
	next  MetricSource
	guard *Guard
}

func NewGuardedMetrics(next MetricSource, g *Guard) *GuardedMetrics {
	return &GuardedMetrics{next: next, guard: g}
}

func (s *GuardedMetrics) Metric(ctx context.Context, name string, window time.Duration) (float64, error) {
	var out float64
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.next.Metric(ctx, name, window)
		return err
	})
	return out, err
}
