package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// HealthChecker — то, что умеет проверить /health (probe.Prober).
type HealthChecker interface {
	Health(ctx context.Context, url string) (bool, string, error)
}

// Preflight проверяет здоровье сервиса перед зависимым режимом.
// Повторы — внешняя политика: attempts попыток с паузой delay.
func Preflight(ctx context.Context, hc HealthChecker, url string, attempts uint, delay time.Duration, logger *zap.Logger) error {
	if attempts == 0 {
		attempts = 1
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("health check failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)

	err := r.Do(func() error {
		healthy, detail, err := hc.Health(ctx, url)
		if err != nil {
			return err
		}
		if !healthy {
			return fmt.Errorf("service unhealthy: %s", detail)
		}
		logger.Info("service is healthy", zap.String("detail", detail))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: health check %s: %v", domain.ErrPreconditionFailed, url, err)
	}
	return nil
}
