package status

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// HealthProber отвечает на вопрос "жив ли сервис". Ошибка — проверить не удалось.
type HealthProber interface {
	ProbeHealth(ctx context.Context) (healthy bool, detail string, err error)
}

// ScaleSource — коллаборатор состояния масштабирования (сколько задач запущено и сколько нужно).
type ScaleSource interface {
	ScaleState(ctx context.Context, id domain.ServiceID) (domain.ScaleState, error)
}

// MetricSource — коллаборатор метрик. Возвращает среднее/сумму за окно
// или ErrNoDatapoint, если точек нет.
type MetricSource interface {
	Metric(ctx context.Context, name string, window time.Duration) (float64, error)
}

// Unconfigured заменяет коллаборатора, для которого не задан адрес.
// Любой вызов сразу возвращает ErrCollaboratorUnavailable.
type Unconfigured struct {
	Name string
}

func (u Unconfigured) ScaleState(context.Context, domain.ServiceID) (domain.ScaleState, error) {
	return domain.ScaleState{}, u.err()
}

func (u Unconfigured) Metric(context.Context, string, time.Duration) (float64, error) {
	return 0, u.err()
}

func (u Unconfigured) ProbeHealth(context.Context) (bool, string, error) {
	return false, "", u.err()
}

func (u Unconfigured) err() error {
	return fmt.Errorf("%w: %s is not configured", domain.ErrCollaboratorUnavailable, u.Name)
}
