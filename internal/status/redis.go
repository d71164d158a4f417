package status

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/xela07ax/mlserve-probe/internal/domain"
	"github.com/xela07ax/mlserve-probe/internal/infra"
)

// hashReader — та часть клиента Redis, которая нужна источнику.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// RedisScaleSource читает состояние масштабирования из hash <ns>:scale:<cluster>:<service>
// с полями running и desired. Hash пишет скрипт деплоя/оркестратор.
type RedisScaleSource struct {
	rdb       hashReader
	namespace string
}

func NewRedisScaleSource(rdb hashReader, namespace string) *RedisScaleSource {
	return &RedisScaleSource{rdb: rdb, namespace: namespace}
}

func (s *RedisScaleSource) ScaleState(ctx context.Context, id domain.ServiceID) (domain.ScaleState, error) {
	key := infra.ScaleStateKey(s.namespace, id.Cluster, id.Service)

	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.ScaleState{}, fmt.Errorf("%w: redis: %v", domain.ErrCollaboratorUnavailable, err)
	}
	if len(fields) == 0 {
		return domain.ScaleState{}, fmt.Errorf("%w: key %s is empty", domain.ErrNoDatapoint, key)
	}

	running, err := intField(fields, "running")
	if err != nil {
		return domain.ScaleState{}, err
	}
	desired, err := intField(fields, "desired")
	if err != nil {
		return domain.ScaleState{}, err
	}
	return domain.ScaleState{RunningTasks: running, DesiredTasks: desired}, nil
}

func intField(fields map[string]string, name string) (int, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: field %q missing", domain.ErrNoDatapoint, name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: field %q is not an integer: %q", domain.ErrCollaboratorUnavailable, name, raw)
	}
	return n, nil
}
