package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "mlserve"
)

// ScaleStateKey — hash с полями running/desired, который публикует скрипт деплоя.
// Формат: <ns>:scale:<cluster>:<service>
func ScaleStateKey(namespace, cluster, service string) string {
	if namespace == "" {
		namespace = RedisNamespace
	}
	return fmt.Sprintf("%s:scale:%s:%s", namespace, cluster, service)
}
