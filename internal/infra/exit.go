package infra

import (
	"errors"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// ErrUsage — неизвестный режим или некорректные флаги CLI.
var ErrUsage = errors.New("usage error")

// Коды выхода процесса.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitUsage        = 2 // usage и конфигурация: до сети
	ExitPrecondition = 3
)

// ExitCode сопоставляет ошибку верхнего уровня коду выхода.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage), errors.Is(err, domain.ErrConfiguration):
		return ExitUsage
	case errors.Is(err, domain.ErrPreconditionFailed):
		return ExitPrecondition
	default:
		return ExitFailure
	}
}
