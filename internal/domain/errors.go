package domain

import "errors"

var (
	// ErrConfiguration — не хватает цели/эндпоинта или параметры прогона некорректны.
	// Проверяется до любой сетевой активности.
	ErrConfiguration = errors.New("configuration error")

	// ErrPreconditionFailed — проверка здоровья перед зависимым режимом не прошла.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrCollaboratorUnavailable — внешний источник (метрики, масштабирование) не ответил.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrNoDatapoint — источник метрик ответил, но точек за окно нет.
	ErrNoDatapoint = errors.New("no datapoint")
)
