package domain

import (
	"fmt"
	"time"
)

// Outcome — классификация одного запроса к сервису.
type Outcome int

const (
	OutcomeSuccess        Outcome = iota // любой 2xx
	OutcomeHTTPError                     // ответ получен, но код не 2xx
	OutcomeTransportError                // отказ соединения, DNS, таймаут
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText нужен, чтобы в JSON/YAML отчетах исход был читаемой строкой.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ProbeResult — зафиксированный результат одного запроса. После записи в Recorder не меняется.
type ProbeResult struct {
	WorkerID   int           `json:"worker_id"`
	RequestID  string        `json:"request_id"`
	StartedAt  time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed"`
	Outcome    Outcome       `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"`
	Err        string        `json:"error,omitempty"`

	// Тело ответа сохраняется только в одиночных режимах (single/test)
	Body []byte `json:"-"`
}

// CompletedAt — момент получения полного ответа (или отказа транспорта).
func (r ProbeResult) CompletedAt() time.Time {
	return r.StartedAt.Add(r.Elapsed)
}

// HasLatency сообщает, участвует ли результат в статистике задержек.
// Транспортные ошибки измеримой задержки не имеют.
func (r ProbeResult) HasLatency() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeHTTPError
}
