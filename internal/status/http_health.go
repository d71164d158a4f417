package status

import (
	"context"

	"github.com/xela07ax/mlserve-probe/internal/probe"
)

// HTTPHealth проверяет GET /health сервиса.
type HTTPHealth struct {
	prober *probe.Prober
	url    string
}

func NewHTTPHealth(prober *probe.Prober, url string) *HTTPHealth {
	return &HTTPHealth{prober: prober, url: url}
}

func (h *HTTPHealth) ProbeHealth(ctx context.Context) (bool, string, error) {
	return h.prober.Health(ctx, h.url)
}
