package status

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// GRPCHealth опрашивает стандартный grpc.health.v1.Health сервиса.
type GRPCHealth struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	service string // пусто — здоровье сервера целиком
}

// NewGRPCHealth не устанавливает соединение сразу: grpc подключается лениво, на первом Check.
func NewGRPCHealth(addr, service string) (*GRPCHealth, error) {
	// В проде адрес приходит из конфига; TLS терминируется на балансировщике
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: grpc health client for %s: %v", domain.ErrConfiguration, addr, err)
	}
	return &GRPCHealth{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		service: service,
	}, nil
}

func (h *GRPCHealth) ProbeHealth(ctx context.Context) (bool, string, error) {
	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{Service: h.service})
	if err != nil {
		return false, "", fmt.Errorf("grpc health check: %w", err)
	}
	st := resp.GetStatus()
	return st == healthpb.HealthCheckResponse_SERVING, st.String(), nil
}

func (h *GRPCHealth) Close() error {
	return h.conn.Close()
}
