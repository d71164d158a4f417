package main

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/mlserve-probe/internal/cli"
	"github.com/xela07ax/mlserve-probe/internal/domain"
	"github.com/xela07ax/mlserve-probe/internal/infra/auth"
	"github.com/xela07ax/mlserve-probe/internal/monitor"
	"github.com/xela07ax/mlserve-probe/internal/probe"
	"github.com/xela07ax/mlserve-probe/internal/status"
)

// buildReporter собирает коллабораторов по конфигу. Неуказанный адрес — Unconfigured,
// отчет все равно строится. Возвращает функцию освобождения соединений.
func buildReporter(rt *cli.Runtime, prober *probe.Prober) (*status.Reporter, func(), error) {
	cfg := rt.Config
	mon := cfg.Monitor
	var closers []func() error

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				rt.Logger.Debug("close collaborator", zap.Error(err))
			}
		}
	}

	// 1. Liveness: HTTP /health или grpc.health.v1
	var health status.HealthProber
	switch strings.ToLower(mon.HealthProtocol) {
	case "", "http":
		health = status.NewHTTPHealth(prober, cfg.Target.Endpoint(cfg.Target.HealthPath))
	case "grpc":
		if cfg.Target.GRPCHealthAddr == "" {
			return nil, cleanup, fmt.Errorf("%w: monitor.health_protocol=grpc requires target.grpc_health_addr", domain.ErrConfiguration)
		}
		gh, err := status.NewGRPCHealth(cfg.Target.GRPCHealthAddr, "")
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, gh.Close)
		health = gh
	default:
		return nil, cleanup, fmt.Errorf("%w: unknown health protocol %q", domain.ErrConfiguration, mon.HealthProtocol)
	}

	guard := func(name string) *status.Guard {
		return status.NewGuard(status.GuardSettings{
			Name:     name,
			Attempts: mon.RetryAttempts,
			Delay:    mon.RetryDelay,
			Failures: mon.BreakerFailures,
			Timeout:  mon.BreakerTimeout,
		})
	}

	// 2. Масштабирование: hash в Redis
	var scale status.ScaleSource = status.Unconfigured{Name: "scaling source (monitor.redis_addr)"}
	if mon.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     mon.RedisAddr,
			Password: mon.RedisPassword,
			DB:       mon.RedisDB,
		})
		closers = append(closers, rdb.Close)
		scale = status.NewGuardedScale(status.NewRedisScaleSource(rdb, mon.RedisNamespace), guard("scaling"))
	}

	// 3. Ресурсы и трафик: Prometheus
	var metrics status.MetricSource = status.Unconfigured{Name: "metrics source (monitor.prometheus_url)"}
	if mon.PrometheusURL != "" {
		src, err := status.NewPrometheusSource(mon.PrometheusURL, mon.Service, mon.Queries, rt.Logger)
		if err != nil {
			return nil, cleanup, err
		}
		metrics = status.NewGuardedMetrics(src, guard("metrics"))
	}

	reporter := status.NewReporter(cfg.Target.URL, mon.ServiceID(), mon.Window, health, scale, metrics, rt.Logger,
		status.WithCallTimeout(mon.CallTimeout))
	return reporter, cleanup, nil
}

// serverOptions закрывает /status проверкой JWT, если задан публичный ключ.
func serverOptions(rt *cli.Runtime) ([]monitor.ServerOption, error) {
	a := rt.Config.Auth
	if len(a.PublicKey) == 0 {
		return nil, nil
	}
	key, err := auth.ParseRSAPublicKey(a.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	rt.Logger.Info("status endpoints require bearer token", zap.String("issuer", a.Issuer))
	mw := auth.NewMiddleware(auth.NewVerifier(key, a.Issuer), rt.Logger.Named("auth"))
	return []monitor.ServerOption{monitor.WithAuth(mw)}, nil
}
