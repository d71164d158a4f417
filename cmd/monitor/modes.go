package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/mlserve-probe/internal/cli"
	"github.com/xela07ax/mlserve-probe/internal/domain"
	"github.com/xela07ax/mlserve-probe/internal/monitor"
	"github.com/xela07ax/mlserve-probe/internal/report"
)

const (
	modeHealth  = "health"
	modeTest    = "test"
	modeMetrics = "metrics"
	modeReport  = "report"
	modeInfo    = "info"
	modeServe   = "serve"
)

// setup — общий пролог режимов: конфиг, проверка окна и файла отчета до сети.
func setup(cmd *cobra.Command, opts *options) (*cli.Runtime, error) {
	rt, err := cli.Setup(opts.configPath, applyFlags(cmd, opts))
	if err != nil {
		return nil, err
	}
	if rt.Config.Monitor.Window <= 0 {
		rt.Close()
		return nil, fmt.Errorf("%w: metrics window must be > 0", domain.ErrConfiguration)
	}
	if err := report.CheckPath(opts.out); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// statusCmd — режимы, которые собирают ServiceStatus и печатают выбранные секции.
func statusCmd(opts *options, mode, short string, sections domain.Section) *cobra.Command {
	return &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			prober, err := rt.NewProber(2)
			if err != nil {
				return err
			}
			reporter, cleanup, err := buildReporter(rt, prober)
			defer cleanup()
			if err != nil {
				return err
			}

			ctx, stop := cli.SignalContext(cmd.Context())
			defer stop()

			st := reporter.GatherSections(ctx, sections)
			rep := report.StatusReport{GeneratedAt: time.Now(), Mode: mode, Sections: sections, Status: st}
			if err := report.RenderStatus(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if opts.out != "" {
				if err := report.WriteStatusFile(opts.out, rep); err != nil {
					return err
				}
			}

			// Только режим health проверяет liveness как условие успеха
			if mode == modeHealth && !st.Healthy {
				return fmt.Errorf("%w: service is not healthy: %s", domain.ErrPreconditionFailed, st.HealthDetail)
			}
			return nil
		},
	}
}

func newHealthCmd(opts *options) *cobra.Command {
	return statusCmd(opts, modeHealth, "Check service liveness", domain.SectionLiveness)
}

func newMetricsCmd(opts *options) *cobra.Command {
	return statusCmd(opts, modeMetrics, "Show scaling, resource and traffic metrics", domain.SectionsMetrics)
}

func newReportCmd(opts *options) *cobra.Command {
	return statusCmd(opts, modeReport, "Full status report", domain.SectionsAll)
}

func newTestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   modeTest,
		Short: "Send one prediction request and report latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			cfg := rt.Config

			prober, err := rt.NewProber(1)
			if err != nil {
				return err
			}

			ctx, stop := cli.SignalContext(cmd.Context())
			defer stop()

			if err := cli.Preflight(ctx, prober, cfg.Target.Endpoint(cfg.Target.HealthPath),
				cfg.Load.HealthAttempts, cfg.Load.HealthDelay, rt.Logger); err != nil {
				return err
			}

			url := cfg.Target.Endpoint(cfg.Target.PredictPath)
			pred, res, perr := prober.Predict(ctx, url, domain.SamplePayload())

			rep := report.PredictionReport{GeneratedAt: time.Now(), Mode: modeTest, Target: url, Result: res}
			if perr != nil {
				rep.Err = perr.Error()
			} else {
				rep.Prediction = &pred
			}
			if err := report.RenderPrediction(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if perr != nil {
				return fmt.Errorf("prediction test failed: %w", perr)
			}
			return nil
		},
	}
}

func newInfoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   modeInfo,
		Short: "Show service info and resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			cfg := rt.Config

			prober, err := rt.NewProber(1)
			if err != nil {
				return err
			}

			ctx, stop := cli.SignalContext(cmd.Context())
			defer stop()

			rep := report.InfoReport{GeneratedAt: time.Now(), Target: cfg.Target.URL}
			info, ierr := prober.Info(ctx, cfg.Target.Endpoint(cfg.Target.InfoPath))
			if ierr != nil {
				rep.Err = ierr.Error()
			} else {
				rep.Info = &info
			}

			mon := cfg.Monitor
			rep.Settings = []report.Setting{
				{Name: "Predict endpoint", Value: cfg.Target.Endpoint(cfg.Target.PredictPath)},
				{Name: "Health endpoint", Value: cfg.Target.Endpoint(cfg.Target.HealthPath)},
				{Name: "Health protocol", Value: mon.HealthProtocol},
				{Name: "Request timeout", Value: cfg.Target.RequestTimeout.String()},
				{Name: "Service", Value: mon.ServiceID().String()},
				{Name: "Metrics window", Value: mon.Window.String()},
				{Name: "Metrics source", Value: configured(mon.PrometheusURL)},
				{Name: "Scaling source", Value: configured(mon.RedisAddr)},
				{Name: "Probe records", Value: strconv.FormatBool(cfg.Records.DatabaseURL != "")},
				{Name: "Bearer auth", Value: strconv.FormatBool(len(cfg.Auth.PrivateKey) > 0)},
				{Name: "Status auth", Value: strconv.FormatBool(len(cfg.Auth.PublicKey) > 0)},
				{Name: "Stress preset", Value: preset(cfg.Load.Stress.RPS, cfg.Load.Stress.Duration, cfg.Load.Stress.Concurrency)},
				{Name: "Quick preset", Value: preset(cfg.Load.Quick.RPS, cfg.Load.Quick.Duration, cfg.Load.Quick.Concurrency)},
			}
			return report.RenderInfo(cmd.OutOrStdout(), rep)
		},
	}
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   modeServe,
		Short: "Serve /health, /status and /metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			cfg := rt.Config
			logger := rt.Logger

			prober, err := rt.NewProber(4)
			if err != nil {
				return err
			}
			reporter, cleanup, err := buildReporter(rt, prober)
			defer cleanup()
			if err != nil {
				return err
			}

			ctx, stop := cli.SignalContext(cmd.Context())
			defer stop()

			// 1. Метрики процесса + gauge статуса
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			serverOpts, err := serverOptions(rt)
			if err != nil {
				return err
			}
			api := monitor.NewServer(reporter, reg, logger, serverOpts...)

			go api.RunRefresher(ctx, cfg.Monitor.RefreshInterval)

			srv := &http.Server{
				Addr:              cfg.Monitor.Listen,
				Handler:           api,
				ReadHeaderTimeout: 5 * time.Second,
			}

			// 2. HTTP сервер
			errCh := make(chan error, 1)
			go func() {
				logger.Info("monitor server started", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// 3. Graceful Shutdown
			select {
			case <-ctx.Done():
			case err, ok := <-errCh:
				if ok {
					return fmt.Errorf("monitor server: %w", err)
				}
			}
			logger.Info("monitor server stopping")

			// Даем 5 секунд на завершение запросов
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("monitor server shutdown: %w", err)
			}
			logger.Info("monitor server exited properly")
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.listen, "listen", "", "listen address (overrides monitor.listen)")
	return cmd
}

func configured(v string) string {
	if v == "" {
		return "not configured"
	}
	return v
}

func preset(rps float64, d time.Duration, concurrency int) string {
	return fmt.Sprintf("%g rps, %s, %d workers", rps, d, concurrency)
}
