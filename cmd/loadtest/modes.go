package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/mlserve-probe/internal/cli"
	"github.com/xela07ax/mlserve-probe/internal/domain"
	"github.com/xela07ax/mlserve-probe/internal/engine"
	"github.com/xela07ax/mlserve-probe/internal/infra"
	"github.com/xela07ax/mlserve-probe/internal/probe"
	"github.com/xela07ax/mlserve-probe/internal/recorder"
	"github.com/xela07ax/mlserve-probe/internal/report"
	"github.com/xela07ax/mlserve-probe/internal/repository/postgres"
	"github.com/xela07ax/mlserve-probe/internal/stats"
)

const (
	modeHealth = "health"
	modeSingle = "single"
	modeStress = "stress"
	modeQuick  = "quick"
)

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   modeHealth,
		Short: "Probe the health endpoint once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := cli.Setup(opts.configPath, applyFlags(cmd, opts))
			if err != nil {
				return err
			}
			defer rt.Close()

			prober, err := rt.NewProber(1)
			if err != nil {
				return err
			}

			ctx, stop := cli.SignalContext(cmd.Context())
			defer stop()

			cfg := rt.Config
			st := domain.ServiceStatus{CheckedAt: time.Now(), Target: cfg.Target.URL, Service: cfg.Monitor.ServiceID()}
			healthy, detail, herr := prober.Health(ctx, cfg.Target.Endpoint(cfg.Target.HealthPath))
			if herr != nil {
				st.MarkUnavailable(domain.FieldHealth, herr)
				st.HealthDetail = herr.Error()
			} else {
				st.Healthy, st.HealthDetail = healthy, detail
			}

			if err := report.RenderStatus(cmd.OutOrStdout(), report.StatusReport{
				GeneratedAt: time.Now(),
				Mode:        modeHealth,
				Sections:    domain.SectionLiveness,
				Status:      st,
			}); err != nil {
				return err
			}
			if !st.Healthy {
				return fmt.Errorf("%w: service is not healthy: %s", domain.ErrPreconditionFailed, st.HealthDetail)
			}
			return nil
		},
	}
}

func newSingleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   modeSingle,
		Short: "Send one prediction request and validate the response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := cli.Setup(opts.configPath, applyFlags(cmd, opts))
			if err != nil {
				return err
			}
			defer rt.Close()

			payload, err := loadPayload(rt.Config.Load.PayloadFile)
			if err != nil {
				return err
			}
			prober, err := rt.NewProber(1)
			if err != nil {
				return err
			}

			ctx, stop := cli.SignalContext(cmd.Context())
			defer stop()

			if err := preflight(ctx, rt, prober, opts); err != nil {
				return err
			}

			url := rt.Config.Target.Endpoint(rt.Config.Target.PredictPath)
			pred, res, perr := prober.Predict(ctx, url, payload)

			out := report.PredictionReport{GeneratedAt: time.Now(), Mode: modeSingle, Target: url, Result: res}
			if perr != nil {
				out.Err = perr.Error()
			} else {
				out.Prediction = &pred
			}
			if err := report.RenderPrediction(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if perr != nil {
				return fmt.Errorf("single prediction failed: %w", perr)
			}
			return nil
		},
	}
}

func newRunCmd(opts *options, mode, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd, opts, mode)
		},
	}
	runFlags(cmd, opts)
	return cmd
}

func runLoad(cmd *cobra.Command, opts *options, mode string) error {
	// 1. Конфигурация: все проверки до сети
	rt, err := cli.Setup(opts.configPath, applyFlags(cmd, opts))
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config
	logger := rt.Logger

	lt, err := buildRunConfig(cmd, opts, cfg, mode)
	if err != nil {
		return err
	}
	if err := lt.Validate(); err != nil {
		return err
	}
	if err := report.CheckPath(opts.out); err != nil {
		return err
	}

	var probeOpts []probe.Option
	if cfg.Load.ValidateBody {
		probeOpts = append(probeOpts, probe.WithResponseCheck(func(body []byte) error {
			_, err := domain.DecodePrediction(body)
			return err
		}))
	}
	prober, err := rt.NewProber(lt.Concurrency, probeOpts...)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	// 2. Предусловие: сервис жив
	if err := preflight(ctx, rt, prober, opts); err != nil {
		return err
	}

	// 3. Метрики прогона
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)
	if cfg.Load.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.Load.MetricsAddr, reg, logger)
		defer shutdown()
	}

	// 4. Долговременное хранение результатов (опционально)
	poolOpts := []engine.PoolOption{
		engine.WithMetrics(metrics),
		engine.WithRecorderOptions(
			recorder.WithBatchSize(cfg.Records.BatchSize),
			recorder.WithFlushInterval(cfg.Records.FlushInterval),
			recorder.WithBufferSize(cfg.Records.BufferSize),
		),
	}
	if cfg.Records.DatabaseURL != "" {
		repo, err := openRecords(ctx, cfg.Records.DatabaseURL)
		if err != nil {
			// Без базы прогон все равно полезен: набор в памяти — источник истины
			logger.Warn("probe records disabled", zap.Error(err))
		} else {
			defer repo.Close()
			poolOpts = append(poolOpts, engine.WithStore(repo))
		}
	}

	// 5. Прогон
	run, err := engine.NewPool(prober, logger, poolOpts...).Run(ctx, lt)
	if err != nil {
		return err
	}

	// 6. Агрегация, оценка, отчет
	s := stats.Aggregate(run.Results)
	th := cfg.Thresholds
	verdict := stats.NewThresholds(
		th.Latency.Excellent, th.Latency.Good, th.Latency.Acceptable,
		th.Success.Excellent, th.Success.Good,
	).Evaluate(s)

	rep := report.LoadReport{
		GeneratedAt: run.FinishedAt,
		Mode:        mode,
		RunID:       run.ID,
		Config:      lt,
		Stats:       s,
		Verdict:     verdict,
	}
	if err := report.RenderLoad(cmd.OutOrStdout(), rep); err != nil {
		return err
	}
	if opts.out != "" {
		if err := report.WriteLoadFile(opts.out, rep); err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", opts.out))
	}
	return nil
}

// buildRunConfig берет пресет режима и накладывает флаги --rps/--duration/--concurrency.
func buildRunConfig(cmd *cobra.Command, opts *options, cfg *infra.Config, mode string) (domain.LoadTestConfig, error) {
	preset := cfg.Load.Quick
	if mode == modeStress {
		preset = cfg.Load.Stress
	}
	flags := cmd.Flags()
	if flags.Changed("rps") {
		preset.RPS = opts.rps
	}
	if flags.Changed("duration") {
		preset.Duration = opts.duration
	}
	if flags.Changed("concurrency") {
		preset.Concurrency = opts.concurrency
	}

	pacing, err := domain.ParsePacing(cfg.Load.Pacing)
	if err != nil {
		return domain.LoadTestConfig{}, err
	}
	payload, err := loadPayload(cfg.Load.PayloadFile)
	if err != nil {
		return domain.LoadTestConfig{}, err
	}

	return domain.LoadTestConfig{
		TargetURL:      cfg.Target.Endpoint(cfg.Target.PredictPath),
		Method:         http.MethodPost,
		TargetRPS:      preset.RPS,
		Duration:       preset.Duration,
		Concurrency:    preset.Concurrency,
		RequestTimeout: cfg.Target.RequestTimeout,
		Pacing:         pacing,
		Payload:        payload,
	}, nil
}

func loadPayload(path string) ([]byte, error) {
	if path == "" {
		return domain.SamplePayload(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read payload: %v", domain.ErrConfiguration, err)
	}
	return domain.ParsePayload(data)
}

func preflight(ctx context.Context, rt *cli.Runtime, prober *probe.Prober, opts *options) error {
	if opts.skipHealth {
		rt.Logger.Warn("health precondition skipped")
		return nil
	}
	cfg := rt.Config
	return cli.Preflight(ctx, prober, cfg.Target.Endpoint(cfg.Target.HealthPath),
		cfg.Load.HealthAttempts, cfg.Load.HealthDelay, rt.Logger)
}

func openRecords(ctx context.Context, dsn string) (*postgres.ProbeRepo, error) {
	repo, err := postgres.NewProbeRepo(dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

// serveMetrics отдает /metrics прогона и возвращает функцию остановки.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}
