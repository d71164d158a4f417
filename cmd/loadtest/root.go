package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/xela07ax/mlserve-probe/internal/cli"
	"github.com/xela07ax/mlserve-probe/internal/infra"
)

type options struct {
	configPath  string
	url         string
	rps         float64
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	pacing      string
	payload     string
	out         string
	metricsAddr string
	skipHealth  bool
	validate    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "loadtest <health|single|stress|quick>",
		Short: "Load test harness for the model-serving API",
		Long: `Drives POST /predict at a target request rate and prints a report:
request counts, success rate, achieved RPS, latency percentiles and a verdict.

Modes:
  health   one health probe, exit 3 if unhealthy
  single   one prediction round trip with the sample payload
  stress   300 RPS for 60s with 12 workers (configurable)
  quick    10 RPS for 10s with 5 workers (configurable)`,
		Args:          cobra.ArbitraryArgs,
		RunE:          cli.UnknownMode,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "path to probe.yaml (default: ./probe.yaml or ./configs/probe.yaml)")
	f.StringVar(&opts.url, "url", "", "base URL of the service (overrides target.url)")
	f.DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (overrides target.request_timeout)")
	f.BoolVar(&opts.skipHealth, "skip-health", false, "skip the health precondition")
	f.StringVar(&opts.payload, "payload", "", "JSON file with the prediction features (default: built-in sample)")

	cli.UsageErrors(cmd)
	cmd.AddCommand(newHealthCmd(opts))
	cmd.AddCommand(newSingleCmd(opts))
	cmd.AddCommand(newRunCmd(opts, modeStress, "Sustained high-rate load test"))
	cmd.AddCommand(newRunCmd(opts, modeQuick, "Short low-rate load test"))
	return cmd
}

// runFlags — флаги, которые имеют смысл только для прогонов нагрузки.
func runFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.Float64Var(&opts.rps, "rps", 0, "target requests per second across all workers")
	f.DurationVar(&opts.duration, "duration", 0, "run duration")
	f.IntVar(&opts.concurrency, "concurrency", 0, "number of workers")
	f.StringVar(&opts.pacing, "pacing", "", "open-loop or token-bucket (overrides load.pacing)")
	f.StringVar(&opts.out, "out", "", "also write the report to a .json or .yaml file")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	f.BoolVar(&opts.validate, "validate-body", false, "count 2xx responses with a malformed prediction body as failures")
}

// applyFlags переносит явно заданные флаги поверх конфига.
func applyFlags(cmd *cobra.Command, opts *options) func(*infra.Config) error {
	return func(cfg *infra.Config) error {
		flags := cmd.Flags()
		if flags.Changed("url") {
			cfg.Target.URL = opts.url
		}
		if flags.Changed("timeout") {
			cfg.Target.RequestTimeout = opts.timeout
		}
		if flags.Changed("pacing") {
			cfg.Load.Pacing = opts.pacing
		}
		if flags.Changed("payload") {
			cfg.Load.PayloadFile = opts.payload
		}
		if flags.Changed("metrics-addr") {
			cfg.Load.MetricsAddr = opts.metricsAddr
		}
		if flags.Changed("validate-body") {
			cfg.Load.ValidateBody = opts.validate
		}
		return nil
	}
}

func Execute() {
	cli.Exit(newRootCmd().Execute())
}
