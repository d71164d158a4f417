package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/xela07ax/mlserve-probe/internal/cli"
	"github.com/xela07ax/mlserve-probe/internal/infra"
)

type options struct {
	configPath string
	url        string
	window     time.Duration
	out        string
	listen     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "monitor <health|test|metrics|report|info|serve>",
		Short: "Health and metrics reporter for the model-serving API",
		Long: `Gathers liveness, scaling state, resource utilization and traffic
for the deployed service and prints a point-in-time status report.
A failing collaborator marks only its fields as unavailable.

Modes:
  health   liveness only, exit 3 if unhealthy
  test     one prediction round trip with latency
  metrics  scaling, resource and traffic sections
  report   full status report
  info     service info and resolved configuration
  serve    HTTP server with /health, /status and /metrics`,
		Args:          cobra.ArbitraryArgs,
		RunE:          cli.UnknownMode,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "path to probe.yaml (default: ./probe.yaml or ./configs/probe.yaml)")
	f.StringVar(&opts.url, "url", "", "base URL of the service (overrides target.url)")
	f.DurationVar(&opts.window, "window", 0, "trailing metrics window (overrides monitor.window)")
	f.StringVar(&opts.out, "out", "", "also write the report to a .json or .yaml file")

	cli.UsageErrors(cmd)
	cmd.AddCommand(newHealthCmd(opts))
	cmd.AddCommand(newTestCmd(opts))
	cmd.AddCommand(newMetricsCmd(opts))
	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newInfoCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	return cmd
}

func applyFlags(cmd *cobra.Command, opts *options) func(*infra.Config) error {
	return func(cfg *infra.Config) error {
		flags := cmd.Flags()
		if flags.Changed("url") {
			cfg.Target.URL = opts.url
		}
		if flags.Changed("window") {
			cfg.Monitor.Window = opts.window
		}
		if flags.Changed("listen") {
			cfg.Monitor.Listen = opts.listen
		}
		return nil
	}
}

func Execute() {
	cli.Exit(newRootCmd().Execute())
}
