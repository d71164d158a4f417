// Package cli собирает общие для loadtest и monitor зависимости:
// конфиг, логгер, подпись токенов и HTTP-пробер.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/mlserve-probe/internal/domain"
	"github.com/xela07ax/mlserve-probe/internal/infra"
	"github.com/xela07ax/mlserve-probe/internal/infra/auth"
	"github.com/xela07ax/mlserve-probe/internal/probe"
)

// Runtime — разрешенная конфигурация и логгер одного запуска CLI.
type Runtime struct {
	Config *infra.Config
	Logger *zap.Logger
}

// Setup читает конфиг, применяет переопределения из флагов и проверяет цель.
// Все это происходит до любой сетевой активности.
func Setup(configPath string, override func(*infra.Config) error) (*Runtime, error) {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		if err := override(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.ValidateTarget(); err != nil {
		return nil, err
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return &Runtime{Config: cfg, Logger: logger}, nil
}

// NewProber строит HTTP-пробер. Если задан ключ подписи, каждый запрос несет Bearer JWT.
func (rt *Runtime) NewProber(maxConns int, opts ...probe.Option) (*probe.Prober, error) {
	a := rt.Config.Auth
	if len(a.PrivateKey) > 0 {
		key, err := auth.ParseRSAPrivateKey(a.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: auth private key: %v", domain.ErrConfiguration, err)
		}
		opts = append(opts, probe.WithTokenSource(auth.NewSigner(key, a.Issuer, a.Subject, a.TokenTTL)))
		rt.Logger.Debug("requests will carry a signed bearer token", zap.String("issuer", a.Issuer))
	}
	return probe.New(rt.Config.Target.RequestTimeout, maxConns, rt.Logger, opts...), nil
}

func (rt *Runtime) Close() {
	_ = rt.Logger.Sync()
}

// SignalContext отменяется по SIGINT/SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// UsageErrors помечает ошибки разбора флагов как ErrUsage (код выхода 2).
func UsageErrors(cmd *cobra.Command) {
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", infra.ErrUsage, err)
	})
}

// UnknownMode — RunE для корневой команды: без режима или с неизвестным режимом это usage error.
func UnknownMode(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		_ = cmd.Help()
		return fmt.Errorf("%w: mode is required", infra.ErrUsage)
	}
	return fmt.Errorf("%w: unknown mode %q (run %s --help)", infra.ErrUsage, args[0], cmd.Name())
}

// Exit печатает ошибку и завершает процесс с кодом по ее виду.
func Exit(err error) {
	if err == nil {
		os.Exit(infra.ExitOK)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(infra.ExitCode(err))
}
