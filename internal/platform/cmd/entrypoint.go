// Package cmd holds the parse-then-run plumbing shared by forge commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/louisbranch/espritforge/internal/platform/config"
	"github.com/louisbranch/espritforge/internal/platform/logging"
	"github.com/louisbranch/espritforge/internal/platform/otel"
	"github.com/louisbranch/espritforge/internal/platform/timeouts"
)

// ServiceForge identifies the fusion/awakening service in telemetry and logs.
const ServiceForge = "forge"

// RunOptions tunes RunWithTelemetry.
type RunOptions struct {
	// ShutdownTimeout bounds the tracer flush. Zero uses timeouts.Shutdown.
	ShutdownTimeout time.Duration
	// Logger receives lifecycle entries. Nil discards them.
	Logger *zap.Logger
}

// ParseConfig fills cfg from environment variables. Flags registered
// afterwards use the parsed values as their defaults.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses args with fs; nil args parse as empty.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry installs the tracer provider for service, calls run and
// flushes spans once run returns.
func RunWithTelemetry(ctx context.Context, service string, opts RunOptions, run func(context.Context) error) (err error) {
	service = strings.TrimSpace(service)
	switch {
	case service == "":
		return errors.New("service name is required")
	case run == nil:
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.OrNop(opts.Logger)

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("set up telemetry: %w", err)
	}
	defer func() {
		timeout := opts.ShutdownTimeout
		if timeout <= 0 {
			timeout = timeouts.Shutdown
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if shutdownErr := shutdown(flushCtx); shutdownErr != nil {
			logger.Warn("telemetry shutdown", zap.Error(shutdownErr))
		}
	}()

	start := time.Now()
	logger.Info("service starting")
	err = run(ctx)
	logger.Info("service stopped", zap.Duration("uptime", time.Since(start)), zap.Error(err))
	return err
}
