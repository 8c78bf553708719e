// Package forge parses forge command flags and starts the forge runtime.
package forge

import (
	"context"
	"flag"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	entrypoint "github.com/louisbranch/espritforge/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/espritforge/internal/platform/grpc"
	"github.com/louisbranch/espritforge/internal/platform/logging"
	forgeservice "github.com/louisbranch/espritforge/internal/services/forge/api/grpc/forge"
	server "github.com/louisbranch/espritforge/internal/services/forge/app"
)

// Config holds forge command configuration.
type Config struct {
	Port           int           `env:"PORT" envDefault:"8095"`
	Addr           string        `env:"ADDR"`
	DBPath         string        `env:"DB_PATH" envDefault:"data/forge.db"`
	CatalogPath    string        `env:"CATALOG_PATH"`
	MaxFusionTier  int           `env:"MAX_FUSION_TIER" envDefault:"18"`
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool          `env:"LOG_DEVELOPMENT"`

	// HealthCheck probes a running server instead of starting one.
	HealthCheck        bool
	HealthCheckTimeout time.Duration
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The forge server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The forge server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database file")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "YAML catalog file (defaults to the embedded catalog)")
	fs.IntVar(&cfg.MaxFusionTier, "max-fusion-tier", cfg.MaxFusionTier, "Exclusive ceiling on fusion input tier")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "How long power and collection snapshots are served")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.LogDevelopment, "log-dev", cfg.LogDevelopment, "Use the development log encoder")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "Probe the server health endpoint and exit")
	fs.DurationVar(&cfg.HealthCheckTimeout, "healthcheck-timeout", 3*time.Second, "Health probe timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.MaxFusionTier < 2 {
		return Config{}, fmt.Errorf("max fusion tier must be at least 2, got %d", cfg.MaxFusionTier)
	}
	if cfg.CacheTTL < 0 {
		return Config{}, fmt.Errorf("cache ttl must not be negative, got %v", cfg.CacheTTL)
	}
	return cfg, nil
}

// ListenAddr returns Addr, or ":<Port>" when Addr is empty.
func (c Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return ":" + strconv.Itoa(c.Port)
}

// DialAddr returns the address a local probe should dial.
func (c Config) DialAddr() string {
	host, port, err := net.SplitHostPort(c.ListenAddr())
	if err != nil {
		return c.ListenAddr()
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// Run starts the forge service, or probes it when HealthCheck is set.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
		Service:     entrypoint.ServiceForge,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.HealthCheck {
		return Probe(ctx, cfg, logger)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceForge, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			Addr:          cfg.ListenAddr(),
			DBPath:        cfg.DBPath,
			CatalogPath:   cfg.CatalogPath,
			MaxFusionTier: cfg.MaxFusionTier,
			CacheTTL:      cfg.CacheTTL,
			Logger:        logger,
		})
	})
}

// Probe dials the configured server and waits for the forge service to
// report SERVING.
func Probe(ctx context.Context, cfg Config, logger *zap.Logger) error {
	conn, err := platformgrpc.Dial(ctx, cfg.DialAddr(), platformgrpc.DialOptions{
		Timeout:       cfg.HealthCheckTimeout,
		HealthService: forgeservice.ServiceName,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	return conn.Close()
}
