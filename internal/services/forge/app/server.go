// Package server hosts the forge gRPC runtime: it opens the SQLite store,
// loads the catalog, wires the engine and serves the forge service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/espritforge/internal/platform/logging"
	"github.com/louisbranch/espritforge/internal/platform/timeouts"
	"github.com/louisbranch/espritforge/internal/services/forge/api/grpc/forge"
	grpcmeta "github.com/louisbranch/espritforge/internal/services/forge/api/grpc/metadata"
	"github.com/louisbranch/espritforge/internal/services/forge/audit"
	"github.com/louisbranch/espritforge/internal/services/forge/cache"
	"github.com/louisbranch/espritforge/internal/services/forge/catalog"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/fusion"
	"github.com/louisbranch/espritforge/internal/services/forge/engine"
	storagesqlite "github.com/louisbranch/espritforge/internal/services/forge/storage/sqlite"
)

// Config describes one forge runtime.
type Config struct {
	// Addr is the listen address, e.g. ":8095" or "127.0.0.1:0".
	Addr string
	// DBPath is the SQLite file. Empty uses data/forge.db.
	DBPath string
	// CatalogPath is a YAML catalog file. Empty uses the embedded catalog.
	CatalogPath string
	// MaxFusionTier caps fusion input tiers. Zero keeps the table maximum.
	MaxFusionTier int
	// CacheTTL bounds how long power and collection snapshots are served.
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// Server hosts the forge gRPC service.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *storagesqlite.Store
	logger     *zap.Logger
}

// New creates a configured forge server listening on cfg.Addr.
func New(ctx context.Context, cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	srv, err := NewWithListener(ctx, listener, cfg)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	return srv, nil
}

// NewWithListener builds the server around an existing listener. The
// listener is owned by the server once this returns without error.
func NewWithListener(ctx context.Context, listener net.Listener, cfg Config) (*Server, error) {
	if listener == nil {
		return nil, errors.New("listener is required")
	}
	logger := logging.OrNop(cfg.Logger)

	rules := fusion.DefaultRules()
	if cfg.MaxFusionTier > 0 {
		rules = fusion.Rules{Chart: element.DefaultChart, MaxTier: cfg.MaxFusionTier}
	}
	if err := checkChart(rules.Normalized().Chart); err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := loadCatalog(ctx, store, cfg.CatalogPath, logger); err != nil {
		_ = store.Close()
		return nil, err
	}

	var cacheOpts []cache.Option
	if cfg.CacheTTL > 0 {
		cacheOpts = append(cacheOpts, cache.WithTTL(cfg.CacheTTL))
	}
	snapshots := cache.New(store, cacheOpts...)

	forgeEngine, err := engine.New(store,
		engine.WithRules(rules),
		engine.WithCache(snapshots),
		engine.WithTransactionLog(audit.Fanout{
			audit.StoreSink{Store: store},
			audit.LoggerSink{Logger: logger.Named("audit")},
		}),
		engine.WithLogger(logger.Named("engine")),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	service, err := forge.NewService(forge.Deps{Engine: forgeEngine, Store: store, Snapshots: snapshots})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build forge service: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcmeta.UnaryServerInterceptor(nil, logger.Named("grpc"))),
	)
	forge.Register(grpcServer, service)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(forge.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		logger:     logger,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a forge server until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve blocks until the server stops or ctx ends, then closes the store.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeStore()

	s.logger.Info("forge server listening", zap.String("addr", s.Addr()))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(timeouts.Shutdown):
			s.logger.Warn("graceful stop timed out", zap.Duration("timeout", timeouts.Shutdown))
			s.grpcServer.Stop()
		}
		return handleErr(<-serveErr)
	case err := <-serveErr:
		return handleErr(err)
	}
}

func openStore(ctx context.Context, path string) (*storagesqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "forge.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := storagesqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}

// checkChart fails when any cross-element pair has no chart entry.
func checkChart(chart *element.Chart) error {
	if chart == nil {
		return errors.New("fusion chart is not configured")
	}
	if missing := chart.Complete(); len(missing) > 0 {
		return fmt.Errorf("fusion chart is missing %d pairs: %v", len(missing), missing)
	}
	return nil
}

func loadCatalog(ctx context.Context, store *storagesqlite.Store, path string, logger *zap.Logger) error {
	source := "embedded"
	bases, err := catalog.Default()
	if path = strings.TrimSpace(path); path != "" {
		source = path
		bases, err = catalog.Load(path)
	}
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := store.PutBases(ctx, bases); err != nil {
		return fmt.Errorf("store catalog: %w", err)
	}
	empty := catalog.EmptyCells(bases)
	logger.Info("catalog loaded",
		zap.String("source", source),
		zap.Int("bases", len(bases)),
		zap.Int("empty_cells", len(empty)),
	)
	for _, cell := range empty {
		logger.Debug("catalog cell has no base", zap.Int("tier", cell.Tier), zap.String("element", string(cell.Element)))
	}
	return nil
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close forge store", zap.Error(err))
	}
}
