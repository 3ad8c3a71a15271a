package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/volo-kola/kola/internal/api"
	"github.com/volo-kola/kola/internal/app/progress"
	"github.com/volo-kola/kola/internal/domain"
	"github.com/volo-kola/kola/internal/health"
	"github.com/volo-kola/kola/internal/infra/postgres"
	"github.com/volo-kola/kola/internal/infra/sqlite"
	"github.com/volo-kola/kola/internal/logging"
)

// Store is a learner store the daemon can probe and close.
type Store interface {
	domain.Store
	health.Pinger
	Close() error
}

// Daemon is the core Kola runtime. It wires together all services.
type Daemon struct {
	Config   Config
	Log      *zap.Logger
	Store    Store
	Progress *progress.Service
	Health   *health.Checker
	Server   *api.Server
}

// New loads the config file and builds a Daemon from it.
func New(ctx context.Context) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	rules, err := cfg.Rules()
	if err != nil {
		store.Close()
		return nil, err
	}
	svc := progress.NewService(store, rules, progress.WithLogger(log))

	checker := health.NewChecker(store, log.Named("health"))
	checker.SetInterval(parseDuration(cfg.Telemetry.HealthInterval, health.DefaultInterval))

	srv := api.NewServer(svc, log.Named("http"))
	srv.SetHealth(checker)
	srv.SetTimeout(parseDuration(cfg.API.RequestTimeout, 30*time.Second))
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	log.Info("daemon configured",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("max_hearts", rules.MaxHearts),
		zap.Duration("regen_interval", rules.RegenInterval),
		zap.String("timezone", rules.Location.String()))

	return &Daemon{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Progress: svc,
		Health:   checker,
		Server:   srv,
	}, nil
}

// OpenStore opens the backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite:
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	case DriverPostgres:
		st, err := postgres.Open(ctx, cfg.DSN, postgres.Options{
			MaxConns:        int32(cfg.MaxConns),
			MinConns:        int32(cfg.MinConns),
			MaxConnLifetime: parseDuration(cfg.MaxConnLifetime, 0),
		})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// Addr is the listen address from the api section.
func (d *Daemon) Addr() string {
	return net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
}

// Serve runs the HTTP server and health loop until ctx is cancelled or the
// process receives SIGINT/SIGTERM, then shuts both down.
func (d *Daemon) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return d.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (d *Daemon) ServeListener(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.Health.Run(ctx)
	})
	g.Go(func() error {
		d.Log.Info("serving", zap.String("addr", ln.Addr().String()))
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		d.Log.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the store and flushes the logger.
func (d *Daemon) Close() {
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Log.Warn("close store", zap.Error(err))
		}
	}
	_ = d.Log.Sync()
}
