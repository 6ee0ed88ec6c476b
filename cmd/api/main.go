package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	fsobjectstore "github.com/campus-tech-club/roster-api/internal/adapters/filesystem/objectstore"
	"github.com/campus-tech-club/roster-api/internal/adapters/httpapi"
	memidempotency "github.com/campus-tech-club/roster-api/internal/adapters/memory/idempotency"
	memobjectstore "github.com/campus-tech-club/roster-api/internal/adapters/memory/objectstore"
	memrowstore "github.com/campus-tech-club/roster-api/internal/adapters/memory/rowstore"
	postgres "github.com/campus-tech-club/roster-api/internal/adapters/postgres"
	pgidempotency "github.com/campus-tech-club/roster-api/internal/adapters/postgres/idempotency"
	pgrowstore "github.com/campus-tech-club/roster-api/internal/adapters/postgres/rowstore"
	"github.com/campus-tech-club/roster-api/internal/adapters/sqlite"
	sqliteidempotency "github.com/campus-tech-club/roster-api/internal/adapters/sqlite/idempotency"
	sqliterowstore "github.com/campus-tech-club/roster-api/internal/adapters/sqlite/rowstore"
	"github.com/campus-tech-club/roster-api/internal/app/profiles"
	"github.com/campus-tech-club/roster-api/internal/domain"
	"github.com/campus-tech-club/roster-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/campus-tech-club/roster-api/internal/platform/clock"
	"github.com/campus-tech-club/roster-api/internal/platform/config"
	"github.com/campus-tech-club/roster-api/internal/platform/logging"
	"github.com/campus-tech-club/roster-api/internal/platform/metrics"
	idempotencyport "github.com/campus-tech-club/roster-api/internal/ports/out/idempotency"
	objectstoreport "github.com/campus-tech-club/roster-api/internal/ports/out/objectstore"
	rowstoreport "github.com/campus-tech-club/roster-api/internal/ports/out/rowstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

// storage holds the per-backend constructors chosen at startup.
type storage struct {
	rows    func(domain.CollectionName) (rowstoreport.ProfileStore, error)
	idem    idempotencyport.Store
	cleanup func()
}

func openStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (storage, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return storage{}, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return storage{}, fmt.Errorf("postgres migrate: %w", err)
		}
		log.Info("storage ready", zap.String("backend", cfg.StorageBackend))
		return storage{
			rows: func(c domain.CollectionName) (rowstoreport.ProfileStore, error) {
				return pgrowstore.NewProfileStore(pool, c)
			},
			idem:    pgidempotency.NewStore(pool, cfg.Issuer()),
			cleanup: pool.Close,
		}, nil
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return storage{}, fmt.Errorf("sqlite: %w", err)
		}
		log.Info("storage ready", zap.String("backend", cfg.StorageBackend), zap.String("driver", sqlite.DriverFor(cfg.DatabaseURL)))
		return storage{
			rows: func(c domain.CollectionName) (rowstoreport.ProfileStore, error) {
				return sqliterowstore.NewProfileStore(db, c)
			},
			idem:    sqliteidempotency.NewStore(db, cfg.Issuer()),
			cleanup: func() { _ = db.Close() },
		}, nil
	default:
		log.Warn("using in-memory storage; rosters are lost on restart")
		return storage{
			rows: func(domain.CollectionName) (rowstoreport.ProfileStore, error) {
				return memrowstore.NewProfileStore(), nil
			},
			idem:    memidempotency.NewStore(),
			cleanup: func() {},
		}, nil
	}
}

// openObjects returns the image store and the handler that serves it under /media/.
func openObjects(cfg config.Config) (objectstoreport.Store, http.Handler, error) {
	if cfg.MediaDir != "" {
		fs, err := fsobjectstore.NewStore(cfg.MediaDir, cfg.MediaBaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("media dir: %w", err)
		}
		return fs, http.FileServer(http.Dir(fs.Root())), nil
	}
	mem := memobjectstore.NewStore(cfg.MediaBaseURL)
	return mem, mem, nil
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var authMW func(http.Handler) http.Handler
	switch cfg.AuthMode {
	case config.AuthModeDev:
		log.Warn("dev auth enabled; requests are trusted via X-Debug-Subject")
		authMW = httpapi.NewDevAuthMiddleware(cfg.DevSubject)
	default:
		authMW = httpapi.NewAuthMiddleware(jwtverifier.New(cfg.JWT), log)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.cleanup()

	objects, media, err := openObjects(cfg)
	if err != nil {
		return err
	}

	clk := platformclock.NewSystemClock()
	rosters := make(map[domain.CollectionName]*profiles.Service, len(domain.Collections()))
	for _, c := range domain.Collections() {
		rows, err := store.rows(c)
		if err != nil {
			return err
		}
		mgr := profiles.NewManager(c, rows, clk, log, profiles.Options{
			OrderSaveConcurrency: cfg.OrderSaveConcurrency,
			Metrics:              rec,
		})
		svc := profiles.NewService(mgr, objects, log)
		// A failed initial load is retried on the first request.
		if err := svc.EnsureLoaded(ctx); err != nil {
			log.Warn("initial roster load failed", zap.String("collection", string(c)), zap.Error(err))
		}
		rosters[c] = svc
	}

	api := httpapi.NewServer(rosters, store.idem, clk, log)
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{
		AuthMiddleware: authMW,
		Logger:         log,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Media:          media,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("port", cfg.Port), zap.String("storage", cfg.StorageBackend), zap.String("auth", cfg.AuthMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
