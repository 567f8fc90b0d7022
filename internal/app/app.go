// Package app wires configuration, storage, the use case and the HTTP server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vadimbarashkov/url-shortening-service/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/url-shortening-service/internal/config"
	"github.com/vadimbarashkov/url-shortening-service/internal/entity"
	"github.com/vadimbarashkov/url-shortening-service/internal/metrics"
	"github.com/vadimbarashkov/url-shortening-service/internal/shortcode"
	"github.com/vadimbarashkov/url-shortening-service/internal/usecase"
	"github.com/vadimbarashkov/url-shortening-service/pkg/postgres"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/url-shortening-service/internal/adapter/delivery/http"
	pgrepo "github.com/vadimbarashkov/url-shortening-service/internal/adapter/repository/postgres"
)

const serviceName = "url-shortener"

type urlRepository interface {
	FindByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	ExistsByShortCode(ctx context.Context, shortCode string) (bool, error)
	Save(ctx context.Context, url *entity.URL) (*entity.URL, error)
	Update(ctx context.Context, url *entity.URL) (*entity.URL, error)
	Delete(ctx context.Context, shortCode string) error
	IncrementAccessCount(ctx context.Context, shortCode string) (*entity.URL, error)
	Count(ctx context.Context) (int64, error)
}

// NewLogger builds the request logger used by the whole service.
func NewLogger(cfg *config.Config) *httplog.Logger {
	return httplog.NewLogger(serviceName, httplog.Options{
		JSON:           cfg.Env == config.EnvProd,
		LogLevel:       cfg.SlogLevel(),
		Concise:        cfg.Env == config.EnvDev,
		RequestHeaders: cfg.Env != config.EnvProd,
		Tags: map[string]string{
			"env": cfg.Env,
		},
		QuietDownRoutes: []string{"/ping", "/metrics"},
		QuietDownPeriod: 10 * time.Second,
	})
}

func newStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (urlRepository, func() error, error) {
	const op = "app.newStorage"

	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage, records will be lost on shutdown")
		return memory.NewURLRepository(), func() error { return nil }, nil
	}

	db, err := postgres.New(
		ctx,
		cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	version, err := postgres.RunMigrations(cfg.Postgres.MigrationsPath, cfg.Postgres.DSN())
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}
	logger.Info("database migrated", slog.Uint64("version", uint64(version)))

	return pgrepo.NewURLRepository(db), db.Close, nil
}

func newGenerator(cfg *config.Config) (shortcode.Generator, error) {
	switch cfg.ShortCode.Generator {
	case config.GeneratorNanoID:
		gen, err := shortcode.NewNanoIDGenerator(cfg.ShortCode.Length)
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return shortcode.NewBase64Generator(nil), nil
	}
}

// newHandler assembles the use case and the router on top of repo.
func newHandler(cfg *config.Config, logger *httplog.Logger, repo urlRepository) (http.Handler, error) {
	const op = "app.newHandler"

	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create short code generator: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	urlUseCase := usecase.NewURLUseCase(
		repo,
		gen,
		usecase.WithMaxRetries(cfg.ShortCode.MaxRetries),
		usecase.WithMetrics(m),
	)

	return delivery.NewRouter(
		logger,
		urlUseCase,
		delivery.WithMetrics(m, reg),
		delivery.WithRequestTimeout(cfg.HTTPServer.RequestTimeout),
	), nil
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := NewLogger(cfg)

	repo, closeStorage, err := newStorage(ctx, cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeStorage()

	count, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to count stored urls: %w", op, err)
	}

	handler, err := newHandler(cfg, logger, repo)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        handler,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage),
			slog.Bool("tls", cfg.HTTPServer.TLS()),
			slog.Int64("urls", count),
		)

		var err error

		if cfg.HTTPServer.TLS() {
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.WriteTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
