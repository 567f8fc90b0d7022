// Package http provides the HTTP delivery layer for the URL shortening service.
// This package contains the HTTP handlers and related types used for processing
// incoming requests, validating input, and formatting responses.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/vadimbarashkov/url-shortening-service/internal/metrics"
	"github.com/vadimbarashkov/url-shortening-service/pkg/middleware/recoverer"
)

type routerOptions struct {
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
	requestTimeout time.Duration
	swaggerPath    string
}

// RouterOption configures optional parts of the router.
type RouterOption func(*routerOptions)

// WithMetrics instruments every request and exposes gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) RouterOption {
	return func(o *routerOptions) {
		o.metrics = m
		o.gatherer = gatherer
	}
}

// WithRequestTimeout cancels the request context after d.
func WithRequestTimeout(d time.Duration) RouterOption {
	return func(o *routerOptions) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithSwaggerPath sets the file served on /docs/swagger.yml.
func WithSwaggerPath(path string) RouterOption {
	return func(o *routerOptions) {
		if path != "" {
			o.swaggerPath = path
		}
	}
}

// NewRouter initializes and returns a new Chi router configured with middleware and routes for the URL shortening API.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, opts ...RouterOption) *chi.Mux {
	o := routerOptions{
		swaggerPath: "./docs/swagger.yml",
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if o.metrics != nil {
		r.Use(instrument(o.metrics))
	}
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger, serverErrorResponse))
	if o.requestTimeout > 0 {
		r.Use(middleware.Timeout(o.requestTimeout))
	}

	r.Get("/ping", handlePing)

	if o.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, o.swaggerPath)
	})

	r.Route("/shorten", func(r chi.Router) {
		h := newURLHandler(urlUseCase, validator.New())

		r.Post("/", h.shortenURL)

		r.Route("/{shortCode}", func(r chi.Router) {
			r.Get("/", h.resolveShortCode)
			r.Put("/", h.modifyURL)
			r.Delete("/", h.deactivateURL)
			r.Get("/stats", h.getURLStats)
		})
	})

	return r
}
