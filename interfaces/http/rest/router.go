package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ofumi529/Little-Artists-Studio/application/relay"
	"github.com/ofumi529/Little-Artists-Studio/infrastructure/observability"
	"github.com/ofumi529/Little-Artists-Studio/interfaces/http/rest/handlers"
	"github.com/ofumi529/Little-Artists-Studio/interfaces/http/rest/middleware"
	appErrors "github.com/ofumi529/Little-Artists-Studio/pkg/errors"
)

// AnalyzePath is the relay endpoint.
const AnalyzePath = "/api/analyze-art"

// Options controls the optional parts of the router.
type Options struct {
	EnableCORS     bool
	AllowedOrigins []string
	EnableMetrics  bool
	MaxBodyBytes   int64
}

// Router creates and configures the HTTP router
type Router struct {
	relay        *relay.Service
	errorHandler *appErrors.ErrorHandler
	metrics      *observability.Collector
	logger       *zap.Logger
	opts         Options
}

// NewRouter creates a new router instance. metrics may be nil.
func NewRouter(
	relay *relay.Service,
	errorHandler *appErrors.ErrorHandler,
	metrics *observability.Collector,
	logger *zap.Logger,
	opts Options,
) *Router {
	return &Router{
		relay:        relay,
		errorHandler: errorHandler,
		metrics:      metrics,
		logger:       logger,
		opts:         opts,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger))
	router.Use(rt.errorHandler.Middleware)
	if rt.metrics != nil && rt.opts.EnableMetrics {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if rt.opts.EnableCORS {
		origins := rt.opts.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "OPTIONS", "PATCH", "DELETE", "POST", "PUT"},
			AllowedHeaders: []string{
				"X-CSRF-Token", "X-Requested-With", "Accept", "Accept-Version",
				"Content-Length", "Content-MD5", "Content-Type", "Date", "X-Api-Version",
				middleware.RequestIDHeader,
			},
			ExposedHeaders:   []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
			// the analyze route answers preflight itself
			OptionsPassthrough: true,
		}))
	}

	analyzeHandler := handlers.NewAnalyzeHandler(rt.relay, rt.errorHandler, rt.logger)

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil && rt.opts.EnableMetrics {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	router.Route(AnalyzePath, func(r chi.Router) {
		if rt.opts.MaxBodyBytes > 0 {
			r.Use(limitBody(rt.opts.MaxBodyBytes))
		}
		r.Post("/", analyzeHandler.Analyze)
		r.Options("/", analyzeHandler.Preflight)
		r.MethodNotAllowed(analyzeHandler.MethodNotAllowed)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports not ready until a credential is configured
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !rt.relay.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready","reason":"credential not configured"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
