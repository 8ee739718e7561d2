package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"guida/internal/cache"
	"guida/internal/entities"
	applog "guida/internal/log"
	"guida/internal/middleware/ratelimit"
	"guida/internal/middleware/security"
	"guida/internal/middleware/trace"
	"guida/internal/services"
)

// Options wires a Server. Analytics and Store are required.
type Options struct {
	Addr      string
	Analytics *services.AnalyticsService
	Store     entities.Store
	// Ready reports backend health for /readyz; nil means always ready.
	Ready func(ctx context.Context) error
	// CacheStats feeds /metrics; nil omits the cache series.
	CacheStats       func() cache.Stats
	Logger           *applog.Logger
	RateLimitRPM     int
	DefaultRangeDays int
}

type Server struct {
	http.Server
	analytics    *services.AnalyticsService
	store        entities.Store
	ready        func(ctx context.Context) error
	cacheStats   func() cache.Stats
	logger       *applog.Logger
	defaultRange int
	started      time.Time

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Output: io.Discard})
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	defaultRange := opts.DefaultRangeDays
	if defaultRange <= 0 {
		defaultRange = 30
	}

	s := &Server{
		analytics:    opts.Analytics,
		store:        opts.Store,
		ready:        opts.Ready,
		cacheStats:   opts.CacheStats,
		logger:       logger,
		defaultRange: defaultRange,
		started:      time.Now(),
		detector:     security.NewDetector(),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError().Write(w)
		}))
		r.Use(security.NoStore)

		r.Get("/businesses", s.handleListBusinesses)
		r.Get("/businesses/{id}", s.handleGetBusiness)
		r.Get("/businesses/{id}/dashboard", s.handleDashboard)

		r.Get("/analytics/{kind}/summary", s.handleSummary)
		r.Get("/analytics/{kind}/export", s.handleExport)
		r.Post("/analytics/{kind}/refresh", s.handleRefresh)

		r.Post("/impressions", s.handleCreateImpression)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no route for " + r.URL.Path).Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path).Write(w)
	})
	return r
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// requestLogger returns the request-scoped logger installed by the trace
// middleware.
func (s *Server) requestLogger(r *http.Request) *applog.Logger {
	if l, ok := r.Context().Value(applog.LoggerContextKey).(*applog.Logger); ok && l != nil {
		return l.WithComponent(applog.ComponentHTTP)
	}
	return s.logger
}

// writeError logs err when it maps to a server error and writes the
// matching response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(s.requestLogger(r)).LogError(r.Context(), "Request failed", err,
			applog.ComponentHTTP, op, applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
	}
	ErrorFor(err).Write(w)
}
