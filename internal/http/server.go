package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finflow/internal/core"
	applog "finflow/internal/log"
)

// Server is the dev backend: it serves the record API of every domain over
// a Repository.
type Server struct {
	http.Server
	repo        Repository
	logger      *applog.Logger
	now         func() time.Time
	rateLimiter *rateLimiter
	metrics     securityMetrics

	shutdownOnce sync.Once
}

// Option customizes a Server.
type Option func(*serverOptions)

type serverOptions struct {
	perMinute int
	now       func() time.Time
}

// WithRateLimit sets the number of mutating requests a client may send per
// minute. Zero or less disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(o *serverOptions) { o.perMinute = perMinute }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *serverOptions) { o.now = now }
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, repo Repository, logger *applog.Logger, opts ...Option) *Server {
	o := serverOptions{perMinute: 120, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		repo:   repo,
		logger: logger,
		now:    o.now,
	}
	if o.perMinute > 0 {
		s.rateLimiter = newRateLimiter(o.perMinute, o.now)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("No route for " + r.Method + " " + r.URL.Path).Write(w, r)
	})

	for _, res := range resources {
		s.mount(mux, res)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           applog.Middleware(logger)(s.withSecurity(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) mount(mux *http.ServeMux, res resource) {
	b := res.base
	mux.HandleFunc("GET "+b+"/user/{uid}", s.handleList(res))
	mux.HandleFunc("GET "+b+"/user/{uid}/paginated", s.handlePage(res))
	mux.HandleFunc("GET "+b+"/user/{uid}/total", s.handleTotal(res))
	mux.HandleFunc("GET "+b+"/user/{uid}/by/{field}", s.handleBreakdown(res))
	mux.HandleFunc("GET "+b+"/user/{uid}/top", s.handleTop(res))
	mux.HandleFunc("GET "+b+"/user/{uid}/monthly", s.handleMonthly(res))
	mux.HandleFunc("DELETE "+b+"/user/{uid}/{id}", s.handleDeleteForUser(res))
	mux.HandleFunc("GET "+b+"/{id}", s.handleGet(res))
	mux.HandleFunc("POST "+b, s.handleCreate(res))
	mux.HandleFunc("PUT "+b+"/{id}", s.handleUpdate(res))
	mux.HandleFunc("DELETE "+b+"/{id}", s.handleDelete(res))

	switch res.domain {
	case core.DomainSaving:
		mux.HandleFunc("POST "+b+"/{id}/contribute", s.handleMove(res, false))
		mux.HandleFunc("POST "+b+"/{id}/withdraw", s.handleMove(res, true))
	case core.DomainDebt:
		mux.HandleFunc("PATCH "+b+"/{id}/status", s.handleDebtStatus(res))
	}
}

// withSecurity adds security headers and rate limits mutating requests.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)

		if s.rateLimiter != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
			clientIP := extractClientIP(r)
			if !s.rateLimiter.allow(clientIP) {
				s.metrics.rateLimitHits.Add(1)
				applog.FromContext(r.Context()).Warn("Rate limit exceeded",
					"client_ip", clientIP, applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
				TooManyRequestsError().Write(w, r)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.Info("Dev server shutting down",
			applog.FieldOperation, applog.OpShutdown,
			"rate_limit_hits", s.metrics.rateLimitHits.Load(),
			"invalid_tokens", s.metrics.invalidTokenHits.Load(),
			"forbidden", s.metrics.forbiddenAttempts.Load())
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		applog.FromContext(r.Context()).Warn("Readiness check failed", applog.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w, r)
		return
	}
	OK(w, r, map[string]string{"status": "ready"})
}
