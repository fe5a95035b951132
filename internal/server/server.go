// Package server exposes the executor over HTTP.
//
// Routes:
//
//	POST /execute    run code once
//	POST /test       run code against test cases
//	GET  /languages  list known languages
//	GET  /health     liveness
//	GET  /metrics    Prometheus metrics
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/caffeineduck/runbox/executor"
	"github.com/caffeineduck/runbox/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

const (
	// MaxTimeout caps the per-run budget a client may ask for.
	MaxTimeout = 60 * time.Second
	// MaxTestCases caps a single /test batch.
	MaxTestCases = 100

	limiterIdle = 10 * time.Minute
)

// Runner is the part of *executor.Executor the server needs.
type Runner interface {
	Execute(ctx context.Context, req executor.Request) executor.Result
	RunTestCases(ctx context.Context, lang executor.Language, code string, cases []executor.TestCase, opts ...executor.Option) []executor.TestCaseResult
}

// Config configures the HTTP layer.
type Config struct {
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit    float64
	Burst        int
	MaxBodyBytes int64
}

// Server routes HTTP requests to a Runner.
type Server struct {
	router   chi.Router
	runner   Runner
	cfg      Config
	limiter  *clientLimiter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

// New builds the router. Metrics are registered with reg and served from
// /metrics.
func New(runner Runner, cfg Config, reg *prometheus.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		runner:   runner,
		cfg:      cfg,
		metrics:  metrics.New(reg),
		gatherer: reg,
		logger:   logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, cfg.Burst)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(s.requestID)
	s.router.Use(s.logRequests)
	s.router.Use(chimiddleware.Recoverer)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/languages", s.handleLanguages)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(s.limitBody)
		r.Post("/execute", s.handleExecute)
		r.Post("/test", s.handleTest)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully, letting in-flight runs finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if s.limiter != nil {
		go s.pruneLimiter(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), MaxTimeout+5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(limiterIdle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.limiter.prune(now.Add(-limiterIdle)); n > 0 {
				s.logger.Debug().Int("removed", n).Msg("pruned idle rate limiters")
			}
		}
	}
}

// requestID tags each request with an xid, echoed in X-Request-ID, and puts a
// request-scoped logger in the context.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := xid.New().String()
		w.Header().Set("X-Request-ID", id)
		logger := s.logger.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(clientAddr(r), time.Now()) {
			s.metrics.RateLimitHits.Inc()
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr strips the port so one client maps to one bucket.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
