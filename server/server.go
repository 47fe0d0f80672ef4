package server

import (
	"context"
	"net/http"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Engine is the part of [goGuard.Engine] the API drives.
type Engine interface {
	Resolve(ctx context.Context, ticket string, result goGuard.Result, reason string) error
	HandleScreenEvent(ctx context.Context, ev goGuard.ScreenEvent) error
	InvalidateGrants(ctx context.Context) error
	Sessions(ctx context.Context) ([]session.Info, error)
}

var _ Engine = (*goGuard.Engine)(nil)

// Server holds the handlers' dependencies.
type Server struct {
	engine   Engine
	registry storage.Registry
	agent    http.Handler
	metrics  http.Handler
	token    []byte
	log      *zap.Logger
}

// Option configures a [Server].
type Option func(*Server)

// WithAgentHandler mounts h at /v1/agent. The bridge hub is the usual value.
func WithAgentHandler(h http.Handler) Option {
	return func(s *Server) { s.agent = h }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New returns a server over engine and registry.
func New(engine Engine, registry storage.Registry, opts ...Option) *Server {
	s := &Server{engine: engine, registry: registry}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("http")
	return s
}

// Router returns the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/health", s.Health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.guard)
		if s.agent != nil {
			r.Method(http.MethodGet, "/agent", s.agent)
		}
		r.Get("/locks", s.ListLocks)
		r.Put("/locks", s.ReplaceLocks)
		r.Post("/locks/{app}", s.AddLock)
		r.Delete("/locks/{app}", s.RemoveLock)
		r.Delete("/grants", s.ClearGrants)
		r.Post("/outcomes", s.PostOutcome)
		r.Post("/screen/{event}", s.PostScreen)
		r.Get("/sessions", s.ListSessions)
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Listen serves the router on addr until ctx ends, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
