package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hupe1980/agencyhub/internal/tracing"
	"github.com/hupe1980/agencyhub/logging"
	"github.com/hupe1980/agencyhub/service"
)

// Services groups the services exposed over HTTP.
type Services struct {
	Agencies  *service.AgencyService
	Sessions  *service.SessionService
	Execution *service.ExecutionService
	Tools     *service.ToolService
	Skills    *service.SkillService
}

// Options configure a Server.
type Options struct {
	// Addr is the listen address.
	Addr string
	// CacheSize reports the number of cached agencies on /healthz.
	CacheSize func() int
	// ReadHeaderTimeout bounds reading request headers.
	ReadHeaderTimeout time.Duration
	Logger            *logging.HubLogger
}

// Server serves the agency hub HTTP API.
type Server struct {
	svc       Services
	auth      Authenticator
	cacheSize func() int
	logger    *logging.HubLogger
	mux       *http.ServeMux

	addr              string
	readHeaderTimeout time.Duration

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// New creates a Server. All routes except /healthz require a bearer token
// accepted by auth.
func New(svc Services, auth Authenticator, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:              ":8080",
		ReadHeaderTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.CacheSize == nil {
		opts.CacheSize = func() int { return 0 }
	}

	s := &Server{
		svc:               svc,
		auth:              auth,
		cacheSize:         opts.CacheSize,
		logger:            opts.Logger.WithComponent("api"),
		mux:               http.NewServeMux(),
		addr:              opts.Addr,
		readHeaderTimeout: opts.ReadHeaderTimeout,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /v1/api/agency/list", s.requireUser(s.handleAgencyList))
	s.mux.HandleFunc("GET /v1/api/agency", s.requireUser(s.handleAgencyGet))
	s.mux.HandleFunc("PUT /v1/api/agency", s.requireUser(s.handleAgencyPut))
	s.mux.HandleFunc("DELETE /v1/api/agency", s.requireUser(s.handleAgencyDelete))

	s.mux.HandleFunc("GET /v1/api/session/list", s.requireUser(s.handleSessionList))
	s.mux.HandleFunc("POST /v1/api/session", s.requireUser(s.handleSessionCreate))
	s.mux.HandleFunc("POST /v1/api/session/message", s.requireUser(s.handleSessionMessage))
	s.mux.HandleFunc("POST /v1/api/session/cancel", s.requireUser(s.handleSessionCancel))

	s.mux.HandleFunc("GET /v1/api/tool/list", s.requireUser(s.handleToolList))
	s.mux.HandleFunc("GET /v1/api/tool", s.requireUser(s.handleToolGet))
	s.mux.HandleFunc("POST /v1/api/tool", s.requireUser(s.handleToolCreate))
	s.mux.HandleFunc("POST /v1/api/tool/approve", s.requireUser(s.handleToolApprove))
	s.mux.HandleFunc("POST /v1/api/tool/execute", s.requireUser(s.handleToolExecute))

	s.mux.HandleFunc("GET /v1/api/skill/list", s.requireUser(s.handleSkillList))
	s.mux.HandleFunc("GET /v1/api/skill", s.requireUser(s.handleSkillGet))
	s.mux.HandleFunc("POST /v1/api/skill", s.requireUser(s.handleSkillCreate))
	s.mux.HandleFunc("DELETE /v1/api/skill", s.requireUser(s.handleSkillDelete))
	s.mux.HandleFunc("POST /v1/api/skill/approve", s.requireUser(s.handleSkillApprove))
	s.mux.HandleFunc("POST /v1/api/skill/execute", s.requireUser(s.handleSkillExecute))
}

// Handler returns the root handler with recovery and tracing applied.
func (s *Server) Handler() http.Handler {
	return s.recoverer(s.traced(s.mux))
}

// Start listens on the configured address and serves until ctx is done or
// Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = ln
	s.srv = srv
	s.mu.Unlock()

	s.logger.Info("api.server.started", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("api.server.stopping")
	return srv.Shutdown(ctx)
}

// Addr returns the bound address once Start has been called.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.writeError(w, r, fmt.Errorf("panic recovered: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracing.StartSpan(r.Context(), "http.request",
			tracing.String("http.method", r.Method),
			tracing.String("http.path", r.URL.Path),
		)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(tracing.Int("http.status", rec.status))
		var err error
		if rec.status >= http.StatusInternalServerError {
			err = errors.New(http.StatusText(rec.status))
		}
		tracing.End(span, err)

		s.logger.Debug("api.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type healthStatus struct {
	CachedAgencies int `json:"cached_agencies"`
	ActiveTurns    int `json:"active_turns"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := healthStatus{CachedAgencies: s.cacheSize()}
	if s.svc.Execution != nil {
		h.ActiveTurns = s.svc.Execution.Active()
	}
	writeData(w, h)
}
