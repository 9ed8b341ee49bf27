package http

import (
	"context"
	"net/http"
	"time"

	"github.com/kart-io/clawprobe/pkg/dockerhost"
	"github.com/kart-io/clawprobe/pkg/health"
	"github.com/kart-io/clawprobe/pkg/logger"
	"github.com/kart-io/clawprobe/pkg/platforms/feishu"
	"github.com/kart-io/clawprobe/transport/http/handlers"
	"github.com/kart-io/clawprobe/transport/http/middleware"
)

// Config holds HTTP server configuration
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	APIKeys      []string
}

// Dependencies are the components the routes serve
type Dependencies struct {
	Checker          *health.HealthChecker
	Prober           health.Prober
	Credentials      *feishu.Credentials
	Resolver         *dockerhost.Resolver
	DockerHostConfig string
	Metrics          *Metrics
	Logger           logger.Logger
}

// HTTPServer exposes health, probe, docker-host and metrics endpoints
type HTTPServer struct {
	config  Config
	deps    Dependencies
	server  *http.Server
	handler http.Handler
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(config Config, deps Dependencies) *HTTPServer {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 30 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 60 * time.Second
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	deps.Logger = logger.OrDiscard(deps.Logger)
	if deps.Checker != nil {
		deps.Checker.OnResult(deps.Metrics.ObserveCheck)
	}

	s := &HTTPServer{config: config, deps: deps}
	s.handler = s.routes()
	s.server = &http.Server{
		Addr:           config.Addr,
		Handler:        s.handler,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
	return s
}

// routes registers HTTP routes
func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()
	auth := middleware.NewAuthMiddleware(s.config.APIKeys...)

	if s.deps.Checker != nil {
		mux.HandleFunc("GET /healthz", handlers.NewHealthHandler(s.deps.Checker).Handle)
	}
	if s.deps.Prober != nil {
		mux.Handle("GET /probe", auth.Middleware(http.HandlerFunc(handlers.NewProbeHandler(s.deps.Prober, s.deps.Credentials).Handle)))
	}
	if s.deps.Resolver != nil {
		mux.HandleFunc("GET /docker-host", handlers.NewDockerHostHandler(s.deps.Resolver, s.deps.DockerHostConfig).Handle)
	}
	mux.Handle("GET /metrics", s.deps.Metrics.Handler())

	logging := middleware.NewLoggingMiddleware(s.deps.Logger, s.deps.Metrics.ObserveRequest)
	return logging.Middleware(mux)
}

// Handler returns the routed handler, mainly for tests
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and blocks until it stops. After Stop it
// returns http.ErrServerClosed.
func (s *HTTPServer) Start() error {
	s.deps.Logger.Info("HTTP server starting", "addr", s.config.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
