// Package httpserver assembles and runs the tide pool's HTTP surface.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/netutil"

	ferrors "git.home.luguber.info/inful/tidepool/internal/foundation/errors"
	"git.home.luguber.info/inful/tidepool/internal/metrics"
	"git.home.luguber.info/inful/tidepool/internal/server/middleware"
)

const defaultMaxConns = 256

// Handlers bundles the route handlers the server mounts.
type Handlers struct {
	API        interface{ HandleState(http.ResponseWriter, *http.Request) }
	Ping       interface{ HandlePing(http.ResponseWriter, *http.Request) }
	Click      interface{ HandleClick(http.ResponseWriter, *http.Request) }
	Webhook    interface{ HandleWebhook(http.ResponseWriter, *http.Request) }
	StatusPage interface{ HandleStatusPage(http.ResponseWriter, *http.Request) }
}

// Server runs the public HTTP listener.
type Server struct {
	addr     string
	maxConns int
	handlers Handlers
	registry *prom.Registry
	logger   *slog.Logger

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMaxConns caps concurrent connections on the public listener.
func WithMaxConns(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithMetricsRegistry mounts /metrics for the given registry.
func WithMetricsRegistry(reg *prom.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New creates a server listening on addr with the given handlers.
func New(addr string, handlers Handlers, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:     addr,
		maxConns: defaultMaxConns,
		handlers: handlers,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.handlers.API.HandleState)
	mux.HandleFunc("/ping", s.handlers.Ping.HandlePing)
	mux.HandleFunc("/click", s.handlers.Click.HandleClick)
	mux.HandleFunc("/webhook", s.handlers.Webhook.HandleWebhook)
	mux.HandleFunc("/", s.handlers.StatusPage.HandleStatusPage)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	}
	return mux
}

// Handler returns the fully wrapped handler chain. Exposed for tests.
func (s *Server) Handler() http.Handler {
	adapter := ferrors.NewHTTPErrorAdapter(s.logger)
	return middleware.Chain(s.logger, adapter)(s.mux())
}

// Start begins serving. It returns once the listener is bound; serve errors
// after that are logged.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	// Bound concurrent connections so a click flood degrades gracefully
	// instead of exhausting file descriptors.
	ln = netutil.LimitListener(ln, s.maxConns)

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting HTTP server", slog.String("addr", s.addr))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server terminated", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}
