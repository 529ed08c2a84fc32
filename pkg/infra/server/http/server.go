// Package http provides the gin based HTTP server.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/verbatim-rag/pkg/infra/middleware"
	"github.com/kart-io/verbatim-rag/pkg/infra/middleware/observability"
	"github.com/kart-io/verbatim-rag/pkg/infra/middleware/resilience"
	options "github.com/kart-io/verbatim-rag/pkg/options/server/http"
	apierrors "github.com/kart-io/verbatim-rag/pkg/utils/errors"
	"github.com/kart-io/verbatim-rag/pkg/utils/response"
)

// Server is the HTTP server implementation.
type Server struct {
	opts   *options.Options
	engine *gin.Engine
	server *http.Server
	addr   string
	errCh  chan error
}

// NewServer creates a new HTTP server with the given options.
// Middleware is applied here so every route group registered later inherits it.
func NewServer(opts *options.Options) *Server {
	if opts == nil {
		opts = options.NewOptions()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		opts:   opts,
		engine: engine,
		errCh:  make(chan error, 1),
	}
	s.applyMiddleware()

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})
	return s
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	if s.addr != "" {
		return s.addr
	}
	return s.opts.Addr
}

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()

	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	go func() {
		defer close(s.errCh)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Err reports a serving failure; the channel is closed when serving ends.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// applyMiddleware 按固定顺序注册中间件: recovery -> request-id -> tracing -> logger。
func (s *Server) applyMiddleware() {
	mw := s.opts.Middleware
	s.engine.Use(resilience.RecoveryWithOptions(*mw.Recovery, nil))
	s.engine.Use(middleware.RequestIDWithOptions(*mw.RequestID))
	if mw.Tracing != nil {
		s.engine.Use(observability.TracingWithOptions(*mw.Tracing))
	}
	s.engine.Use(observability.LoggerWithOptions(*mw.Logger))
}
