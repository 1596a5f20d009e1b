// Package server is the HTTP boundary of ssrgate. It owns the listening
// socket, runs every request through locale resolution, rendering and
// document assembly, and drains in-flight work on shutdown before releasing
// the resources it was handed.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/conneroisu/ssrgate/internal/config"
	"github.com/conneroisu/ssrgate/internal/document"
	"github.com/conneroisu/ssrgate/internal/locale"
	"github.com/conneroisu/ssrgate/internal/logging"
	"github.com/conneroisu/ssrgate/internal/middleware"
	"github.com/conneroisu/ssrgate/internal/monitoring"
	"github.com/conneroisu/ssrgate/internal/outcome"
	"github.com/conneroisu/ssrgate/internal/renderer"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCookieName      = "NEXT_LOCALE"
	defaultRedirectStatus  = http.StatusTemporaryRedirect
	defaultShutdownTimeout = 15 * time.Second
)

// Deps are the collaborators a Server is built from. Config, Resolver,
// Renderer, Engine and Shell are required.
type Deps struct {
	Config   *config.Config
	Logger   logging.Logger
	Resolver *locale.Resolver
	Renderer renderer.Renderer
	Engine   *document.Engine
	Shell    *document.Shell
	// Manifest resolves client entries; nil keeps the shell's own assets.
	Manifest *document.Manifest
	Metrics  *monitoring.Metrics
	Health   *monitoring.HealthMonitor
	// Sink receives outcome records in addition to the log and metrics.
	Sink outcome.Sink
	// Closers are released after in-flight requests have drained.
	Closers []io.Closer
}

// Server serves locale-resolved, server-rendered pages.
type Server struct {
	cfg      *config.Config
	logger   logging.Logger
	resolver *locale.Resolver
	renderer renderer.Renderer
	engine   *document.Engine
	shell    *document.Shell
	manifest *document.Manifest
	metrics  *monitoring.Metrics
	health   *monitoring.HealthMonitor
	closers  []io.Closer
	sink     outcome.Sink
	static   http.Handler
	handler  http.Handler

	cookieName     string
	cookieMaxAge   int
	redirectStatus int

	serverMutex sync.RWMutex
	httpServer  *http.Server
	listener    net.Listener

	shutdownOnce sync.Once
	shutdownErr  error
}

// New wires a Server. Nothing is bound until Listen or Start.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("server: config is required")
	case deps.Resolver == nil:
		return nil, errors.New("server: locale resolver is required")
	case deps.Renderer == nil:
		return nil, errors.New("server: renderer is required")
	case deps.Engine == nil:
		return nil, errors.New("server: document engine is required")
	case deps.Shell == nil:
		return nil, errors.New("server: shell template is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	cfg := deps.Config

	s := &Server{
		cfg:            cfg,
		logger:         logger.WithComponent("server"),
		resolver:       deps.Resolver,
		renderer:       deps.Renderer,
		engine:         deps.Engine,
		shell:          deps.Shell,
		manifest:       deps.Manifest,
		metrics:        deps.Metrics,
		health:         deps.Health,
		closers:        deps.Closers,
		cookieName:     cfg.Locales.CookieName,
		cookieMaxAge:   int(cfg.Locales.CookieMaxAge / time.Second),
		redirectStatus: cfg.Locales.RedirectStatus,
	}
	if s.cookieName == "" {
		s.cookieName = defaultCookieName
	}
	if s.redirectStatus == 0 {
		s.redirectStatus = defaultRedirectStatus
	}

	sinks := []outcome.Sink{outcome.NewLogSink(logger)}
	if s.metrics != nil {
		sinks = append(sinks, s.metrics)
	}
	if deps.Sink != nil {
		sinks = append(sinks, deps.Sink)
	}
	s.sink = outcome.Tee(sinks...)
	if dir := cfg.Document.StaticDir; dir != "" {
		s.static = staticHandler(dir)
	}

	s.handler = middleware.DefaultChain(logger).Apply(s.routes())
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen binds the configured address. A bind failure is returned as is.
func (s *Server) Listen() error {
	s.serverMutex.Lock()
	defer s.serverMutex.Unlock()

	if s.listener != nil {
		return errors.New("server: already listening")
	}

	addr := s.cfg.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       s.cfg.Server.IdleTimeout,
	}
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections on the bound listener until Shutdown. It
// returns nil after a graceful shutdown.
func (s *Server) Serve() error {
	s.serverMutex.RLock()
	srv, ln := s.httpServer, s.listener
	s.serverMutex.RUnlock()

	if srv == nil || ln == nil {
		return errors.New("server: Serve called before Listen")
	}

	s.logger.Info(context.Background(), "Server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Start binds and serves. It blocks until the server stops.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Run binds, serves, and shuts down gracefully when ctx is cancelled or
// the process receives SIGINT or SIGTERM.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.Serve)
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info(context.Background(), "Shutdown requested")

		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown stops accepting connections, waits for in-flight requests to
// finish (bounded by ctx), then closes the renderer when it is an io.Closer
// and every other owned resource. Only the first call does any work; later
// and concurrent calls return its result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.serverMutex.RLock()
		srv, ln := s.httpServer, s.listener
		s.serverMutex.RUnlock()

		var errs []error
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("draining requests: %w", err))
			}
		}
		// Serve may never have run, in which case the server does not
		// know about the listener.
		if ln != nil {
			if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, fmt.Errorf("closing listener: %w", err))
			}
		}

		closers := s.closers
		if c, ok := s.renderer.(io.Closer); ok {
			closers = append([]io.Closer{c}, closers...)
		}
		for _, c := range closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		s.shutdownErr = errors.Join(errs...)
		if s.shutdownErr != nil {
			s.logger.Error(ctx, s.shutdownErr, "Shutdown finished with errors")
		} else {
			s.logger.Info(ctx, "Server stopped")
		}
	})

	return s.shutdownErr
}
