package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-netstate/internal/netlog"
	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultScanTimeout bounds POST /scan?wait=true when Deps.ScanTimeout is zero.
const defaultScanTimeout = 15 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Dispatcher *netstate.Dispatcher
	Handler    *netstate.Handler
	Events     *netlog.Log // optional; GET /events returns 503 without it
	// History serves GET /events?source=db; nil when events are not persisted.
	History EventHistory
	// ScanTimeout bounds how long POST /scan?wait=true waits.
	ScanTimeout time.Duration
	Version     string
}

// EventHistory reads persisted network events. Satisfied by
// *netlog.SQLiteSink.
type EventHistory interface {
	Recent(ctx context.Context, f netlog.Filter) ([]netlog.Entry, error)
}

// Server is the HTTP API server.
//
// It is created with New and started with Start.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	dispatcher  *netstate.Dispatcher
	handler     *netstate.Handler
	events      *netlog.Log
	history     EventHistory
	scanTimeout time.Duration
	version     string
	server      *http.Server
	hub         *Hub
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Dispatcher == nil || deps.Handler == nil {
		return nil, fmt.Errorf("dispatcher and handler are required")
	}
	if deps.ScanTimeout <= 0 {
		deps.ScanTimeout = defaultScanTimeout
	}

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		dispatcher:  deps.Dispatcher,
		handler:     deps.Handler,
		events:      deps.Events,
		history:     deps.History,
		scanTimeout: deps.ScanTimeout,
		version:     deps.Version,
	}, nil
}

// Start creates the WebSocket hub, registers it as a handler observer and
// launches the HTTP listener in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	if err := s.startHub(ctx); err != nil {
		return err
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startHub runs the hub until the server closes and subscribes it to the
// handler.
func (s *Server) startHub(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	if err := s.dispatcher.Do(ctx, func() { s.handler.AddObserver(s.hub) }); err != nil {
		s.cancel()
		return fmt.Errorf("registering websocket hub: %w", err)
	}
	return nil
}

// Close unregisters the hub and gracefully shuts down the HTTP server.
func (s *Server) Close() error {
	if s.hub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		//nolint:errcheck // dispatcher may already be stopped during shutdown
		s.dispatcher.Do(ctx, func() { s.handler.RemoveObserver(s.hub) })
		cancel()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// Hub returns the WebSocket hub, or nil before Start.
func (s *Server) Hub() *Hub {
	return s.hub
}
