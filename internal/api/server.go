package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
	"github.com/nerrad567/smart-fridge/internal/history"
	"github.com/nerrad567/smart-fridge/internal/infrastructure/config"
	"github.com/nerrad567/smart-fridge/internal/infrastructure/logging"
	"github.com/nerrad567/smart-fridge/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Controller is the part of the fridge controller the API drives.
// *fridge.Controller satisfies it.
type Controller interface {
	Snapshot(ctx context.Context) (fridge.Snapshot, error)
	Counters(ctx context.Context) (fridge.Counters, error)
	Thresholds() fridge.Thresholds
	RequestMove(ctx context.Context, target fridge.LockState) (<-chan fridge.Outcome, error)
	RequestSilence(ctx context.Context) (fridge.AlarmState, error)
}

// HistoryReader lists recorded controller events, newest first.
type HistoryReader interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// HealthChecker is implemented by infrastructure clients (MQTT, InfluxDB,
// SQLite) that can report their own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BusStatus reports the MQTT client's link state, subscriptions and how
// often the link dropped.
type BusStatus interface {
	IsConnected() bool
	SubscriptionCount() int
	ConnectionLosses() uint64
}

// SensorStats reports sampling loop counters.
type SensorStats interface {
	Stats() (samples, faults uint64)
}

// EventStats reports event fan-out counters.
type EventStats interface {
	Stats() telemetry.Stats
}

// BuzzerStatus reports the alarm output state.
type BuzzerStatus interface {
	Sounding() bool
	Failures() uint64
}

// DBStats reports connection pool statistics.
type DBStats interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
//
// Everything except Logger and Controller is optional; the matching
// endpoints or metrics sections degrade when a dependency is missing.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Controller Controller
	History    HistoryReader

	// Hub, if set, is used instead of a server-owned hub. The caller runs it
	// and registers Hub.Sink with the event fan-out.
	Hub *Hub

	// Checks are the component health checks reported by /api/v1/health.
	Checks map[string]HealthChecker

	MQTT     BusStatus
	Sensor   SensorStats
	Events   EventStats
	Buzzer   BuzzerStatus
	Database DBStats

	Version string
}

// Server is the HTTP API server for the smart fridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	controller  Controller
	history     HistoryReader
	checks      map[string]HealthChecker
	mqtt        BusStatus
	sensor      SensorStats
	events      EventStats
	buzzer      BuzzerStatus
	db          DBStats
	version     string
	commandWait time.Duration
	startTime   time.Time
	server      *http.Server
	listener    net.Listener
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, controller) and optional extras
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		controller:  deps.Controller,
		history:     deps.History,
		checks:      deps.Checks,
		mqtt:        deps.MQTT,
		sensor:      deps.Sensor,
		events:      deps.Events,
		buzzer:      deps.Buzzer,
		db:          deps.Database,
		version:     deps.Version,
		commandWait: deps.Config.CommandWait(),
		startTime:   time.Now(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub if the server owns it,
// binds the listener and serves in a background goroutine. The server can
// be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for background goroutines (not the listener lifetime)
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
