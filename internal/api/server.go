package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
	"github.com/nerrad567/gray-logic-automation/internal/automation"
	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/diagnostics"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Automations is the part of automation.Engine the API uses.
type Automations interface {
	List() []automation.Status
	Get(id string) (*automation.Rule, error)
	Remove(id string) error
	Triggers(ctx context.Context, id string, limit int) ([]automation.TriggerRecord, error)
	RecentTriggers(ctx context.Context, limit int) ([]automation.TriggerRecord, error)
}

// Actuators is the part of actuator.MQTTSink the API uses.
type Actuators interface {
	List() []actuator.Status
	Get(id string) (actuator.Status, error)
	Enable(id string) error
	Disable(id string) error
	SetState(ctx context.Context, id string, state actuator.State) error
}

// Diagnostics is the read side of diagnostics.Journal.
type Diagnostics interface {
	Recent(limit int) []diagnostics.Entry
	Counts() map[diagnostics.Severity]int
}

// EventBus is the part of bus.Bus the API uses: publishing synthetic
// events and relaying events to WebSocket clients.
type EventBus interface {
	Publish(ctx context.Context, payload bus.Payload, scope string) error
	Subscribe(kind *bus.Kind, filter string, handler bus.Handler) (bus.Token, error)
	Unsubscribe(token bus.Token) bool
}

// HealthChecker is implemented by the database, MQTT and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies of the API server. Only Logger is required.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Logger      *logging.Logger
	Automations Automations
	Actuators   Actuators
	Diagnostics Diagnostics
	Bus         EventBus
	Gatherer    prometheus.Gatherer
	Registerer  prometheus.Registerer
	Checks      map[string]HealthChecker
	Version     string
}

// Server is the operator HTTP server.
//
// It is created with New, started with Start and stopped with Close.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	automations Automations
	actuators   Actuators
	diagnostics Diagnostics
	bus         EventBus
	gatherer    prometheus.Gatherer
	checks      map[string]HealthChecker
	version     string
	startTime   time.Time
	httpMetrics *httpMetrics

	hub      *Hub
	relay    bus.Token
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// New creates an API server. The server does not listen until Start.
//
// Parameters:
//   - deps: server dependencies; nil fields disable their endpoints
//
// Returns:
//   - *Server: configured server
//   - error: if the logger is missing or metrics registration fails
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		automations: deps.Automations,
		actuators:   deps.Actuators,
		diagnostics: deps.Diagnostics,
		bus:         deps.Bus,
		gatherer:    deps.Gatherer,
		checks:      deps.Checks,
		version:     deps.Version,
		startTime:   time.Now(),
	}
	if deps.Registerer != nil {
		m, err := newHTTPMetrics(deps.Registerer)
		if err != nil {
			return nil, err
		}
		s.httpMetrics = m
	}
	s.hub = NewHub(s.wsCfg, s.logger)
	return s, nil
}

// Handler returns the router. Exposed for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start subscribes the hub to the bus, binds the listener and serves in
// the background.
//
// Parameters:
//   - ctx: parent context for the hub and relay lifetime
//
// Returns:
//   - error: if the bus subscription or listener fails
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	srvCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.hub.Run(srvCtx)

	if s.bus != nil {
		token, err := s.hub.Relay(s.bus)
		if err != nil {
			cancel()
			return fmt.Errorf("subscribing websocket relay: %w", err)
		}
		s.relay = token
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		cancel()
		if s.bus != nil {
			s.bus.Unsubscribe(s.relay)
		}
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", ln.Addr().String(), "cert", s.cfg.TLS.CertFile)
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

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the relay and hub, then shuts the listener down, waiting up
// to gracefulShutdownTimeout for in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	if s.bus != nil {
		s.bus.Unsubscribe(s.relay)
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server is serving.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
