package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/ghosttube/internal/bridge"
	"github.com/nerrad567/ghosttube/internal/hass"
	"github.com/nerrad567/ghosttube/internal/infrastructure/config"
	"github.com/nerrad567/ghosttube/internal/infrastructure/logging"
	"github.com/nerrad567/ghosttube/internal/playback"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionStatus reports the broker connection. *bridge.ConnectionManager
// satisfies it.
type ConnectionStatus interface {
	State() bridge.ConnectionState
}

// MediaStatus reports the published media state. *session.Coordinator
// satisfies it.
type MediaStatus interface {
	Current() (hass.MediaState, bool)
}

// HealthChecker is a dependency probed by the health endpoint.
// *influxdb.Client satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// VisibilityPublisher receives host visibility changes. *visibility.Bus
// satisfies it.
type VisibilityPublisher interface {
	Publish(visible bool)
}

// Deps holds the dependencies required by the agent server.
type Deps struct {
	Config     config.AgentConfig
	Logger     *logging.Logger
	Connection ConnectionStatus    // optional: status endpoint omits it when nil
	Media      MediaStatus         // optional
	Visibility VisibilityPublisher // optional

	// HealthChecks are probed by GET /api/v1/health, keyed by name. Optional.
	HealthChecks map[string]HealthChecker

	Version string
}

// Server is the playback agent.
//
// It serves the status endpoints and the host WebSocket, and implements
// playback.Source, session.NavigationSource and bridge.Notifier on top of
// the connected host.
type Server struct {
	*hostPage

	cfg        config.AgentConfig
	logger     *logging.Logger
	connection ConnectionStatus
	media      MediaStatus
	visibility VisibilityPublisher
	checks     map[string]HealthChecker
	version    string

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc

	hostMu sync.Mutex
	host   *hostConn
}

// Compile-time interface checks.
var (
	_ playback.Source = (*Server)(nil)
	_ bridge.Notifier = (*Server)(nil)
)

// New creates a new agent server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		connection: deps.Connection,
		media:      deps.Media,
		visibility: deps.Visibility,
		checks:     deps.HealthChecks,
		version:    deps.Version,
	}
	s.hostPage = newHostPage(s.sendCommand)
	return s, nil
}

// SetStatusSources attaches the status endpoint's sources. It exists for
// wiring orders where the coordinator is built after the agent.
func (s *Server) SetStatusSources(conn ConnectionStatus, media MediaStatus) {
	s.hostMu.Lock()
	defer s.hostMu.Unlock()
	s.connection = conn
	s.media = media
}

// Start binds the listener and serves in the background.
//
// A bind failure is returned directly; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
		BaseContext:       func(net.Listener) context.Context { return srvCtx },
	}

	s.logger.Info("playback agent listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("playback agent server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close disconnects the host and gracefully shuts down the HTTP server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	// Hijacked connections are not tracked by Shutdown.
	s.hostMu.Lock()
	h := s.host
	s.hostMu.Unlock()
	if h != nil {
		h.close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("playback agent shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down playback agent: %w", err)
	}
	return nil
}

// HostConnected reports whether a playback host is attached.
func (s *Server) HostConnected() bool {
	s.hostMu.Lock()
	defer s.hostMu.Unlock()
	return s.host != nil
}

// Navigate asks the host to load location.
func (s *Server) Navigate(location string) error {
	return s.sendCommand(CommandPayload{Action: ActionNavigate, Location: location})
}

// Notify shows message on the host. Without a host the message is dropped.
func (s *Server) Notify(message string) {
	err := s.sendToHost(newMessage(TypeNotification, "", NotificationPayload{Message: message}))
	if err != nil {
		s.logger.Debug("notification dropped", "message", message, "error", err)
	}
}

func (s *Server) sendCommand(cmd CommandPayload) error {
	return s.sendToHost(newMessage(TypeCommand, "", cmd))
}

// sendToHost queues msg for the active host.
func (s *Server) sendToHost(msg WSMessage) error {
	s.hostMu.Lock()
	h := s.host
	s.hostMu.Unlock()

	if h == nil {
		return ErrNoHost
	}
	return h.sendMessage(msg)
}

// attachHost makes h the active host, closing any previous one.
func (s *Server) attachHost(h *hostConn) {
	s.hostMu.Lock()
	old := s.host
	s.host = h
	s.hostMu.Unlock()

	if old != nil {
		s.logger.Info("playback host replaced")
		old.close()
	} else {
		s.logger.Info("playback host connected")
	}

	// A freshly loaded page is visible until it says otherwise.
	if s.visibility != nil {
		s.visibility.Publish(true)
	}
}

// detachHost clears h if it is still the active host. A departed host
// leaves the playable view and is no longer visible.
func (s *Server) detachHost(h *hostConn) {
	s.hostMu.Lock()
	current := s.host == h
	if current {
		s.host = nil
	}
	s.hostMu.Unlock()

	if !current {
		return
	}

	s.logger.Info("playback host disconnected")
	s.hostPage.reset()
	s.hostPage.navigated(playback.HomeLocation)
	if s.visibility != nil {
		s.visibility.Publish(false)
	}
}
