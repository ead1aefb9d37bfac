package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/ghosttube/internal/hass"
	"github.com/nerrad567/ghosttube/internal/infrastructure/mqtt"
)

// Connection constants.
const (
	// DefaultPositionInterval is the period of the position ticker.
	DefaultPositionInterval = 5 * time.Second

	notifyConnectFailed  = "GhostTube: cannot reach the MQTT broker, retrying"
	notifyConnectionLost = "GhostTube: lost connection to the MQTT broker, retrying"
)

// Status is the connection status of a ConnectionManager.
type Status string

// Connection statuses.
const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// ConnectionState is a read-only copy of the manager's connection state.
type ConnectionState struct {
	Status          Status    `json:"status"`
	LastConnectedAt time.Time `json:"last_connected_at,omitzero"`
	LastError       string    `json:"last_error,omitempty"`
	BrokerURL       string    `json:"broker_url,omitempty"`
}

// Broker is one live broker connection. *mqtt.Client satisfies it.
type Broker interface {
	Subscriber
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	Close() error
}

// DialFunc opens a broker connection carrying will. lost is invoked when the
// connection later drops unexpectedly.
type DialFunc func(will mqtt.Will, lost func(err error)) (Broker, error)

// PositionFunc reports the current playback position, ok=false when nothing
// is playing.
type PositionFunc func() (seconds float64, ok bool)

// MQTTDialer returns a DialFunc that connects with opts. The mqtt client
// never reconnects on its own; the manager owns the policy.
func MQTTDialer(opts mqtt.Options) DialFunc {
	return func(will mqtt.Will, lost func(err error)) (Broker, error) {
		o := opts
		o.Will = &will
		o.OnConnectionLost = lost

		client, err := mqtt.Connect(o)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// timer is the part of *time.Timer the manager uses.
type timer interface {
	Stop() bool
}

// ManagerOptions configures a ConnectionManager.
type ManagerOptions struct {
	// Topics is the device topic namespace. Required.
	Topics hass.Topics

	// Discovery is the retained discovery payload published on every connect.
	Discovery []byte

	// Dial opens broker connections. Required.
	Dial DialFunc

	// BrokerURL is reported in ConnectionState.
	BrokerURL string

	// QoS for every publish and subscription.
	QoS byte

	// ReconnectBase and ReconnectMax bound the backoff.
	// Default: 5s and 60s.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration

	// PositionInterval is the position ticker period.
	// Default: 5 seconds.
	PositionInterval time.Duration

	// Notifier receives the first failure of each failure streak. Optional.
	Notifier Notifier

	// Logger is optional.
	Logger Logger
}

// ConnectionManager owns the broker connection and everything advertised
// over it.
type ConnectionManager struct {
	topics    hass.Topics
	discovery []byte
	dial      DialFunc
	qos       byte
	interval  time.Duration
	router    *CommandRouter
	notifier  Notifier
	logger    Logger
	after     func(d time.Duration, f func()) timer

	mu       sync.Mutex
	state    ConnectionState
	broker   Broker
	connID   uint64 // bumped per attempt and on Disconnect; stale callbacks compare against it
	wanted   bool   // true between Connect and Disconnect
	visible  bool
	backoff  *Backoff
	notified bool

	reconnect    timer
	reconnectGen uint64
	tickerStop   chan struct{}

	// pending is the newest media state not yet written; publishing is true
	// while a drain goroutine owns it.
	pending    *hass.MediaState
	publishing bool

	// handlers, set once during wiring
	onCommand  CommandHandler
	onIdle     func()
	onStatus   []func(ConnectionState)
	positionFn PositionFunc

	// sendMu serialises broker writes. Lock order: mu, then sendMu.
	sendMu sync.Mutex
}

// NewConnectionManager creates a manager in the disconnected state.
// Call Connect to start.
func NewConnectionManager(opts ManagerOptions) (*ConnectionManager, error) {
	if opts.Dial == nil {
		return nil, fmt.Errorf("dial function is required")
	}
	if opts.Topics.Available == "" {
		return nil, fmt.Errorf("topics are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	interval := opts.PositionInterval
	if interval <= 0 {
		interval = DefaultPositionInterval
	}

	return &ConnectionManager{
		topics:    opts.Topics,
		discovery: opts.Discovery,
		dial:      opts.Dial,
		qos:       opts.QoS,
		interval:  interval,
		router:    NewCommandRouter(opts.Topics, opts.QoS, logger),
		notifier:  opts.Notifier,
		logger:    logger,
		after: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
		state: ConnectionState{
			Status:    StatusDisconnected,
			BrokerURL: opts.BrokerURL,
		},
		visible: true,
		backoff: NewBackoff(opts.ReconnectBase, opts.ReconnectMax),
	}, nil
}

// SetCommandHandler sets the callback for routed commands.
func (m *ConnectionManager) SetCommandHandler(h CommandHandler) {
	m.mu.Lock()
	m.onCommand = h
	m.mu.Unlock()
}

// OnBecameIdle sets the callback invoked when the host goes to standby.
func (m *ConnectionManager) OnBecameIdle(f func()) {
	m.mu.Lock()
	m.onIdle = f
	m.mu.Unlock()
}

// OnStatusChange adds a callback invoked after every status transition.
// Callbacks run in registration order on the goroutine that caused the
// transition.
func (m *ConnectionManager) OnStatusChange(f func(ConnectionState)) {
	m.mu.Lock()
	m.onStatus = append(m.onStatus, f)
	m.mu.Unlock()
}

// SetPositionFunc sets the source of the position ticker.
func (m *ConnectionManager) SetPositionFunc(f PositionFunc) {
	m.mu.Lock()
	m.positionFn = f
	m.mu.Unlock()
}

// State returns a copy of the current connection state.
func (m *ConnectionManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the broker connection. It is a no-op while connected or
// connecting. On failure a reconnect is scheduled and the error returned;
// the caller need not retry.
func (m *ConnectionManager) Connect() error {
	m.mu.Lock()
	if m.state.Status == StatusConnected || m.state.Status == StatusConnecting {
		m.mu.Unlock()
		return nil
	}
	m.wanted = true
	m.cancelReconnectLocked()
	m.connID++
	id := m.connID
	connecting := m.setStatusLocked(StatusConnecting, "")
	m.mu.Unlock()
	m.emitStatus(connecting)

	m.logger.Info("connecting to MQTT broker", "broker", connecting.BrokerURL)

	will := mqtt.Will{
		Topic:    m.topics.Available,
		Payload:  hass.PayloadOffline,
		QoS:      m.qos,
		Retained: true,
	}
	broker, err := m.dial(will, func(err error) {
		m.handleConnectionLost(id, err)
	})
	if err != nil {
		m.handleConnectFailed(id, err)
		return err
	}

	return m.handleConnected(id, broker)
}

// handleConnected finishes a successful attempt.
func (m *ConnectionManager) handleConnected(id uint64, broker Broker) error {
	m.mu.Lock()
	if id != m.connID || !m.wanted {
		m.mu.Unlock()
		//nolint:errcheck // Abandoned connection
		broker.Close()
		return ErrDisconnected
	}

	m.broker = broker
	m.state.LastConnectedAt = time.Now()
	connected := m.setStatusLocked(StatusConnected, "")
	m.backoff.Reset()
	m.notified = false
	visible := m.visible

	m.sendMu.Lock()
	m.mu.Unlock()

	availability := hass.PayloadOnline
	if !visible {
		availability = hass.PayloadOffline
	}
	m.send(broker, m.topics.Available, availability, true)
	if len(m.discovery) > 0 {
		if err := broker.Publish(m.topics.DiscoveryConfig, m.discovery, m.qos, true); err != nil {
			m.logger.Warn("publishing discovery failed", "topic", m.topics.DiscoveryConfig, "error", err)
		}
	}
	//nolint:errcheck // Failures are logged per topic by the router
	m.router.Subscribe(broker, m.dispatchCommand)
	m.sendMu.Unlock()

	m.mu.Lock()
	// A drop during setup clears m.broker without bumping connID
	current := id == m.connID && m.broker == broker
	if current && m.visible {
		m.startTickerLocked()
	}
	m.mu.Unlock()

	if !current {
		return ErrDisconnected
	}
	m.logger.Info("connected to MQTT broker", "broker", connected.BrokerURL)
	m.emitStatus(connected)
	return nil
}

// dispatchCommand hands a routed command to the registered handler.
func (m *ConnectionManager) dispatchCommand(kind hass.CommandKind, payload []byte) {
	m.mu.Lock()
	h := m.onCommand
	m.mu.Unlock()
	if h != nil {
		h(kind, payload)
	}
}

// handleConnectFailed records a failed attempt and schedules the next one.
func (m *ConnectionManager) handleConnectFailed(id uint64, err error) {
	m.mu.Lock()
	if id != m.connID {
		m.mu.Unlock()
		return
	}
	failed := m.setStatusLocked(StatusError, err.Error())
	delay := m.scheduleReconnectLocked()
	notify := m.markFailureLocked()
	m.mu.Unlock()

	m.logger.Warn("MQTT connect failed", "error", err, "retry_in", delay)
	m.emitStatus(failed)
	if notify {
		m.notify(notifyConnectFailed)
	}
}

// handleConnectionLost is invoked by the broker client when an established
// connection drops.
func (m *ConnectionManager) handleConnectionLost(id uint64, err error) {
	m.mu.Lock()
	if id != m.connID || m.broker == nil {
		m.mu.Unlock()
		return
	}

	m.broker = nil
	m.pending = nil
	m.stopTickerLocked()

	status, msg := StatusDisconnected, ""
	if err != nil {
		status, msg = StatusError, err.Error()
	}
	lost := m.setStatusLocked(status, msg)

	var delay time.Duration
	if m.wanted {
		delay = m.scheduleReconnectLocked()
	}
	notify := m.markFailureLocked()
	m.mu.Unlock()

	m.logger.Warn("MQTT connection lost", "error", err, "retry_in", delay)
	m.emitStatus(lost)
	if notify {
		m.notify(notifyConnectionLost)
	}
}

// Disconnect cancels any pending reconnect, stops the ticker, flushes a
// queued media state, advertises OFF if connected and closes the socket. The manager always ends
// disconnected.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.wanted = false
	m.connID++
	m.cancelReconnectLocked()
	m.stopTickerLocked()

	broker := m.broker
	m.broker = nil
	final := m.pending
	m.pending = nil
	wasConnected := m.state.Status == StatusConnected
	changed := m.state.Status != StatusDisconnected
	disconnected := m.setStatusLocked(StatusDisconnected, "")

	m.sendMu.Lock()
	m.mu.Unlock()

	if broker != nil {
		if wasConnected {
			if final != nil {
				for _, msg := range final.Payloads(m.topics) {
					m.send(broker, msg.Topic, msg.Payload, false)
				}
			}
			m.send(broker, m.topics.Available, hass.PayloadOffline, true)
		}
		if err := broker.Close(); err != nil {
			m.logger.Warn("closing MQTT connection failed", "error", err)
		}
	}
	m.sendMu.Unlock()

	if changed {
		m.logger.Info("disconnected from MQTT broker")
		m.emitStatus(disconnected)
	}
}

// Publish queues every topic of state for sending and returns without
// waiting for the broker. A state still queued when a newer one arrives is
// replaced by it. It is dropped while not connected.
func (m *ConnectionManager) Publish(state hass.MediaState) {
	m.mu.Lock()
	if m.state.Status != StatusConnected || m.broker == nil {
		m.mu.Unlock()
		m.logger.Debug("not connected, dropping media state", "state", state.State)
		return
	}
	m.pending = &state
	if m.publishing {
		m.mu.Unlock()
		return
	}
	m.publishing = true
	m.mu.Unlock()

	go m.drainPublishes()
}

// drainPublishes writes queued media states until none is left.
func (m *ConnectionManager) drainPublishes() {
	for {
		m.mu.Lock()
		state, broker := m.pending, m.broker
		m.pending = nil
		if state == nil || broker == nil {
			m.publishing = false
			m.mu.Unlock()
			return
		}
		m.sendMu.Lock()
		m.mu.Unlock()

		for _, msg := range state.Payloads(m.topics) {
			m.send(broker, msg.Topic, msg.Payload, false)
		}
		m.sendMu.Unlock()
	}
}

// publishIdle reports whether no media state is queued or being written.
func (m *ConnectionManager) publishIdle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.publishing
}

// OnVisibilityChange advertises the host's visibility. The socket stays
// open; hiding publishes OFF, pauses the ticker and fires the idle callback.
func (m *ConnectionManager) OnVisibilityChange(visible bool) {
	m.mu.Lock()
	if m.visible == visible {
		m.mu.Unlock()
		return
	}
	m.visible = visible

	broker := m.broker
	connected := m.state.Status == StatusConnected && broker != nil
	if visible && connected {
		m.startTickerLocked()
	} else if !visible {
		m.stopTickerLocked()
	}
	onIdle := m.onIdle

	m.sendMu.Lock()
	m.mu.Unlock()

	if connected {
		payload := hass.PayloadOffline
		if visible {
			payload = hass.PayloadOnline
		}
		m.send(broker, m.topics.Available, payload, true)
	}
	m.sendMu.Unlock()

	m.logger.Info("host visibility changed", "visible", visible)

	if !visible && onIdle != nil {
		onIdle()
	}
}

// send publishes a single string payload, logging failures.
// Caller holds sendMu.
func (m *ConnectionManager) send(broker Broker, topic, payload string, retained bool) {
	if err := broker.Publish(topic, []byte(payload), m.qos, retained); err != nil {
		m.logger.Warn("MQTT publish failed", "topic", topic, "error", err)
	}
}

// setStatusLocked transitions the status and returns a copy for emitStatus.
func (m *ConnectionManager) setStatusLocked(status Status, lastError string) ConnectionState {
	m.state.Status = status
	if lastError != "" {
		m.state.LastError = lastError
	}
	return m.state
}

func (m *ConnectionManager) emitStatus(s ConnectionState) {
	m.mu.Lock()
	listeners := make([]func(ConnectionState), len(m.onStatus))
	copy(listeners, m.onStatus)
	m.mu.Unlock()
	for _, f := range listeners {
		f(s)
	}
}

// markFailureLocked reports whether this failure starts a new streak.
func (m *ConnectionManager) markFailureLocked() bool {
	if m.notified {
		return false
	}
	m.notified = true
	return true
}

func (m *ConnectionManager) notify(message string) {
	if m.notifier != nil {
		m.notifier.Notify(message)
	}
}

// scheduleReconnectLocked replaces any pending reconnect timer.
func (m *ConnectionManager) scheduleReconnectLocked() time.Duration {
	m.cancelReconnectLocked()

	delay := m.backoff.Next()
	m.reconnectGen++
	gen := m.reconnectGen
	m.reconnect = m.after(delay, func() {
		m.onReconnectTimer(gen)
	})
	return delay
}

func (m *ConnectionManager) cancelReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	// A timer that already fired sees a newer generation and does nothing
	m.reconnectGen++
}

func (m *ConnectionManager) onReconnectTimer(gen uint64) {
	m.mu.Lock()
	if gen != m.reconnectGen || !m.wanted {
		m.mu.Unlock()
		return
	}
	m.reconnect = nil
	m.mu.Unlock()

	//nolint:errcheck // Failure schedules the next attempt
	m.Connect()
}

// startTickerLocked starts the position ticker unless it is already running.
func (m *ConnectionManager) startTickerLocked() {
	if m.tickerStop != nil {
		return
	}
	stop := make(chan struct{})
	m.tickerStop = stop
	go m.positionLoop(stop)
}

func (m *ConnectionManager) stopTickerLocked() {
	if m.tickerStop != nil {
		close(m.tickerStop)
		m.tickerStop = nil
	}
}

// tickerRunning reports whether a position ticker is live.
func (m *ConnectionManager) tickerRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickerStop != nil
}

func (m *ConnectionManager) positionLoop(stop chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.publishPosition(stop)
		}
	}
}

func (m *ConnectionManager) publishPosition(stop chan struct{}) {
	m.mu.Lock()
	positionFn := m.positionFn
	m.mu.Unlock()
	if positionFn == nil {
		return
	}

	pos, ok := positionFn()
	if !ok {
		return
	}

	m.mu.Lock()
	// A stopped ticker may still deliver one tick
	if m.tickerStop != stop || m.broker == nil {
		m.mu.Unlock()
		return
	}
	broker := m.broker
	m.sendMu.Lock()
	m.mu.Unlock()
	defer m.sendMu.Unlock()

	m.send(broker, m.topics.Position, hass.FormatSeconds(&pos), false)
}
