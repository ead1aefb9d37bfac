package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client wraps paho.mqtt.golang with connection bookkeeping, input
// validation and handler panic recovery.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client  pahomqtt.Client
	options Options

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// They should not block for extended periods.
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options (broker URL, auth, TLS, Last Will)
//  2. Attempts the connection, bounded by Options.ConnectTimeout
//  3. Wires the connection-lost callback
//
// paho never reconnects on its own; after a loss the caller dials again.
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: wrapping ErrConnectionFailed if the attempt fails or times out
func Connect(o Options) (*Client, error) {
	opts := buildClientOptions(o)

	c := &Client{options: o}

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(o.connectTimeout()) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, o.connectTimeout())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if c.options.OnConnectionLost != nil {
		c.options.OnConnectionLost(err)
	}
}

// Close disconnects from the MQTT broker.
//
// A clean disconnect does not trigger the Last Will; callers that want the
// offline state advertised publish it themselves before closing.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.client.Disconnect(defaultDisconnectQuiesce)

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// BrokerURL returns the URL this client dials.
func (c *Client) BrokerURL() string {
	return c.options.BrokerURL()
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		logger := c.options.Logger
		defer func() {
			if r := recover(); r != nil && logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil && logger != nil {
			logger.Warn("MQTT handler returned error",
				"topic", msg.Topic(),
				"error", err,
			)
		}
	}
}
