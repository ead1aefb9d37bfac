package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ghosttube/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a connection
	// attempt when Options.ConnectTimeout is zero.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 30 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Transport names accepted in Options.Transport.
const (
	TransportTCP        = "tcp"
	TransportWebsockets = "websockets"
)

// Will is the Last Will and Testament published by the broker when the
// client disconnects uncleanly.
type Will struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

// Options describe a single broker connection.
type Options struct {
	Host      string
	Port      int
	TLS       bool
	Transport string // "tcp" (default) or "websockets"
	Path      string // websocket path, e.g. "/mqtt"

	ClientID string
	Username string
	Password string

	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration

	// Will is optional.
	Will *Will

	// OnConnectionLost is invoked (on a paho goroutine) when an established
	// connection drops unexpectedly.
	OnConnectionLost func(err error)

	// Logger receives handler errors and recovered panics. Optional.
	Logger Logger
}

// OptionsFromConfig converts the MQTT section of config.yaml into Options.
func OptionsFromConfig(cfg config.MQTTConfig) Options {
	return Options{
		Host:           cfg.Broker.Host,
		Port:           cfg.Broker.Port,
		TLS:            cfg.Broker.TLS,
		Transport:      cfg.Broker.Transport,
		Path:           cfg.Broker.Path,
		ClientID:       cfg.Broker.ClientID,
		Username:       cfg.Auth.Username,
		Password:       cfg.Auth.Password,
		ConnectTimeout: time.Duration(cfg.ConnectTimeout) * time.Second,
	}
}

// BrokerURL returns the paho broker URL for these options.
//
//	tcp  + no TLS -> tcp://host:port
//	tcp  + TLS    -> ssl://host:port
//	ws   + no TLS -> ws://host:port/path
//	ws   + TLS    -> wss://host:port/path
func (o Options) BrokerURL() string {
	if o.Transport == TransportWebsockets {
		scheme := "ws"
		if o.TLS {
			scheme = "wss"
		}
		path := o.Path
		if path == "" {
			path = "/"
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return fmt.Sprintf("%s://%s:%d%s", scheme, o.Host, o.Port, path)
	}

	scheme := "tcp"
	if o.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, o.Host, o.Port)
}

// connectTimeout returns the effective connect timeout.
func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return defaultConnectTimeout
	}
	return o.ConnectTimeout
}

// buildClientOptions creates paho MQTT options.
//
// This configures:
//   - Broker URL (tcp/ssl/ws/wss)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Last Will and Testament (if provided)
//   - TLS configuration (if enabled)
//   - Clean session mode
func buildClientOptions(o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(o.BrokerURL())
	opts.SetClientID(o.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	// Clean session - the bridge re-subscribes on every connect
	opts.SetCleanSession(true)

	// The bridge owns the reconnect policy
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(o.connectTimeout())
	opts.SetKeepAlive(defaultKeepAlive)

	if o.Will != nil {
		opts.SetWill(o.Will.Topic, o.Will.Payload, o.Will.QoS, o.Will.Retained)
	}

	if o.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}
