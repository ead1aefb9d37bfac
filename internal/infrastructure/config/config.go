package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/ghosttube/internal/hass"
)

// Config is the root configuration structure for the GhostTube bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Agent    AgentConfig    `yaml:"agent"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies the media player entity exposed to Home Assistant.
type DeviceConfig struct {
	// ID is the device identifier used in every topic.
	// Restricted to lowercase alphanumerics and hyphens (e.g. "living-room-tv").
	ID string `yaml:"id"`

	// Name is the human-readable entity name shown by the hub.
	Name string `yaml:"name"`

	// StatePrefix is the root of the live-state topics.
	// Default: "ghost-tube"
	StatePrefix string `yaml:"state_prefix"`

	// AppName segregates the retained discovery payload under
	// homeassistant/media_player/{id}/{app_name}/config.
	// Default: "ghost-tube"
	AppName string `yaml:"app_name"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// ConnectTimeout bounds a single connection attempt (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// PositionInterval is the period of the position publication ticker (seconds).
	PositionInterval int `yaml:"position_interval"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// Transport is "tcp" or "websockets".
	Transport string `yaml:"transport"`

	// Path is the HTTP path used with the websockets transport.
	Path string `yaml:"path"`

	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// AgentConfig contains settings for the playback agent HTTP/WebSocket server.
type AgentConfig struct {
	Host      string             `yaml:"host"`
	Port      int                `yaml:"port"`
	Timeouts  AgentTimeoutConfig `yaml:"timeouts"`
	WebSocket WebSocketConfig    `yaml:"websocket"`
	Auth      AgentAuthConfig    `yaml:"auth"`
}

// AgentAuthConfig controls host authentication on the WebSocket endpoint.
// An empty secret leaves the endpoint open.
type AgentAuthConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"` // hours, 0 = tokens never expire
}

// AgentTimeoutConfig contains HTTP timeout settings (seconds).
type AgentTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains settings for the playback host connection.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GHOSTTUBE_SECTION_KEY
// For example: GHOSTTUBE_DEVICE_ID, GHOSTTUBE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:        "GhostTube",
			StatePrefix: "ghost-tube",
			AppName:     "ghost-tube",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:      "localhost",
				Port:      1883,
				Transport: "tcp",
				Path:      "/",
				ClientID:  "ghosttube-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 5,
				MaxDelay:     60,
			},
			ConnectTimeout:   10,
			PositionInterval: 5,
		},
		Agent: AgentConfig{
			Host: "0.0.0.0",
			Port: 8765,
			Timeouts: AgentTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 65536,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GHOSTTUBE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GHOSTTUBE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// MQTT
	if v := os.Getenv("GHOSTTUBE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GHOSTTUBE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GHOSTTUBE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Agent
	if v := os.Getenv("GHOSTTUBE_AGENT_SECRET"); v != "" {
		cfg.Agent.Auth.Secret = v
	}

	// InfluxDB
	if v := os.Getenv("GHOSTTUBE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation. Identifiers end up in topic names, so they are
	// rejected here rather than at publish time.
	if err := hass.ValidateDeviceID(c.Device.ID); err != nil {
		errs = append(errs, fmt.Sprintf("device.id: %v", err))
	}
	if c.Device.StatePrefix == "" {
		errs = append(errs, "device.state_prefix is required")
	} else if strings.ContainsAny(c.Device.StatePrefix, "+#") {
		errs = append(errs, "device.state_prefix must not contain MQTT wildcards")
	}
	if c.Device.AppName == "" {
		errs = append(errs, "device.app_name is required")
	} else if strings.ContainsAny(c.Device.AppName, "/+#") {
		errs = append(errs, "device.app_name must be a single topic level")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	switch c.MQTT.Broker.Transport {
	case "tcp", "websockets":
	default:
		errs = append(errs, "mqtt.broker.transport must be tcp or websockets")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.InitialDelay < 1 {
		errs = append(errs, "mqtt.reconnect.initial_delay must be at least 1 second")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must not be less than initial_delay")
	}
	if c.MQTT.PositionInterval < 1 {
		errs = append(errs, "mqtt.position_interval must be at least 1 second")
	}

	// Agent validation
	if c.Agent.Port < 1 || c.Agent.Port > 65535 {
		errs = append(errs, "agent.port must be between 1 and 65535")
	}
	// A short secret makes host tokens forgeable
	const minAgentSecretLength = 32
	if c.Agent.Auth.Secret != "" && len(c.Agent.Auth.Secret) < minAgentSecretLength {
		errs = append(errs, "agent.auth.secret must be at least 32 characters")
	}
	if c.Agent.Auth.TokenTTL < 0 {
		errs = append(errs, "agent.auth.token_ttl must not be negative")
	}

	// InfluxDB validation (only when enabled)
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetConnectTimeout returns the MQTT connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.ConnectTimeout) * time.Second
}

// GetPositionInterval returns the position ticker period as a Duration.
func (c *Config) GetPositionInterval() time.Duration {
	return time.Duration(c.MQTT.PositionInterval) * time.Second
}

// GetReconnectDelays returns the reconnect backoff base and ceiling.
func (c *Config) GetReconnectDelays() (initial, maxDelay time.Duration) {
	return time.Duration(c.MQTT.Reconnect.InitialDelay) * time.Second,
		time.Duration(c.MQTT.Reconnect.MaxDelay) * time.Second
}

// GetReadTimeout returns the agent read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Agent.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the agent write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Agent.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the agent idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Agent.Timeouts.Idle) * time.Second
}

// GetHostTokenTTL returns the lifetime of issued host tokens. Zero means
// tokens do not expire.
func (c *Config) GetHostTokenTTL() time.Duration {
	return time.Duration(c.Agent.Auth.TokenTTL) * time.Hour
}
