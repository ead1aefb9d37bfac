package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ghosttube/internal/infrastructure/config"
)

// These tests do not need a broker. Broker-backed tests live in
// integration_test.go behind the "integration" build tag.

// =============================================================================
// Options Tests
// =============================================================================

func TestOptions_BrokerURL(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		expected string
	}{
		{
			name:     "tcp",
			opts:     Options{Host: "broker.local", Port: 1883},
			expected: "tcp://broker.local:1883",
		},
		{
			name:     "tcp with TLS",
			opts:     Options{Host: "broker.local", Port: 8883, TLS: true},
			expected: "ssl://broker.local:8883",
		},
		{
			name:     "websockets default path",
			opts:     Options{Host: "192.168.86.29", Port: 8083, Transport: TransportWebsockets},
			expected: "ws://192.168.86.29:8083/",
		},
		{
			name:     "websockets relative path",
			opts:     Options{Host: "broker.local", Port: 8083, Transport: TransportWebsockets, Path: "mqtt"},
			expected: "ws://broker.local:8083/mqtt",
		},
		{
			name:     "secure websockets",
			opts:     Options{Host: "broker.local", Port: 443, Transport: TransportWebsockets, TLS: true, Path: "/mqtt"},
			expected: "wss://broker.local:443/mqtt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.BrokerURL(); got != tt.expected {
				t.Errorf("BrokerURL() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:      "broker.local",
			Port:      8083,
			Transport: "websockets",
			Path:      "/mqtt",
			ClientID:  "ghosttube-test",
		},
		Auth:           config.MQTTAuthConfig{Username: "user", Password: "pass"},
		ConnectTimeout: 3,
	}

	opts := OptionsFromConfig(cfg)

	if opts.ClientID != "ghosttube-test" {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, "ghosttube-test")
	}
	if opts.Username != "user" || opts.Password != "pass" {
		t.Errorf("credentials = %q/%q, want user/pass", opts.Username, opts.Password)
	}
	if opts.ConnectTimeout != 3*time.Second {
		t.Errorf("ConnectTimeout = %v, want 3s", opts.ConnectTimeout)
	}
	if opts.BrokerURL() != "ws://broker.local:8083/mqtt" {
		t.Errorf("BrokerURL() = %q", opts.BrokerURL())
	}
}

func TestOptions_ConnectTimeoutDefault(t *testing.T) {
	if got := (Options{}).connectTimeout(); got != defaultConnectTimeout {
		t.Errorf("connectTimeout() = %v, want %v", got, defaultConnectTimeout)
	}
}

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(Options{
		Host:     "broker.local",
		Port:     1883,
		ClientID: "ghosttube-test",
		Username: "user",
		Password: "pass",
		Will: &Will{
			Topic:    "ghost-tube/media_player/tv/available",
			Payload:  "OFF",
			QoS:      1,
			Retained: true,
		},
		ConnectTimeout: 2 * time.Second,
	})

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker.local:1883" {
		t.Errorf("Servers = %v, want [tcp://broker.local:1883]", opts.Servers)
	}
	if opts.ClientID != "ghosttube-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "user" {
		t.Errorf("Username = %q", opts.Username)
	}
	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != "ghost-tube/media_player/tv/available" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if string(opts.WillPayload) != "OFF" {
		t.Errorf("WillPayload = %q, want OFF", opts.WillPayload)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("Will retained=%v qos=%d, want true/1", opts.WillRetained, opts.WillQos)
	}
	if opts.AutoReconnect {
		t.Error("AutoReconnect = true, want false")
	}
	if opts.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout = %v, want 2s", opts.ConnectTimeout)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLSConfig set without TLS enabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	opts := buildClientOptions(Options{Host: "broker.local", Port: 8883, TLS: true})

	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig = nil with TLS enabled")
	}
	if opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLS MinVersion = %x, want %x", opts.TLSConfig.MinVersion, tlsMinVersion)
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_BrokerRefused(t *testing.T) {
	_, err := Connect(Options{
		Host:           "127.0.0.1",
		Port:           19998,
		ClientID:       "ghosttube-test-refused",
		ConnectTimeout: 2 * time.Second,
	})
	if err == nil {
		t.Fatal("Connect() should fail for refused connection")
	}

	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestHandleDisconnect_InvokesCallback(t *testing.T) {
	lost := make(chan error, 1)
	client := &Client{
		connected: true,
		options: Options{
			OnConnectionLost: func(err error) { lost <- err },
		},
	}

	client.handleDisconnect(errors.New("EOF"))

	select {
	case err := <-lost:
		if err == nil || err.Error() != "EOF" {
			t.Errorf("OnConnectionLost err = %v, want EOF", err)
		}
	default:
		t.Fatal("OnConnectionLost not invoked")
	}

	if client.connected {
		t.Error("connected = true after handleDisconnect")
	}
}

// =============================================================================
// Input Validation Tests
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		wantErr error
	}{
		{name: "empty topic", topic: "", qos: 1, wantErr: ErrInvalidTopic},
		{name: "single-level wildcard", topic: "ghost-tube/+/available", qos: 1, wantErr: ErrInvalidTopic},
		{name: "multi-level wildcard", topic: "ghost-tube/#", qos: 1, wantErr: ErrInvalidTopic},
		{name: "invalid qos", topic: "a/b", qos: 3, wantErr: ErrInvalidQoS},
		{name: "oversized payload", topic: "a/b", qos: 1, payload: make([]byte, maxPayloadSize+1), wantErr: ErrPublishFailed},
		{name: "not connected", topic: "a/b", qos: 1, payload: []byte("ON"), wantErr: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{}
	handler := func(string, []byte) error { return nil }

	for _, topic := range []string{"", "ghost-tube/media_player/+/seek", "ghost-tube/#"} {
		if err := client.Subscribe(topic, 1, handler); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("Subscribe(%q) error = %v, want ErrInvalidTopic", topic, err)
		}
	}
	if err := client.Subscribe("a/b", 5, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 5) error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("a/b", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("a/b", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestWrapHandler_DeliversTopicAndPayload(t *testing.T) {
	client := &Client{}

	var gotTopic string
	var gotPayload []byte
	wrapped := client.wrapHandler(func(topic string, payload []byte) error {
		gotTopic = topic
		gotPayload = payload
		return nil
	})

	wrapped(nil, fakeMessage{topic: "ghost-tube/media_player/tv/seek", payload: []byte("05:30")})

	if gotTopic != "ghost-tube/media_player/tv/seek" {
		t.Errorf("topic = %q", gotTopic)
	}
	if string(gotPayload) != "05:30" {
		t.Errorf("payload = %q, want 05:30", gotPayload)
	}
}

func TestWrapHandler_LogsHandlerError(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{options: Options{Logger: logger}}

	wrapped := client.wrapHandler(func(string, []byte) error {
		return errors.New("handler error")
	})
	wrapped(nil, fakeMessage{topic: "a/b"})

	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one entry", logger.warns)
	}
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{options: Options{Logger: logger}}

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})

	// Must not propagate the panic
	wrapped(nil, fakeMessage{topic: "a/b"})

	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one entry", logger.errors)
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	client := &Client{}

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})

	// Recovery must not depend on a logger being configured
	wrapped(nil, fakeMessage{topic: "a/b"})
}
