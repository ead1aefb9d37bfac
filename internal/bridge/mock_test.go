package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ghosttube/internal/hass"
	"github.com/nerrad567/ghosttube/internal/infrastructure/mqtt"
)

// publishedMessage records a single publish.
type publishedMessage struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

// MockBroker is a test double for a live broker connection.
type MockBroker struct {
	mu            sync.Mutex
	published     []publishedMessage
	handlers      map[string]mqtt.MessageHandler
	failSubscribe map[string]bool
	closed        bool

	// gate, when set, holds every Publish until it is closed
	gate chan struct{}
	// onSubscribe runs once, before the first subscription is recorded
	onSubscribe func()
}

func newMockBroker() *MockBroker {
	return &MockBroker{
		handlers:      make(map[string]mqtt.MessageHandler),
		failSubscribe: make(map[string]bool),
	}
}

func (b *MockBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return mqtt.ErrNotConnected
	}
	b.published = append(b.published, publishedMessage{
		Topic:    topic,
		Payload:  string(payload),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (b *MockBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	hook := b.onSubscribe
	b.onSubscribe = nil
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSubscribe[topic] {
		return mqtt.ErrSubscribeFailed
	}
	b.handlers[topic] = handler
	return nil
}

func (b *MockBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

func (b *MockBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// SimulateMessage delivers a message as if it arrived from the broker.
func (b *MockBroker) SimulateMessage(topic string, payload []byte) bool {
	b.mu.Lock()
	h, ok := b.handlers[topic]
	b.mu.Unlock()
	if !ok {
		return false
	}
	//nolint:errcheck // Test helper
	h(topic, payload)
	return true
}

func (b *MockBroker) Messages() []publishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]publishedMessage, len(b.published))
	copy(out, b.published)
	return out
}

// MessagesOn returns the payloads published to topic, oldest first.
func (b *MockBroker) MessagesOn(topic string) []publishedMessage {
	var out []publishedMessage
	for _, m := range b.Messages() {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// hold makes Publish block until the returned release is called.
func (b *MockBroker) hold() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.gate = nil
			b.mu.Unlock()
			close(gate)
		})
	}
}

func (b *MockBroker) Reset() {
	b.mu.Lock()
	b.published = nil
	b.mu.Unlock()
}

// mockDialer hands out MockBrokers, failing while failures > 0.
type mockDialer struct {
	mu       sync.Mutex
	failures int
	dials    int
	brokers  []*MockBroker
	wills    []mqtt.Will
	lost     []func(error)

	// onSubscribe is handed to the next broker dialled
	onSubscribe func()
}

var errDialRefused = errors.New("connection refused")

func (d *mockDialer) dial(will mqtt.Will, lost func(error)) (Broker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.wills = append(d.wills, will)
	if d.failures > 0 {
		d.failures--
		return nil, errDialRefused
	}
	b := newMockBroker()
	b.onSubscribe = d.onSubscribe
	d.onSubscribe = nil
	d.brokers = append(d.brokers, b)
	d.lost = append(d.lost, lost)
	return b, nil
}

func (d *mockDialer) setFailures(n int) {
	d.mu.Lock()
	d.failures = n
	d.mu.Unlock()
}

func (d *mockDialer) last() *MockBroker {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.brokers) == 0 {
		return nil
	}
	return d.brokers[len(d.brokers)-1]
}

func (d *mockDialer) dropLast(err error) {
	d.mu.Lock()
	lost := d.lost[len(d.lost)-1]
	d.mu.Unlock()
	lost(err)
}

func (d *mockDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// fakeClock records scheduled reconnect timers instead of sleeping.
type fakeClock struct {
	mu     sync.Mutex
	delays []time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *fakeClock) after(d time.Duration, f func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{f: f}
	c.delays = append(c.delays, d)
	c.timers = append(c.timers, t)
	return t
}

// fire runs the most recent timer if it has not been stopped.
func (c *fakeClock) fire(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	if len(c.timers) == 0 {
		c.mu.Unlock()
		t.Fatal("no reconnect timer scheduled")
	}
	ft := c.timers[len(c.timers)-1]
	c.mu.Unlock()

	ft.mu.Lock()
	stopped := ft.stopped
	ft.stopped = true
	ft.mu.Unlock()
	if !stopped {
		ft.f()
	}
}

func (c *fakeClock) scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.delays))
	copy(out, c.delays)
	return out
}

func (c *fakeClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		t.mu.Lock()
		if !t.stopped {
			n++
		}
		t.mu.Unlock()
	}
	return n
}

// recordingNotifier collects notifications.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(message string) {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func testTopics(t *testing.T) hass.Topics {
	t.Helper()
	topics, err := hass.BuildTopics("ghost-tube", "living-room-tv", "ghost-tube")
	if err != nil {
		t.Fatalf("BuildTopics() error = %v", err)
	}
	return topics
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
