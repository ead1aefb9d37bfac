package playback

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeElement is a scriptable media element.
type fakeElement struct {
	mu        sync.Mutex
	listeners map[string]map[int]func()
	nextID    int
	current   float64
	duration  float64
	paused    bool
	calls     []string
	playErr   error
}

func newFakeElement() *fakeElement {
	return &fakeElement{listeners: make(map[string]map[int]func()), paused: true}
}

func (e *fakeElement) AddListener(event string, fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.listeners[event] == nil {
		e.listeners[event] = make(map[int]func())
	}
	e.listeners[event][id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners[event], id)
	}
}

func (e *fakeElement) listenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, m := range e.listeners {
		n += len(m)
	}
	return n
}

// fire sets the current time and dispatches event.
func (e *fakeElement) fire(event string, current float64) {
	e.mu.Lock()
	e.current = current
	fns := make([]func(), 0, len(e.listeners[event]))
	for _, fn := range e.listeners[event] {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (e *fakeElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *fakeElement) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *fakeElement) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *fakeElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "play")
	if e.playErr != nil {
		return e.playErr
	}
	e.paused = false
	return nil
}

func (e *fakeElement) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "pause")
	e.paused = true
	return nil
}

func (e *fakeElement) SetCurrentTime(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "seek")
	e.current = seconds
	return nil
}

func (e *fakeElement) callLog() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

// fakePlayer is a scriptable player handle.
type fakePlayer struct {
	mu        sync.Mutex
	state     PlayerState
	listeners map[int]func(PlayerState)
	nextID    int
}

func newFakePlayer(state PlayerState) *fakePlayer {
	return &fakePlayer{state: state, listeners: make(map[int]func(PlayerState))}
}

func (p *fakePlayer) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePlayer) AddStateListener(fn func(PlayerState)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *fakePlayer) set(state PlayerState) {
	p.mu.Lock()
	p.state = state
	fns := make([]func(PlayerState), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

func (p *fakePlayer) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// fakeSource wires the fakes together.
type fakeSource struct {
	mu          sync.Mutex
	handle      chan PlayerHandle
	element     *fakeElement
	metadata    Metadata
	lookups     int
	navigations []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		handle:  make(chan PlayerHandle, 1),
		element: newFakeElement(),
	}
}

func (s *fakeSource) PlayerHandle() <-chan PlayerHandle {
	return s.handle
}

func (s *fakeSource) MediaElement() (MediaElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.element == nil {
		return nil, ErrNoElement
	}
	return s.element, nil
}

// setElement makes el the element the host reports, nil for none.
func (s *fakeSource) setElement(el *fakeElement) {
	s.mu.Lock()
	s.element = el
	s.mu.Unlock()
}

func (s *fakeSource) LookupMetadata(string) Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	return s.metadata
}

func (s *fakeSource) setMetadata(m Metadata) {
	s.mu.Lock()
	s.metadata = m
	s.mu.Unlock()
}

func (s *fakeSource) lookupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func (s *fakeSource) Navigate(location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if location == "" {
		return errors.New("empty location")
	}
	s.navigations = append(s.navigations, location)
	return nil
}

func (s *fakeSource) navigated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.navigations))
	copy(out, s.navigations)
	return out
}

// snapshotRecorder collects emitted snapshots.
type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *snapshotRecorder) record(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *snapshotRecorder) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return Snapshot{}
	}
	return r.snaps[len(r.snaps)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
