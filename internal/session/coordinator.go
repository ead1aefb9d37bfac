package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/ghosttube/internal/bridge"
	"github.com/nerrad567/ghosttube/internal/hass"
	"github.com/nerrad567/ghosttube/internal/playback"
)

// eventBuffer is the capacity of the coordinator's event queue.
const eventBuffer = 64

// Connection is the coordinator's view of the connection manager.
// *bridge.ConnectionManager satisfies it.
type Connection interface {
	Publish(state hass.MediaState)
	OnBecameIdle(f func())
	SetCommandHandler(h bridge.CommandHandler)
	SetPositionFunc(f bridge.PositionFunc)
	OnStatusChange(f func(bridge.ConnectionState))
}

// NavigationSource reports host location changes.
type NavigationSource interface {
	OnNavigate(fn func(location string)) (unsubscribe func())
}

// VisibilitySource reports host visibility changes. *visibility.Bus
// satisfies it.
type VisibilitySource interface {
	Subscribe(fn func(visible bool)) (unsubscribe func())
	Visible() bool
}

// Observer is one session's playback observer. *playback.Observer
// satisfies it.
type Observer interface {
	Attach() *playback.ListenerSet
	Destroy(set *playback.ListenerSet)
	Snapshot() playback.Snapshot

	Play()
	Pause()
	Stop()
	Seek(position float64)
	PlayMedia(contentID string)
}

// ObserverFactory builds the observer for a new session.
type ObserverFactory func(contentID string, onUpdate func(playback.Snapshot)) Observer

// StateRecorder receives every media state the coordinator publishes.
type StateRecorder interface {
	RecordMediaState(state hass.MediaState)
}

// Options configures a Coordinator.
type Options struct {
	// Connection publishes media state. Required.
	Connection Connection

	// NewObserver builds session observers. Required unless Source is set.
	NewObserver ObserverFactory

	// Source backs the default observer factory.
	Source playback.Source

	// Navigation and Visibility are subscribed while Run is active. Optional.
	Navigation NavigationSource
	Visibility VisibilitySource

	// Recorder is optional.
	Recorder StateRecorder

	// Logger is optional.
	Logger Logger
}

// session is the single active binding to one content item.
type session struct {
	gen       uint64
	contentID string
	observer  Observer
	listeners *playback.ListenerSet
}

type eventKind int

const (
	eventNavigate eventKind = iota
	eventSnapshot
	eventCommand
	eventIdle
	eventVisibility
	eventConnected
)

type event struct {
	kind     eventKind
	location string
	gen      uint64
	snap     playback.Snapshot
	command  hass.CommandKind
	payload  []byte
	visible  bool
}

// Coordinator owns session identity. All session state is touched only
// from the Run goroutine; Current and the position function read a
// mutex-guarded copy of the last published state.
type Coordinator struct {
	conn        Connection
	newObserver ObserverFactory
	navigation  NavigationSource
	visibility  VisibilitySource
	recorder    StateRecorder
	logger      Logger

	events chan event
	done   chan struct{}

	// owned by the Run goroutine
	active  *session
	nextGen uint64

	mu       sync.RWMutex
	current  hass.MediaState
	lastSnap playback.Snapshot
	hasSnap  bool
	hidden   bool // host in standby; nothing is published until it wakes
}

// NewCoordinator creates a coordinator and registers its callbacks with
// the connection.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Connection == nil {
		return nil, fmt.Errorf("connection is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	factory := opts.NewObserver
	if factory == nil {
		if opts.Source == nil {
			return nil, fmt.Errorf("observer factory or source is required")
		}
		src := opts.Source
		factory = func(contentID string, onUpdate func(playback.Snapshot)) Observer {
			return playback.NewObserver(contentID, src, onUpdate, logger)
		}
	}

	c := &Coordinator{
		conn:        opts.Connection,
		newObserver: factory,
		navigation:  opts.Navigation,
		visibility:  opts.Visibility,
		recorder:    opts.Recorder,
		logger:      logger,
		events:      make(chan event, eventBuffer),
		done:        make(chan struct{}),
		current:     hass.Idle(),
	}

	c.conn.OnBecameIdle(func() {
		c.post(event{kind: eventIdle})
	})
	c.conn.SetCommandHandler(func(kind hass.CommandKind, payload []byte) {
		c.post(event{kind: eventCommand, command: kind, payload: payload})
	})
	c.conn.SetPositionFunc(c.position)
	c.conn.OnStatusChange(func(s bridge.ConnectionState) {
		if s.Status == bridge.StatusConnected {
			c.post(event{kind: eventConnected})
		}
	})

	return c, nil
}

// Run processes events until ctx is cancelled. The active session is torn
// down and an idle state published on exit.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)

	if c.navigation != nil {
		unsubscribe := c.navigation.OnNavigate(c.Navigate)
		defer unsubscribe()
	}
	if c.visibility != nil {
		unsubscribe := c.visibility.Subscribe(func(visible bool) {
			c.post(event{kind: eventVisibility, visible: visible})
		})
		defer unsubscribe()
		c.setHidden(!c.visibility.Visible())
	}

	c.logger.Info("session coordinator started")

	for {
		select {
		case <-ctx.Done():
			if c.active != nil {
				c.endSession()
				c.publish(hass.Idle())
			}
			c.logger.Info("session coordinator stopped")
			return nil
		case ev := <-c.events:
			c.dispatch(ev)
		}
	}
}

// Navigate queues a host location change.
func (c *Coordinator) Navigate(location string) {
	c.post(event{kind: eventNavigate, location: location})
}

// Current returns the last published media state and whether a session
// is active behind it.
func (c *Coordinator) Current() (hass.MediaState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.hasSnap
}

func (c *Coordinator) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Coordinator) dispatch(ev event) {
	switch ev.kind {
	case eventNavigate:
		c.handleNavigate(ev.location)
	case eventSnapshot:
		c.handleSnapshot(ev.gen, ev.snap)
	case eventCommand:
		c.handleCommand(ev.command, ev.payload)
	case eventIdle:
		c.handleIdle()
	case eventVisibility:
		c.handleVisibility(ev.visible)
	case eventConnected:
		c.handleConnected()
	}
}

// handleNavigate drives the NoSession / HasSession(id) state machine.
func (c *Coordinator) handleNavigate(location string) {
	contentID, playable := playback.ParseLocation(location)

	if !playable {
		if c.active == nil {
			return
		}
		c.logger.Info("left playable view", "content_id", c.active.contentID, "location", location)
		c.endSession()
		c.publish(hass.Idle())
		return
	}

	if c.active != nil {
		if c.active.contentID == contentID {
			return
		}
		// The old observer is fully detached before the new one exists
		c.endSession()
	}
	c.startSession(contentID)
}

func (c *Coordinator) startSession(contentID string) {
	c.nextGen++
	gen := c.nextGen

	obs := c.newObserver(contentID, func(s playback.Snapshot) {
		c.post(event{kind: eventSnapshot, gen: gen, snap: s})
	})
	c.active = &session{
		gen:       gen,
		contentID: contentID,
		observer:  obs,
	}
	c.active.listeners = obs.Attach()

	c.logger.Info("session started", "content_id", contentID)
}

func (c *Coordinator) endSession() {
	s := c.active
	c.active = nil
	s.observer.Destroy(s.listeners)

	c.mu.Lock()
	c.hasSnap = false
	c.mu.Unlock()

	c.logger.Info("session ended", "content_id", s.contentID)
}

// handleSnapshot republishes a snapshot from the active observer. Late
// snapshots from a superseded observer are dropped, and so is everything
// while the host is in standby.
func (c *Coordinator) handleSnapshot(gen uint64, snap playback.Snapshot) {
	if c.active == nil || c.active.gen != gen {
		c.logger.Debug("dropping stale snapshot", "content_id", snap.ContentID)
		return
	}
	if c.isHidden() {
		c.logger.Debug("host in standby, snapshot not published", "content_id", snap.ContentID)
		return
	}

	state := ToMediaState(snap)

	c.mu.Lock()
	c.lastSnap = snap
	c.hasSnap = true
	c.mu.Unlock()

	c.publish(state)
}

// handleCommand decodes and forwards a command to the active observer.
func (c *Coordinator) handleCommand(kind hass.CommandKind, payload []byte) {
	if c.active == nil {
		c.logger.Info("no active session, command dropped", "kind", kind)
		return
	}

	cmd, err := bridge.DecodeCommand(kind, payload)
	if err != nil {
		c.logger.Warn("command dropped", "kind", kind, "payload", string(payload), "error", err)
		return
	}

	obs := c.active.observer
	switch cmd.Kind {
	case hass.CommandPlay:
		obs.Play()
	case hass.CommandPause:
		obs.Pause()
	case hass.CommandStop:
		obs.Stop()
	case hass.CommandSeek:
		obs.Seek(cmd.Position)
	case hass.CommandPlayMedia:
		obs.PlayMedia(cmd.ContentID)
	}
	c.logger.Debug("command executed", "kind", cmd.Kind, "content_id", c.active.contentID)
}

// handleIdle clears the published state when the host goes to standby.
// The session itself survives.
func (c *Coordinator) handleIdle() {
	c.mu.Lock()
	c.hasSnap = false
	c.hidden = true
	c.mu.Unlock()
	c.publish(hass.Idle())
}

// handleVisibility tracks standby and republishes the session when the
// host wakes up.
func (c *Coordinator) handleVisibility(visible bool) {
	c.setHidden(!visible)
	if !visible || c.active == nil {
		return
	}
	c.handleSnapshot(c.active.gen, c.active.observer.Snapshot())
}

// handleConnected restores the media state on a fresh broker connection.
// Nothing is retained, so a reconnect would otherwise leave the entity
// blank until the next change.
func (c *Coordinator) handleConnected() {
	if c.active != nil && !c.isHidden() {
		c.handleSnapshot(c.active.gen, c.active.observer.Snapshot())
		return
	}
	state, _ := c.Current()
	c.conn.Publish(state)
}

func (c *Coordinator) setHidden(hidden bool) {
	c.mu.Lock()
	c.hidden = hidden
	c.mu.Unlock()
}

func (c *Coordinator) isHidden() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hidden
}

func (c *Coordinator) publish(state hass.MediaState) {
	c.mu.Lock()
	c.current = state
	c.mu.Unlock()

	c.conn.Publish(state)
	if c.recorder != nil {
		c.recorder.RecordMediaState(state)
	}
}

// position extrapolates the playhead from the last snapshot. It runs on the
// position ticker goroutine.
func (c *Coordinator) position() (float64, bool) {
	c.mu.RLock()
	snap, ok := c.lastSnap, c.hasSnap
	state := c.current.State
	hidden := c.hidden
	c.mu.RUnlock()

	if !ok || hidden || state == hass.StateIdle {
		return 0, false
	}

	pos := snap.Position
	if state == hass.StatePlaying && !snap.CapturedAt.IsZero() {
		pos += time.Since(snap.CapturedAt).Seconds()
		if snap.Duration > 0 && pos > snap.Duration {
			pos = snap.Duration
		}
	}
	return pos, true
}
