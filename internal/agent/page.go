package agent

import (
	"sync"

	"github.com/nerrad567/ghosttube/internal/playback"
)

// Page bookkeeping limits.
const (
	// maxPlayerWaiters bounds pending PlayerHandle futures. Only the newest
	// observer is ever alive, so older waiters are safe to drop.
	maxPlayerWaiters = 16

	// maxMetadataEntries bounds the per-content metadata cache.
	maxMetadataEntries = 32
)

// hostPlayer mirrors the host player's state.
type hostPlayer struct {
	mu        sync.Mutex
	state     playback.PlayerState
	listeners map[uint64]func(playback.PlayerState)
	nextID    uint64
}

func newHostPlayer() *hostPlayer {
	return &hostPlayer{
		state:     playback.StateUnstarted,
		listeners: make(map[uint64]func(playback.PlayerState)),
	}
}

// State returns the last state the host reported.
func (p *hostPlayer) State() playback.PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// AddStateListener registers fn for player state reports.
func (p *hostPlayer) AddStateListener(fn func(playback.PlayerState)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *hostPlayer) set(state playback.PlayerState) {
	p.mu.Lock()
	p.state = state
	fns := make([]func(playback.PlayerState), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// hostElement mirrors the page's media element. Property reads return the
// values from the last element message; actions are relayed to the host.
type hostElement struct {
	command func(CommandPayload) error

	mu        sync.Mutex
	current   float64
	duration  float64
	paused    bool
	listeners map[string]map[uint64]func()
	nextID    uint64
}

func newHostElement(command func(CommandPayload) error) *hostElement {
	return &hostElement{
		command:   command,
		paused:    true,
		listeners: make(map[string]map[uint64]func()),
	}
}

// AddListener registers fn for a media event.
func (e *hostElement) AddListener(event string, fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.listeners[event] == nil {
		e.listeners[event] = make(map[uint64]func())
	}
	e.listeners[event][id] = fn
	return func() {
		e.mu.Lock()
		delete(e.listeners[event], id)
		e.mu.Unlock()
	}
}

func (e *hostElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *hostElement) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *hostElement) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *hostElement) Play() error {
	return e.command(CommandPayload{Action: ActionPlay})
}

func (e *hostElement) Pause() error {
	return e.command(CommandPayload{Action: ActionPause})
}

func (e *hostElement) SetCurrentTime(seconds float64) error {
	return e.command(CommandPayload{Action: ActionSeek, Position: &seconds})
}

// update stores the reported properties, then dispatches event.
func (e *hostElement) update(p ElementPayload) {
	e.mu.Lock()
	e.current = p.CurrentTime
	e.duration = p.Duration
	e.paused = p.Paused
	var fns []func()
	if p.Event != "" {
		fns = make([]func(), 0, len(e.listeners[p.Event]))
		for _, fn := range e.listeners[p.Event] {
			fns = append(fns, fn)
		}
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

type navListener struct {
	id uint64
	fn func(string)
}

// hostPage is the host page as the bridge sees it. The player and element
// mirrors outlive individual host connections so observers keep their
// listeners across a page reload; readiness is reset on disconnect.
type hostPage struct {
	player  *hostPlayer
	element *hostElement

	mu           sync.Mutex
	playerReady  bool
	waiters      []chan playback.PlayerHandle
	elementReady bool
	metadata     map[string]playback.Metadata
	metaOrder    []string
	location     string
	navListeners []navListener
	nextNavID    uint64
}

func newHostPage(command func(CommandPayload) error) *hostPage {
	return &hostPage{
		player:   newHostPlayer(),
		element:  newHostElement(command),
		metadata: make(map[string]playback.Metadata),
	}
}

// PlayerHandle resolves once the host reports its player ready.
func (p *hostPage) PlayerHandle() <-chan playback.PlayerHandle {
	ch := make(chan playback.PlayerHandle, 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playerReady {
		ch <- p.player
		return ch
	}
	if len(p.waiters) >= maxPlayerWaiters {
		p.waiters = p.waiters[1:]
	}
	p.waiters = append(p.waiters, ch)
	return ch
}

// MediaElement returns the element mirror once the host has reported one.
func (p *hostPage) MediaElement() (playback.MediaElement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.elementReady {
		return nil, playback.ErrNoElement
	}
	return p.element, nil
}

// LookupMetadata returns what the host has reported for contentID so far.
func (p *hostPage) LookupMetadata(contentID string) playback.Metadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metadata[contentID]
}

// OnNavigate registers fn for host location changes.
func (p *hostPage) OnNavigate(fn func(location string)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextNavID++
	id := p.nextNavID
	p.navListeners = append(p.navListeners, navListener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, l := range p.navListeners {
				if l.id == id {
					p.navListeners = append(p.navListeners[:i:i], p.navListeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Location returns the last reported host location.
func (p *hostPage) Location() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location
}

func (p *hostPage) navigated(location string) {
	p.mu.Lock()
	p.location = location
	fns := make([]func(string), len(p.navListeners))
	for i, l := range p.navListeners {
		fns[i] = l.fn
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(location)
	}
}

func (p *hostPage) setPlayerState(state playback.PlayerState) {
	p.mu.Lock()
	p.playerReady = true
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	p.player.set(state)
	for _, ch := range waiters {
		ch <- p.player
	}
}

func (p *hostPage) elementUpdate(e ElementPayload) {
	p.mu.Lock()
	p.elementReady = true
	p.mu.Unlock()

	p.element.update(e)
}

// mergeMetadata folds the non-empty fields of m into the cache.
func (p *hostPage) mergeMetadata(m MetadataPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur, ok := p.metadata[m.ContentID]
	if !ok {
		if len(p.metaOrder) >= maxMetadataEntries {
			delete(p.metadata, p.metaOrder[0])
			p.metaOrder = p.metaOrder[1:]
		}
		p.metaOrder = append(p.metaOrder, m.ContentID)
	}
	if m.Title != "" {
		cur.Title = m.Title
	}
	if m.Creator != "" {
		cur.Creator = m.Creator
	}
	if m.ThumbnailURL != "" {
		cur.ThumbnailURL = m.ThumbnailURL
	}
	if m.PublishDate != "" {
		cur.PublishDate = m.PublishDate
	}
	p.metadata[m.ContentID] = cur
}

// reset forgets everything that belonged to the departed host.
func (p *hostPage) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playerReady = false
	p.elementReady = false
	p.location = ""
}
