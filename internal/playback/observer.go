package playback

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Observer tuning.
const (
	// TimeUpdateThreshold is the minimum position change a timeupdate event
	// must carry before it is surfaced.
	TimeUpdateThreshold = 5.0

	// MetadataPollInterval is the retry period of the metadata and media
	// element poll.
	MetadataPollInterval = 500 * time.Millisecond
)

// Snapshot is an immutable view of an observer's state.
type Snapshot struct {
	ContentID    string
	Title        string
	Creator      string
	PublishDate  string
	ThumbnailURL string
	Duration     float64 // 0 when unknown
	PlayerState  PlayerState
	Position     float64
	CapturedAt   time.Time
}

// ListenerSet holds the removers of everything one Attach registered.
// It is returned by Attach and handed back to Destroy.
type ListenerSet struct {
	mu       sync.Mutex
	removers []func()
	detached bool
}

// add records a remover. Once detached, a late registration is removed
// immediately.
func (s *ListenerSet) add(remove func()) {
	if remove == nil {
		return
	}
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		remove()
		return
	}
	s.removers = append(s.removers, remove)
	s.mu.Unlock()
}

// Len returns the number of registered listeners.
func (s *ListenerSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.removers)
}

func (s *ListenerSet) detach() {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	s.detached = true
	removers := s.removers
	s.removers = nil
	s.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
}

// Observer watches one content item on the host.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Host callbacks may arrive on
//     any goroutine.
type Observer struct {
	contentID    string
	source       Source
	onUpdate     func(Snapshot)
	logger       Logger
	pollInterval time.Duration

	destroyed atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	mu           sync.Mutex
	snap         Snapshot
	lastReported float64
	element      MediaElement
	attached     bool

	// emitMu keeps snapshots leaving in the order they were taken.
	emitMu sync.Mutex
}

// NewObserver creates an observer for contentID. onUpdate receives every
// new snapshot; it must not call back into the observer synchronously.
func NewObserver(contentID string, source Source, onUpdate func(Snapshot), logger Logger) *Observer {
	if logger == nil {
		logger = nopLogger{}
	}
	if onUpdate == nil {
		onUpdate = func(Snapshot) {}
	}
	return &Observer{
		contentID:    contentID,
		source:       source,
		onUpdate:     onUpdate,
		logger:       logger,
		pollInterval: MetadataPollInterval,
		done:         make(chan struct{}),
		snap: Snapshot{
			ContentID:   contentID,
			PlayerState: StateUnstarted,
			CapturedAt:  time.Now(),
		},
	}
}

// ContentID returns the content this observer is bound to.
func (o *Observer) ContentID() string {
	return o.contentID
}

// Attach hooks the observer to the host. The player and element hookups
// are independent; either may be missing. A missing element is retried
// until the host reports one. Attach is only effective once.
func (o *Observer) Attach() *ListenerSet {
	set := &ListenerSet{}

	o.mu.Lock()
	if o.attached || o.destroyed.Load() {
		o.mu.Unlock()
		return set
	}
	o.attached = true
	o.mu.Unlock()

	hasElement := o.attachElement(set)
	if !hasElement {
		o.logger.Warn("media element not ready, retrying", "content_id", o.contentID)
	}

	go o.waitForPlayer(set)
	go o.poll(set, hasElement)

	return set
}

// attachElement registers the media element listeners. It reports false
// when the host has no element yet.
func (o *Observer) attachElement(set *ListenerSet) bool {
	el, err := o.source.MediaElement()
	if err != nil || el == nil {
		return false
	}

	o.mu.Lock()
	o.element = el
	o.snap.Position = el.CurrentTime()
	o.lastReported = o.snap.Position
	if d := el.Duration(); validDuration(d) {
		o.snap.Duration = d
	}
	o.mu.Unlock()

	for _, event := range elementEvents {
		event := event
		set.add(el.AddListener(event, func() {
			o.handleElementEvent(event)
		}))
	}
	return true
}

// waitForPlayer blocks until the player handle resolves or the observer is
// destroyed.
func (o *Observer) waitForPlayer(set *ListenerSet) {
	var handle PlayerHandle
	select {
	case handle = <-o.source.PlayerHandle():
	case <-o.done:
		return
	}
	if handle == nil || o.destroyed.Load() {
		return
	}

	set.add(handle.AddStateListener(o.handlePlayerState))
	o.logger.Debug("player handle attached", "content_id", o.contentID)
	o.handlePlayerState(handle.State())
}

// poll finishes what Attach could not: it asks for metadata until every
// field is known and for the media element until the host has one. It
// stops early when the observer is destroyed.
func (o *Observer) poll(set *ListenerSet, hasElement bool) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	hasMetadata := false
	for {
		if o.destroyed.Load() {
			return
		}
		if !hasMetadata {
			hasMetadata = o.mergeMetadata(o.source.LookupMetadata(o.contentID))
		}
		if !hasElement && o.attachElement(set) {
			hasElement = true
			o.logger.Debug("media element attached", "content_id", o.contentID)
			o.emit()
		}
		if hasMetadata && hasElement {
			return
		}

		select {
		case <-o.done:
			return
		case <-ticker.C:
		}
	}
}

// mergeMetadata applies newly known fields, emitting once per arrival.
// It reports whether the metadata is now complete.
func (o *Observer) mergeMetadata(m Metadata) bool {
	o.mu.Lock()
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&o.snap.Title, m.Title)
	set(&o.snap.Creator, m.Creator)
	set(&o.snap.ThumbnailURL, m.ThumbnailURL)
	set(&o.snap.PublishDate, m.PublishDate)
	complete := Metadata{
		Title:        o.snap.Title,
		Creator:      o.snap.Creator,
		ThumbnailURL: o.snap.ThumbnailURL,
		PublishDate:  o.snap.PublishDate,
	}.complete()
	o.mu.Unlock()

	if changed {
		o.emit()
	}
	return complete
}

func (o *Observer) handlePlayerState(state PlayerState) {
	if o.destroyed.Load() {
		return
	}
	o.mu.Lock()
	changed := o.snap.PlayerState != state
	o.snap.PlayerState = state
	o.mu.Unlock()

	if changed {
		o.emit()
	}
}

func (o *Observer) handleElementEvent(event string) {
	if o.destroyed.Load() {
		return
	}

	o.mu.Lock()
	el := o.element
	if el == nil {
		o.mu.Unlock()
		return
	}

	pos := el.CurrentTime()
	emit := true
	switch event {
	case EventTimeUpdate:
		if math.Abs(pos-o.lastReported) < TimeUpdateThreshold {
			emit = false
			break
		}
		o.snap.Position = pos
		o.lastReported = pos
	case EventPlay:
		o.snap.PlayerState = StatePlaying
		o.snap.Position, o.lastReported = pos, pos
	case EventPause:
		o.snap.PlayerState = StatePaused
		o.snap.Position, o.lastReported = pos, pos
	case EventEnded:
		o.snap.PlayerState = StateEnded
		o.snap.Position, o.lastReported = pos, pos
	case EventSeeked:
		o.snap.Position, o.lastReported = pos, pos
	case EventDurationChange, EventLoadedMetadata:
		if d := el.Duration(); validDuration(d) {
			o.snap.Duration = d
		}
	}
	o.mu.Unlock()

	if emit {
		o.emit()
	}
}

// emit hands a fresh snapshot to onUpdate unless the observer is destroyed.
func (o *Observer) emit() {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()

	if o.destroyed.Load() {
		return
	}
	o.onUpdate(o.Snapshot())
}

// Snapshot returns the current state, stamped with the capture time. The
// position is read from the element when one is attached, so it is exact
// at CapturedAt rather than the last surfaced timeupdate.
func (o *Observer) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.snap
	if o.element != nil {
		if pos := o.element.CurrentTime(); pos >= 0 && !math.IsNaN(pos) && !math.IsInf(pos, 0) {
			s.Position = pos
		}
	}
	s.CapturedAt = time.Now()
	return s
}

// Play resumes playback on the media element.
func (o *Observer) Play() {
	o.withElement("play", func(el MediaElement) error { return el.Play() })
}

// Pause pauses playback on the media element.
func (o *Observer) Pause() {
	o.withElement("pause", func(el MediaElement) error { return el.Pause() })
}

// Seek jumps to an absolute position. Negative positions seek to the start.
func (o *Observer) Seek(position float64) {
	if position < 0 || math.IsNaN(position) {
		position = 0
	}
	o.withElement("seek", func(el MediaElement) error { return el.SetCurrentTime(position) })
}

// Stop leaves the playable view. The host has no transport-stop primitive,
// so stopping is navigating home.
func (o *Observer) Stop() {
	o.navigate("stop", HomeLocation)
}

// PlayMedia navigates the host to contentID. The session that results is
// handled by whoever watches navigation, not by this observer.
func (o *Observer) PlayMedia(contentID string) {
	o.navigate("playmedia", WatchLocation(contentID))
}

func (o *Observer) withElement(action string, f func(MediaElement) error) {
	if o.destroyed.Load() {
		o.logger.Debug("command for destroyed observer dropped", "action", action, "error", ErrDestroyed)
		return
	}
	o.mu.Lock()
	el := o.element
	o.mu.Unlock()

	if el == nil {
		o.logger.Warn("no media element, command dropped", "action", action, "content_id", o.contentID)
		return
	}
	if err := f(el); err != nil {
		o.logger.Warn("media command failed", "action", action, "content_id", o.contentID, "error", err)
	}
}

func (o *Observer) navigate(action, location string) {
	if o.destroyed.Load() {
		o.logger.Debug("command for destroyed observer dropped", "action", action, "error", ErrDestroyed)
		return
	}
	if err := o.source.Navigate(location); err != nil {
		o.logger.Warn("navigation failed", "action", action, "location", location, "error", err)
	}
}

// Destroy detaches every listener in set and stops all background work.
// It is idempotent.
func (o *Observer) Destroy(set *ListenerSet) {
	o.destroyed.Store(true)
	o.closeOnce.Do(func() {
		close(o.done)
	})
	if set != nil {
		set.detach()
	}
}

// Destroyed reports whether Destroy has been called.
func (o *Observer) Destroyed() bool {
	return o.destroyed.Load()
}

func validDuration(d float64) bool {
	return d > 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}
