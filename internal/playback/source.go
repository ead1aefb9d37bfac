package playback

// PlayerState is the host player's numeric state.
type PlayerState int

// Host player states.
const (
	StateUnstarted PlayerState = -1
	StateEnded     PlayerState = 0
	StatePlaying   PlayerState = 1
	StatePaused    PlayerState = 2
	StateBuffering PlayerState = 3
	StateCued      PlayerState = 5
)

// Media element events the observer listens to.
const (
	EventPlay           = "play"
	EventPause          = "pause"
	EventTimeUpdate     = "timeupdate"
	EventSeeked         = "seeked"
	EventEnded          = "ended"
	EventDurationChange = "durationchange"
	EventLoadedMetadata = "loadedmetadata"
)

// elementEvents is every event Attach registers.
var elementEvents = []string{
	EventPlay,
	EventPause,
	EventTimeUpdate,
	EventSeeked,
	EventEnded,
	EventDurationChange,
	EventLoadedMetadata,
}

// PlayerHandle is the host player's control handle.
type PlayerHandle interface {
	// State returns the current player state.
	State() PlayerState

	// AddStateListener registers fn for state changes and returns its remover.
	AddStateListener(fn func(PlayerState)) (remove func())
}

// MediaElement is the page's video element.
type MediaElement interface {
	// AddListener registers fn for a media event and returns its remover.
	AddListener(event string, fn func()) (remove func())

	CurrentTime() float64
	Duration() float64
	Paused() bool

	Play() error
	Pause() error
	SetCurrentTime(seconds float64) error
}

// Metadata is what is known about a content item. Fields arrive
// independently; empty means not yet known.
type Metadata struct {
	Title        string
	Creator      string
	ThumbnailURL string
	PublishDate  string
}

// complete reports whether every field is known.
func (m Metadata) complete() bool {
	return m.Title != "" && m.Creator != "" && m.ThumbnailURL != "" && m.PublishDate != ""
}

// Source is the host page as seen by an observer.
type Source interface {
	// PlayerHandle resolves once the host player is ready. It may never
	// resolve; the channel is never closed without a value.
	PlayerHandle() <-chan PlayerHandle

	// MediaElement returns the page's media element or ErrNoElement.
	MediaElement() (MediaElement, error)

	// LookupMetadata returns whatever is currently known for contentID.
	LookupMetadata(contentID string) Metadata

	// Navigate moves the host to location.
	Navigate(location string) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
