package playback

import "errors"

var (
	// ErrNoElement is returned by a Source when the page has no media element.
	ErrNoElement = errors.New("playback: media element not available")

	// ErrDestroyed is returned for commands sent to a destroyed observer.
	ErrDestroyed = errors.New("playback: observer destroyed")
)
