package hass

import (
	"math"
	"strconv"
)

// PlayerState is the transport state advertised on the state topic.
type PlayerState string

// Player states understood by the hub.
const (
	StatePlaying PlayerState = "playing"
	StatePaused  PlayerState = "paused"
	StateStopped PlayerState = "stopped"
	StateIdle    PlayerState = "idle"
)

// MediaTypeVideo is the constant payload of the mediatype topic.
const MediaTypeVideo = "video"

// MediaState is one published snapshot.
//
// Nil Position or Duration and empty strings mean "unknown"; they are still
// published, as empty payloads, so the hub never keeps a previous value.
type MediaState struct {
	State       PlayerState
	Position    *float64
	Duration    *float64
	Title       string
	Artist      string
	AlbumArtURL string
	VideoID     string
}

// Message is a single rendered topic/payload pair.
type Message struct {
	Topic   string
	Payload string
}

// Idle returns the cleared state published when no content is showing.
func Idle() MediaState {
	return MediaState{State: StateIdle}
}

// Seconds is a helper for building optional durations.
func Seconds(v float64) *float64 {
	return &v
}

// IsIdle reports whether s is the idle state.
func (s MediaState) IsIdle() bool {
	return s.State == StateIdle || s.State == ""
}

// Payloads renders s for the given topics, state topic first.
//
// An idle state renders empty payloads for every optional attribute
// regardless of what the struct carries.
func (s MediaState) Payloads(t Topics) []Message {
	state := s.State
	if state == "" {
		state = StateIdle
	}

	title, artist, art := s.Title, s.Artist, s.AlbumArtURL
	duration, position := FormatSeconds(s.Duration), FormatSeconds(s.Position)
	if s.IsIdle() {
		title, artist, art, duration, position = "", "", "", "", ""
	}

	return []Message{
		{Topic: t.State, Payload: string(state)},
		{Topic: t.Title, Payload: title},
		{Topic: t.Artist, Payload: artist},
		{Topic: t.AlbumArt, Payload: art},
		{Topic: t.Duration, Payload: duration},
		{Topic: t.Position, Payload: position},
		{Topic: t.ContentType, Payload: MediaTypeVideo},
	}
}

// FormatSeconds renders v as decimal seconds rounded to milliseconds, with
// no trailing zeros. Nil, NaN and infinities render as "".
func FormatSeconds(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return ""
	}
	rounded := math.Round(*v*1000) / 1000
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
