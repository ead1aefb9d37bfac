package session

import (
	"github.com/nerrad567/ghosttube/internal/hass"
	"github.com/nerrad567/ghosttube/internal/playback"
)

// MapState converts a host player state into the hub vocabulary.
//
// Buffering maps to playing: it resumes on its own and the hub should not
// flash a stopped transport. Unstarted, cued and unknown states are idle.
func MapState(s playback.PlayerState) hass.PlayerState {
	switch s {
	case playback.StatePlaying, playback.StateBuffering:
		return hass.StatePlaying
	case playback.StatePaused:
		return hass.StatePaused
	case playback.StateEnded:
		return hass.StateStopped
	default:
		return hass.StateIdle
	}
}

// ToMediaState maps an observer snapshot to a publishable state.
func ToMediaState(s playback.Snapshot) hass.MediaState {
	state := MapState(s.PlayerState)
	if state == hass.StateIdle {
		return hass.Idle()
	}

	ms := hass.MediaState{
		State:       state,
		Position:    hass.Seconds(s.Position),
		Title:       s.Title,
		Artist:      s.Creator,
		AlbumArtURL: s.ThumbnailURL,
		VideoID:     s.ContentID,
	}
	if s.Duration > 0 {
		ms.Duration = hass.Seconds(s.Duration)
	}
	return ms
}
