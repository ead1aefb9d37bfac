package hass

import (
	"encoding/json"
	"fmt"
)

// Device is the device block of the discovery descriptor.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// Availability describes the availability topic and its payloads.
type Availability struct {
	Topic               string `json:"topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
}

// Discovery is the retained config payload that lets the hub create the
// media player entity without manual setup.
type Discovery struct {
	Name         string       `json:"name"`
	UniqueID     string       `json:"unique_id"`
	Availability Availability `json:"availability"`

	StateTopic     string `json:"state_state_topic"`
	TitleTopic     string `json:"state_title_topic"`
	ArtistTopic    string `json:"state_artist_topic"`
	AlbumArtTopic  string `json:"state_albumart_topic"`
	DurationTopic  string `json:"state_duration_topic"`
	PositionTopic  string `json:"state_position_topic"`
	MediaTypeTopic string `json:"state_mediatype_topic"`

	PlayTopic      string `json:"command_play_topic"`
	PlayPayload    string `json:"command_play_payload"`
	PauseTopic     string `json:"command_pause_topic"`
	PausePayload   string `json:"command_pause_payload"`
	StopTopic      string `json:"command_stop_topic"`
	StopPayload    string `json:"command_stop_payload"`
	SeekTopic      string `json:"command_seek_position_topic"`
	PlayMediaTopic string `json:"command_playmedia_topic"`

	Device Device `json:"device"`
}

// NewDiscovery builds the descriptor for a device.
func NewDiscovery(t Topics, deviceID, name, version string) Discovery {
	if name == "" {
		name = deviceID
	}
	return Discovery{
		Name:     name,
		UniqueID: fmt.Sprintf("ghosttube_%s", deviceID),
		Availability: Availability{
			Topic:               t.Available,
			PayloadAvailable:    PayloadOnline,
			PayloadNotAvailable: PayloadOffline,
		},

		StateTopic:     t.State,
		TitleTopic:     t.Title,
		ArtistTopic:    t.Artist,
		AlbumArtTopic:  t.AlbumArt,
		DurationTopic:  t.Duration,
		PositionTopic:  t.Position,
		MediaTypeTopic: t.ContentType,

		PlayTopic:      t.Play,
		PlayPayload:    string(CommandPlay),
		PauseTopic:     t.Pause,
		PausePayload:   string(CommandPause),
		StopTopic:      t.Stop,
		StopPayload:    string(CommandStop),
		SeekTopic:      t.Seek,
		PlayMediaTopic: t.PlayMedia,

		Device: Device{
			Identifiers:  []string{"ghosttube_" + deviceID},
			Name:         name,
			Manufacturer: "GhostTube",
			Model:        "TV web player",
			SWVersion:    version,
		},
	}
}

// Payload returns the JSON encoding of d.
func (d Discovery) Payload() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding discovery descriptor: %w", err)
	}
	return data, nil
}
