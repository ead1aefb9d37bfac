package hass

import (
	"fmt"
	"regexp"
	"strings"
)

// DiscoveryPrefix is the hub's discovery namespace.
const DiscoveryPrefix = "homeassistant"

// Availability payloads.
const (
	PayloadOnline  = "ON"
	PayloadOffline = "OFF"
)

var deviceIDPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// CommandKind identifies one of the inbound command topics.
type CommandKind string

// Command kinds, one per subscribed topic.
const (
	CommandPlay      CommandKind = "play"
	CommandPause     CommandKind = "pause"
	CommandStop      CommandKind = "stop"
	CommandSeek      CommandKind = "seek"
	CommandPlayMedia CommandKind = "playmedia"
)

// CommandTopic pairs a command kind with its topic.
type CommandTopic struct {
	Kind  CommandKind
	Topic string
}

// Topics is the full topic namespace of one media player device.
type Topics struct {
	Available   string
	State       string
	Title       string
	Artist      string
	AlbumArt    string
	Duration    string
	Position    string
	ContentType string

	Seek      string
	PlayMedia string
	Play      string
	Pause     string
	Stop      string

	DiscoveryConfig string
}

// ValidateDeviceID reports whether id is usable as a topic level.
func ValidateDeviceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDeviceID)
	}
	if !deviceIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q must be lowercase alphanumerics and hyphens", ErrInvalidDeviceID, id)
	}
	return nil
}

// BuildTopics derives every topic for deviceID.
//
// The discovery topic lives under DiscoveryPrefix, segregated from live
// state by appName, so retained discovery payloads never collide with the
// device's state topics.
func BuildTopics(prefix, deviceID, appName string) (Topics, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return Topics{}, err
	}
	if prefix == "" || strings.ContainsAny(prefix, "+#") {
		return Topics{}, fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	if appName == "" || strings.ContainsAny(appName, "/+#") {
		return Topics{}, fmt.Errorf("%w: app name %q", ErrInvalidPrefix, appName)
	}

	base := strings.TrimSuffix(prefix, "/") + "/media_player/" + deviceID + "/"
	return Topics{
		Available:   base + "available",
		State:       base + "state",
		Title:       base + "title",
		Artist:      base + "artist",
		AlbumArt:    base + "albumart",
		Duration:    base + "duration",
		Position:    base + "position",
		ContentType: base + "mediatype",

		Seek:      base + "seek",
		PlayMedia: base + "playmedia",
		Play:      base + "play",
		Pause:     base + "pause",
		Stop:      base + "stop",

		DiscoveryConfig: fmt.Sprintf("%s/media_player/%s/%s/config", DiscoveryPrefix, deviceID, appName),
	}, nil
}

// Commands returns the five command topics in subscription order.
func (t Topics) Commands() []CommandTopic {
	return []CommandTopic{
		{Kind: CommandPlay, Topic: t.Play},
		{Kind: CommandPause, Topic: t.Pause},
		{Kind: CommandStop, Topic: t.Stop},
		{Kind: CommandSeek, Topic: t.Seek},
		{Kind: CommandPlayMedia, Topic: t.PlayMedia},
	}
}
