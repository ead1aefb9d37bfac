package agent

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types, host to bridge.
const (
	TypeNavigate     = "navigate"
	TypeVisibility   = "visibility"
	TypePlayerReady  = "player_ready"
	TypePlayerState  = "player_state"
	TypeElementReady = "element_ready"
	TypeElement      = "element"
	TypeMetadata     = "metadata"
	TypePing         = "ping"
)

// Message types, bridge to host.
const (
	TypeCommand      = "command"
	TypeNotification = "notification"
	TypePong         = "pong"
	TypeError        = "error"
)

// Command actions sent to the host.
const (
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionSeek     = "seek"
	ActionNavigate = "navigate"
)

// WSMessage is one frame on the host connection.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// NavigatePayload reports the host's current location.
type NavigatePayload struct {
	Location string `json:"location"`
}

// VisibilityPayload reports whether the host page is visible.
type VisibilityPayload struct {
	Visible bool `json:"visible"`
}

// PlayerStatePayload carries the host player's numeric state. It is used by
// both player_ready and player_state.
type PlayerStatePayload struct {
	State int `json:"state"`
}

// ElementPayload carries media element properties. Event is empty for
// element_ready.
type ElementPayload struct {
	Event       string  `json:"event,omitempty"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Paused      bool    `json:"paused"`
}

// MetadataPayload is whatever the host currently knows about a content item.
type MetadataPayload struct {
	ContentID    string `json:"content_id"`
	Title        string `json:"title,omitempty"`
	Creator      string `json:"creator,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	PublishDate  string `json:"publish_date,omitempty"`
}

// CommandPayload asks the host to act on its player.
type CommandPayload struct {
	Action   string   `json:"action"`
	Position *float64 `json:"position,omitempty"`
	Location string   `json:"location,omitempty"`
}

// NotificationPayload is a short message for the person watching.
type NotificationPayload struct {
	Message string `json:"message"`
}

// ErrorPayload describes a rejected host message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// newMessage stamps an outbound message.
func newMessage(msgType, id string, payload any) WSMessage {
	return WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
}

// decodePayload re-decodes a generic payload into dst.
func decodePayload(msg WSMessage, dst any) error {
	if msg.Payload == nil {
		return fmt.Errorf("%s: missing payload", msg.Type)
	}
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("%s: encoding payload: %w", msg.Type, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", msg.Type, err)
	}
	return nil
}
