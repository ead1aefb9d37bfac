package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/ghosttube/internal/hass"
	"github.com/nerrad567/ghosttube/internal/timecode"
)

// Command is a decoded inbound command.
// Position is set for seek, ContentID for playmedia.
type Command struct {
	Kind      hass.CommandKind
	Position  float64
	ContentID string
}

// DecodeCommand turns a routed payload into a Command.
//
// Seek payloads are seconds or a timecode. Playmedia payloads are either a
// JSON object carrying media_content_id or the literal content id. Play,
// pause and stop ignore their payload.
func DecodeCommand(kind hass.CommandKind, payload []byte) (Command, error) {
	switch kind {
	case hass.CommandPlay, hass.CommandPause, hass.CommandStop:
		return Command{Kind: kind}, nil

	case hass.CommandSeek:
		pos, err := timecode.Parse(string(payload))
		if err != nil {
			return Command{}, fmt.Errorf("%w: seek: %w", ErrDecode, err)
		}
		return Command{Kind: kind, Position: pos}, nil

	case hass.CommandPlayMedia:
		id := playMediaID(payload)
		if id == "" {
			return Command{}, fmt.Errorf("%w: playmedia: empty content id", ErrDecode)
		}
		return Command{Kind: kind, ContentID: id}, nil
	}

	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
}

// playMediaID extracts the content id from a playmedia payload.
func playMediaID(payload []byte) string {
	raw := strings.TrimSpace(string(payload))

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
		switch v := decoded.(type) {
		case map[string]any:
			if id, ok := v["media_content_id"]; ok && id != nil {
				return strings.TrimSpace(fmt.Sprint(id))
			}
		case string:
			return strings.TrimSpace(v)
		}
	}

	return raw
}
