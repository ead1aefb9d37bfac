package hass

import (
	"errors"
	"testing"
)

func TestValidateDeviceID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"living-room-tv", false},
		{"tv", false},
		{"tv2", false},
		{"a-b-c-1", false},
		{"", true},
		{"Living-Room", true},
		{"living_room", true},
		{"-tv", true},
		{"tv-", true},
		{"tv--den", true},
		{"tv/den", true},
		{"tv+", true},
		{"tv#", true},
		{"tv den", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateDeviceID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateDeviceID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDeviceID) {
				t.Errorf("error = %v, want ErrInvalidDeviceID", err)
			}
		})
	}
}

func TestBuildTopics(t *testing.T) {
	topics, err := BuildTopics("ghost-tube", "living-room-tv", "ghost-tube")
	if err != nil {
		t.Fatalf("BuildTopics() error = %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"available", topics.Available, "ghost-tube/media_player/living-room-tv/available"},
		{"state", topics.State, "ghost-tube/media_player/living-room-tv/state"},
		{"title", topics.Title, "ghost-tube/media_player/living-room-tv/title"},
		{"artist", topics.Artist, "ghost-tube/media_player/living-room-tv/artist"},
		{"albumart", topics.AlbumArt, "ghost-tube/media_player/living-room-tv/albumart"},
		{"duration", topics.Duration, "ghost-tube/media_player/living-room-tv/duration"},
		{"position", topics.Position, "ghost-tube/media_player/living-room-tv/position"},
		{"mediatype", topics.ContentType, "ghost-tube/media_player/living-room-tv/mediatype"},
		{"seek", topics.Seek, "ghost-tube/media_player/living-room-tv/seek"},
		{"playmedia", topics.PlayMedia, "ghost-tube/media_player/living-room-tv/playmedia"},
		{"play", topics.Play, "ghost-tube/media_player/living-room-tv/play"},
		{"pause", topics.Pause, "ghost-tube/media_player/living-room-tv/pause"},
		{"stop", topics.Stop, "ghost-tube/media_player/living-room-tv/stop"},
		{"discovery", topics.DiscoveryConfig, "homeassistant/media_player/living-room-tv/ghost-tube/config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestBuildTopics_TrailingSlashPrefix(t *testing.T) {
	topics, err := BuildTopics("home/tv/", "den", "app")
	if err != nil {
		t.Fatalf("BuildTopics() error = %v", err)
	}
	if topics.State != "home/tv/media_player/den/state" {
		t.Errorf("State = %q", topics.State)
	}
}

func TestBuildTopics_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		deviceID string
		appName  string
		wantErr  error
	}{
		{"bad device", "ghost-tube", "Bad ID", "app", ErrInvalidDeviceID},
		{"empty prefix", "", "tv", "app", ErrInvalidPrefix},
		{"wildcard prefix", "ghost/#", "tv", "app", ErrInvalidPrefix},
		{"multi-level app", "ghost-tube", "tv", "a/b", ErrInvalidPrefix},
		{"empty app", "ghost-tube", "tv", "", ErrInvalidPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTopics(tt.prefix, tt.deviceID, tt.appName)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("BuildTopics() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTopics_Commands(t *testing.T) {
	topics, err := BuildTopics("ghost-tube", "tv", "ghost-tube")
	if err != nil {
		t.Fatalf("BuildTopics() error = %v", err)
	}

	cmds := topics.Commands()
	if len(cmds) != 5 {
		t.Fatalf("len(Commands()) = %d, want 5", len(cmds))
	}

	seen := make(map[string]CommandKind)
	for _, c := range cmds {
		if prev, dup := seen[c.Topic]; dup {
			t.Errorf("topic %q used by %s and %s", c.Topic, prev, c.Kind)
		}
		seen[c.Topic] = c.Kind
	}

	if seen[topics.Seek] != CommandSeek {
		t.Errorf("seek topic kind = %q", seen[topics.Seek])
	}
	if seen[topics.PlayMedia] != CommandPlayMedia {
		t.Errorf("playmedia topic kind = %q", seen[topics.PlayMedia])
	}
}
