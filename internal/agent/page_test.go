package agent

import (
	"fmt"
	"testing"

	"github.com/nerrad567/ghosttube/internal/playback"
)

func nopCommand(CommandPayload) error { return nil }

func TestHostPage_MetadataEviction(t *testing.T) {
	p := newHostPage(nopCommand)

	for i := 0; i < maxMetadataEntries+1; i++ {
		p.mergeMetadata(MetadataPayload{ContentID: fmt.Sprintf("id%d", i), Title: "t"})
	}

	if got := p.LookupMetadata("id0"); got.Title != "" {
		t.Errorf("oldest entry still cached: %+v", got)
	}
	last := fmt.Sprintf("id%d", maxMetadataEntries)
	if got := p.LookupMetadata(last); got.Title != "t" {
		t.Errorf("newest entry missing: %+v", got)
	}
	if len(p.metadata) != maxMetadataEntries {
		t.Errorf("cache size = %d, want %d", len(p.metadata), maxMetadataEntries)
	}
}

func TestHostPage_MetadataKeepsKnownFields(t *testing.T) {
	p := newHostPage(nopCommand)

	p.mergeMetadata(MetadataPayload{ContentID: "abc123", Title: "A video"})
	p.mergeMetadata(MetadataPayload{ContentID: "abc123", Creator: "A channel"})

	got := p.LookupMetadata("abc123")
	if got.Title != "A video" || got.Creator != "A channel" {
		t.Errorf("metadata = %+v", got)
	}
}

func TestHostPage_PlayerWaitersBounded(t *testing.T) {
	p := newHostPage(nopCommand)

	var chans []<-chan playback.PlayerHandle
	for i := 0; i < maxPlayerWaiters+4; i++ {
		chans = append(chans, p.PlayerHandle())
	}
	if len(p.waiters) != maxPlayerWaiters {
		t.Fatalf("waiters = %d, want %d", len(p.waiters), maxPlayerWaiters)
	}

	p.setPlayerState(playback.StatePaused)

	// The newest future resolves
	select {
	case h := <-chans[len(chans)-1]:
		if h.State() != playback.StatePaused {
			t.Errorf("State() = %d, want paused", h.State())
		}
	default:
		t.Error("newest waiter not resolved")
	}
}

func TestHostPage_ResetClearsReadiness(t *testing.T) {
	p := newHostPage(nopCommand)

	p.setPlayerState(playback.StatePlaying)
	p.elementUpdate(ElementPayload{CurrentTime: 5})
	p.navigated("/watch?v=abc123")

	p.reset()

	if _, err := p.MediaElement(); err == nil {
		t.Error("MediaElement() after reset should fail")
	}
	select {
	case <-p.PlayerHandle():
		t.Error("PlayerHandle() resolved after reset")
	default:
	}
	if p.Location() != "" {
		t.Errorf("Location() = %q, want empty", p.Location())
	}
}

func TestHostElement_ListenerRemoval(t *testing.T) {
	e := newHostElement(nopCommand)

	calls := 0
	remove := e.AddListener(playback.EventPlay, func() { calls++ })
	e.update(ElementPayload{Event: playback.EventPlay})
	remove()
	e.update(ElementPayload{Event: playback.EventPlay})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
