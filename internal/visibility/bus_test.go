package visibility

import (
	"sync"
	"testing"
)

func TestBus_DeliversOnlyChanges(t *testing.T) {
	b := NewBus(true)

	var got []bool
	b.Subscribe(func(v bool) { got = append(got, v) })

	b.Publish(true)
	b.Publish(false)
	b.Publish(false)
	b.Publish(true)

	want := []bool{false, true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBus_SubscriptionOrder(t *testing.T) {
	b := NewBus(true)

	var order []string
	b.Subscribe(func(bool) { order = append(order, "connection") })
	b.Subscribe(func(bool) { order = append(order, "session") })

	b.Publish(false)

	if len(order) != 2 || order[0] != "connection" || order[1] != "session" {
		t.Errorf("order = %v, want [connection session]", order)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus(false)

	calls := 0
	unsubscribe := b.Subscribe(func(bool) { calls++ })
	b.Publish(true)
	unsubscribe()
	unsubscribe()
	b.Publish(false)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBus_Visible(t *testing.T) {
	b := NewBus(true)
	if !b.Visible() {
		t.Error("Visible() = false, want initial true")
	}
	b.Publish(false)
	if b.Visible() {
		t.Error("Visible() = true after Publish(false)")
	}
}

func TestBus_SubscriberMayResubscribe(t *testing.T) {
	b := NewBus(true)

	var mu sync.Mutex
	calls := 0
	b.Subscribe(func(bool) {
		// Must not deadlock: subscribers run outside the bus lock
		b.Subscribe(func(bool) {})
		mu.Lock()
		calls++
		mu.Unlock()
	})

	b.Publish(false)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
