package notify

import (
	"testing"
)

func TestSubscribeCoalesces(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(7)
	defer cancel()

	h.Changed(7)
	h.Changed(7)
	h.Changed(7)

	select {
	case <-ch:
	default:
		t.Fatal("no ping delivered")
	}
	select {
	case <-ch:
		t.Fatal("pings did not coalesce")
	default:
	}
}

func TestSubscribeFiltersByPost(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(7)
	defer cancel()

	h.Changed(8)
	select {
	case <-ch:
		t.Fatal("ping for an unrelated post")
	default:
	}
}

func TestCancelClosesAndDetaches(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(7)
	cancel()
	cancel()

	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
	h.Changed(7)
}

func TestSubscribeAllStreamsIDs(t *testing.T) {
	h := NewHub()
	ch, cancel := h.SubscribeAll()
	defer cancel()

	h.Changed(1)
	h.Changed(2)

	if got := <-ch; got != 1 {
		t.Fatalf("first id = %d", got)
	}
	if got := <-ch; got != 2 {
		t.Fatalf("second id = %d", got)
	}
}

func TestSlowGlobalConsumerLosesSignals(t *testing.T) {
	h := NewHub()
	ch, cancel := h.SubscribeAll()
	defer cancel()

	for i := 0; i < 70; i++ {
		h.Changed(int64(i))
	}
	if h.Dropped() == 0 {
		t.Fatal("overflow not counted")
	}
	if len(ch) != 64 {
		t.Fatalf("buffered %d, want full buffer", len(ch))
	}
}

func TestAlerts(t *testing.T) {
	h := NewHub()
	ch, cancel := h.SubscribeAlerts()
	defer cancel()

	h.Alert("error", "rate limit exceeded")

	a := <-ch
	if a.Level != "error" || a.Text != "rate limit exceeded" {
		t.Fatalf("alert = %+v", a)
	}
}
