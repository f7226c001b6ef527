package sensor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"roostdb/pkg/notify"
	"roostdb/pkg/store"
)

func testThresholds() Thresholds {
	return Thresholds{
		PollInterval:   time.Second,
		RecoveryWindow: 30 * time.Second,
		WALHighBytes:   1000,
		WALLowBytes:    100,
		DebtHighBytes:  10000,
		DebtLowBytes:   1000,
		L0HighFiles:    50,
		L0LowFiles:     10,
	}
}

func TestPressureRaisesOnce(t *testing.T) {
	tr := tracker{th: testThresholds()}
	now := time.Now()

	if got := tr.observe(store.View{WALBytes: 50}, now); got != eventNone {
		t.Fatalf("quiet store = %v", got)
	}
	if got := tr.observe(store.View{WALBytes: 2000}, now); got != eventPressure {
		t.Fatalf("crossing high mark = %v", got)
	}
	if got := tr.observe(store.View{WALBytes: 3000}, now.Add(time.Second)); got != eventNone {
		t.Fatalf("sustained pressure re-alerted: %v", got)
	}
}

func TestAnyDimensionTriggers(t *testing.T) {
	views := []store.View{
		{WALBytes: 1000},
		{CompactionDebt: 10000},
		{L0Files: 50},
	}
	for i, v := range views {
		tr := tracker{th: testThresholds()}
		if got := tr.observe(v, time.Now()); got != eventPressure {
			t.Fatalf("dimension %d did not trigger: %v", i, got)
		}
	}
}

func TestRecoveryNeedsQuietWindow(t *testing.T) {
	tr := tracker{th: testThresholds()}
	now := time.Now()

	tr.observe(store.View{WALBytes: 2000}, now)

	// quiet but inside the window
	if got := tr.observe(store.View{WALBytes: 50}, now.Add(10*time.Second)); got != eventNone {
		t.Fatalf("cleared too early: %v", got)
	}
	// quiet past the window
	if got := tr.observe(store.View{WALBytes: 50}, now.Add(31*time.Second)); got != eventCleared {
		t.Fatalf("quiet window elapsed = %v", got)
	}
	// a later quiet poll stays silent
	if got := tr.observe(store.View{WALBytes: 50}, now.Add(40*time.Second)); got != eventNone {
		t.Fatalf("re-cleared: %v", got)
	}
}

func TestMidBandHoldsPressure(t *testing.T) {
	tr := tracker{th: testThresholds()}
	now := time.Now()

	tr.observe(store.View{WALBytes: 2000}, now)

	// between the low and high marks, past the window: still pressured
	if got := tr.observe(store.View{WALBytes: 500}, now.Add(time.Minute)); got != eventNone {
		t.Fatalf("hysteresis band cleared: %v", got)
	}
	if got := tr.observe(store.View{WALBytes: 50}, now.Add(2*time.Minute)); got != eventCleared {
		t.Fatalf("drop under low mark = %v", got)
	}
}

func TestRelapseRestartsTheWindow(t *testing.T) {
	tr := tracker{th: testThresholds()}
	now := time.Now()

	tr.observe(store.View{WALBytes: 2000}, now)
	tr.observe(store.View{WALBytes: 2000}, now.Add(20*time.Second))

	// 31s after the first spike but only 11s after the relapse
	if got := tr.observe(store.View{WALBytes: 50}, now.Add(31*time.Second)); got != eventNone {
		t.Fatalf("window not restarted: %v", got)
	}
	if got := tr.observe(store.View{WALBytes: 50}, now.Add(51*time.Second)); got != eventCleared {
		t.Fatalf("window after relapse = %v", got)
	}
}

func TestPressureText(t *testing.T) {
	msg := pressureText(store.View{WALBytes: 268435456, CompactionDebt: 1073741824, L0Files: 72})
	if !strings.Contains(msg, "storage under pressure") || !strings.Contains(msg, "72 l0 files") {
		t.Fatalf("text = %q", msg)
	}
}

func TestWatchStops(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "db"), store.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	hub := notify.NewHub()
	stop := Watch(context.Background(), db, hub, Thresholds{})
	stop()
}
