// Package sensor watches the embedded store for write pressure. It does
// not throttle anything itself; it publishes gauges and raises hub alerts
// so the UI and the operator can see a database that is falling behind.
package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"roostdb/pkg/logger"
	"roostdb/pkg/notify"
	"roostdb/pkg/store"
	"roostdb/pkg/telemetry"
)

// Thresholds holds the high and low watermarks for store pressure.
// Recovery is judged against the low marks so the state does not flap
// around a single boundary.
type Thresholds struct {
	PollInterval   time.Duration
	RecoveryWindow time.Duration

	WALHighBytes uint64
	WALLowBytes  uint64

	DebtHighBytes uint64
	DebtLowBytes  uint64

	L0HighFiles int64
	L0LowFiles  int64
}

// DefaultThresholds returns watermarks sized for a single-user store.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PollInterval:   10 * time.Second,
		RecoveryWindow: 30 * time.Second,

		WALHighBytes: 256 << 20,
		WALLowBytes:  64 << 20,

		DebtHighBytes: 1 << 30,
		DebtLowBytes:  256 << 20,

		L0HighFiles: 64,
		L0LowFiles:  16,
	}
}

// Watch starts the background monitor and returns a stop function. One
// alert is raised when pressure starts and one when it clears; gauges are
// refreshed on every poll.
func Watch(ctx context.Context, db *store.DB, hub *notify.Hub, th Thresholds) context.CancelFunc {
	if th.PollInterval <= 0 {
		th = DefaultThresholds()
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(th.PollInterval)
		defer ticker.Stop()
		tr := tracker{th: th}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v := db.MetricsView()
				telemetry.RecordStoreView(v.DiskBytes, v.WALBytes, v.CompactionDebt, v.L0Files)

				switch tr.observe(v, time.Now()) {
				case eventPressure:
					logger.Warn("store_pressure", "wal_bytes", v.WALBytes,
						"compaction_debt", v.CompactionDebt, "l0_files", v.L0Files)
					if hub != nil {
						hub.Alert("warn", pressureText(v))
					}
				case eventCleared:
					logger.Info("store_pressure_cleared")
					if hub != nil {
						hub.Alert("info", "storage pressure cleared")
					}
				}
			}
		}
	}()
	return cancel
}

type event int

const (
	eventNone event = iota
	eventPressure
	eventCleared
)

// tracker is the hysteresis state machine behind Watch. Pressure starts
// when any dimension crosses its high mark; it clears only after every
// dimension has stayed under its low mark for the recovery window.
type tracker struct {
	th        Thresholds
	pressured bool
	lastHigh  time.Time
}

func (t *tracker) observe(v store.View, now time.Time) event {
	high := v.WALBytes >= t.th.WALHighBytes ||
		v.CompactionDebt >= t.th.DebtHighBytes ||
		v.L0Files >= t.th.L0HighFiles
	if high {
		t.lastHigh = now
		if !t.pressured {
			t.pressured = true
			return eventPressure
		}
		return eventNone
	}

	if t.pressured && now.Sub(t.lastHigh) >= t.th.RecoveryWindow &&
		v.WALBytes <= t.th.WALLowBytes &&
		v.CompactionDebt <= t.th.DebtLowBytes &&
		v.L0Files <= t.th.L0LowFiles {
		t.pressured = false
		return eventCleared
	}
	return eventNone
}

func pressureText(v store.View) string {
	return fmt.Sprintf("storage under pressure: wal %s, compaction debt %s, %d l0 files",
		humanize.Bytes(v.WALBytes), humanize.Bytes(v.CompactionDebt), v.L0Files)
}
