// Package retention prunes stored posts past the configured age on a
// cron schedule. Sweeps run in paced batches so a large backlog never
// stalls the store, and each run leaves a JSON artifact for inspection.
package retention

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"

	"roostdb/pkg/config"
	"roostdb/pkg/logger"
	"roostdb/pkg/store"
)

// Runner owns the scheduled sweep over one user's records.
type Runner struct {
	cfg config.RetentionConfig
	st  *store.Store
	dir string
}

// New builds a runner writing its artifacts into dir; an empty dir skips
// artifact writes.
func New(cfg config.RetentionConfig, st *store.Store, dir string) *Runner {
	return &Runner{cfg: cfg, st: st, dir: dir}
}

// Start launches the scheduler when retention is enabled. The returned
// cancel stops it; disabled retention returns a no-op cancel.
func (r *Runner) Start(ctx context.Context) (context.CancelFunc, error) {
	if !r.cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	period := r.cfg.Period.Duration()
	if period <= 0 {
		return nil, fmt.Errorf("retention enabled but retention.period is not set")
	}
	min := r.cfg.MinPeriod.Duration()
	if min <= 0 {
		min = 24 * time.Hour
	}
	if period < min {
		return nil, fmt.Errorf("retention.period %s below minimum %s", period, min)
	}

	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0o700); err != nil {
			logger.Error("retention_path_create_failed", "path", r.dir, "error", err)
			return nil, err
		}
	}

	// map empty cron to default daily @02:00
	cronExpr := r.cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", r.cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", r.cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", period.String(), "path", r.dir)
	ctx2, cancel := context.WithCancel(ctx)
	go r.schedule(ctx2, cronExpr)
	logger.Info("retention_scheduler_started", "path", r.dir)
	return cancel, nil
}

// schedule computes the next tick for the cron expression with gronx and
// sleeps until that time, so full cron syntax works without polling.
func (r *Runner) schedule(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			if _, err := r.RunOnce(ctx); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs one sweep and returns how many records it removed
// (or, in dry-run mode, would have removed).
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	if r.cfg.Paused {
		logger.Info("retention_paused")
		return 0, nil
	}
	period := r.cfg.Period.Duration()
	if period <= 0 {
		return 0, fmt.Errorf("retention period not configured")
	}

	cutoff := time.Now().UTC().Add(-period)
	start := time.Now()
	logger.Info("retention_run_start", "cutoff", cutoff.Format(time.RFC3339), "dry_run", r.cfg.DryRun)

	if r.cfg.DryRun {
		n, err := r.st.CountOlderThan(cutoff)
		if err != nil {
			r.writeArtifact(runArtifact{Time: start, Cutoff: cutoff, DryRun: true, Error: err.Error()})
			return 0, err
		}
		r.writeArtifact(runArtifact{Time: start, Cutoff: cutoff, Deleted: n, DryRun: true, Duration: time.Since(start)})
		logger.Info("retention_run_done", "would_delete", n, "dry_run", true)
		return n, nil
	}

	batch := r.cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	pause := r.cfg.BatchSleep.Duration()
	if pause <= 0 {
		pause = 100 * time.Millisecond
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			r.writeArtifact(runArtifact{Time: start, Cutoff: cutoff, Deleted: total, Duration: time.Since(start), Error: err.Error()})
			return total, err
		}
		n, err := r.st.SweepOlderThan(cutoff, batch)
		if err != nil {
			r.writeArtifact(runArtifact{Time: start, Cutoff: cutoff, Deleted: total, Duration: time.Since(start), Error: err.Error()})
			return total, err
		}
		total += n
		if n < batch {
			break
		}
		logger.Debug("retention_batch", "deleted", n, "total", total)
		select {
		case <-time.After(pause):
		case <-ctx.Done():
			r.writeArtifact(runArtifact{Time: start, Cutoff: cutoff, Deleted: total, Duration: time.Since(start), Error: ctx.Err().Error()})
			return total, ctx.Err()
		}
	}

	r.writeArtifact(runArtifact{Time: start, Cutoff: cutoff, Deleted: total, Duration: time.Since(start)})
	logger.Info("retention_run_done", "deleted", total, "duration", time.Since(start).String())
	return total, nil
}
