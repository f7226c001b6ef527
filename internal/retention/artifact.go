package retention

import (
	"path/filepath"
	"time"

	"roostdb/pkg/logger"
	"roostdb/pkg/state"
)

// runArtifact records the outcome of one sweep for operators.
type runArtifact struct {
	Time     time.Time     `json:"time"`
	Cutoff   time.Time     `json:"cutoff"`
	Deleted  int           `json:"deleted"`
	DryRun   bool          `json:"dry_run,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// writeArtifact replaces last_run.json with the latest outcome.
func (r *Runner) writeArtifact(a runArtifact) {
	if r.dir == "" {
		return
	}
	if err := state.WriteArtifact(filepath.Join(r.dir, "last_run.json"), a); err != nil {
		logger.Warn("retention_artifact_failed", "error", err)
	}
}
