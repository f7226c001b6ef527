// Package state owns the on-disk layout under the data dir and the
// atomic write helpers for the operator-facing files kept there.
//
// Layout:
//
//	<db>/store            pebble
//	<db>/state/activity   action transition log
//	<db>/state/retention  sweep artifacts
//	<db>/state/crash      crash dumps
//	<db>/state/abort      abort records
//	<db>/state/tmp        scratch
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// StorePath returns the pebble directory under the data dir.
func StorePath(dbPath string) string { return filepath.Join(dbPath, "store") }

// ActivityPath returns the activity log directory under the data dir.
func ActivityPath(dbPath string) string { return filepath.Join(dbPath, "state", "activity") }

// RetentionPath returns the retention artifact directory under the data dir.
func RetentionPath(dbPath string) string { return filepath.Join(dbPath, "state", "retention") }

func layout(dbPath string) []string {
	st := filepath.Join(dbPath, "state")
	return []string{
		StorePath(dbPath),
		ActivityPath(dbPath),
		RetentionPath(dbPath),
		filepath.Join(st, "crash"),
		filepath.Join(st, "abort"),
		filepath.Join(st, "tmp"),
	}
}

// EnsureStateDirs creates the full layout under dbPath. Every directory
// must be a real directory with no group or other write access; the tree
// holds the user's private timeline content and crash dumps, and a
// symlinked entry would silently move that outside the data dir.
func EnsureStateDirs(dbPath string) error {
	for _, p := range layout(dbPath) {
		if err := ensureDir(p); err != nil {
			return err
		}
	}
	return nil
}

func ensureDir(p string) error {
	if err := os.MkdirAll(p, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", p, err)
	}
	fi, err := os.Lstat(p)
	if err != nil {
		return fmt.Errorf("stat %s: %w", p, err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%s is a symlink", p)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s exists and is not a directory", p)
	}
	if fi.Mode().Perm()&0o022 != 0 {
		return fmt.Errorf("%s is group or world writable", p)
	}

	// a readable-but-unwritable dir fails here, not mid-run
	probe, err := os.CreateTemp(p, ".probe-*")
	if err != nil {
		return fmt.Errorf("%s not writable: %w", p, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}
