// Package logger holds the process-wide slog logger plus the activity
// sink, a separate JSON stream of action transitions kept under the data
// dir for the UI to replay.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var Log *slog.Logger

// Activity records action reconciliation transitions (applied, confirmed,
// rolled_back) when a sink is attached; nil otherwise.
var Activity *slog.Logger

// Init initializes the global logger from the environment alone.
func Init() {
	InitWithLevel("")
}

// InitWithLevel initializes the global logger at the given level
// ("debug", "info", "warn", "error"), falling back to ROOSTDB_LOG_LEVEL
// when empty. ROOSTDB_LOG_SINK may name a file sink as "file:/path";
// anything else logs to stderr.
func InitWithLevel(level string) {
	if level == "" {
		level = os.Getenv("ROOSTDB_LOG_LEVEL")
	}
	Log = slog.New(slog.NewTextHandler(openSink(os.Getenv("ROOSTDB_LOG_SINK")), &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func openSink(spec string) io.Writer {
	path, ok := strings.CutPrefix(spec, "file:")
	if !ok {
		return os.Stderr
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
		return os.Stderr
	}
	return f
}

// AttachActivitySink starts the activity stream at <dir>/activity.log,
// rotating the previous file once it passes 10MB. On error Activity stays
// nil and Action falls back to the main logger.
func AttachActivitySink(dir string) error {
	if dir == "" {
		return fmt.Errorf("empty activity dir")
	}
	if fi, err := os.Lstat(dir); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("activity path is a symlink: %s", dir)
		}
		if !fi.IsDir() {
			return fmt.Errorf("activity path exists and is not a directory: %s", dir)
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create activity directory: %w", err)
	}

	fname := filepath.Join(dir, "activity.log")
	rotateIfLarge(fname)
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open activity log: %w", err)
	}
	Activity = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	Activity.Info("activity_sink_attached", "path", fname)
	return nil
}

func rotateIfLarge(fname string) {
	const maxSize = 10 * 1024 * 1024
	fi, err := os.Stat(fname)
	if err != nil || fi.Size() <= maxSize {
		return
	}
	bak := fname + "." + fi.ModTime().UTC().Format("20060102T150405Z")
	_ = os.Rename(fname, bak)
}

// Action logs a reconciliation transition to the activity sink when one
// is attached, falling back to the main logger otherwise.
func Action(msg string, args ...any) {
	if Activity != nil {
		Activity.Info(msg, args...)
		return
	}
	Info(msg, args...)
}

func emit(lv slog.Level, msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Log(context.Background(), lv, msg, args...)
}

// Debug logs with slog-style key/value pairs.
func Debug(msg string, args ...any) { emit(slog.LevelDebug, msg, args...) }

// Info logs with slog-style key/value pairs.
func Info(msg string, args ...any) { emit(slog.LevelInfo, msg, args...) }

// Warn logs with slog-style key/value pairs.
func Warn(msg string, args ...any) { emit(slog.LevelWarn, msg, args...) }

// Error logs with slog-style key/value pairs.
func Error(msg string, args ...any) { emit(slog.LevelError, msg, args...) }
