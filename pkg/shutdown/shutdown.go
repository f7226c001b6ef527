// Package shutdown handles fatal exits and signal-driven teardown. A
// fatal startup error leaves a crash dump and a machine-readable abort
// record under the data dir so the UI process wrapping this daemon can
// tell the user what happened.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"roostdb/pkg/logger"
	"roostdb/pkg/state"
)

// abortRecord is the machine-readable companion to a crash dump.
type abortRecord struct {
	Time      string `json:"time"`
	Reason    string `json:"reason"`
	Error     string `json:"error,omitempty"`
	CrashPath string `json:"crash_path,omitempty"`
	PID       int    `json:"pid"`
}

// Abort writes diagnostics and exits non-zero after a short countdown so
// log sinks have time to flush.
func Abort(reason string, err error, dbPath string) {
	logger.Error("startup_fatal", "msg", reason, "error", err)
	dump, rec, derr := writeDiagnostics(dbPath, reason, err)
	if derr != nil {
		logger.Error("crash_dump_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "failed to write crash dump: %v\n", derr)
	} else {
		logger.Error("crash_dump_written", "dump", dump, "record", rec)
		fmt.Fprintf(os.Stderr, "crash dump written: %s\n", dump)
	}
	for i := 3; i > 0; i-- {
		logger.Info("exiting_in_seconds", "seconds", i)
		time.Sleep(time.Second)
	}
	os.Exit(2)
}

// writeDiagnostics publishes a human-readable dump under state/crash and
// an abort record under state/abort pointing at it.
func writeDiagnostics(dbPath, reason string, err error) (string, string, error) {
	crashDir, abortDir := "./crash", "./abort"
	if dbPath != "" {
		crashDir = filepath.Join(dbPath, "state", "crash")
		abortDir = filepath.Join(dbPath, "state", "abort")
	}
	for _, d := range []string{crashDir, abortDir} {
		if e := os.MkdirAll(d, 0o700); e != nil {
			return "", "", fmt.Errorf("create %s: %w", d, e)
		}
	}

	ts := time.Now().UnixNano()
	dumpPath := filepath.Join(crashDir, fmt.Sprintf("crash-%d.log", ts))

	var b strings.Builder
	fmt.Fprintf(&b, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "reason: %s\n", reason)
	fmt.Fprintf(&b, "error: %v\n", err)
	b.WriteString("\n--- environ ---\n")
	for _, kv := range os.Environ() {
		b.WriteString(redactEnv(kv))
		b.WriteByte('\n')
	}
	b.WriteString("\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	b.Write(buf[:runtime.Stack(buf, true)])
	if werr := state.WriteFileAtomic(dumpPath, []byte(b.String()), 0o600); werr != nil {
		return "", "", werr
	}

	rec := abortRecord{
		Time:      time.Now().UTC().Format(time.RFC3339),
		Reason:    reason,
		CrashPath: dumpPath,
		PID:       os.Getpid(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	recPath := filepath.Join(abortDir, fmt.Sprintf("abort-%d.json", ts))
	if werr := state.WriteArtifact(recPath, rec); werr != nil {
		return dumpPath, "", werr
	}
	return dumpPath, recPath, nil
}

// redactEnv blanks the value of any variable that looks like a
// credential. The dump carries the signing secrets' names, never their
// values.
func redactEnv(kv string) string {
	k, _, ok := strings.Cut(kv, "=")
	if !ok {
		return kv
	}
	up := strings.ToUpper(k)
	for _, marker := range []string{"SECRET", "TOKEN", "KEY", "PASSWORD", "CREDENTIAL"} {
		if strings.Contains(up, marker) {
			return k + "=<redacted>"
		}
	}
	return kv
}

// SetupSignalHandler returns a context cancelled on SIGINT, SIGTERM or
// SIGPIPE. SIGPIPE additionally dumps goroutine stacks first; losing the
// pipe to the UI is this daemon's most common unexpected-exit path and
// the stacks show what was in flight.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGPIPE)
	go func() {
		s := <-sigc
		if s == syscall.SIGPIPE {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			logger.Info("goroutine_stack_dump", "signal", s.String(), "dump", string(buf[:n]))
		}
		logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		cancel()
	}()
	return ctx, cancel
}
