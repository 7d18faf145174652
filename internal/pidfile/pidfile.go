// Package pidfile implements the filesystem token that enforces one running
// instance per daemon.
//
// Exclusive creation of the pid file is the only serialization point across
// concurrent starts: exactly one starter wins the O_EXCL race, and losers
// must stand down quietly. A stale file (recorded pid no longer alive) reads
// as "not running" but is never deleted here; reclaiming it automatically
// would race a concurrently starting instance, so that cleanup stays an
// operator decision.
package pidfile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Acquire creates path exclusively and records the calling process's pid,
// newline-terminated. It returns true when this call created the file and
// the caller is now the daemon instance. A false return with nil error means
// another instance already holds the file; the caller must exit without
// touching it.
func Acquire(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create pid file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		return false, fmt.Errorf("write pid file: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close pid file: %w", err)
	}
	return true, nil
}

// Status returns the recorded pid when the owning process is alive, and 0
// when the file is absent, unreadable, or points at a dead process. Liveness
// is probed with the null signal; the probe never disturbs the target.
func Status(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0
	}
	return pid
}

// Release deletes the pid file. Errors are logged and swallowed: release
// runs on the daemon's exit path, where failing loudly helps nobody.
func Release(path string, logger *slog.Logger) {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return
	}
	if logger != nil {
		logger.Error("remove pid file", slog.String("path", path), slog.Any("error", err))
	}
}
