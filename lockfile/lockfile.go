// Package lockfile keeps a second bot process from polling the same token.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned when the lock file names a live process.
var ErrAlreadyRunning = errors.New("bot is already running")

type Lock struct {
	path string
	pid  int
}

// Acquire writes the current PID to path. A lock left behind by a dead
// process is taken over.
func Acquire(path string) (*Lock, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	switch {
	case err == nil:
		pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr == nil && (pid == os.Getpid() || alive(pid)) {
			return nil, fmt.Errorf("%w with PID %d", ErrAlreadyRunning, pid)
		}
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, fmt.Errorf("removing stale lock: %w", rmErr)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("reading lock file: %w", err)
	}

	pid := os.Getpid()
	if err := atomic.WriteFile(path, strings.NewReader(strconv.Itoa(pid))); err != nil {
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return &Lock{path: path, pid: pid}, nil
}

// Release removes the lock file if it still belongs to this process.
func (l *Lock) Release() error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading lock file: %w", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(l.pid) {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

func (l *Lock) Path() string { return l.path }

// alive probes with signal 0. EPERM still means the process exists.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
