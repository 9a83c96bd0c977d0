// Package lock implements sunsetr's per-config-root singleton
// advisory lock and zombie detection (spec §4.J).
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/sunsetr/sunsetr/internal/apperr"
)

// Lock is a held advisory file lock. Release drops it and removes the
// backing file.
type Lock struct {
	path string
	fd   int
}

// Acquire attempts to take the singleton lock at path (spec §4.J:
// "$XDG_RUNTIME_DIR/sunsetr/sunsetr[-<hash>].lock"). socketPath is
// removed alongside the lock file when a stale holder is reclaimed,
// since a dead instance's socket is equally stale.
//
// On success this process now owns the lock. On failure because a
// live instance in the current login session holds it, the returned
// error has apperr.Kind == apperr.Lock (spec §7: exit 4).
func Acquire(path, socketPath string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, apperr.Wrap(apperr.Lock, "mkdir", err)
	}

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o600)
	if err != nil {
		return nil, apperr.Wrap(apperr.Lock, "open", err)
	}

	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		holderPID, readErr := readHolderPID(path)
		if readErr == nil && holderAlive(holderPID) && holderSameSession(holderPID) {
			unix.Close(fd)
			return nil, apperr.Wrap(apperr.Lock, "acquire",
				fmt.Errorf("instance with pid %d already running for this config root", holderPID))
		}

		// Holder is dead or belongs to a prior login session: this is
		// the "zombie" lock spec §4.J describes. Remove the stale lock
		// and socket, then retry once.
		unix.Close(fd)
		os.Remove(path)
		os.Remove(socketPath)

		fd, err = unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o600)
		if err != nil {
			return nil, apperr.Wrap(apperr.Lock, "reopen", err)
		}
		if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
			unix.Close(fd)
			return nil, apperr.Wrap(apperr.Lock, "acquire after reclaim", err)
		}
	} else if _, readErr := readHolderPID(path); readErr == nil {
		// The lock was free but still names a previous holder: that
		// instance is gone, so its socket is stale too.
		os.Remove(socketPath)
	}

	if err := unix.Ftruncate(fd, 0); err != nil {
		unix.Close(fd)
		return nil, apperr.Wrap(apperr.Lock, "truncate", err)
	}
	pidBytes := []byte(strconv.Itoa(os.Getpid()))
	if _, err := unix.Pwrite(fd, pidBytes, 0); err != nil {
		unix.Close(fd)
		return nil, apperr.Wrap(apperr.Lock, "write pid", err)
	}

	return &Lock{path: path, fd: fd}, nil
}

// Release drops the lock and removes the backing file.
func (l *Lock) Release() error {
	unix.Flock(l.fd, unix.LOCK_UN)
	err := unix.Close(l.fd)
	os.Remove(l.path)
	if err != nil {
		return apperr.Wrap(apperr.Lock, "release", err)
	}
	return nil
}

func readHolderPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// holderAlive checks whether pid refers to a live process, using the
// signal-0 convention (kill(pid, 0) succeeds iff the process exists
// and is visible to this user).
func holderAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}

// holderSameSession reports whether pid belongs to this process's
// login session (spec §4.J: "verify the holder PID is alive and
// belongs to the current login session"), the check that
// distinguishes a live instance from a prior session's reused PID.
func holderSameSession(pid int) bool {
	holderSID, err := unix.Getsid(pid)
	if err != nil {
		return false
	}
	ourSID, err := unix.Getsid(0)
	if err != nil {
		return false
	}
	return holderSID == ourSID
}
