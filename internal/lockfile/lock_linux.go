//go:build linux

// Package lockfile serializes mutating operations on the installation across
// processes. A second invocation finding the lock held fails fast with
// dt.ErrAlreadyRunning instead of blocking. The zero-byte lock file is
// harmless if orphaned — the kernel releases the flock when the fd is
// closed, including on process crash.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"dt-go/internal/dt"
)

// Locker holds a non-blocking exclusive flock on a well-known file path.
type Locker struct {
	path string
}

func New(path string) *Locker {
	return &Locker{path: path}
}

// Acquire opens (or creates) the lock file and takes the exclusive flock.
// The returned release function is safe to call more than once.
func (l *Locker) Acquire() (func(), error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", l.path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, dt.ErrAlreadyRunning
		}
		return nil, fmt.Errorf("flock %s: %w", l.path, err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// Close also releases the flock; LOCK_UN first for explicitness.
			_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
			_ = f.Close()
		})
	}
	return release, nil
}

// Compile-time check that Locker implements dt.Locker.
var _ dt.Locker = (*Locker)(nil)
