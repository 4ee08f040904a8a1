//go:build !linux

package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"dt-go/internal/dt"
)

// Locker uses an O_EXCL pid file on platforms without flock support. Unlike
// the flock variant, a crashed process leaves the file behind; a stale file
// whose pid no longer exists is reclaimed.
type Locker struct {
	path string
}

func New(path string) *Locker {
	return &Locker{path: path}
}

func (l *Locker) Acquire() (func(), error) {
	if err := l.tryCreate(); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		if !l.stale() {
			return nil, dt.ErrAlreadyRunning
		}
		os.Remove(l.path)
		if err := l.tryCreate(); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return nil, dt.ErrAlreadyRunning
			}
			return nil, err
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() { _ = os.Remove(l.path) })
	}
	return release, nil
}

func (l *Locker) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return f.Close()
}

// stale reports whether the pid recorded in the lock file no longer exists.
func (l *Locker) stale() bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	// Signal 0 probes for existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) != nil
}

// Compile-time check that Locker implements dt.Locker.
var _ dt.Locker = (*Locker)(nil)
