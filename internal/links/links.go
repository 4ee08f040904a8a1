// Package links maintains the fixed set of symlinks pointing into the
// installation. Stale links are replaced; real files occupying a link path
// are renamed aside, never deleted.
package links

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dt-go/internal/dt"
)

// FSLinker implements dt.Linker on the real filesystem.
type FSLinker struct {
	clock  dt.Clock
	logger dt.Logger
}

func New(clock dt.Clock, logger dt.Logger) *FSLinker {
	return &FSLinker{clock: clock, logger: logger}
}

// Ensure makes the symlink at link.Path point at link.Target.
func (l *FSLinker) Ensure(link dt.Link) (dt.LinkOutcome, error) {
	fi, err := os.Lstat(link.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("inspecting %s: %w", link.Path, err)
		}
		if err := l.create(link); err != nil {
			return 0, err
		}
		return dt.LinkCreated, nil
	}

	if fi.Mode()&fs.ModeSymlink != 0 {
		dest, err := os.Readlink(link.Path)
		if err != nil {
			return 0, fmt.Errorf("reading link %s: %w", link.Path, err)
		}
		if dest == link.Target {
			return dt.LinkUnchanged, nil
		}
		// Stale link: replace, don't leave it dangling.
		if err := os.Remove(link.Path); err != nil {
			return 0, fmt.Errorf("removing stale link %s: %w", link.Path, err)
		}
		if err := l.create(link); err != nil {
			return 0, err
		}
		l.logger.Info("stale link replaced", "name", link.Name, "was", dest, "now", link.Target)
		return dt.LinkReplaced, nil
	}

	// A real file or directory occupies the link path. Move it aside with a
	// timestamped name so the user's data stays recoverable.
	backup := fmt.Sprintf("%s.backup-%d", link.Path, l.clock.Now().Unix())
	if err := os.Rename(link.Path, backup); err != nil {
		return 0, fmt.Errorf("moving %s aside: %w", link.Path, err)
	}
	if err := l.create(link); err != nil {
		return 0, err
	}
	l.logger.Warn("existing entry moved aside", "name", link.Name, "backup", backup)
	return dt.LinkDisplaced, nil
}

// Remove deletes the symlink only when it points inside installRoot.
func (l *FSLinker) Remove(link dt.Link, installRoot string) (bool, error) {
	fi, err := os.Lstat(link.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("inspecting %s: %w", link.Path, err)
	}
	if fi.Mode()&fs.ModeSymlink == 0 {
		// Not ours to delete.
		return false, nil
	}

	dest, err := os.Readlink(link.Path)
	if err != nil {
		return false, fmt.Errorf("reading link %s: %w", link.Path, err)
	}
	if !pointsInside(dest, installRoot) {
		return false, nil
	}

	if err := os.Remove(link.Path); err != nil {
		return false, fmt.Errorf("removing link %s: %w", link.Path, err)
	}
	return true, nil
}

// Healthy reports whether the symlink exists and points at link.Target.
func (l *FSLinker) Healthy(link dt.Link) (bool, error) {
	fi, err := os.Lstat(link.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("inspecting %s: %w", link.Path, err)
	}
	if fi.Mode()&fs.ModeSymlink == 0 {
		return false, nil
	}
	dest, err := os.Readlink(link.Path)
	if err != nil {
		return false, fmt.Errorf("reading link %s: %w", link.Path, err)
	}
	return dest == link.Target, nil
}

func (l *FSLinker) create(link dt.Link) error {
	if err := os.MkdirAll(filepath.Dir(link.Path), 0755); err != nil {
		return fmt.Errorf("creating link directory: %w", err)
	}
	if err := os.Symlink(link.Target, link.Path); err != nil {
		return fmt.Errorf("creating link %s -> %s: %w", link.Path, link.Target, err)
	}
	return nil
}

func pointsInside(dest, root string) bool {
	return dest == root || strings.HasPrefix(dest, root+string(os.PathSeparator))
}

// Compile-time check that FSLinker implements dt.Linker.
var _ dt.Linker = (*FSLinker)(nil)
