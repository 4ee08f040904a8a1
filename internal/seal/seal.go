// Package seal enforces the read-only-for-non-owners policy on the synced
// tree. It runs after every sync that touched the filesystem, since git
// restores the repository's stored modes.
package seal

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"dt-go/internal/dt"
)

const (
	dirMode  = 0755
	fileMode = 0644
	execMode = 0755
)

// Policy describes the permission scheme applied to the tree.
type Policy struct {
	// Owner/Group to chown to. Only applied when the process runs as root;
	// otherwise ownership is left alone.
	Owner string
	Group string

	// ExecExtensions are file suffixes re-marked executable, e.g. ".sh".
	ExecExtensions []string
}

// TreeSealer implements dt.Sealer by walking the tree and normalizing modes.
// Sealing an already-sealed tree is a no-op in effect.
type TreeSealer struct {
	policy Policy
	logger dt.Logger
}

func New(policy Policy, logger dt.Logger) *TreeSealer {
	return &TreeSealer{policy: policy, logger: logger}
}

// Seal applies the policy to every entry under root.
func (s *TreeSealer) Seal(root string) error {
	uid, gid, err := s.resolveOwner()
	if err != nil {
		return err
	}

	count := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Symlinks carry no mode of their own.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		mode := os.FileMode(fileMode)
		switch {
		case d.IsDir():
			mode = dirMode
		case s.isExecutable(path):
			mode = execMode
		}

		if err := os.Chmod(path, mode); err != nil {
			return fmt.Errorf("chmod %s: %w", path, err)
		}
		if uid >= 0 {
			if err := os.Chown(path, uid, gid); err != nil {
				return fmt.Errorf("chown %s: %w", path, err)
			}
		}
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("sealing %s: %w", root, err)
	}

	s.logger.Debug("tree sealed", "root", root, "entries", count)
	return nil
}

// resolveOwner returns the uid/gid to chown to, or (-1, -1) when ownership
// is left untouched.
func (s *TreeSealer) resolveOwner() (int, int, error) {
	if s.policy.Owner == "" || os.Geteuid() != 0 {
		return -1, -1, nil
	}

	u, err := user.Lookup(s.policy.Owner)
	if err != nil {
		return 0, 0, fmt.Errorf("looking up owner %q: %w", s.policy.Owner, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing uid %q: %w", u.Uid, err)
	}

	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing gid %q: %w", u.Gid, err)
	}
	if s.policy.Group != "" {
		g, err := user.LookupGroup(s.policy.Group)
		if err != nil {
			return 0, 0, fmt.Errorf("looking up group %q: %w", s.policy.Group, err)
		}
		gid, err = strconv.Atoi(g.Gid)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing gid %q: %w", g.Gid, err)
		}
	}

	return uid, gid, nil
}

func (s *TreeSealer) isExecutable(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range s.policy.ExecExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Compile-time check that TreeSealer implements dt.Sealer.
var _ dt.Sealer = (*TreeSealer)(nil)
