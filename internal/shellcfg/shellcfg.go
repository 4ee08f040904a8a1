// Package shellcfg maintains the PATH entry block in the user's shell
// profile. Edits operate on parsed lines with exact marker matching, so a
// similarly named entry elsewhere in the file is never mistaken for ours,
// and removal always backs up the original file first.
package shellcfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"dt-go/internal/dt"
)

const (
	beginMarker = "# >>> dt managed block >>>"
	endMarker   = "# <<< dt managed block <<<"
)

// Editor edits one shell profile file.
type Editor struct {
	path   string
	logger dt.Logger
}

func New(path string, logger dt.Logger) *Editor {
	return &Editor{path: path, logger: logger}
}

// EnsurePathEntry adds dir to PATH via the managed block. A block with the
// same content already present leaves the file untouched.
func (e *Editor) EnsurePathEntry(dir string) (bool, error) {
	lines, err := e.readLines()
	if err != nil {
		return false, err
	}

	block := []string{
		beginMarker,
		fmt.Sprintf("export PATH=%q", dir+":$PATH"),
		endMarker,
	}

	if current, found := extractBlock(lines); found && equalLines(current, block[1:len(block)-1]) {
		return false, nil
	}

	stripped, _ := removeBlock(lines)
	if len(stripped) > 0 && stripped[len(stripped)-1] != "" {
		stripped = append(stripped, "")
	}
	stripped = append(stripped, block...)

	if err := e.writeLines(stripped); err != nil {
		return false, err
	}
	e.logger.Info("shell profile updated", "path", e.path)
	return true, nil
}

// RemovePathEntry strips the managed block, writing the original file to
// <path>.backup first so the user's config is recoverable.
func (e *Editor) RemovePathEntry() (bool, string, error) {
	original, err := os.ReadFile(e.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("reading %s: %w", e.path, err)
	}

	lines := splitLines(string(original))
	stripped, found := removeBlock(lines)
	if !found {
		return false, "", nil
	}

	// The backup keeps the original file's permissions: a profile holding
	// secrets must not come back world-readable.
	mode := fs.FileMode(0644)
	if info, statErr := os.Stat(e.path); statErr == nil {
		mode = info.Mode().Perm()
	}
	backup := e.path + ".backup"
	if err := os.WriteFile(backup, original, mode); err != nil {
		return false, "", fmt.Errorf("writing backup %s: %w", backup, err)
	}

	if err := e.writeLines(stripped); err != nil {
		return false, "", err
	}
	e.logger.Info("shell profile entry removed", "path", e.path, "backup", backup)
	return true, backup, nil
}

func (e *Editor) readLines() ([]string, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", e.path, err)
	}
	return splitLines(string(data)), nil
}

func (e *Editor) writeLines(lines []string) error {
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(e.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", e.path, err)
	}
	return nil
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// extractBlock returns the lines between the markers, if the block exists.
func extractBlock(lines []string) ([]string, bool) {
	var block []string
	inBlock := false
	for _, line := range lines {
		switch {
		case line == beginMarker:
			inBlock = true
		case line == endMarker:
			if inBlock {
				return block, true
			}
		case inBlock:
			block = append(block, line)
		}
	}
	return nil, false
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// removeBlock strips the managed block, matching marker lines exactly.
func removeBlock(lines []string) ([]string, bool) {
	var out []string
	found := false
	inBlock := false
	for _, line := range lines {
		switch {
		case line == beginMarker:
			found = true
			inBlock = true
		case line == endMarker:
			inBlock = false
		case !inBlock:
			out = append(out, line)
		}
	}
	return out, found
}

// Compile-time check that Editor implements dt.ProfileEditor.
var _ dt.ProfileEditor = (*Editor)(nil)
