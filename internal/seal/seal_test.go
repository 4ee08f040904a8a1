package seal_test

import (
	"os"
	"path/filepath"
	"testing"

	"dt-go/internal/dt"
	"dt-go/internal/seal"
)

func writeTree(t *testing.T, root string) {
	t.Helper()
	dirs := []string{"bin", "commands", "config"}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0700); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
	}
	files := map[string]os.FileMode{
		"bin/dtf":           0600,
		"commands/build.sh": 0666,
		"commands/lint.py":  0600,
		"config/defaults":   0777,
	}
	for name, mode := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte("content\n"), mode); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}
}

func newSealer() *seal.TreeSealer {
	return seal.New(seal.Policy{ExecExtensions: []string{".sh", ".py"}}, dt.NewNopLogger())
}

func TestTreeSealer_Seal(t *testing.T) {
	t.Run("normalizes directory and file modes", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root)

		if err := newSealer().Seal(root); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}

		wantModes := map[string]os.FileMode{
			"bin":               0755 | os.ModeDir,
			"bin/dtf":           0644,
			"commands/build.sh": 0755,
			"commands/lint.py":  0755,
			"config/defaults":   0644,
		}
		for name, want := range wantModes {
			fi, err := os.Stat(filepath.Join(root, name))
			if err != nil {
				t.Fatalf("Stat(%s) error = %v", name, err)
			}
			if fi.Mode() != want {
				t.Errorf("%s mode = %v, want %v", name, fi.Mode(), want)
			}
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root)
		s := newSealer()

		if err := s.Seal(root); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		if err := s.Seal(root); err != nil {
			t.Fatalf("Seal() second run error = %v", err)
		}

		fi, _ := os.Stat(filepath.Join(root, "commands", "build.sh"))
		if fi.Mode() != 0755 {
			t.Errorf("build.sh mode = %v, want 0755", fi.Mode())
		}
	})

	t.Run("skips symlinks", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root)
		if err := os.Symlink(filepath.Join(root, "bin", "dtf"), filepath.Join(root, "alias")); err != nil {
			t.Fatalf("Symlink() error = %v", err)
		}

		if err := newSealer().Seal(root); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
	})

	t.Run("extension matching is case-insensitive", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, "RUN.SH"), []byte("#!/bin/sh\n"), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		if err := newSealer().Seal(root); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}

		fi, _ := os.Stat(filepath.Join(root, "RUN.SH"))
		if fi.Mode() != 0755 {
			t.Errorf("RUN.SH mode = %v, want 0755", fi.Mode())
		}
	})

	t.Run("missing root is an error", func(t *testing.T) {
		if err := newSealer().Seal(filepath.Join(t.TempDir(), "absent")); err == nil {
			t.Error("Seal() error = nil, want error for missing root")
		}
	})
}
