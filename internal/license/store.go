// Package license persists the cached license record as an owner-only TOML
// file. The record is never deleted by dt itself, only overwritten.
package license

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"dt-go/internal/dt"
)

// FileStore stores the LicenseRecord at a fixed path with 0600 permissions.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the cached record. A missing file means no record yet: (nil, nil).
func (s *FileStore) Load() (*dt.LicenseRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading license record: %w", err)
	}

	var rec dt.LicenseRecord
	if err := toml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding license record %s: %w", s.path, err)
	}
	return &rec, nil
}

// Save writes the record atomically (temp file + rename) with owner-only
// permissions, so the key is never world-readable even transiently.
func (s *FileStore) Save(rec *dt.LicenseRecord) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("encoding license record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating license directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".license-*")
	if err != nil {
		return fmt.Errorf("creating temp license file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("restricting license file permissions: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing license record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing license file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing license record: %w", err)
	}
	return nil
}

// Compile-time check that FileStore implements dt.LicenseStore.
var _ dt.LicenseStore = (*FileStore)(nil)
