package license_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dt-go/internal/dt"
	"dt-go/internal/license"
)

func TestFileStore(t *testing.T) {
	t.Run("load without a record returns nil", func(t *testing.T) {
		s := license.NewFileStore(filepath.Join(t.TempDir(), "license.toml"))

		rec, err := s.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if rec != nil {
			t.Errorf("Load() = %+v, want nil", rec)
		}
	})

	t.Run("save and load round-trips", func(t *testing.T) {
		s := license.NewFileStore(filepath.Join(t.TempDir(), "license.toml"))
		validated := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

		err := s.Save(&dt.LicenseRecord{
			Key:             "KEY-1",
			Status:          "trial",
			LastValidatedAt: validated,
			DaysRemaining:   12,
		})
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		rec, err := s.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if rec.Key != "KEY-1" || rec.Status != "trial" || rec.DaysRemaining != 12 {
			t.Errorf("Load() = %+v", rec)
		}
		if !rec.LastValidatedAt.Equal(validated) {
			t.Errorf("last_validated_at = %v, want %v", rec.LastValidatedAt, validated)
		}
	})

	t.Run("record file is owner-only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "license.toml")
		s := license.NewFileStore(path)

		if err := s.Save(&dt.LicenseRecord{Key: "KEY-1", Status: "valid"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		fi, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if fi.Mode().Perm() != 0600 {
			t.Errorf("file mode = %v, want 0600", fi.Mode().Perm())
		}

		dirInfo, err := os.Stat(filepath.Dir(path))
		if err != nil {
			t.Fatalf("Stat(dir) error = %v", err)
		}
		if dirInfo.Mode().Perm() != 0700 {
			t.Errorf("dir mode = %v, want 0700", dirInfo.Mode().Perm())
		}
	})

	t.Run("save overwrites the previous record", func(t *testing.T) {
		s := license.NewFileStore(filepath.Join(t.TempDir(), "license.toml"))

		if err := s.Save(&dt.LicenseRecord{Key: "KEY-1", Status: "valid"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := s.Save(&dt.LicenseRecord{Key: "KEY-1", Status: "expired"}); err != nil {
			t.Fatalf("Save() second call error = %v", err)
		}

		rec, _ := s.Load()
		if rec.Status != "expired" {
			t.Errorf("status = %q, want expired", rec.Status)
		}
	})
}
