package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for dt.
type Config struct {
	HostID      string `toml:"host_id"` // machine identity sent to the API
	BaseDir     string `toml:"base_dir"`
	LogDir      string `toml:"log_dir"`
	InstallRoot string `toml:"install_root"`

	Repository RepositoryConfig `toml:"repository"`
	API        APIConfig        `toml:"api"`
	Update     UpdateConfig     `toml:"update"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	Notify     NotifyConfig     `toml:"notify"`
	Database   DatabaseConfig   `toml:"database"`
	Seal       SealConfig       `toml:"seal"`
	Shell      ShellConfig      `toml:"shell"`
	Links      []LinkConfig     `toml:"links"`
}

// RepositoryConfig identifies the content remote.
type RepositoryConfig struct {
	URL    string `toml:"url"`
	Branch string `toml:"branch"`
}

// APIConfig configures the license validation and telemetry endpoints.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	LicenseKey     string `toml:"license_key,omitempty"` // optional override
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the request timeout with a sane floor.
func (c APIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// UpdateConfig holds the unattended-run policy: "notify" (default) only
// reports availability, "apply" updates in place. Both observed deployment
// variants are preserved as configuration.
type UpdateConfig struct {
	Policy string `toml:"policy"`
}

// ScheduleConfig configures the recurring update task.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ScheduleConfig struct {
	Type  string `toml:"type"`            // "cron" or "none"
	Daily string `toml:"daily,omitempty"` // "HH:MM" wall-clock trigger
	Every string `toml:"every,omitempty"` // interval trigger, e.g. "1h"
}

// NotifyConfig configures user notifications.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type NotifyConfig struct {
	Type string `toml:"type"` // "desktop" or "none"
}

// DatabaseConfig configures the operation-history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// SealConfig controls the permission policy applied after each sync.
type SealConfig struct {
	Owner          string   `toml:"owner,omitempty"` // chown target, applied only when running as root
	Group          string   `toml:"group,omitempty"`
	ExecExtensions []string `toml:"exec_extensions"`
}

// ShellConfig names the shell profile that receives the PATH entry block.
type ShellConfig struct {
	Profile string `toml:"profile"`
}

// LinkConfig maps a logical link name to its symlink path and the target
// relative to the install root.
type LinkConfig struct {
	Name   string `toml:"name"`
	Path   string `toml:"path"`
	Target string `toml:"target"`
}

// NewConfig creates a Config with the provided identity and default values.
func NewConfig(hostID, baseDir, homeDir string) *Config {
	return &Config{
		HostID:      hostID,
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		InstallRoot: filepath.Join(baseDir, "framework"),
		Repository: RepositoryConfig{
			URL:    "https://github.com/example/framework.git",
			Branch: "main",
		},
		API: APIConfig{
			BaseURL:        "https://api.example.com",
			TimeoutSeconds: 10,
		},
		Update:   UpdateConfig{Policy: "notify"},
		Schedule: ScheduleConfig{Type: "cron", Daily: "03:30"},
		Notify:   NotifyConfig{Type: "desktop"},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Seal: SealConfig{
			ExecExtensions: []string{".sh", ".py", ".pl"},
		},
		Shell: ShellConfig{Profile: filepath.Join(homeDir, ".profile")},
		Links: []LinkConfig{
			{Name: "bin", Path: filepath.Join(homeDir, ".local", "bin", "dtf"), Target: "bin/dtf"},
			{Name: "config", Path: filepath.Join(homeDir, ".dtf", "config"), Target: "config"},
			{Name: "commands", Path: filepath.Join(homeDir, ".dtf", "commands"), Target: "commands"},
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
