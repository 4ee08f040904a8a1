package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DT_CONFIG_PATH: config file location (default: ~/.config/dt.toml)
//   - DT_HOME: base directory for dt data (default: ~/.local/share/dt)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"home_dir":    homeDir,
	}, nil
}

// getConfigPath returns the config file path, checking DT_CONFIG_PATH env var first,
// then falling back to the default ~/.config/dt.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("DT_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "dt.toml"), nil
}

// getBaseDir returns the base directory for dt data, checking DT_HOME env var first,
// then falling back to the XDG default ~/.local/share/dt.
func getBaseDir() (string, error) {
	if path := os.Getenv("DT_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "dt"), nil
}
