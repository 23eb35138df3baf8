package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that override the default locations.
const (
	EnvConfigPath = "MDNOTES_CONFIG_PATH"
	EnvHome       = "MDNOTES_HOME"
)

// Defaults holds the default locations used when no config file exists yet.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - MDNOTES_CONFIG_PATH: config file location (default: ~/.config/mdnotes.toml)
//   - MDNOTES_HOME: base directory for mdnotes data (default: ~/.local/share/mdnotes)
func GetDefaults() (*Defaults, error) {
	configPath, err := envOrHome(EnvConfigPath, ".config", "mdnotes.toml")
	if err != nil {
		return nil, err
	}

	baseDir, err := envOrHome(EnvHome, ".local", "share", "mdnotes")
	if err != nil {
		return nil, err
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the value of env, or the path under the home directory.
func envOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
