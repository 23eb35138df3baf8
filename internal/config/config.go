package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for mdnotes.
type Config struct {
	DeviceID   string           `toml:"device_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Remote     RemoteConfig     `toml:"remote"`
	Encryption EncryptionConfig `toml:"encryption"`
	Sync       SyncConfig       `toml:"sync"`
	Log        LogConfig        `toml:"log"`
}

// DatabaseConfig represents configuration for the local note store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// RemoteConfig selects where the sync object lives.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RemoteConfig struct {
	Type       string `toml:"type"`                  // "none", "memory", "filesystem" or "s3"
	ObjectName string `toml:"object_name,omitempty"` // defaults to markdown_notes_sync.json

	// Identity overrides the identity reported by the backend.
	Identity string `toml:"identity,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3Profile         string `toml:"s3_profile,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for the sync object.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	AccountSwitch  string `toml:"account_switch"` // "ask", "merge" or "replace" when no terminal is attached
	LockPath       string `toml:"lock_path"`
	SignalDir      string `toml:"signal_dir"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level      string `toml:"level"` // "debug", "info", "warn" or "error"
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// NewConfig creates a new Config with the provided values and defaults
// rooted at baseDir. Sync starts with no remote configured.
func NewConfig(deviceID, baseDir string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Remote: RemoteConfig{
			Type: "none",
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "mdnotes.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "mdnotes.key"),
		},
		Sync: SyncConfig{
			TimeoutSeconds: 60,
			AccountSwitch:  "ask",
			LockPath:       filepath.Join(baseDir, "mdnotes.lock"),
			SignalDir:      filepath.Join(baseDir, "signals"),
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
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

// WriteToFile writes cfg to path, replacing any existing file.
func WriteToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
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

// Init writes cfg to a new config file. It fails if the file exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := WriteToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
