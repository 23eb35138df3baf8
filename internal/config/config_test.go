package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		DeviceID: "device-abc",
		BaseDir:  "/home/user/.local/share/mdnotes",
		LogDir:   "/home/user/.local/share/mdnotes/log",
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/mdnotes/db"},
		Remote: RemoteConfig{
			Type:       "s3",
			ObjectName: "notes.json",
			S3Bucket:   "my-notes",
			S3Prefix:   "laptop",
			S3Region:   "eu-west-1",
			S3Endpoint: "http://localhost:9000",
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/mdnotes/keys/mdnotes.pub",
			PrivateKeyPath: "/home/user/.local/share/mdnotes/keys/mdnotes.key",
		},
		Sync: SyncConfig{TimeoutSeconds: 30, AccountSwitch: "merge", LockPath: "/tmp/mdnotes.lock", SignalDir: "/tmp/signals"},
		Log:  LogConfig{Level: "debug", MaxSizeMB: 5, MaxBackups: 2, MaxAgeDays: 7},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.DeviceID != original.DeviceID {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, original.DeviceID)
	}
	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Remote != original.Remote {
		t.Errorf("Remote = %+v, want %+v", got.Remote, original.Remote)
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
	if got.Sync != original.Sync {
		t.Errorf("Sync = %+v, want %+v", got.Sync, original.Sync)
	}
	if got.Log != original.Log {
		t.Errorf("Log = %+v, want %+v", got.Log, original.Log)
	}
}

func TestManager_Write_OmitsUnusedUnionFields(t *testing.T) {
	var buf bytes.Buffer
	m := &Manager{}

	cfg := NewConfig("d1", "/data/mdnotes")
	cfg.Remote = RemoteConfig{Type: "filesystem", FSRoot: "/mnt/drive"}
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `fs_root = "/mnt/drive"`) {
		t.Errorf("encoded config missing fs_root:\n%s", out)
	}
	if strings.Contains(out, "s3_bucket") {
		t.Errorf("encoded config contains unused s3_bucket:\n%s", out)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("device-1", "/data/mdnotes")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceID", cfg.DeviceID, "device-1"},
		{"BaseDir", cfg.BaseDir, "/data/mdnotes"},
		{"LogDir", cfg.LogDir, "/data/mdnotes/log"},
		{"Database.Type", cfg.Database.Type, "sqlite"},
		{"Database.DataDir", cfg.Database.DataDir, "/data/mdnotes/db"},
		{"Remote.Type", cfg.Remote.Type, "none"},
		{"Encryption.Type", cfg.Encryption.Type, "none"},
		{"Encryption.PublicKeyPath", cfg.Encryption.PublicKeyPath, "/data/mdnotes/keys/mdnotes.pub"},
		{"Encryption.PrivateKeyPath", cfg.Encryption.PrivateKeyPath, "/data/mdnotes/keys/mdnotes.key"},
		{"Sync.AccountSwitch", cfg.Sync.AccountSwitch, "ask"},
		{"Sync.LockPath", cfg.Sync.LockPath, "/data/mdnotes/mdnotes.lock"},
		{"Sync.SignalDir", cfg.Sync.SignalDir, "/data/mdnotes/signals"},
		{"Log.Level", cfg.Log.Level, "info"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}

	if cfg.Sync.TimeoutSeconds != 60 {
		t.Errorf("Sync.TimeoutSeconds = %d, want 60", cfg.Sync.TimeoutSeconds)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "mdnotes.toml")
		cfg := NewConfig("d1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "mdnotes.toml")
		cfg := NewConfig("d1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "mdnotes.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.DeviceID != "read-test" {
			t.Errorf("DeviceID = %q, want %q", got.DeviceID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/mdnotes.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}

func TestWriteToFile_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mdnotes.toml")

	cfg := NewConfig("d1", dir)
	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	cfg.Remote = RemoteConfig{Type: "memory"}
	if err := WriteToFile(path, cfg); err != nil {
		t.Fatalf("WriteToFile() error = %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.Remote.Type != "memory" {
		t.Errorf("Remote.Type = %q, want %q", got.Remote.Type, "memory")
	}
}
