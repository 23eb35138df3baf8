package database

import (
	"fmt"
	"os"
	"path/filepath"

	"mdnotes/internal/config"
)

// NewDatabaseFromConfig opens the database selected by cfg.Type and brings its
// schema up to date.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, deviceID string) (*SQLiteDatabase, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, deviceID+".db")
	case "memory":
		path = MemoryPath
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}

	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return db, nil
}
