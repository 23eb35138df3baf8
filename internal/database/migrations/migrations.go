package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Schema files are numbered golang-migrate pairs: NNNNNN_name.up.sql / .down.sql.
//
//go:embed files/*.sql
var migrationFiles embed.FS

// Status is the schema version of a database compared with the version this
// binary ships. Current is 0 for a database that was never migrated.
type Status struct {
	Current uint
	Latest  uint
	Dirty   bool
}

// Pending returns how many versions the database is behind.
func (s Status) Pending() uint {
	if s.Current >= s.Latest {
		return 0
	}
	return s.Latest - s.Current
}

// Err describes why the schema cannot be used as is, or nil.
func (s Status) Err() error {
	switch {
	case s.Dirty:
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", s.Current)
	case s.Current > s.Latest:
		return fmt.Errorf("database version %d is newer than this binary (%d): upgrade mdnotes", s.Current, s.Latest)
	case s.Current < s.Latest:
		return fmt.Errorf("database is at version %d but latest is %d", s.Current, s.Latest)
	}
	return nil
}

// GetStatus reads the schema version of db.
func GetStatus(db *sql.DB) (Status, error) {
	latest, err := LatestVersion()
	if err != nil {
		return Status{}, err
	}

	m, err := newMigrate(db)
	if err != nil {
		return Status{}, err
	}
	// m is not closed: that would close the caller's db.

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, fmt.Errorf("reading schema version: %w", err)
	}
	return Status{Current: current, Latest: latest, Dirty: dirty}, nil
}

// MigrateUp applies pending migrations. A dirty database, or one written by
// a newer binary, is left alone and reported.
func MigrateUp(db *sql.DB) error {
	st, err := GetStatus(db)
	if err != nil {
		return err
	}
	if st.Dirty || st.Current > st.Latest {
		return st.Err()
	}
	if st.Pending() == 0 {
		return nil
	}

	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating from version %d: %w", st.Current, err)
	}
	return nil
}

// LatestVersion returns the highest schema version embedded in the binary.
func LatestVersion() (uint, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, fmt.Errorf("reading migration files: %w", err)
	}
	defer src.Close()
	return lastVersion(src)
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("reading migration files: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("opening migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no migrations embedded: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, err
		}
		v = next
	}
}
