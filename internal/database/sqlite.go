package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mdnotes/internal/database/migrations"
	"mdnotes/internal/notes"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteDatabase is the local record store. It also keeps the settings used
// for the sync session markers and the sync run history.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path (or MemoryPath).
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing connection. The caller is
// responsible for it being configured like OpenConnection does.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection.
// File databases wait on locks held by other processes and take the write
// lock when a transaction begins, so a read-modify-write never has to upgrade.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path
	if path != MemoryPath {
		dsn = "file:" + path + "?_busy_timeout=5000&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: an in-memory database lives per connection, and
	// writers are serialized anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if path != MemoryPath {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	return db, nil
}

// Notes

const noteColumns = `id, title, content, color, created_at, updated_at, deleted, win_x, win_y, win_width, win_height`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (notes.Note, error) {
	var (
		n                      notes.Note
		deleted                bool
		winX, winY, winW, winH sql.NullInt64
	)
	err := row.Scan(&n.ID, &n.Title, &n.Content, &n.Color, &n.CreatedAt, &n.UpdatedAt, &deleted, &winX, &winY, &winW, &winH)
	if err != nil {
		return notes.Note{}, err
	}
	n.Deleted = deleted
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	if winX.Valid && winY.Valid && winW.Valid && winH.Valid {
		n.WindowState = &notes.WindowState{
			X:      int(winX.Int64),
			Y:      int(winY.Int64),
			Width:  int(winW.Int64),
			Height: int(winH.Int64),
		}
	}
	return n, nil
}

func windowArgs(ws *notes.WindowState) []any {
	if ws == nil {
		return []any{nil, nil, nil, nil}
	}
	return []any{ws.X, ws.Y, ws.Width, ws.Height}
}

func noteArgs(n notes.Note) []any {
	args := []any{n.ID, n.Title, n.Content, n.Color, n.CreatedAt.UTC(), n.UpdatedAt.UTC(), n.Deleted}
	return append(args, windowArgs(n.WindowState)...)
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listNotes(ctx context.Context, q execQuerier) ([]notes.Note, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notes.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

const upsertNote = `INSERT INTO notes (` + noteColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	content = excluded.content,
	color = excluded.color,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at,
	deleted = excluded.deleted,
	win_x = excluded.win_x,
	win_y = excluded.win_y,
	win_width = excluded.win_width,
	win_height = excluded.win_height`

func replaceNotes(ctx context.Context, q execQuerier, all []notes.Note) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("clearing notes: %w", err)
	}
	for _, n := range all {
		if _, err := q.ExecContext(ctx, upsertNote, noteArgs(n)...); err != nil {
			return fmt.Errorf("writing note %s: %w", n.ID, err)
		}
	}
	return nil
}

// List returns every note, tombstones included, in insertion order.
func (s *SQLiteDatabase) List(ctx context.Context) ([]notes.Note, error) {
	result, err := listNotes(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return result, nil
}

// Get returns the note with id, or nil if there is none.
func (s *SQLiteDatabase) Get(ctx context.Context, id string) (*notes.Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting note: %w", err)
	}
	return &n, nil
}

// Put inserts or replaces a single note.
func (s *SQLiteDatabase) Put(ctx context.Context, n notes.Note) error {
	if _, err := s.db.ExecContext(ctx, upsertNote, noteArgs(n)...); err != nil {
		return fmt.Errorf("writing note: %w", err)
	}
	return nil
}

// PutAll replaces the whole collection in one transaction.
func (s *SQLiteDatabase) PutAll(ctx context.Context, all []notes.Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceNotes(ctx, tx, all); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Update reads the collection, applies fn and writes the result back in one
// transaction.
func (s *SQLiteDatabase) Update(ctx context.Context, fn func([]notes.Note) ([]notes.Note, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := listNotes(ctx, tx)
	if err != nil {
		return fmt.Errorf("listing notes: %w", err)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	if err := replaceNotes(ctx, tx, next); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Settings

func (s *SQLiteDatabase) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteDatabase) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	return nil
}

// Sync run history

func (s *SQLiteDatabase) StartSyncRun(ctx context.Context, run *notes.SyncRun) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (reason, started_at, status) VALUES (?, ?, ?)`,
		run.Reason, run.StartedAt.UTC(), run.Status)
	if err != nil {
		return fmt.Errorf("creating sync run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("creating sync run: %w", err)
	}
	run.ID = id
	return nil
}

func (s *SQLiteDatabase) FinishSyncRun(ctx context.Context, run *notes.SyncRun) error {
	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs
		 SET finished_at = ?, status = ?, outcome = ?, identity = ?, note_count = ?, error = ?
		 WHERE id = ?`,
		finished, run.Status, run.Outcome, run.Identity, run.NoteCount, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("finishing sync run: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListSyncRuns(ctx context.Context, limit int) ([]notes.SyncRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reason, started_at, finished_at, status, outcome, identity, note_count, error
		 FROM sync_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	runs := []notes.SyncRun{}
	for rows.Next() {
		var (
			run      notes.SyncRun
			finished sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.Reason, &run.StartedAt, &finished, &run.Status, &run.Outcome, &run.Identity, &run.NoteCount, &run.Error); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		run.StartedAt = run.StartedAt.UTC()
		if finished.Valid {
			t := finished.Time.UTC()
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	return runs, nil
}

// Path returns the database file path (or MemoryPath).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// MigrateUp brings the schema to the latest version.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// SchemaStatus reports the schema version against the one this binary ships.
func (s *SQLiteDatabase) SchemaStatus() (migrations.Status, error) {
	return migrations.GetStatus(s.db)
}

// BackupTo writes a complete copy of the database to destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var (
	_ notes.RecordStore   = (*SQLiteDatabase)(nil)
	_ notes.SettingsStore = (*SQLiteDatabase)(nil)
	_ notes.SyncHistory   = (*SQLiteDatabase)(nil)
)
