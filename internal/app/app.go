package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"mdnotes/internal/config"
	"mdnotes/internal/database"
	"mdnotes/internal/database/migrations"
	"mdnotes/internal/encryption"
	"mdnotes/internal/notes"
	"mdnotes/internal/remote"
	"mdnotes/internal/signal"
)

// ErrAmbiguousID is returned when an id prefix matches more than one note.
var ErrAmbiguousID = errors.New("ambiguous note id")

// ErrNotMain is returned by operations only the main process may run.
var ErrNotMain = errors.New("another mdnotes process is running sync")

// NotesApp is the application layer between the CLI and NotesService.
// It constructs all dependencies from config, decides the process role and
// releases everything on Close.
type NotesApp struct {
	cfg         *config.Config
	role        notes.Role
	lock        *flock.Flock
	db          *database.SQLiteDatabase
	encryptor   notes.Encryptor
	channel     *remote.Channel
	signals     notes.SignalChannel
	stopSignals func()
	trigger     *notes.Trigger
	service     *notes.NotesService
	logger      *slog.Logger
	logFile     io.Closer
}

// NewNotesApp creates a fully wired NotesApp from the given config. A nil
// confirmer asks on the terminal. The caller must call Close when done.
func NewNotesApp(ctx context.Context, cfg *config.Config, confirmer notes.Confirmer) (*NotesApp, error) {
	sessionID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, cfg.Log, sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &NotesApp{cfg: cfg, logger: logger, logFile: logFile}
	if err := a.wire(ctx, confirmer); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *NotesApp) wire(ctx context.Context, confirmer notes.Confirmer) error {
	cfg := a.cfg
	nlog := &slogAdapter{l: a.logger}

	role, lock, err := acquireRole(cfg.Sync.LockPath)
	if err != nil {
		return fmt.Errorf("deciding process role: %w", err)
	}
	a.role, a.lock = role, lock

	a.db, err = database.NewDatabaseFromConfig(cfg.Database, cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}

	a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	codec := remote.NewPlainCodec()
	if a.encryptor != nil {
		codec = remote.NewEncryptedCodec(a.encryptor, passphraseUnlocker(a.encryptor))
	}

	a.channel, err = remote.NewChannelFromConfig(ctx, cfg.Remote, codec)
	if err != nil {
		return fmt.Errorf("creating remote: %w", err)
	}

	a.signals, err = newSignalChannel(cfg.Sync.SignalDir, nlog)
	if err != nil {
		return fmt.Errorf("creating signal channel: %w", err)
	}

	if confirmer == nil {
		confirmer = NewTerminalConfirmer(cfg.Sync.AccountSwitch)
	}

	session := notes.NewSyncSession(a.db)
	orch := notes.NewOrchestrator(a.db, a.channel, session, confirmer, a.signals, role, nlog)
	timeout := time.Duration(cfg.Sync.TimeoutSeconds) * time.Second
	a.trigger = notes.NewTrigger(orch, a.db, notes.RealClock{}, nlog, timeout)
	a.service = notes.NewNotesService(a.db, a.db, session, a.channel, a.trigger, nlog, notes.RealClock{}, notes.UUIDGenerator{})

	if role == notes.RoleMain {
		a.stopSignals, err = a.signals.OnSyncRequest(func() {
			a.trigger.Request(notes.ReasonSignal)
		})
		if err != nil {
			return fmt.Errorf("listening for sync requests: %w", err)
		}
	}

	a.logger.Debug("app started", "role", role.String(), "remote", cfg.Remote.Type)
	return nil
}

// newSignalChannel connects processes sharing signalDir. Without a directory
// requests only reach handlers in this process.
func newSignalChannel(signalDir string, logger notes.Logger) (notes.SignalChannel, error) {
	if signalDir == "" {
		return signal.NewLocalChannel(), nil
	}
	return signal.NewDirChannel(signalDir, logger)
}

// Role reports whether this process runs sync cycles itself.
func (a *NotesApp) Role() notes.Role { return a.role }

// Service exposes the underlying service.
func (a *NotesApp) Service() *notes.NotesService { return a.service }

// Start initializes the sync session, running a startup cycle when sync was
// on in a previous session.
func (a *NotesApp) Start(ctx context.Context) error {
	return a.service.InitSync(ctx)
}

// CreateNote creates a note with the given markdown content.
func (a *NotesApp) CreateNote(ctx context.Context, content string) (*notes.Note, error) {
	return a.service.CreateNote(ctx, content)
}

// ImportFile creates a note from a markdown file.
func (a *NotesApp) ImportFile(ctx context.Context, rawPath string) (*notes.Note, error) {
	p, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return a.service.ImportFile(ctx, p)
}

// ListNotes returns live notes, most recently updated first.
func (a *NotesApp) ListNotes(ctx context.Context) ([]notes.Note, error) {
	return a.service.GetNotes(ctx)
}

// GetNote returns the live note whose id starts with idPrefix.
func (a *NotesApp) GetNote(ctx context.Context, idPrefix string) (*notes.Note, error) {
	id, err := a.resolveID(ctx, idPrefix)
	if err != nil {
		return nil, err
	}
	return a.service.GetNote(ctx, id)
}

// EditNote replaces the content of a note.
func (a *NotesApp) EditNote(ctx context.Context, idPrefix, content string) (*notes.Note, error) {
	id, err := a.resolveID(ctx, idPrefix)
	if err != nil {
		return nil, err
	}
	return a.service.EditNote(ctx, id, content)
}

// SetColor changes the color of a note.
func (a *NotesApp) SetColor(ctx context.Context, idPrefix, color string) (*notes.Note, error) {
	id, err := a.resolveID(ctx, idPrefix)
	if err != nil {
		return nil, err
	}
	return a.service.SetColor(ctx, id, color)
}

// SaveNote writes a note under the exact id given, creating it when the id
// is new. Empty title and color keep the derived or stored values.
func (a *NotesApp) SaveNote(ctx context.Context, id, title, color, content string) (*notes.Note, error) {
	return a.service.SaveNote(ctx, notes.Note{ID: id, Title: title, Color: color, Content: content})
}

// MoveNote records where a note's window sits on screen.
func (a *NotesApp) MoveNote(ctx context.Context, idPrefix string, ws notes.WindowState) (*notes.Note, error) {
	if ws.Width <= 0 || ws.Height <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %dx%d", ws.Width, ws.Height)
	}
	id, err := a.resolveID(ctx, idPrefix)
	if err != nil {
		return nil, err
	}
	return a.service.UpdateWindowState(ctx, id, ws)
}

// DeleteNotes tombstones the notes matching the given id prefixes and
// returns how many were deleted.
func (a *NotesApp) DeleteNotes(ctx context.Context, idPrefixes []string) (int, error) {
	ids := make([]string, 0, len(idPrefixes))
	for _, p := range idPrefixes {
		id, err := a.resolveID(ctx, p)
		if err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	return a.service.DeleteNotes(ctx, ids)
}

// resolveID expands a unique prefix of a live note id.
func (a *NotesApp) resolveID(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", notes.ErrNoteNotFound)
	}

	live, err := a.service.GetNotes(ctx)
	if err != nil {
		return "", err
	}

	var match string
	for _, n := range live {
		if n.ID == prefix {
			return n.ID, nil
		}
		if strings.HasPrefix(n.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
			}
			match = n.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", notes.ErrNoteNotFound, prefix)
	}
	return match, nil
}

// SyncNow runs a cycle in the foreground, enabling sync first if needed.
func (a *NotesApp) SyncNow(ctx context.Context) (notes.CycleResult, error) {
	return a.service.SyncNow(ctx)
}

// SyncStatus reports the sync markers and the latest run.
func (a *NotesApp) SyncStatus(ctx context.Context) (*notes.SyncStatus, error) {
	return a.service.SyncStatus(ctx)
}

// History returns the most recent sync runs.
func (a *NotesApp) History(ctx context.Context, limit int) ([]notes.SyncRun, error) {
	return a.service.GetHistory(ctx, limit)
}

// EnableSync turns sync on for this and later sessions.
func (a *NotesApp) EnableSync(ctx context.Context) error {
	return a.service.EnableSync(ctx)
}

// DisableSync turns sync off for later sessions.
func (a *NotesApp) DisableSync(ctx context.Context) error {
	return a.service.DisableSync(ctx)
}

// ExportRemote writes the decoded remote sync object to w as JSON and
// returns the number of records in it.
func (a *NotesApp) ExportRemote(ctx context.Context, w io.Writer) (int, error) {
	return a.channel.Export(ctx, w)
}

// BackupDatabase writes a consistent copy of the local database to rawPath.
func (a *NotesApp) BackupDatabase(rawPath string) (string, error) {
	p, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if err := a.db.BackupTo(p); err != nil {
		return "", err
	}
	return p, nil
}

// SchemaStatus reports the local database schema version.
func (a *NotesApp) SchemaStatus() (migrations.Status, error) {
	return a.db.SchemaStatus()
}

// SetupKeys generates the key pair used to encrypt the sync object.
func (a *NotesApp) SetupKeys() error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is not configured (encryption.type = %q)", a.cfg.Encryption.Type)
	}
	passphrase, err := readNewPassphrase()
	if err != nil {
		return err
	}
	return a.encryptor.Setup(passphrase)
}

// RunDaemon keeps the main process alive so requests from secondary
// processes are served, until ctx is done.
func (a *NotesApp) RunDaemon(ctx context.Context) error {
	if a.role != notes.RoleMain {
		return ErrNotMain
	}
	a.logger.Info("daemon running", "signal_dir", a.cfg.Sync.SignalDir)
	<-ctx.Done()
	a.logger.Info("daemon stopping")
	return nil
}

// Close stops listening for requests, waits for background cycles and
// releases the database, lock and log file.
func (a *NotesApp) Close() error {
	var firstErr error

	if a.stopSignals != nil {
		a.stopSignals()
	}
	if a.trigger != nil {
		a.trigger.Close()
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.lock != nil {
		if err := a.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("releasing lock: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
