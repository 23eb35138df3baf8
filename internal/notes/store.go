package notes

import (
	"context"
	"time"
)

// RecordStore is the local note collection. Collections are small and are
// rewritten wholesale, so the only atomic primitive needed is Update.
type RecordStore interface {
	// List returns every note, tombstones included.
	List(ctx context.Context) ([]Note, error)

	// Get returns the note with the given id, or nil if there is none.
	Get(ctx context.Context, id string) (*Note, error)

	// Put inserts or replaces a single note.
	Put(ctx context.Context, note Note) error

	// PutAll replaces the whole collection.
	PutAll(ctx context.Context, notes []Note) error

	// Update reads the collection, passes it to fn and writes fn's result back
	// in one transaction. Nothing is written if fn returns an error.
	Update(ctx context.Context, fn func([]Note) ([]Note, error)) error
}

// SettingsStore holds small key/value entries that live outside the note
// collection, such as the sync session markers.
type SettingsStore interface {
	// GetSetting returns the value for key, or "" when unset.
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Run statuses recorded in the sync history.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunError   = "error"
)

// SyncRun is one recorded sync cycle.
type SyncRun struct {
	ID         int64
	Reason     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Outcome    string
	Identity   string
	NoteCount  int
	Error      string
}

// SyncHistory records sync cycles for the status indicator and history listing.
type SyncHistory interface {
	// StartSyncRun persists run and sets its ID.
	StartSyncRun(ctx context.Context, run *SyncRun) error

	// FinishSyncRun stores the final fields of a started run.
	FinishSyncRun(ctx context.Context, run *SyncRun) error

	// ListSyncRuns returns up to limit runs, newest first.
	ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error)
}
