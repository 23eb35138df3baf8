package notes_test

import (
	"context"
	"testing"

	"mdnotes/internal/notes"
	"mdnotes/internal/testutil"
)

func TestSyncSession_Markers(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	s := notes.NewSyncSession(db)

	if s.State() != notes.SessionUninitialized {
		t.Errorf("State = %s, want uninitialized", s.State())
	}

	enabled, err := s.Enabled(ctx)
	if err != nil || enabled {
		t.Fatalf("Enabled() = %v, %v, want false", enabled, err)
	}
	if err := s.SetEnabled(ctx, true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if v, _ := db.GetSetting(ctx, notes.SettingSyncEnabled); v != "true" {
		t.Errorf("%s = %q, want true", notes.SettingSyncEnabled, v)
	}

	// A fresh session over the same store sees the marker.
	again := notes.NewSyncSession(db)
	if enabled, _ := again.Enabled(ctx); !enabled {
		t.Error("marker did not survive a new session")
	}

	if err := s.SetLastSyncedIdentity(ctx, "alice"); err != nil {
		t.Fatalf("SetLastSyncedIdentity() error = %v", err)
	}
	if got, _ := again.LastSyncedIdentity(ctx); got != "alice" {
		t.Errorf("LastSyncedIdentity() = %q, want alice", got)
	}

	if err := s.SetLastSyncedIdentity(ctx, ""); err != nil {
		t.Fatalf("SetLastSyncedIdentity(\"\") error = %v", err)
	}
	if got, _ := s.LastSyncedIdentity(ctx); got != "" {
		t.Errorf("LastSyncedIdentity() = %q, want empty", got)
	}

	if err := s.SetEnabled(ctx, false); err != nil {
		t.Fatalf("SetEnabled(false) error = %v", err)
	}
	if enabled, _ := s.Enabled(ctx); enabled {
		t.Error("Enabled() = true after disabling")
	}
	if s.Authenticated() {
		t.Error("Authenticated() = true after disabling")
	}
}
