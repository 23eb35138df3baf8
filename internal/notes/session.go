package notes

import (
	"context"
	"fmt"
	"sync"
)

// Settings keys for the persisted session markers.
const (
	SettingLastSyncedIdentity = "last_synced_identity"
	SettingSyncEnabled        = "sync_enabled"
)

// SessionState is the lifecycle state of a SyncSession.
type SessionState int

const (
	SessionUninitialized SessionState = iota
	SessionInitializing
	SessionReady
)

func (s SessionState) String() string {
	switch s {
	case SessionUninitialized:
		return "uninitialized"
	case SessionInitializing:
		return "initializing"
	case SessionReady:
		return "ready"
	default:
		return "unknown"
	}
}

// SyncSession tracks the authentication state of this process and the markers
// that survive restarts: the last synced identity and whether a previous
// session existed. The markers live in the SettingsStore.
type SyncSession struct {
	settings SettingsStore

	mu            sync.Mutex
	state         SessionState
	enabled       bool
	authenticated bool
	identity      string
}

func NewSyncSession(settings SettingsStore) *SyncSession {
	return &SyncSession{settings: settings}
}

// State returns the current lifecycle state.
func (s *SyncSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// begin moves the session from Uninitialized to Initializing.
func (s *SyncSession) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionUninitialized {
		return ErrSessionInitialized
	}
	s.state = SessionInitializing
	return nil
}

func (s *SyncSession) ready() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionReady
}

// Enabled reads the previous-session marker.
func (s *SyncSession) Enabled(ctx context.Context) (bool, error) {
	v, err := s.settings.GetSetting(ctx, SettingSyncEnabled)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", SettingSyncEnabled, err)
	}
	enabled := v == "true"

	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	return enabled, nil
}

// SetEnabled writes the previous-session marker. Disabling also drops the
// cached authentication result.
func (s *SyncSession) SetEnabled(ctx context.Context, enabled bool) error {
	var err error
	if enabled {
		err = s.settings.SetSetting(ctx, SettingSyncEnabled, "true")
	} else {
		err = s.settings.DeleteSetting(ctx, SettingSyncEnabled)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", SettingSyncEnabled, err)
	}

	s.mu.Lock()
	s.enabled = enabled
	if !enabled {
		s.authenticated = false
	}
	s.mu.Unlock()
	return nil
}

// LastSyncedIdentity returns the identity of the last cycle, or "".
func (s *SyncSession) LastSyncedIdentity(ctx context.Context) (string, error) {
	v, err := s.settings.GetSetting(ctx, SettingLastSyncedIdentity)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", SettingLastSyncedIdentity, err)
	}
	return v, nil
}

// SetLastSyncedIdentity persists identity. An empty identity clears the marker.
func (s *SyncSession) SetLastSyncedIdentity(ctx context.Context, identity string) error {
	var err error
	if identity == "" {
		err = s.settings.DeleteSetting(ctx, SettingLastSyncedIdentity)
	} else {
		err = s.settings.SetSetting(ctx, SettingLastSyncedIdentity, identity)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", SettingLastSyncedIdentity, err)
	}
	return nil
}

func (s *SyncSession) setAuthenticated(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = ok
}

func (s *SyncSession) setIdentity(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
}

// Authenticated reports whether sync is enabled and the last auth probe
// succeeded.
func (s *SyncSession) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled && s.authenticated
}

// Identity returns the identity seen by the most recent cycle.
func (s *SyncSession) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}
