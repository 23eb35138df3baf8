package notes

import (
	"context"
	"fmt"
	"time"
)

// AuthProbeTimeout bounds the silent re-authentication done by InitSync.
const AuthProbeTimeout = 10 * time.Second

// InitSync initializes the sync session. When a previous session existed it
// probes authentication and runs a startup cycle. Probe and cycle failures
// are logged, not returned: the app must start without the remote.
func (s *NotesService) InitSync(ctx context.Context) error {
	if err := s.session.begin(); err != nil {
		return err
	}
	defer s.session.ready()

	enabled, err := s.session.Enabled(ctx)
	if err != nil {
		return fmt.Errorf("initializing sync: %w", err)
	}
	if !enabled {
		s.logger.Debug("sync not enabled, skipping startup sync")
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, AuthProbeTimeout)
	ok, err := s.remote.IsAuthenticated(probeCtx)
	cancel()
	if err != nil {
		s.logger.Warn("silent re-authentication failed", "error", err)
		return nil
	}
	s.session.setAuthenticated(ok)
	if !ok {
		s.logger.Info("previous sync session is no longer authenticated")
		return nil
	}

	if _, err := s.trigger.SyncNow(ctx, ReasonStartup); err != nil {
		s.logger.Warn("startup sync failed", "error", err)
	}
	return nil
}

// SyncNow runs a cycle in the foreground and returns its error. Sync is
// enabled first if it was off, mirroring a sign-in.
func (s *NotesService) SyncNow(ctx context.Context) (CycleResult, error) {
	enabled, err := s.session.Enabled(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("reading sync session: %w", err)
	}
	if !enabled {
		if err := s.EnableSync(ctx); err != nil {
			return CycleResult{}, err
		}
	}
	return s.trigger.SyncNow(ctx, ReasonManual)
}

// IsSyncEnabled reports whether sync is on and the remote was authenticated at
// the last check.
func (s *NotesService) IsSyncEnabled() bool {
	return s.session.Authenticated()
}

// EnableSync checks that the remote is authenticated and sets the
// previous-session marker.
func (s *NotesService) EnableSync(ctx context.Context) error {
	ok, err := s.remote.IsAuthenticated(ctx)
	if err != nil {
		return fmt.Errorf("enabling sync: %w", err)
	}
	if !ok {
		return fmt.Errorf("enabling sync: %w", ErrNotAuthenticated)
	}

	if err := s.session.SetEnabled(ctx, true); err != nil {
		return fmt.Errorf("enabling sync: %w", err)
	}
	s.session.setAuthenticated(true)
	s.logger.Info("sync enabled")
	return nil
}

// DisableSync clears the previous-session marker. The last synced identity is
// kept so a later sign-in as someone else still prompts.
func (s *NotesService) DisableSync(ctx context.Context) error {
	if err := s.session.SetEnabled(ctx, false); err != nil {
		return fmt.Errorf("disabling sync: %w", err)
	}
	s.logger.Info("sync disabled")
	return nil
}

// SyncStatus is the state shown by the status indicator.
type SyncStatus struct {
	State              SessionState
	Enabled            bool
	LastSyncedIdentity string
	LastRun            *SyncRun
}

// Indicator returns a one-word summary for display.
func (st SyncStatus) Indicator() string {
	switch {
	case !st.Enabled:
		return "off"
	case st.LastRun == nil:
		return "never"
	case st.LastRun.Status == RunError:
		return "error"
	case st.LastRun.Status == RunRunning:
		return "syncing"
	default:
		return "ok"
	}
}

// SyncStatus reports the persisted session markers and the latest run.
func (s *NotesService) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	enabled, err := s.session.Enabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading sync status: %w", err)
	}
	identity, err := s.session.LastSyncedIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading sync status: %w", err)
	}
	runs, err := s.history.ListSyncRuns(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("reading sync status: %w", err)
	}

	st := &SyncStatus{
		State:              s.session.State(),
		Enabled:            enabled,
		LastSyncedIdentity: identity,
	}
	if len(runs) > 0 {
		st.LastRun = &runs[0]
	}
	return st, nil
}

// GetHistory returns the most recent sync runs, newest first.
func (s *NotesService) GetHistory(ctx context.Context, limit int) ([]SyncRun, error) {
	runs, err := s.history.ListSyncRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	return runs, nil
}
