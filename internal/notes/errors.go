package notes

import "errors"

// Stage errors for a failed sync cycle. A *SyncError matches both its stage
// and its cause with errors.Is.
var (
	ErrAuthCheckFailed     = errors.New("auth check failed")
	ErrIdentityFetchFailed = errors.New("identity fetch failed")
	ErrAccountSwitchPrompt = errors.New("account switch prompt failed")
	ErrSessionState        = errors.New("sync session state unavailable")
	ErrObjectLocateFailed  = errors.New("sync object locate failed")
	ErrObjectReadFailed    = errors.New("sync object read failed")
	ErrLocalStoreFailed    = errors.New("local store failed")
	ErrObjectWriteFailed   = errors.New("sync object write failed")
)

var (
	ErrNoteNotFound       = errors.New("note not found")
	ErrNotAuthenticated   = errors.New("remote is not authenticated")
	ErrSessionInitialized = errors.New("sync session already initialized")
)

// SyncError reports the stage at which a cycle was aborted.
type SyncError struct {
	Stage error
	Err   error
}

func newSyncError(stage, err error) *SyncError {
	return &SyncError{Stage: stage, Err: err}
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return e.Stage.Error()
	}
	return e.Stage.Error() + ": " + e.Err.Error()
}

func (e *SyncError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Stage}
	}
	return []error{e.Stage, e.Err}
}
