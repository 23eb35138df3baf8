package notes

import (
	"context"
	"errors"
	"fmt"
)

// Role says whether this process owns synchronization for its domain.
type Role int

const (
	// RoleMain runs sync cycles.
	RoleMain Role = iota
	// RoleSecondary forwards sync requests to the main context.
	RoleSecondary
)

func (r Role) String() string {
	if r == RoleSecondary {
		return "secondary"
	}
	return "main"
}

// Outcome is how a cycle ended.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDelegated Outcome = "delegated"
	OutcomeUploaded  Outcome = "uploaded"
	OutcomeMerged    Outcome = "merged"
)

// CycleResult describes a completed (or partially completed) cycle.
type CycleResult struct {
	Outcome  Outcome
	Identity string
	Notes    int
	Switched bool
}

// Orchestrator runs one sync cycle: identity check, locate, read, merge,
// persist locally, then write remotely.
type Orchestrator struct {
	store     RecordStore
	remote    RemoteChannel
	session   *SyncSession
	confirmer Confirmer
	signals   SignalChannel
	role      Role
	logger    Logger
}

func NewOrchestrator(store RecordStore, remote RemoteChannel, session *SyncSession, confirmer Confirmer, signals SignalChannel, role Role, logger Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		remote:    remote,
		session:   session,
		confirmer: confirmer,
		signals:   signals,
		role:      role,
		logger:    logger,
	}
}

// Role returns the role the orchestrator was built with.
func (o *Orchestrator) Role() Role { return o.role }

// RunCycle runs a single sync cycle. A secondary context only forwards a sync
// request. Missing authentication ends the cycle with OutcomeSkipped and no
// error. Any other failure is a *SyncError and leaves local notes as they were
// before the cycle, except that a merged collection already persisted locally
// is kept when the final remote write fails.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleResult, error) {
	if o.role == RoleSecondary {
		if err := o.signals.SendSyncRequest(ctx); err != nil {
			return CycleResult{}, fmt.Errorf("forwarding sync request: %w", err)
		}
		o.logger.Debug("sync request forwarded to main context")
		return CycleResult{Outcome: OutcomeDelegated}, nil
	}

	ok, err := o.checkAuthenticated(ctx)
	if err != nil {
		return CycleResult{}, err
	}
	if !ok {
		o.logger.Debug("sync skipped, not authenticated")
		return CycleResult{Outcome: OutcomeSkipped}, nil
	}

	identity, err := o.remote.CurrentIdentity(ctx)
	if err != nil {
		return CycleResult{}, newSyncError(ErrIdentityFetchFailed, err)
	}
	o.session.setIdentity(identity)

	previous, err := o.session.LastSyncedIdentity(ctx)
	if err != nil {
		return CycleResult{}, newSyncError(ErrSessionState, err)
	}

	var snapshot []Note
	switched := false
	if previous != "" && identity != "" && previous != identity {
		yes, err := o.confirmer.Confirm(ctx, accountSwitchPrompt(previous, identity))
		if err != nil {
			return CycleResult{}, newSyncError(ErrAccountSwitchPrompt, err)
		}
		if yes {
			snapshot, err = o.store.List(ctx)
			if err != nil {
				return CycleResult{}, newSyncError(ErrLocalStoreFailed, err)
			}
			if err := o.store.PutAll(ctx, nil); err != nil {
				return CycleResult{}, newSyncError(ErrLocalStoreFailed, err)
			}
			switched = true
			o.logger.Info("account switched, local notes cleared", "from", previous, "to", identity, "cleared", len(snapshot))
		} else {
			o.logger.Info("account changed, merging notes", "from", previous, "to", identity)
		}
	}

	if identity != "" && identity != previous {
		if err := o.session.SetLastSyncedIdentity(ctx, identity); err != nil {
			if switched {
				o.restore(ctx, snapshot, previous)
			}
			return CycleResult{}, newSyncError(ErrSessionState, err)
		}
	}

	result, err := o.reconcile(ctx)
	result.Identity = identity
	result.Switched = switched
	if err != nil && switched && result.Outcome != OutcomeMerged {
		o.restore(ctx, snapshot, previous)
	}
	return result, err
}

func (o *Orchestrator) checkAuthenticated(ctx context.Context) (bool, error) {
	enabled, err := o.session.Enabled(ctx)
	if err != nil {
		return false, newSyncError(ErrSessionState, err)
	}
	if !enabled {
		return false, nil
	}

	ok, err := o.remote.IsAuthenticated(ctx)
	if err != nil {
		o.session.setAuthenticated(false)
		return false, newSyncError(ErrAuthCheckFailed, err)
	}
	o.session.setAuthenticated(ok)
	return ok, nil
}

// reconcile runs the locate/read/merge/write part of a cycle. The returned
// Outcome is OutcomeMerged as soon as the merged collection is persisted
// locally, even if the remote write then fails.
func (o *Orchestrator) reconcile(ctx context.Context) (CycleResult, error) {
	ref, err := o.remote.LocateSyncObject(ctx)
	if err != nil {
		return CycleResult{}, newSyncError(ErrObjectLocateFailed, err)
	}

	if ref == nil {
		local, err := o.store.List(ctx)
		if err != nil {
			return CycleResult{}, newSyncError(ErrLocalStoreFailed, err)
		}
		if err := o.remote.WriteSyncObject(ctx, local); err != nil {
			return CycleResult{}, newSyncError(ErrObjectWriteFailed, err)
		}
		o.logger.Info("sync object created", "notes", len(local))
		return CycleResult{Outcome: OutcomeUploaded, Notes: len(local)}, nil
	}

	remote, err := o.remote.ReadSyncObject(ctx, *ref)
	if err != nil {
		return CycleResult{}, newSyncError(ErrObjectReadFailed, err)
	}

	var merged []Note
	err = o.store.Update(ctx, func(local []Note) ([]Note, error) {
		merged = Merge(local, remote)
		return merged, nil
	})
	if err != nil {
		return CycleResult{}, newSyncError(ErrLocalStoreFailed, err)
	}

	result := CycleResult{Outcome: OutcomeMerged, Notes: len(merged)}
	if err := o.remote.WriteSyncObject(ctx, merged); err != nil {
		return result, newSyncError(ErrObjectWriteFailed, err)
	}

	o.logger.Info("notes synced", "remote", len(remote), "merged", len(merged))
	return result, nil
}

// restore puts back the notes and identity marker that were in place before an
// account switch whose cycle then failed. The prompt reappears next cycle.
func (o *Orchestrator) restore(ctx context.Context, snapshot []Note, previous string) {
	// The cycle context may already be done; the restore must still run.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if err := o.store.PutAll(ctx, snapshot); err != nil {
		errs = append(errs, fmt.Errorf("restoring notes: %w", err))
	}
	if err := o.session.SetLastSyncedIdentity(ctx, previous); err != nil {
		errs = append(errs, fmt.Errorf("restoring synced identity: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		o.logger.Error("restoring state after failed account switch", "error", err)
		return
	}
	o.logger.Warn("account switch rolled back after failed cycle", "notes", len(snapshot))
}
