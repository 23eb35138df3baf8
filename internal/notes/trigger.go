package notes

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Reasons a cycle was requested, recorded in the sync history.
const (
	ReasonStartup  = "startup"
	ReasonMutation = "mutation"
	ReasonManual   = "manual"
	ReasonSignal   = "signal"
)

// DefaultCycleTimeout bounds a cycle when no timeout is configured.
const DefaultCycleTimeout = 60 * time.Second

const cycleKey = "sync"

// CycleRunner runs one sync cycle. *Orchestrator implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context) (CycleResult, error)
}

// Trigger schedules sync cycles and guarantees that at most one runs at a
// time. Concurrent callers join the cycle in flight. Background requests made
// while a background drain is active are queued exactly once.
type Trigger struct {
	runner  CycleRunner
	history SyncHistory
	clock   Clock
	logger  Logger
	timeout time.Duration

	group singleflight.Group
	wg    sync.WaitGroup

	mu       sync.Mutex
	draining bool
	pending  bool
	closed   bool
}

func NewTrigger(runner CycleRunner, history SyncHistory, clock Clock, logger Logger, timeout time.Duration) *Trigger {
	if timeout <= 0 {
		timeout = DefaultCycleTimeout
	}
	return &Trigger{
		runner:  runner,
		history: history,
		clock:   clock,
		logger:  logger,
		timeout: timeout,
	}
}

// Request schedules a background cycle and returns immediately. Failures are
// logged and never reach the caller.
func (t *Trigger) Request(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	if t.draining {
		t.pending = true
		return
	}
	t.draining = true
	t.wg.Add(1)
	go t.drain(reason)
}

func (t *Trigger) drain(reason string) {
	defer t.wg.Done()

	for {
		_, led, err := t.do(reason)
		if err != nil {
			t.logger.Warn("background sync failed", "reason", reason, "error", err)
		}

		t.mu.Lock()
		// A joined cycle may have read the local store before the mutation
		// that asked for this one, so run again.
		if !t.pending && led {
			t.draining = false
			t.mu.Unlock()
			return
		}
		t.pending = false
		t.mu.Unlock()
	}
}

// SyncNow runs a cycle in the foreground, joining one already in flight, and
// returns its result. Cancelling ctx stops the wait but not the cycle.
func (t *Trigger) SyncNow(ctx context.Context, reason string) (CycleResult, error) {
	ch := t.group.DoChan(cycleKey, func() (any, error) {
		return t.runRecorded(reason)
	})
	select {
	case res := <-ch:
		result, _ := res.Val.(CycleResult)
		return result, res.Err
	case <-ctx.Done():
		return CycleResult{}, ctx.Err()
	}
}

// do runs a cycle through the single-flight group. led is false when the call
// joined a cycle started by someone else.
func (t *Trigger) do(reason string) (CycleResult, bool, error) {
	led := false
	v, err, _ := t.group.Do(cycleKey, func() (any, error) {
		led = true
		return t.runRecorded(reason)
	})
	result, _ := v.(CycleResult)
	return result, led, err
}

// runRecorded runs one cycle under the cycle timeout and records it.
func (t *Trigger) runRecorded(reason string) (CycleResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	run := &SyncRun{
		Reason:    reason,
		StartedAt: t.clock.Now(),
		Status:    RunRunning,
	}
	recorded := true
	if err := t.history.StartSyncRun(context.Background(), run); err != nil {
		t.logger.Warn("recording sync run", "error", err)
		recorded = false
	}

	result, err := t.runner.RunCycle(ctx)

	if recorded {
		finished := t.clock.Now()
		run.FinishedAt = &finished
		run.Outcome = string(result.Outcome)
		run.Identity = result.Identity
		run.NoteCount = result.Notes
		run.Status = RunSuccess
		if err != nil {
			run.Status = RunError
			run.Error = err.Error()
		}
		if ferr := t.history.FinishSyncRun(context.Background(), run); ferr != nil {
			t.logger.Warn("recording sync run", "error", ferr)
		}
	}

	if err != nil {
		return result, err
	}
	if result.Outcome != OutcomeSkipped {
		t.logger.Debug("sync cycle finished", "reason", reason, "outcome", result.Outcome, "notes", result.Notes)
	}
	return result, nil
}

// Close stops accepting background requests and waits for queued ones and
// for a foreground cycle whose caller stopped waiting.
func (t *Trigger) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()

	// Joins the cycle in flight, if any.
	t.group.Do(cycleKey, func() (any, error) { return nil, nil })
}
