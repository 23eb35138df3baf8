package notes_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mdnotes/internal/notes"
	"mdnotes/internal/testutil"
)

func newTrigger(t *testing.T, d *device, timeout time.Duration) *notes.Trigger {
	t.Helper()
	tr := notes.NewTrigger(d.orch, d.db, testutil.FixedClock(), notes.NewNopLogger(), timeout)
	t.Cleanup(tr.Close)
	return tr
}

func TestTrigger_SyncNowRecordsRun(t *testing.T) {
	ctx := context.Background()
	remote := testutil.NewFakeRemote("alice")
	d := newDevice(t, remote, notes.RoleMain, true)
	d.put(t, note("a", t0, "x"))
	tr := newTrigger(t, d, 0)

	result, err := tr.SyncNow(ctx, notes.ReasonManual)
	if err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if result.Outcome != notes.OutcomeUploaded {
		t.Errorf("Outcome = %s, want %s", result.Outcome, notes.OutcomeUploaded)
	}

	runs, err := d.db.ListSyncRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListSyncRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	run := runs[0]
	if run.Reason != notes.ReasonManual || run.Status != notes.RunSuccess || run.Outcome != "uploaded" ||
		run.Identity != "alice" || run.NoteCount != 1 || run.FinishedAt == nil {
		t.Errorf("run = %+v", run)
	}
}

func TestTrigger_SyncNowRecordsFailure(t *testing.T) {
	ctx := context.Background()
	remote := testutil.NewFakeRemote("alice")
	remote.Fail(testutil.OpWrite, errors.New("quota exceeded"))
	d := newDevice(t, remote, notes.RoleMain, true)
	tr := newTrigger(t, d, 0)

	if _, err := tr.SyncNow(ctx, notes.ReasonManual); !errors.Is(err, notes.ErrObjectWriteFailed) {
		t.Fatalf("SyncNow() error = %v, want write failure", err)
	}

	runs, err := d.db.ListSyncRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListSyncRuns() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Status != notes.RunError || !strings.Contains(runs[0].Error, "quota exceeded") {
		t.Errorf("runs = %+v, want one failed run", runs)
	}
}

func TestTrigger_ConcurrentSyncNowJoins(t *testing.T) {
	ctx := context.Background()
	remote := testutil.NewFakeRemote("alice")
	remote.Seed(nil)
	d := newDevice(t, remote, notes.RoleMain, true)
	tr := newTrigger(t, d, 0)

	entered, release := remote.Block()

	var wg sync.WaitGroup
	results := make([]notes.CycleResult, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = tr.SyncNow(ctx, notes.ReasonManual)
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = tr.SyncNow(ctx, notes.ReasonManual)
	}()
	time.Sleep(100 * time.Millisecond)
	release()
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Errorf("SyncNow() #%d error = %v", i, errs[i])
		}
		if results[i].Outcome != notes.OutcomeMerged {
			t.Errorf("SyncNow() #%d outcome = %s, want merged", i, results[i].Outcome)
		}
	}
	if remote.Reads() != 1 || remote.Writes() != 1 {
		t.Errorf("reads/writes = %d/%d, want 1/1", remote.Reads(), remote.Writes())
	}
}

func TestTrigger_RequestsDuringCycleQueueOnce(t *testing.T) {
	remote := testutil.NewFakeRemote("alice")
	remote.Seed(nil)
	d := newDevice(t, remote, notes.RoleMain, true)
	tr := notes.NewTrigger(d.orch, d.db, testutil.FixedClock(), notes.NewNopLogger(), 0)

	entered, release := remote.Block()

	tr.Request(notes.ReasonMutation)
	<-entered
	for i := 0; i < 3; i++ {
		tr.Request(notes.ReasonMutation)
	}
	release()
	tr.Close()

	if got := remote.Reads(); got != 2 {
		t.Errorf("cycles run = %d, want 2", got)
	}
}

func TestTrigger_RequestJoiningForegroundCycleRunsAgain(t *testing.T) {
	ctx := context.Background()
	remote := testutil.NewFakeRemote("alice")
	remote.Seed(nil)
	d := newDevice(t, remote, notes.RoleMain, true)
	tr := notes.NewTrigger(d.orch, d.db, testutil.FixedClock(), notes.NewNopLogger(), 0)

	entered, release := remote.Block()

	done := make(chan error, 1)
	go func() {
		_, err := tr.SyncNow(ctx, notes.ReasonManual)
		done <- err
	}()
	<-entered

	tr.Request(notes.ReasonMutation)
	time.Sleep(50 * time.Millisecond)
	release()
	if err := <-done; err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	tr.Close()

	if got := remote.Reads(); got != 2 {
		t.Errorf("cycles run = %d, want 2", got)
	}
}

func TestTrigger_Timeout(t *testing.T) {
	ctx := context.Background()
	remote := testutil.NewFakeRemote("alice")
	remote.Seed(nil)
	d := newDevice(t, remote, notes.RoleMain, true)
	tr := newTrigger(t, d, 50*time.Millisecond)

	_, release := remote.Block()
	defer release()

	_, err := tr.SyncNow(ctx, notes.ReasonManual)
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, notes.ErrObjectReadFailed) {
		t.Errorf("SyncNow() error = %v, want read deadline exceeded", err)
	}
}

func TestTrigger_SyncNowCallerCancel(t *testing.T) {
	remote := testutil.NewFakeRemote("alice")
	remote.Seed(nil)
	d := newDevice(t, remote, notes.RoleMain, true)
	tr := newTrigger(t, d, 0)

	entered, release := remote.Block()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-entered
		cancel()
	}()

	if _, err := tr.SyncNow(ctx, notes.ReasonManual); !errors.Is(err, context.Canceled) {
		t.Errorf("SyncNow() error = %v, want context.Canceled", err)
	}
}

func TestTrigger_RequestAfterCloseIsIgnored(t *testing.T) {
	remote := testutil.NewFakeRemote("alice")
	d := newDevice(t, remote, notes.RoleMain, true)
	tr := notes.NewTrigger(d.orch, d.db, testutil.FixedClock(), notes.NewNopLogger(), 0)

	tr.Close()
	tr.Request(notes.ReasonMutation)
	tr.Close()

	if remote.Locates() != 0 {
		t.Errorf("cycle ran after Close")
	}
}
