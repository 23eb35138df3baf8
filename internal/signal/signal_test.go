package signal

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestLocalChannel_DeliversRequests(t *testing.T) {
	ctx := context.Background()
	c := NewLocalChannel()

	var calls atomic.Int32
	stop, err := c.OnSyncRequest(func() { calls.Add(1) })
	if err != nil {
		t.Fatalf("OnSyncRequest() error = %v", err)
	}
	defer stop()

	if err := c.SendSyncRequest(ctx); err != nil {
		t.Fatalf("SendSyncRequest() error = %v", err)
	}
	waitFor(t, func() bool { return calls.Load() == 1 })
}

func TestLocalChannel_CoalescesWhileBusy(t *testing.T) {
	ctx := context.Background()
	c := NewLocalChannel()

	release := make(chan struct{})
	entered := make(chan struct{}, 10)
	var calls atomic.Int32
	stop, err := c.OnSyncRequest(func() {
		calls.Add(1)
		entered <- struct{}{}
		<-release
	})
	if err != nil {
		t.Fatalf("OnSyncRequest() error = %v", err)
	}

	c.SendSyncRequest(ctx)
	<-entered
	for i := 0; i < 5; i++ {
		c.SendSyncRequest(ctx)
	}
	close(release)

	waitFor(t, func() bool { return calls.Load() == 2 })
	stop()

	if got := calls.Load(); got != 2 {
		t.Errorf("handler called %d times, want 2", got)
	}
}

func TestLocalChannel_SecondHandlerRejected(t *testing.T) {
	c := NewLocalChannel()
	stop, err := c.OnSyncRequest(func() {})
	if err != nil {
		t.Fatalf("OnSyncRequest() error = %v", err)
	}

	if _, err := c.OnSyncRequest(func() {}); err == nil {
		t.Error("second OnSyncRequest() expected error")
	}

	stop()
	stop2, err := c.OnSyncRequest(func() {})
	if err != nil {
		t.Fatalf("OnSyncRequest() after stop error = %v", err)
	}
	stop2()
}

func TestDirChannel_DeliversAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "signals")

	primary, err := NewDirChannel(dir, nil)
	if err != nil {
		t.Fatalf("NewDirChannel() error = %v", err)
	}
	secondary, err := NewDirChannel(dir, nil)
	if err != nil {
		t.Fatalf("NewDirChannel() error = %v", err)
	}

	var calls atomic.Int32
	stop, err := primary.OnSyncRequest(func() { calls.Add(1) })
	if err != nil {
		t.Fatalf("OnSyncRequest() error = %v", err)
	}
	defer stop()

	if err := secondary.SendSyncRequest(ctx); err != nil {
		t.Fatalf("SendSyncRequest() error = %v", err)
	}
	waitFor(t, func() bool { return calls.Load() == 1 })

	waitFor(t, func() bool {
		entries, err := os.ReadDir(dir)
		return err == nil && len(entries) == 0
	})
}

func TestDirChannel_PendingRequestsDeliveredOnRegister(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := NewDirChannel(dir, nil)
	if err != nil {
		t.Fatalf("NewDirChannel() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := c.SendSyncRequest(ctx); err != nil {
			t.Fatalf("SendSyncRequest() error = %v", err)
		}
	}

	var calls atomic.Int32
	stop, err := c.OnSyncRequest(func() { calls.Add(1) })
	if err != nil {
		t.Fatalf("OnSyncRequest() error = %v", err)
	}
	defer stop()

	if got := calls.Load(); got != 1 {
		t.Errorf("handler called %d times for pending requests, want 1", got)
	}
}

func TestDirChannel_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDirChannel(dir, nil)
	if err != nil {
		t.Fatalf("NewDirChannel() error = %v", err)
	}

	var calls atomic.Int32
	stop, err := c.OnSyncRequest(func() { calls.Add(1) })
	if err != nil {
		t.Fatalf("OnSyncRequest() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	stop()

	if got := calls.Load(); got != 0 {
		t.Errorf("handler called %d times, want 0", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "readme.txt")); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestDirChannel_StopIsIdempotent(t *testing.T) {
	c, err := NewDirChannel(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewDirChannel() error = %v", err)
	}
	stop, err := c.OnSyncRequest(func() {})
	if err != nil {
		t.Fatalf("OnSyncRequest() error = %v", err)
	}
	stop()
	stop()
}
