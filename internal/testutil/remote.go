package testutil

import (
	"context"
	"sync"

	"mdnotes/internal/notes"
)

// RemoteOp names a FakeRemote operation for error injection.
type RemoteOp int

const (
	OpAuth RemoteOp = iota
	OpIdentity
	OpLocate
	OpRead
	OpWrite
)

// FakeRemote is an in-memory notes.RemoteChannel that counts calls and can
// be made to fail or block. Several stores sharing one FakeRemote behave like
// devices signed in to the same account.
type FakeRemote struct {
	mu            sync.Mutex
	object        []notes.Note
	exists        bool
	identity      string
	authenticated bool
	errs          map[RemoteOp]error

	locates int
	reads   int
	writes  int

	onRead  func()
	gate    chan struct{}
	entered chan struct{}
}

var _ notes.RemoteChannel = (*FakeRemote)(nil)

// NewFakeRemote returns an authenticated remote with no sync object.
func NewFakeRemote(identity string) *FakeRemote {
	return &FakeRemote{
		identity:      identity,
		authenticated: true,
		errs:          make(map[RemoteOp]error),
	}
}

func (f *FakeRemote) SetIdentity(identity string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity = identity
}

func (f *FakeRemote) SetAuthenticated(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authenticated = ok
}

// Fail makes op return err. A nil err clears the failure.
func (f *FakeRemote) Fail(op RemoteOp, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Seed stores all as the sync object.
func (f *FakeRemote) Seed(all []notes.Note) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.object = cloneNotes(all)
	f.exists = true
}

// Object returns a copy of the sync object and whether it exists.
func (f *FakeRemote) Object() ([]notes.Note, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneNotes(f.object), f.exists
}

// OnRead registers fn to run at the start of every ReadSyncObject.
func (f *FakeRemote) OnRead(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRead = fn
}

// Block makes ReadSyncObject wait until release is called. entered receives
// once per read that reaches the gate.
func (f *FakeRemote) Block() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	gate := make(chan struct{})
	f.gate = gate
	f.entered = make(chan struct{}, 16)

	var once sync.Once
	return f.entered, func() {
		once.Do(func() {
			f.mu.Lock()
			f.gate = nil
			f.mu.Unlock()
			close(gate)
		})
	}
}

func (f *FakeRemote) Locates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locates
}

func (f *FakeRemote) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *FakeRemote) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *FakeRemote) IsAuthenticated(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[OpAuth]; err != nil {
		return false, err
	}
	return f.authenticated, nil
}

func (f *FakeRemote) CurrentIdentity(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[OpIdentity]; err != nil {
		return "", err
	}
	return f.identity, nil
}

func (f *FakeRemote) LocateSyncObject(ctx context.Context) (*notes.ObjectRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locates++
	if err := f.errs[OpLocate]; err != nil {
		return nil, err
	}
	if !f.exists {
		return nil, nil
	}
	return &notes.ObjectRef{Name: notes.SyncObjectName}, nil
}

func (f *FakeRemote) ReadSyncObject(ctx context.Context, ref notes.ObjectRef) ([]notes.Note, error) {
	f.mu.Lock()
	f.reads++
	onRead, gate, entered := f.onRead, f.gate, f.entered
	f.mu.Unlock()

	if onRead != nil {
		onRead()
	}
	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[OpRead]; err != nil {
		return nil, err
	}
	return cloneNotes(f.object), nil
}

func (f *FakeRemote) WriteSyncObject(ctx context.Context, all []notes.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if err := f.errs[OpWrite]; err != nil {
		return err
	}
	f.object = cloneNotes(all)
	f.exists = true
	return nil
}

func cloneNotes(all []notes.Note) []notes.Note {
	if all == nil {
		return nil
	}
	out := make([]notes.Note, len(all))
	for i, n := range all {
		if n.WindowState != nil {
			ws := *n.WindowState
			n.WindowState = &ws
		}
		out[i] = n
	}
	return out
}
