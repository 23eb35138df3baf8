package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"mdnotes/internal/notes"
)

// MemoryBlobStore keeps blobs in memory. Two channels sharing one store see
// the same sync object, which makes it useful for testing multi-device
// scenarios in a single process. Safe for concurrent use.
type MemoryBlobStore struct {
	mu            sync.RWMutex
	blobs         map[string]memoryBlob
	identity      string
	authenticated bool
	now           func() time.Time
}

type memoryBlob struct {
	data     []byte
	modified time.Time
}

// NewMemoryBlobStore returns an authenticated store acting as identity.
func NewMemoryBlobStore(identity string) *MemoryBlobStore {
	return &MemoryBlobStore{
		blobs:         make(map[string]memoryBlob),
		identity:      identity,
		authenticated: true,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetIdentity switches the principal, as if another account signed in.
func (m *MemoryBlobStore) SetIdentity(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = identity
}

// SetAuthenticated simulates signing in or out.
func (m *MemoryBlobStore) SetAuthenticated(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authenticated = ok
}

func (m *MemoryBlobStore) Authenticated(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authenticated, nil
}

func (m *MemoryBlobStore) Identity(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.authenticated {
		return "", fmt.Errorf("not signed in")
	}
	return m.identity, nil
}

func (m *MemoryBlobStore) Stat(ctx context.Context, name string) (*notes.ObjectRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[name]
	if !ok {
		return nil, nil
	}
	sum := sha256.Sum256(b.data)
	return &notes.ObjectRef{
		Name:       name,
		Size:       int64(len(b.data)),
		ModifiedAt: b.modified,
		ETag:       hex.EncodeToString(sum[:]),
	}, nil
}

func (m *MemoryBlobStore) Get(ctx context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[name]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", name)
	}
	return append([]byte(nil), b.data...), nil
}

func (m *MemoryBlobStore) Put(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[name] = memoryBlob{data: append([]byte(nil), data...), modified: m.now()}
	return nil
}

var _ BlobStore = (*MemoryBlobStore)(nil)
