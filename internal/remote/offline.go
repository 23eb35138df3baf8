package remote

import (
	"context"
	"fmt"

	"mdnotes/internal/notes"
)

// errNoRemote is returned by every data operation of OfflineBlobStore.
var errNoRemote = fmt.Errorf("no remote configured")

// OfflineBlobStore is used when no remote is configured. It never
// authenticates, so sync cycles are skipped.
type OfflineBlobStore struct{}

func (OfflineBlobStore) Authenticated(ctx context.Context) (bool, error) { return false, nil }

func (OfflineBlobStore) Identity(ctx context.Context) (string, error) { return "", errNoRemote }

func (OfflineBlobStore) Stat(ctx context.Context, name string) (*notes.ObjectRef, error) {
	return nil, errNoRemote
}

func (OfflineBlobStore) Get(ctx context.Context, name string) ([]byte, error) {
	return nil, errNoRemote
}

func (OfflineBlobStore) Put(ctx context.Context, name string, data []byte) error {
	return errNoRemote
}

var _ BlobStore = OfflineBlobStore{}
