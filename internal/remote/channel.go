// Package remote implements the remote blob channel that holds the shared
// sync object, on top of a pluggable blob backend.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"mdnotes/internal/notes"
)

// BlobStore is a backend able to hold named blobs for one principal.
// Implementations: MemoryBlobStore, FileSystemBlobStore, S3BlobStore.
type BlobStore interface {
	// Authenticated reports whether the backend can be used. Missing
	// credentials are false, not an error.
	Authenticated(ctx context.Context) (bool, error)

	// Identity names the principal the backend acts as, or "".
	Identity(ctx context.Context) (string, error)

	// Stat returns the blob, or nil if it does not exist.
	Stat(ctx context.Context, name string) (*notes.ObjectRef, error)

	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
}

// Channel implements notes.RemoteChannel over a BlobStore.
type Channel struct {
	store    BlobStore
	name     string
	identity string
	codec    *Codec
}

var _ notes.RemoteChannel = (*Channel)(nil)

// NewChannel keeps the sync object under name in store. A non-empty identity
// overrides the one reported by the store.
func NewChannel(store BlobStore, name, identity string, codec *Codec) *Channel {
	if name == "" {
		name = notes.SyncObjectName
	}
	if codec == nil {
		codec = NewPlainCodec()
	}
	return &Channel{store: store, name: name, identity: identity, codec: codec}
}

func (c *Channel) IsAuthenticated(ctx context.Context) (bool, error) {
	return c.store.Authenticated(ctx)
}

func (c *Channel) CurrentIdentity(ctx context.Context) (string, error) {
	if c.identity != "" {
		return c.identity, nil
	}
	return c.store.Identity(ctx)
}

func (c *Channel) LocateSyncObject(ctx context.Context) (*notes.ObjectRef, error) {
	ref, err := c.store.Stat(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("locating %s: %w", c.name, err)
	}
	return ref, nil
}

func (c *Channel) ReadSyncObject(ctx context.Context, ref notes.ObjectRef) ([]notes.Note, error) {
	data, err := c.store.Get(ctx, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref.Name, err)
	}
	all, err := c.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref.Name, err)
	}
	return all, nil
}

func (c *Channel) WriteSyncObject(ctx context.Context, all []notes.Note) error {
	data, err := c.codec.Encode(all)
	if err != nil {
		return fmt.Errorf("writing %s: %w", c.name, err)
	}
	if err := c.store.Put(ctx, c.name, data); err != nil {
		return fmt.Errorf("writing %s: %w", c.name, err)
	}
	return nil
}

// Export writes the decoded sync object to w as indented JSON and returns
// the number of notes in it. A missing object exports nothing.
func (c *Channel) Export(ctx context.Context, w io.Writer) (int, error) {
	ref, err := c.LocateSyncObject(ctx)
	if err != nil {
		return 0, err
	}
	if ref == nil {
		return 0, nil
	}
	all, err := c.ReadSyncObject(ctx, *ref)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return 0, fmt.Errorf("exporting %s: %w", ref.Name, err)
	}
	return len(all), nil
}
