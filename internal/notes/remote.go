package notes

import (
	"context"
	"io"
	"time"
)

// SyncObjectName is the well-known name of the single remote sync object.
const SyncObjectName = "markdown_notes_sync.json"

// ObjectRef identifies a located remote sync object.
type ObjectRef struct {
	Name       string
	Size       int64
	ModifiedAt time.Time
	ETag       string
}

// RemoteChannel is the remote blob store holding the shared note collection.
type RemoteChannel interface {
	// IsAuthenticated reports whether remote calls can be made. A false result
	// is not an error: sync is optional.
	IsAuthenticated(ctx context.Context) (bool, error)

	// CurrentIdentity returns the authenticated principal, or "" if the
	// backend cannot name one.
	CurrentIdentity(ctx context.Context) (string, error)

	// LocateSyncObject returns the sync object, or nil if it does not exist yet.
	LocateSyncObject(ctx context.Context) (*ObjectRef, error)

	ReadSyncObject(ctx context.Context, ref ObjectRef) ([]Note, error)
	WriteSyncObject(ctx context.Context, notes []Note) error
}

// Encryptor handles encryption of the remote sync object.
// Encryption uses the public key only. Decryption requires a passphrase to
// unlock the private key, producing a DecryptionContext.
type Encryptor interface {
	// Setup generates a key pair, stores the public key in plaintext and
	// encrypts the private key with the passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key. It fails if the passphrase is wrong.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
