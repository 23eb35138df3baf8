package remote

import (
	"context"
	"fmt"

	"mdnotes/internal/config"
)

// NewBlobStoreFromConfig creates a BlobStore implementation based on the
// remote config type.
func NewBlobStoreFromConfig(ctx context.Context, cfg config.RemoteConfig) (BlobStore, error) {
	switch cfg.Type {
	case "none", "":
		return OfflineBlobStore{}, nil
	case "memory":
		return NewMemoryBlobStore(cfg.Identity), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem remote requires fs_root to be set")
		}
		return NewFileSystemBlobStore(cfg.FSRoot)
	case "s3":
		return NewS3BlobStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Type)
	}
}

// NewChannelFromConfig builds the channel holding the sync object.
func NewChannelFromConfig(ctx context.Context, cfg config.RemoteConfig, codec *Codec) (*Channel, error) {
	store, err := NewBlobStoreFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewChannel(store, cfg.ObjectName, cfg.Identity, codec), nil
}
