package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mdnotes/internal/notes"
)

// AccountFile names the file under the root holding the identity of the
// account that owns the directory.
const AccountFile = "account"

// FileSystemBlobStore keeps blobs as files in a directory, typically a
// folder synced by another tool or a mounted drive:
//
//	<root>/
//	  account                      (optional, identity of the owner)
//	  markdown_notes_sync.json
type FileSystemBlobStore struct {
	root string
}

// NewFileSystemBlobStore creates root if needed.
func NewFileSystemBlobStore(root string) (*FileSystemBlobStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create remote directory: %w", err)
	}
	return &FileSystemBlobStore{root: root}, nil
}

// Authenticated is true while the root is an accessible directory.
func (f *FileSystemBlobStore) Authenticated(ctx context.Context) (bool, error) {
	info, err := os.Stat(f.root)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("remote root not accessible: %w", err)
	}
	return info.IsDir(), nil
}

// Identity reads the account file. Without one the root path is the identity.
func (f *FileSystemBlobStore) Identity(ctx context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(f.root, AccountFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "file://" + f.root, nil
		}
		return "", fmt.Errorf("reading account file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *FileSystemBlobStore) Stat(ctx context.Context, name string) (*notes.ObjectRef, error) {
	info, err := os.Stat(filepath.Join(f.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	return &notes.ObjectRef{
		Name:       name,
		Size:       info.Size(),
		ModifiedAt: info.ModTime().UTC(),
	}, nil
}

func (f *FileSystemBlobStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", name)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Put replaces the blob atomically (temp file + rename) so readers on other
// devices never see a partial object.
func (f *FileSystemBlobStore) Put(ctx context.Context, name string, data []byte) error {
	return writeFileAtomic(filepath.Join(f.root, name), bytes.NewReader(data), int64(len(data)))
}

func writeFileAtomic(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ BlobStore = (*FileSystemBlobStore)(nil)
