package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFileSystemBlobStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "remote")

	if _, err := NewFileSystemBlobStore(root); err != nil {
		t.Fatalf("NewFileSystemBlobStore() error = %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root directory not created: %v", err)
	}
}

func TestFileSystemBlobStore_Authenticated(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "remote")
	fs, err := NewFileSystemBlobStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemBlobStore() error = %v", err)
	}

	ok, err := fs.Authenticated(ctx)
	if err != nil || !ok {
		t.Errorf("Authenticated() = %v, %v, want true", ok, err)
	}

	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	ok, err = fs.Authenticated(ctx)
	if err != nil || ok {
		t.Errorf("Authenticated() after unmount = %v, %v, want false", ok, err)
	}
}

func TestFileSystemBlobStore_Identity(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFileSystemBlobStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemBlobStore() error = %v", err)
	}

	got, err := fs.Identity(ctx)
	if err != nil {
		t.Fatalf("Identity() error = %v", err)
	}
	if got != "file://"+root {
		t.Errorf("Identity() = %q, want %q", got, "file://"+root)
	}

	if err := os.WriteFile(filepath.Join(root, AccountFile), []byte("bob@example.com\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = fs.Identity(ctx)
	if err != nil {
		t.Fatalf("Identity() error = %v", err)
	}
	if got != "bob@example.com" {
		t.Errorf("Identity() = %q, want %q", got, "bob@example.com")
	}
}

func TestFileSystemBlobStore_PutGetStat(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFileSystemBlobStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemBlobStore() error = %v", err)
	}

	ref, err := fs.Stat(ctx, "notes.json")
	if err != nil || ref != nil {
		t.Fatalf("Stat() on missing blob = %v, %v, want nil, nil", ref, err)
	}
	if _, err := fs.Get(ctx, "notes.json"); err == nil {
		t.Error("Get() expected error for missing blob")
	}

	if err := fs.Put(ctx, "notes.json", []byte(`[]`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := fs.Put(ctx, "notes.json", []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	ref, err = fs.Stat(ctx, "notes.json")
	if err != nil || ref == nil {
		t.Fatalf("Stat() = %v, %v", ref, err)
	}
	if ref.Size != int64(len(`[{"id":"a"}]`)) {
		t.Errorf("Size = %d, want %d", ref.Size, len(`[{"id":"a"}]`))
	}

	data, err := fs.Get(ctx, "notes.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != `[{"id":"a"}]` {
		t.Errorf("Get() = %q", data)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("root has %d entries, want 1 (temp files left behind?)", len(entries))
	}
}
