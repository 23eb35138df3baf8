package remote

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mdnotes/internal/encryption"
	"mdnotes/internal/notes"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func sampleNotes() []notes.Note {
	return []notes.Note{
		{ID: "a", Title: "A", Content: "# A", CreatedAt: t0, UpdatedAt: t0, Color: notes.DefaultColor},
		{ID: "b", Title: "B", Content: "gone", CreatedAt: t0, UpdatedAt: t0.Add(time.Hour), Deleted: true},
	}
}

func TestChannel_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(NewMemoryBlobStore("alice"), "", "", nil)

	ref, err := ch.LocateSyncObject(ctx)
	if err != nil {
		t.Fatalf("LocateSyncObject() error = %v", err)
	}
	if ref != nil {
		t.Fatalf("LocateSyncObject() = %+v, want nil before first write", ref)
	}

	if err := ch.WriteSyncObject(ctx, sampleNotes()); err != nil {
		t.Fatalf("WriteSyncObject() error = %v", err)
	}

	ref, err = ch.LocateSyncObject(ctx)
	if err != nil {
		t.Fatalf("LocateSyncObject() error = %v", err)
	}
	if ref == nil || ref.Name != notes.SyncObjectName {
		t.Fatalf("LocateSyncObject() = %+v, want %s", ref, notes.SyncObjectName)
	}

	got, err := ch.ReadSyncObject(ctx, *ref)
	if err != nil {
		t.Fatalf("ReadSyncObject() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(ReadSyncObject()) = %d, want 2", len(got))
	}
	if !got[1].Deleted || !got[1].UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("tombstone = %+v, want deleted at %v", got[1], t0.Add(time.Hour))
	}
}

func TestChannel_EmptyCollectionEncodesAsArray(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore("alice")
	ch := NewChannel(store, "", "", nil)

	if err := ch.WriteSyncObject(ctx, nil); err != nil {
		t.Fatalf("WriteSyncObject() error = %v", err)
	}
	data, err := store.Get(ctx, notes.SyncObjectName)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("object = %q, want %q", data, "[]")
	}
}

func TestChannel_CurrentIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore("alice")

	got, err := NewChannel(store, "", "", nil).CurrentIdentity(ctx)
	if err != nil || got != "alice" {
		t.Errorf("CurrentIdentity() = %q, %v, want alice", got, err)
	}

	got, err = NewChannel(store, "", "override", nil).CurrentIdentity(ctx)
	if err != nil || got != "override" {
		t.Errorf("CurrentIdentity() with override = %q, %v, want override", got, err)
	}
}

func TestChannel_SharedStoreAcrossDevices(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore("alice")
	laptop := NewChannel(store, "", "", nil)
	desktop := NewChannel(store, "", "", nil)

	if err := laptop.WriteSyncObject(ctx, sampleNotes()); err != nil {
		t.Fatalf("WriteSyncObject() error = %v", err)
	}
	ref, err := desktop.LocateSyncObject(ctx)
	if err != nil || ref == nil {
		t.Fatalf("LocateSyncObject() = %v, %v", ref, err)
	}
	got, err := desktop.ReadSyncObject(ctx, *ref)
	if err != nil {
		t.Fatalf("ReadSyncObject() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(ReadSyncObject()) = %d, want 2", len(got))
	}
}

func TestChannel_Encrypted(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips and unlocks once", func(t *testing.T) {
		store := NewMemoryBlobStore("alice")
		enc := encryption.NewTestEncryptor()
		unlocks := 0
		codec := NewEncryptedCodec(enc, func() (notes.DecryptionContext, error) {
			unlocks++
			return enc.Unlock("")
		})
		ch := NewChannel(store, "", "", codec)

		if err := ch.WriteSyncObject(ctx, sampleNotes()); err != nil {
			t.Fatalf("WriteSyncObject() error = %v", err)
		}
		data, _ := store.Get(ctx, notes.SyncObjectName)
		if !bytes.HasPrefix(data, []byte("MDNENC")) {
			t.Errorf("object is not encrypted: %q", data)
		}

		for i := 0; i < 2; i++ {
			if _, err := ch.ReadSyncObject(ctx, notes.ObjectRef{Name: notes.SyncObjectName}); err != nil {
				t.Fatalf("ReadSyncObject() error = %v", err)
			}
		}
		if unlocks != 1 {
			t.Errorf("unlock called %d times, want 1", unlocks)
		}
	})

	t.Run("plain object fails to decrypt", func(t *testing.T) {
		store := NewMemoryBlobStore("alice")
		if err := NewChannel(store, "", "", nil).WriteSyncObject(ctx, sampleNotes()); err != nil {
			t.Fatalf("WriteSyncObject() error = %v", err)
		}

		enc := encryption.NewTestEncryptor()
		codec := NewEncryptedCodec(enc, func() (notes.DecryptionContext, error) { return enc.Unlock("") })
		_, err := NewChannel(store, "", "", codec).ReadSyncObject(ctx, notes.ObjectRef{Name: notes.SyncObjectName})
		if err == nil {
			t.Fatal("ReadSyncObject() expected error for unencrypted object")
		}
	})

	t.Run("unlock failure is returned", func(t *testing.T) {
		store := NewMemoryBlobStore("alice")
		enc := encryption.NewTestEncryptor()
		boom := errors.New("wrong passphrase")
		codec := NewEncryptedCodec(enc, func() (notes.DecryptionContext, error) { return nil, boom })
		ch := NewChannel(store, "", "", codec)

		if err := ch.WriteSyncObject(ctx, sampleNotes()); err != nil {
			t.Fatalf("WriteSyncObject() error = %v", err)
		}
		_, err := ch.ReadSyncObject(ctx, notes.ObjectRef{Name: notes.SyncObjectName})
		if !errors.Is(err, boom) {
			t.Errorf("ReadSyncObject() error = %v, want %v", err, boom)
		}
	})
	t.Run("failed unlock is retried", func(t *testing.T) {
		store := NewMemoryBlobStore("alice")
		enc := encryption.NewTestEncryptor()
		boom := errors.New("wrong passphrase")
		attempts := 0
		codec := NewEncryptedCodec(enc, func() (notes.DecryptionContext, error) {
			attempts++
			if attempts == 1 {
				return nil, boom
			}
			return enc.Unlock("")
		})
		ch := NewChannel(store, "", "", codec)
		ref := notes.ObjectRef{Name: notes.SyncObjectName}

		if err := ch.WriteSyncObject(ctx, sampleNotes()); err != nil {
			t.Fatalf("WriteSyncObject() error = %v", err)
		}
		if _, err := ch.ReadSyncObject(ctx, ref); !errors.Is(err, boom) {
			t.Fatalf("first ReadSyncObject() error = %v, want %v", err, boom)
		}
		for i := 0; i < 2; i++ {
			got, err := ch.ReadSyncObject(ctx, ref)
			if err != nil {
				t.Fatalf("ReadSyncObject() after retry error = %v", err)
			}
			if len(got) != len(sampleNotes()) {
				t.Errorf("len(ReadSyncObject()) = %d, want %d", len(got), len(sampleNotes()))
			}
		}
		if attempts != 2 {
			t.Errorf("unlock called %d times, want 2", attempts)
		}
	})
}

func TestCodec_DecodeEmpty(t *testing.T) {
	got, err := NewPlainCodec().Decode([]byte("  \n"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Decode() = %v, want empty slice", got)
	}
}

func TestCodec_DecodeInvalid(t *testing.T) {
	if _, err := NewPlainCodec().Decode([]byte("{not json")); err == nil {
		t.Error("Decode() expected error for invalid JSON")
	}
}

func TestChannel_Export(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(NewMemoryBlobStore("alice"), "", "", nil)

	var buf bytes.Buffer
	n, err := ch.Export(ctx, &buf)
	if err != nil || n != 0 || buf.Len() != 0 {
		t.Fatalf("Export() on missing object = %d, %v, %q", n, err, buf.String())
	}

	if err := ch.WriteSyncObject(ctx, sampleNotes()); err != nil {
		t.Fatalf("WriteSyncObject() error = %v", err)
	}
	n, err = ch.Export(ctx, &buf)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Export() = %d, want 2", n)
	}
	if !strings.Contains(buf.String(), "\n  {") {
		t.Errorf("Export() output not indented:\n%s", buf.String())
	}
}
