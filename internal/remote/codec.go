package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"mdnotes/internal/notes"
)

// Unlocker produces the decryption context for the sync object, typically by
// asking for a passphrase. It is called until it succeeds once.
type Unlocker func() (notes.DecryptionContext, error)

// Codec turns a note collection into the bytes of the sync object and back.
// The object is a JSON array of notes, optionally encrypted.
type Codec struct {
	encryptor notes.Encryptor
	unlock    Unlocker

	mu        sync.Mutex
	decrypter notes.DecryptionContext
}

// NewPlainCodec stores the sync object as plain JSON.
func NewPlainCodec() *Codec {
	return &Codec{}
}

// NewEncryptedCodec encrypts the sync object with enc. unlock is called the
// first time an object has to be decrypted.
func NewEncryptedCodec(enc notes.Encryptor, unlock Unlocker) *Codec {
	return &Codec{encryptor: enc, unlock: unlock}
}

// Encrypted reports whether the codec encrypts.
func (c *Codec) Encrypted() bool { return c.encryptor != nil }

// Encode serializes all, tombstones included.
func (c *Codec) Encode(all []notes.Note) ([]byte, error) {
	if all == nil {
		all = []notes.Note{}
	}
	data, err := json.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("encoding notes: %w", err)
	}
	if c.encryptor == nil {
		return data, nil
	}

	var buf bytes.Buffer
	if err := c.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
		return nil, fmt.Errorf("encrypting notes: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a sync object. An empty object is an empty collection.
func (c *Codec) Decode(data []byte) ([]notes.Note, error) {
	if c.encryptor != nil {
		dec, err := c.decryptionContext()
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := dec.Decrypt(bytes.NewReader(data), &buf); err != nil {
			return nil, fmt.Errorf("decrypting notes: %w", err)
		}
		data = buf.Bytes()
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []notes.Note{}, nil
	}

	var all []notes.Note
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decoding notes: %w", err)
	}
	return all, nil
}

// decryptionContext caches the first successful unlock. A failed unlock,
// such as a mistyped passphrase, is retried on the next read.
func (c *Codec) decryptionContext() (notes.DecryptionContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.decrypter != nil {
		return c.decrypter, nil
	}
	if c.unlock == nil {
		return nil, fmt.Errorf("unlocking private key: no passphrase source for encrypted sync object")
	}
	dec, err := c.unlock()
	if err != nil {
		return nil, fmt.Errorf("unlocking private key: %w", err)
	}
	c.decrypter = dec
	return dec, nil
}
