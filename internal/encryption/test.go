package encryption

import (
	"bytes"
	"fmt"
	"io"

	"mdnotes/internal/notes"
)

// testHeader marks data written by TestEncryptor.
var testHeader = []byte("MDNENC\x00\x00")

// TestEncryptor is a deterministic stand-in for AgeEncryptor. It prepends a
// fixed header on encryption and requires and strips it on decryption, so a
// sync object written without encryption fails to decode.
type TestEncryptor struct {
	passphrase string
}

var _ notes.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

// Unlock fails only when Setup was called with a different passphrase.
func (e *TestEncryptor) Unlock(passphrase string) (notes.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, fmt.Errorf("incorrect passphrase")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext strips the test header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ notes.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
