package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"mdnotes/internal/config"
	"mdnotes/internal/notes"
)

// ErrKeysExist is returned by Setup when this device already has a private key.
var ErrKeysExist = errors.New("private key already exists")

// AgeEncryptor encrypts the sync object with filippo.io/age X25519 keys.
//
// The public key file lists one recipient per line and every device that
// shares the sync object must be on it. Devices may share one key pair or
// each add their own recipient. The private key file holds this device's
// identity, itself encrypted under the passphrase with age's scrypt recipient.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string
}

var _ notes.Encryptor = (*AgeEncryptor)(nil)

func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates an identity for this device, stores it under passphrase and
// adds its recipient to the public key file.
func (e *AgeEncryptor) Setup(passphrase string) error {
	if _, err := os.Stat(e.privateKeyPath); err == nil {
		return fmt.Errorf("%w: %s", ErrKeysExist, e.privateKeyPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	scrypt, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	var sealed bytes.Buffer
	if err := encryptTo(&sealed, bytes.NewReader([]byte(identity.String()+"\n")), scrypt); err != nil {
		return fmt.Errorf("sealing private key: %w", err)
	}

	if err := writeKeyFile(e.privateKeyPath, sealed.Bytes(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	line := []byte(identity.Recipient().String() + "\n")
	if err := writeKeyFile(e.publicKeyPath, line, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err != nil {
		os.Remove(e.privateKeyPath)
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// Encrypt writes r encrypted to every recipient in the public key file.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	data, err := os.ReadFile(e.publicKeyPath)
	if err != nil {
		return fmt.Errorf("reading public key: %w", err)
	}
	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parsing public key: %w", err)
	}
	return encryptTo(w, r, recipients...)
}

// Unlock opens the private key with passphrase. A wrong passphrase fails here,
// before any sync object is touched.
func (e *AgeEncryptor) Unlock(passphrase string) (notes.DecryptionContext, error) {
	sealed, err := os.ReadFile(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	var plain bytes.Buffer
	if err := decryptWith(&plain, bytes.NewReader(sealed), scrypt); err != nil {
		return nil, fmt.Errorf("opening private key: %w", err)
	}

	identities, err := age.ParseIdentities(&plain)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &AgeDecryptionContext{identities: identities}, nil
}

// IsConfigured reports whether both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	for _, p := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// AgeDecryptionContext holds the unlocked identities of this device.
type AgeDecryptionContext struct {
	identities []age.Identity
}

var _ notes.DecryptionContext = (*AgeDecryptionContext)(nil)

func (c *AgeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	return decryptWith(w, r, c.identities...)
}

func encryptTo(w io.Writer, r io.Reader, recipients ...age.Recipient) error {
	ew, err := age.Encrypt(w, recipients...)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(ew, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := ew.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

func decryptWith(w io.Writer, r io.Reader, identities ...age.Identity) error {
	dr, err := age.Decrypt(r, identities...)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}
	if _, err := io.Copy(w, dr); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}

func writeKeyFile(path string, data []byte, flag int, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
