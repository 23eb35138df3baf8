package encryption

import (
	"fmt"

	"mdnotes/internal/config"
	"mdnotes/internal/notes"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// It returns nil for "none": the sync object is then stored as plain JSON.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (notes.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
