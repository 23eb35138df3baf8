package app

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"mdnotes/internal/notes"
	"mdnotes/internal/remote"
)

// PassphraseEnv supplies the private key passphrase without a prompt.
const PassphraseEnv = "MDNOTES_PASSPHRASE"

// ErrNoPassphrase is returned when a passphrase is needed, the environment
// does not provide one and stdin is not a terminal.
var ErrNoPassphrase = errors.New("passphrase needed but no terminal attached")

func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w (set %s)", ErrNoPassphrase, PassphraseEnv)
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// readNewPassphrase asks twice and requires both answers to match.
func readNewPassphrase() (string, error) {
	first, err := readPassphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("passphrase must not be empty")
	}

	second, err := readPassphrase("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}

// passphraseUnlocker asks for the passphrase the first time the sync object
// has to be decrypted.
func passphraseUnlocker(enc notes.Encryptor) remote.Unlocker {
	return func() (notes.DecryptionContext, error) {
		p, err := readPassphrase("Passphrase: ")
		if err != nil {
			return nil, err
		}
		return enc.Unlock(p)
	}
}
