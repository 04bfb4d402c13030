package signing

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name under which keel stores key
// passphrases in the OS keyring.
const keyringService = "keel-signing"

// ErrNoStoredPassphrase is returned when the keyring has no passphrase
// for the requested key.
var ErrNoStoredPassphrase = errors.New("no stored passphrase")

// StorePassphrase saves the passphrase for the key at keyPath in the OS
// keyring, so later invocations can load the key without prompting.
func StorePassphrase(keyPath string, passphrase []byte) error {
	if err := keyring.Set(keyringService, keyPath, string(passphrase)); err != nil {
		return fmt.Errorf("storing passphrase in keyring: %w", err)
	}
	return nil
}

// LookupPassphrase fetches a previously stored passphrase for keyPath.
// Returns ErrNoStoredPassphrase if none is stored.
func LookupPassphrase(keyPath string) ([]byte, error) {
	secret, err := keyring.Get(keyringService, keyPath)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNoStoredPassphrase
		}
		return nil, fmt.Errorf("reading passphrase from keyring: %w", err)
	}
	return []byte(secret), nil
}

// DeletePassphrase removes the stored passphrase for keyPath, if any.
func DeletePassphrase(keyPath string) error {
	err := keyring.Delete(keyringService, keyPath)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting passphrase from keyring: %w", err)
	}
	return nil
}
