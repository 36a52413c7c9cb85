package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "tildegallery"
	keyringPrefix  = "ssh_"
)

// KeyringStore implements PassphraseStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keyring store after checking the keychain works
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves the passphrase to the system keychain
func (k *KeyringStore) Store(account, passphrase string) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if err := keyring.Set(keyringService, keyringPrefix+account, passphrase); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Retrieve gets the passphrase from the system keychain
func (k *KeyringStore) Retrieve(account string) (string, error) {
	if account == "" {
		return "", ErrInvalidAccount
	}

	secret, err := keyring.Get(keyringService, keyringPrefix+account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrPassphraseNotFound
		}
		return "", fmt.Errorf("failed to retrieve from keyring: %w", err)
	}
	return secret, nil
}

// Delete removes the passphrase from the system keychain
func (k *KeyringStore) Delete(account string) error {
	if account == "" {
		return ErrInvalidAccount
	}

	if err := keyring.Delete(keyringService, keyringPrefix+account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrPassphraseNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks if the keychain holds a passphrase for account
func (k *KeyringStore) Exists(account string) bool {
	if account == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+account)
	return err == nil
}
