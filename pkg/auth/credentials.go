package auth

import (
	"errors"
	"fmt"
)

// PassphraseStore keeps the passphrases of SSH identity files. Accounts
// are identified by the identity file path.
type PassphraseStore interface {
	// Store saves the passphrase for account
	Store(account, passphrase string) error

	// Retrieve gets the passphrase for account
	Retrieve(account string) (string, error)

	// Delete removes the passphrase for account
	Delete(account string) error

	// Exists checks if a passphrase is stored for account
	Exists(account string) bool
}

// Manager looks passphrases up across several stores in order
type Manager struct {
	stores []PassphraseStore
}

// NewManager creates a manager backed by the system keychain when it is
// available, falling back to the environment.
func NewManager() *Manager {
	var stores []PassphraseStore

	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}
}

// NewManagerWithStores creates a manager over the given stores
func NewManagerWithStores(stores ...PassphraseStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the passphrase in the first store that accepts it
func (m *Manager) Store(account, passphrase string) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if passphrase == "" {
		return errors.New("passphrase is required")
	}

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account, passphrase)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store passphrase: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Passphrase returns the passphrase from the first store that has it
func (m *Manager) Passphrase(account string) ([]byte, error) {
	for _, store := range m.stores {
		if p, err := store.Retrieve(account); err == nil && p != "" {
			return []byte(p), nil
		}
	}
	return nil, fmt.Errorf("%w for %s", ErrPassphraseNotFound, account)
}

// PassphraseFunc binds Passphrase to account for lazy lookup
func (m *Manager) PassphraseFunc(account string) func() ([]byte, error) {
	return func() ([]byte, error) {
		return m.Passphrase(account)
	}
}

// Delete removes the passphrase from every store holding it
func (m *Manager) Delete(account string) error {
	deleted := false
	var lastErr error

	for _, store := range m.stores {
		err := store.Delete(account)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrPassphraseNotFound):
		default:
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to delete passphrase: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for %s", ErrPassphraseNotFound, account)
	}
	return nil
}

// Exists reports whether any store has a passphrase for account
func (m *Manager) Exists(account string) bool {
	for _, store := range m.stores {
		if store.Exists(account) {
			return true
		}
	}
	return false
}

// Errors
var (
	ErrPassphraseNotFound = errors.New("passphrase not found")
	ErrInvalidAccount     = errors.New("invalid account")
	ErrStoreUnavailable   = errors.New("passphrase store unavailable")
)
