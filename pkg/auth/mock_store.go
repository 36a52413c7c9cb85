package auth

import "sync"

// MockStore implements PassphraseStore in memory for testing
type MockStore struct {
	secrets map[string]string
	mu      sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	DeleteError   error
}

// NewMockStore creates a new in-memory store
func NewMockStore() *MockStore {
	return &MockStore{secrets: make(map[string]string)}
}

// Store saves the passphrase in memory
func (m *MockStore) Store(account, passphrase string) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == "" {
		return ErrInvalidAccount
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[account] = passphrase
	return nil
}

// Retrieve gets the passphrase from memory
func (m *MockStore) Retrieve(account string) (string, error) {
	if m.RetrieveError != nil {
		return "", m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.secrets[account]
	if !ok {
		return "", ErrPassphraseNotFound
	}
	return p, nil
}

// Delete removes the passphrase from memory
func (m *MockStore) Delete(account string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[account]; !ok {
		return ErrPassphraseNotFound
	}
	delete(m.secrets, account)
	return nil
}

// Exists checks if a passphrase is held for account
func (m *MockStore) Exists(account string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.secrets[account]
	return ok
}
