package auth

import "os"

// PassphraseEnv is read by EnvironmentStore for every account
const PassphraseEnv = "TILDEGALLERY_SSH_PASSPHRASE"

// EnvironmentStore implements PassphraseStore using an environment variable.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account, passphrase string) error {
	return ErrStoreUnavailable
}

// Retrieve returns the passphrase from the environment
func (e *EnvironmentStore) Retrieve(account string) (string, error) {
	p := os.Getenv(PassphraseEnv)
	if p == "" {
		return "", ErrPassphraseNotFound
	}
	return p, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(account string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment carries a passphrase
func (e *EnvironmentStore) Exists(account string) bool {
	return os.Getenv(PassphraseEnv) != ""
}
