// Package auth supplies passphrases for encrypted SSH identity files.
//
// Passphrases live in the system keychain (github.com/zalando/go-keyring)
// when one is available; TILDEGALLERY_SSH_PASSPHRASE serves headless
// machines. MockStore backs tests.
package auth
