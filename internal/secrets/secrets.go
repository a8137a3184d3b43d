// Package secrets stores the two account email addresses in the operating
// system keychain so they survive between runs without living in plain
// config files.
package secrets

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "o365sync"

	gmailEmailKey = "gmail_email"
	o365EmailKey  = "o365_email"
)

// Store reads and writes sync credentials in the system keychain.
type Store struct {
	service string
}

func NewStore() *Store {
	return &Store{service: serviceName}
}

// SaveAccounts persists both account addresses.
func (s *Store) SaveAccounts(gmailEmail, o365Email string) error {
	if err := keyring.Set(s.service, gmailEmailKey, gmailEmail); err != nil {
		return fmt.Errorf("failed to save gmail account: %w", err)
	}
	if err := keyring.Set(s.service, o365EmailKey, o365Email); err != nil {
		return fmt.Errorf("failed to save o365 account: %w", err)
	}
	return nil
}

// Accounts returns the stored addresses. A missing entry comes back as an
// empty string rather than an error so callers can fall back to config.
func (s *Store) Accounts() (gmailEmail, o365Email string, err error) {
	gmailEmail, err = s.get(gmailEmailKey)
	if err != nil {
		return "", "", err
	}
	o365Email, err = s.get(o365EmailKey)
	if err != nil {
		return "", "", err
	}
	return gmailEmail, o365Email, nil
}

func (s *Store) get(key string) (string, error) {
	value, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s from keychain: %w", key, err)
	}
	return value, nil
}
