package credential

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "securewatch"
)

// KeyringBackend persists the token securely in the OS keychain/credential
// manager, one entry per API host.
type KeyringBackend struct {
	key string
}

// NewKeyringBackend returns a backend keyed on the host part of apiURL, so
// sessions against different services do not overwrite each other.
func NewKeyringBackend(apiURL string) *KeyringBackend {
	host := apiURL
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &KeyringBackend{key: fmt.Sprintf("token-%s", host)}
}

// Load retrieves the token from the OS keychain.
func (k *KeyringBackend) Load() (string, error) {
	token, err := keyring.Get(keyringService, k.key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// Save persists the token in the OS keychain.
func (k *KeyringBackend) Save(token string) error {
	if err := keyring.Set(keyringService, k.key, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Delete removes the token from the OS keychain.
func (k *KeyringBackend) Delete() error {
	if err := keyring.Delete(keyringService, k.key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
