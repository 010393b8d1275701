package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	configDirName = "securewatch"
	tokenFileName = "session.json"
)

type fileContents struct {
	Token string `json:"token"`
}

// FileBackend stores the token in a user-only JSON file, for hosts without
// a usable keychain.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend returns a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// DefaultFilePath returns ~/.config/securewatch/session.json.
func DefaultFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName, tokenFileName), nil
}

// Load reads the token file.
func (f *FileBackend) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return "", fmt.Errorf("failed to parse token file: %w", err)
	}
	if contents.Token == "" {
		return "", ErrNotFound
	}

	return contents.Token, nil
}

// Save writes the token file, creating its directory if needed.
func (f *FileBackend) Save(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(fileContents{Token: token})
	if err != nil {
		return fmt.Errorf("failed to marshal token file: %w", err)
	}

	// Write then rename so a crash never leaves a truncated file behind
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	return nil
}

// Delete removes the token file.
func (f *FileBackend) Delete() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}
