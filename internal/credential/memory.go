package credential

import "sync"

// MemoryBackend holds the token in process memory only.
type MemoryBackend struct {
	mu    sync.Mutex
	token string
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == "" {
		return "", ErrNotFound
	}
	return m.token, nil
}

func (m *MemoryBackend) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	return nil
}

func (m *MemoryBackend) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = ""
	return nil
}
