package credential

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/securewatch/securewatch/internal/config"
)

// Backend names accepted by Open.
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendRedis   = "redis"
	BackendMemory  = "memory"
	BackendNone    = "none"
)

// Open builds the store selected by cfg. apiURL scopes keyring entries.
func Open(cfg config.TokenStoreConfig, apiURL string, logger zerolog.Logger) (*Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendKeyring, "":
		return New(NewKeyringBackend(apiURL), logger), nil

	case BackendFile:
		path := cfg.FilePath
		if path == "" {
			p, err := DefaultFilePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return New(NewFileBackend(path), logger), nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Address,
		})
		return New(NewRedisBackend(client, cfg.Redis.Key), logger), nil

	case BackendMemory:
		return New(NewMemoryBackend(), logger), nil

	case BackendNone:
		return Unavailable(), nil

	default:
		return nil, fmt.Errorf("unknown token store backend %q (want keyring, file, redis, memory or none)", cfg.Backend)
	}
}
