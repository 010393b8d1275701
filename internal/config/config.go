package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Remote authentication service
	API APIConfig `yaml:"api"`

	// Credential persistence
	TokenStore TokenStoreConfig `yaml:"token_store"`

	// Background profile revalidation
	Revalidate RevalidateConfig `yaml:"revalidate"`

	// Logging Configuration
	Logging LoggingConfig `yaml:"logging"`

	// Development auth stub
	AuthStub AuthStubConfig `yaml:"authstub"`
}

// APIConfig holds the remote service location
type APIConfig struct {
	URL string `yaml:"url"`
}

// TokenStoreConfig selects and configures the credential backend
type TokenStoreConfig struct {
	Backend  string      `yaml:"backend"` // keyring, file, redis, memory, none
	FilePath string      `yaml:"file_path"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string `yaml:"address"` // Redis address (host:port)
	Key     string `yaml:"key"`
}

// RevalidateConfig holds the cron schedule for profile refreshes.
// An empty schedule falls back to revalidate.DefaultSchedule.
type RevalidateConfig struct {
	Schedule string `yaml:"schedule"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// AuthStubConfig configures the development stand-in for the remote service
type AuthStubConfig struct {
	Addr               string        `yaml:"addr"`
	DatabaseURL        string        `yaml:"database_url"`
	JWTSecret          string        `yaml:"jwt_secret"`
	TokenTTL           time.Duration `yaml:"token_ttl"`
	AllowedOrigins     []string      `yaml:"allowed_origins"`
	SuperAdminEmail    string        `yaml:"super_admin_email"`
	SuperAdminPassword string        `yaml:"super_admin_password"`
}

// Load loads configuration from .env files, environment variables and, when
// SECUREWATCH_CONFIG names one, a YAML file whose non-empty fields win.
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	ttl, err := parseDuration(getEnv("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}

	cfg := &Config{
		API: APIConfig{
			URL: getEnv("SECUREWATCH_API_URL", "http://localhost:8080"),
		},
		TokenStore: TokenStoreConfig{
			Backend:  getEnv("SECUREWATCH_TOKEN_STORE", "keyring"),
			FilePath: os.Getenv("SECUREWATCH_TOKEN_FILE"),
			Redis: RedisConfig{
				Address: getEnv("REDIS_ADDRESS", "localhost:6379"),
				Key:     getEnv("SECUREWATCH_REDIS_KEY", "securewatch:token"),
			},
		},
		Revalidate: RevalidateConfig{
			Schedule: os.Getenv("SECUREWATCH_REVALIDATE"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "warn"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		AuthStub: AuthStubConfig{
			Addr:               getEnv("AUTHSTUB_ADDR", ":8080"),
			DatabaseURL:        getEnv("DATABASE_URL", "authstub.sqlite"),
			JWTSecret:          os.Getenv("JWT_SECRET"),
			TokenTTL:           ttl,
			AllowedOrigins:     splitList(getEnv("AUTHSTUB_ALLOWED_ORIGINS", "http://localhost:3000")),
			SuperAdminEmail:    getEnv("AUTHSTUB_SUPER_ADMIN_EMAIL", "superadmin@securewatch.local"),
			SuperAdminPassword: os.Getenv("AUTHSTUB_SUPER_ADMIN_PASSWORD"),
		},
	}

	if path := os.Getenv("SECUREWATCH_CONFIG"); path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	override(&cfg.API.URL, file.API.URL)
	override(&cfg.TokenStore.Backend, file.TokenStore.Backend)
	override(&cfg.TokenStore.FilePath, file.TokenStore.FilePath)
	override(&cfg.TokenStore.Redis.Address, file.TokenStore.Redis.Address)
	override(&cfg.TokenStore.Redis.Key, file.TokenStore.Redis.Key)
	override(&cfg.Revalidate.Schedule, file.Revalidate.Schedule)
	override(&cfg.Logging.Level, file.Logging.Level)
	override(&cfg.Logging.Format, file.Logging.Format)
	override(&cfg.AuthStub.Addr, file.AuthStub.Addr)
	override(&cfg.AuthStub.DatabaseURL, file.AuthStub.DatabaseURL)
	override(&cfg.AuthStub.JWTSecret, file.AuthStub.JWTSecret)
	override(&cfg.AuthStub.SuperAdminEmail, file.AuthStub.SuperAdminEmail)
	override(&cfg.AuthStub.SuperAdminPassword, file.AuthStub.SuperAdminPassword)
	if file.AuthStub.TokenTTL > 0 {
		cfg.AuthStub.TokenTTL = file.AuthStub.TokenTTL
	}
	if len(file.AuthStub.AllowedOrigins) > 0 {
		cfg.AuthStub.AllowedOrigins = file.AuthStub.AllowedOrigins
	}

	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
