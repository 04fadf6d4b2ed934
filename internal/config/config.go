package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string // Issuer URL embedded in every minted token
	IsProduction bool   // Hides the Swagger UI and other development surfaces

	// Signing settings
	JWTSecret      string
	JWTExpiration  time.Duration
	EncryptionKey  string // Symmetric key for JWE-wrapped tokens (optional)
	SessionSaltLen int    // Salt length for OIDC session_state values

	// Token lifetimes
	RefreshTokenExpiration time.Duration
	AuthCodeExpiration     time.Duration
	TicketExpiration       time.Duration
	DeviceCodeExpiration   time.Duration
	PollingInterval        int // seconds, device flow
	EnableTokenRotation    bool
	ClientAssertionMaxSkew time.Duration // Accepted clock skew for client assertions

	// PKCE
	PKCERequired bool // Global enforcement on top of per-client RequirePKCE

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	// JWKS resolution
	JWKSRefreshInterval time.Duration // Minimum refresh window for remote key sets
	JWKSFetchTimeout    time.Duration

	// Cache backend for resolved discovery documents / key sets
	CacheBackend  string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Events
	EventBufferSize int
	EventsEnabled   bool

	// Metrics
	MetricsEnabled bool
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", "permgate.db")
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		IsProduction: getEnvBool("IS_PRODUCTION", false),

		JWTSecret:      getEnv("JWT_SECRET", "your-256-bit-secret-change-in-production"),
		JWTExpiration:  getEnvDuration("JWT_EXPIRATION", time.Hour),
		EncryptionKey:  getEnv("TOKEN_ENCRYPTION_KEY", ""),
		SessionSaltLen: getEnvInt("SESSION_SALT_LENGTH", 16),

		RefreshTokenExpiration: getEnvDuration("REFRESH_TOKEN_EXPIRATION", 720*time.Hour),
		AuthCodeExpiration:     getEnvDuration("AUTH_CODE_EXPIRATION", 10*time.Minute),
		TicketExpiration:       getEnvDuration("TICKET_EXPIRATION", 5*time.Minute),
		DeviceCodeExpiration:   getEnvDuration("DEVICE_CODE_EXPIRATION", 30*time.Minute),
		PollingInterval:        getEnvInt("DEVICE_POLLING_INTERVAL", 5),
		EnableTokenRotation:    getEnvBool("ENABLE_TOKEN_ROTATION", false),
		ClientAssertionMaxSkew: getEnvDuration("CLIENT_ASSERTION_MAX_SKEW", 30*time.Second),

		PKCERequired: getEnvBool("PKCE_REQUIRED", false),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		JWKSRefreshInterval: getEnvDuration("JWKS_REFRESH_INTERVAL", 15*time.Minute),
		JWKSFetchTimeout:    getEnvDuration("JWKS_FETCH_TIMEOUT", 10*time.Second),

		CacheBackend:  getEnv("CACHE_BACKEND", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EventBufferSize: getEnvInt("EVENT_BUFFER_SIZE", 1000),
		EventsEnabled:   getEnvBool("EVENTS_ENABLED", true),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for the postgres driver")
	}
	if c.CacheBackend != "memory" && c.CacheBackend != "redis" {
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
