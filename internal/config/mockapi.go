package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Expiry signals
const (
	ExpiryEnvelope = "envelope"
	ExpiryStatus   = "status"
)

// MockAPIConfig configures the local stand-in service
type MockAPIConfig struct {
	Addr           string
	DatabaseURL    string
	JWTSecret      string
	TokenTTL       time.Duration
	MaxUploadBytes int64

	// ExposeCodes returns emailed verification codes in the response body
	ExposeCodes bool

	// ExpirySignal chooses how an invalid token is reported: "envelope"
	// (HTTP 200 with code 401) or "status" (HTTP 401).
	ExpirySignal string

	AdminEmail    string
	AdminPassword string

	Logging LoggingConfig
}

// LoadMockAPI loads the mock service configuration from environment variables
func LoadMockAPI() (*MockAPIConfig, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg := &MockAPIConfig{
		Addr:           getenv("MOCKAPI_ADDR", ":8080"),
		DatabaseURL:    getenv("MOCKAPI_DB_URL", "file::memory:"),
		JWTSecret:      getenv("MOCKAPI_JWT_SECRET", "argscan-dev-secret"),
		TokenTTL:       24 * time.Hour,
		MaxUploadBytes: 100 << 20,
		ExpirySignal:   getenv("MOCKAPI_EXPIRY_SIGNAL", ExpiryEnvelope),
		AdminEmail:     getenv("MOCKAPI_ADMIN_EMAIL", "admin@argscan.local"),
		AdminPassword:  getenv("MOCKAPI_ADMIN_PASSWORD", "admin123"),
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "console"),
		},
	}

	if v := os.Getenv("MOCKAPI_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MOCKAPI_MAX_UPLOAD_BYTES %q", v)
		}
		cfg.MaxUploadBytes = n
	}

	if v := os.Getenv("MOCKAPI_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid MOCKAPI_TOKEN_TTL %q", v)
		}
		cfg.TokenTTL = d
	}

	if v := os.Getenv("MOCKAPI_EXPOSE_CODES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MOCKAPI_EXPOSE_CODES %q", v)
		}
		cfg.ExposeCodes = b
	}

	if cfg.ExpirySignal != ExpiryEnvelope && cfg.ExpirySignal != ExpiryStatus {
		return nil, fmt.Errorf("invalid MOCKAPI_EXPIRY_SIGNAL %q (want envelope or status)", cfg.ExpirySignal)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
