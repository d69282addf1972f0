// utils/config.go
package utils

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port           string
	DatabaseURL    string
	StoreDriver    string
	ServiceToken   string
	SessionSecret  string
	AllowedOrigins []string

	// Cloudflare R2 deck snapshots; ArchiveDir is used when R2 is not configured.
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	ArchiveDir        string

	PhaseCheckInterval time.Duration
	PresenceTimeout    time.Duration
	PresenceInterval   time.Duration
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := &Config{
		Port:              envOr("PORT", "5200"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StoreDriver:       envOr("STORE_DRIVER", StoreDriverPostgres),
		ServiceToken:      os.Getenv("GAME_SERVICE_TOKEN"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		AllowedOrigins:    splitOrigins(envOr("ALLOWED_ORIGINS", "http://localhost:3000")),
		R2AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:          os.Getenv("R2_BUCKET_NAME"),
		ArchiveDir:        envOr("ARCHIVE_DIR", "archive"),
	}

	var err error
	if cfg.PhaseCheckInterval, err = envDuration("PHASE_CHECK_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.PresenceTimeout, err = envDuration("PRESENCE_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PresenceInterval, err = envDuration("PRESENCE_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable not set")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.ServiceToken == "" {
		return nil, fmt.Errorf("GAME_SERVICE_TOKEN environment variable not set")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable not set")
	}
	return cfg, nil
}

// R2Enabled reports whether every R2 credential is present.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2AccessKeySecret != "" && c.R2Bucket != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitOrigins(s string) []string {
	var out []string
	for _, origin := range strings.Split(s, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
