package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	JWTSecret string

	// MirrorURL points at the optional document-store mirror
	// (redis://host:port/db). Empty disables mirroring entirely.
	MirrorURL string

	// MirrorGrace is how long startup waits for a configured mirror to
	// answer before giving up and exiting.
	MirrorGrace time.Duration
}

func Load() *Config {
	// Missing .env is fine; env vars win either way.
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		MirrorURL:   getEnv("MIRROR_URL", ""),
		MirrorGrace: getDuration("MIRROR_STARTUP_GRACE", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
