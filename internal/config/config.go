package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP server
	Host string
	Port int

	// Game control capability. Empty disables the auth check (dev mode).
	ControlToken string

	// Optional cross-instance room bridge. Empty disables it.
	RedisAddr     string
	RedisPassword string

	// SQLite settings/audit store
	StorePath string

	// Venue defaults (YAML)
	VenuePath string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Host: envStr("MATCHCAST_HOST", "0.0.0.0"),
		Port: envInt("MATCHCAST_PORT", 8080),

		ControlToken: envStr("CONTROL_TOKEN", ""),

		RedisAddr:     envStr("REDIS_ADDR", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),

		StorePath: envStr("STORE_PATH", "data/matchcast.db"),
		VenuePath: envStr("VENUE_CONFIG_PATH", "configs/venue.yaml"),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
