package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret string

	// RateTablePath points at an optional JSON file overriding the
	// built-in reward rate table. Empty means built-in defaults.
	RateTablePath string

	// StreakScanDays bounds how far back the streak walk looks.
	StreakScanDays int
}

// Load reads configuration from a .env file (if present) and environment
// variables, applying defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the server still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Port:           envOr("PORT", "8080"),
		DBHost:         envOr("DB_HOST", "localhost"),
		DBPort:         envOr("DB_PORT", "5432"),
		DBUser:         envOr("DB_USER", "skillpath_user"),
		DBPassword:     envOr("DB_PASSWORD", "skillpath_password"),
		DBName:         envOr("DB_NAME", "skillpath"),
		DBSSLMode:      envOr("DB_SSLMODE", "disable"),
		JWTSecret:      envOr("JWT_SECRET", "skillpath-staging-signing-key-2026"),
		RateTablePath:  envOr("RATE_TABLE_PATH", ""),
		StreakScanDays: envIntOr("STREAK_SCAN_DAYS", 400),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("[config] invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}
