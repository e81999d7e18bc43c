// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the API server settings.
type Config struct {
	Port         string
	DatabaseURL  string
	DBMigrate    bool
	RedisURL     string
	RateRPS      float64
	RateBurst    int
	LogLevel     string
	LogFormat    string
	SolveTimeout time.Duration
}

// Addr is the listen address for Port.
func (c Config) Addr() string { return ":" + c.Port }

// LoadDotenv loads the given .env files (".env" when none are named) into
// the process environment. It reports whether a file was found; a missing
// file is not an error.
func LoadDotenv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// Load builds a Config from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}
	var err error
	if cfg.DBMigrate, err = getBool("DB_MIGRATE", true); err != nil {
		return Config{}, err
	}
	if cfg.RateRPS, err = getFloat("RATE_RPS", 0); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = getInt("RATE_BURST", 20); err != nil {
		return Config{}, err
	}
	if cfg.SolveTimeout, err = getDuration("SOLVE_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, fmt.Errorf("config: PORT %q: %w", cfg.Port, err)
	}
	if cfg.RateRPS < 0 || cfg.RateBurst < 0 {
		return Config{}, fmt.Errorf("config: RATE_RPS and RATE_BURST must not be negative")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
