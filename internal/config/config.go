// Package config loads engine configuration from the environment, with a
// local .env file honored when present.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every tunable of the engine. Zero-config startup works: the
// defaults give an in-memory store, a 15 minute round, and 60–120s price
// ticks.
type Config struct {
	Addr        string
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	RoundDuration time.Duration
	StartingCash  decimal.Decimal

	TickMin time.Duration
	TickMax time.Duration

	OperatorKey string
	JWTSecret   string

	NewsAPIKey  string
	NewsTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first and silently skipped when absent.
func Load() (Config, error) {
	_ = godotenv.Load()

	addr := strings.TrimSpace(os.Getenv("PORT"))
	if addr == "" {
		addr = "8080"
	}

	cfg := Config{
		Addr:          ":" + strings.TrimPrefix(addr, ":"),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
		CacheTTL:      envDuration("CACHE_TTL", 5*time.Second),
		RoundDuration: envDuration("ROUND_DURATION", 15*time.Minute),
		StartingCash:  envDecimal("STARTING_CASH", decimal.NewFromInt(100000)),
		TickMin:       envDuration("TICK_MIN", 60*time.Second),
		TickMax:       envDuration("TICK_MAX", 120*time.Second),
		OperatorKey:   strings.TrimSpace(os.Getenv("OPERATOR_KEY")),
		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		NewsAPIKey:    strings.TrimSpace(os.Getenv("NEWS_API_KEY")),
		NewsTimeout:   envDuration("NEWS_TIMEOUT", 6*time.Second),
	}

	if cfg.TickMax < cfg.TickMin {
		return cfg, fmt.Errorf("TICK_MAX (%s) must be >= TICK_MIN (%s)", cfg.TickMax, cfg.TickMin)
	}
	if cfg.RoundDuration <= 0 {
		return cfg, fmt.Errorf("ROUND_DURATION must be positive")
	}
	if !cfg.StartingCash.IsPositive() {
		return cfg, fmt.Errorf("STARTING_CASH must be positive")
	}
	if cfg.OperatorKey == "" {
		cfg.OperatorKey = "letmein" // development default; set OPERATOR_KEY for events
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = cfg.OperatorKey
	}
	return cfg, nil
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return def
	}
	return d
}
