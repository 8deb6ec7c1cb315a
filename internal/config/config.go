package config

import (
	"errors"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config contains runtime configuration required by the service.
type Config struct {
	// HTTPAddr is the listen address, e.g. ":8080".
	HTTPAddr string `koanf:"http_addr"`
	// DBURL is the Postgres connection string. When empty the service runs
	// on the in-memory store (development only; nothing is durable).
	DBURL string `koanf:"db_url"`
	// BatchSize caps the number of events accepted in one publish request.
	BatchSize int `koanf:"batch_size"`
	// QueryLimit is the default result cap for GET /events.
	QueryLimit int `koanf:"query_limit"`
	// APIKeys, when non-empty, locks the API behind X-API-Key.
	APIKeys []string `koanf:"api_keys"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// LogFormat is "console" or "json".
	LogFormat string `koanf:"log_format"`
}

func defaults() Config {
	return Config{
		HTTPAddr:   ":8080",
		BatchSize:  100,
		QueryLimit: 100,
		LogLevel:   "info",
		LogFormat:  "console",
	}
}

// Load layers environment variables (HTTP_ADDR, DB_URL, BATCH_SIZE,
// QUERY_LIMIT, API_KEYS, LOG_LEVEL, LOG_FORMAT) over built-in defaults.
// API_KEYS is a comma-separated list.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, err
	}

	// HTTP_ADDR -> http_addr etc.
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}

	// Comma lists arrive from the environment as one string.
	cfg.APIKeys = splitList(k.String("api_keys"))

	if cfg.BatchSize <= 0 {
		return Config{}, errors.New("BATCH_SIZE must be positive")
	}
	if cfg.QueryLimit <= 0 {
		return Config{}, errors.New("QUERY_LIMIT must be positive")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
