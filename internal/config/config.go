package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort    string
	DatabaseURL string
	JWTSecret   string

	// Search index connection
	SearchAddresses []string
	SearchUsername  string
	SearchPassword  string
	SearchIndex     string
	SearchTimeout   time.Duration

	// Outbox relay
	RelayPollInterval time.Duration
	RelayBatchSize    int
	RelayLockTTL      time.Duration
	RelayStepTimeout  time.Duration
	ShardIndex        int
	ShardTotal        int
	WorkerHealthPort  string

	// Object storage for embedded media; empty bucket disables URL signing
	MediaBucket string
	MediaURLTTL time.Duration
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
		// Don't fail if .env is not present, might be in production
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set.")
	}

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: dbURL,
		JWTSecret:   getEnv("JWT_SECRET", "default-super-secret-key"), // CHANGE THIS IN PRODUCTION!

		SearchAddresses: splitList(getEnv("SEARCH_URL", "http://localhost:9200")),
		SearchUsername:  getEnv("SEARCH_USERNAME", ""),
		SearchPassword:  getEnv("SEARCH_PASSWORD", ""),
		SearchIndex:     getEnv("SEARCH_INDEX", "conversations"),
		SearchTimeout:   getEnvDuration("SEARCH_TIMEOUT_SECONDS", 10*time.Second),

		RelayPollInterval: getEnvDuration("RELAY_POLL_INTERVAL_SECONDS", 5*time.Second),
		RelayBatchSize:    getEnvInt("RELAY_BATCH_SIZE", 25),
		RelayLockTTL:      getEnvDuration("RELAY_LOCK_TTL_SECONDS", 60*time.Second),
		RelayStepTimeout:  getEnvDuration("RELAY_STEP_TIMEOUT_SECONDS", 10*time.Second),
		ShardIndex:        getEnvInt("SHARD_INDEX", 0),
		ShardTotal:        getEnvInt("SHARD_TOTAL", 1),
		WorkerHealthPort:  getEnv("WORKER_HEALTH_PORT", "8081"),

		MediaBucket: getEnv("MEDIA_BUCKET", ""),
		MediaURLTTL: getEnvDuration("MEDIA_URL_TTL_SECONDS", 15*time.Minute),
	}

	if cfg.ShardTotal < 1 {
		log.Printf("Warning: SHARD_TOTAL %d invalid, using 1", cfg.ShardTotal)
		cfg.ShardTotal = 1
	}
	if cfg.ShardIndex < 0 || cfg.ShardIndex >= cfg.ShardTotal {
		log.Fatalf("FATAL: SHARD_INDEX %d out of range for SHARD_TOTAL %d", cfg.ShardIndex, cfg.ShardTotal)
	}

	log.Printf("Loaded config: Port=%s, DB_URL=***, Index=%s, Shard=%d/%d, Poll=%s",
		cfg.HTTPPort, cfg.SearchIndex, cfg.ShardIndex, cfg.ShardTotal, cfg.RelayPollInterval)

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Env variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getEnvInt retrieves an integer environment variable or returns a default.
func getEnvInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s', using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return v
}

// getEnvDuration retrieves a seconds-valued environment variable as a duration.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		log.Printf("Warning: Invalid %s '%s', using default %s.", key, raw, fallback)
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
