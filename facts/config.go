package facts

import (
	"os"
	"strconv"
	"time"
)

type StorageConfig struct {
	Dialect string
}

type Config struct {
	Storage StorageConfig

	// In-process critical-facts cache.
	CacheSize int
	CacheTTL  time.Duration

	RecallLimit int

	IngestWorkers   int
	IngestQueueSize int

	// Fact keys rendered in the prompt block. Required keys always appear
	// (with a placeholder when missing); optional keys appear when present.
	RequiredFacts []string
	OptionalFacts []string
}

func newConfig() *Config {
	c := &Config{
		CacheSize:       envInt("FACTMEM_CACHE_SIZE", 256),
		CacheTTL:        envDuration("FACTMEM_CACHE_TTL", 5*time.Minute),
		RecallLimit:     envInt("FACTMEM_RECALL_LIMIT", 5),
		IngestWorkers:   envInt("FACTMEM_INGEST_WORKERS", 8),
		IngestQueueSize: envInt("FACTMEM_INGEST_QUEUE", 1000),
		RequiredFacts:   []string{"name", "pets"},
		OptionalFacts:   []string{"family", "work", "location"},
	}
	return c
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
