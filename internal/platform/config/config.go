package config

import (
	"os"
	"strconv"
	"time"
)

// Engine captures everything the audit engine needs from the environment so
// main stays lean.
type Engine struct {
	Addr string

	// Remote system of record. Empty RemoteBaseURL runs against the built-in
	// mock client (development and tests).
	RemoteBaseURL  string
	RequestTimeout time.Duration

	// Write pipeline.
	MaxRetry    int
	BackoffStep time.Duration

	// Bulk coordinator pacing.
	ChunkSize     int
	DelayAfterOK  time.Duration
	DelayAfterErr time.Duration

	// Offline queue.
	QueueCapacity int

	// Session history cap (newest first).
	HistoryLimit int

	Redis    RedisConfig
	Postgres PostgresConfig
}

// RedisConfig controls the optional Redis-backed stores.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig controls the optional audit archive store.
type PostgresConfig struct {
	URL string
}

// FromEnv builds the engine config from environment variables with defaults
// matching the documented contract.
func FromEnv() Engine {
	return Engine{
		Addr:           envStr("STOCKTAKE_ADDR", ":8080"),
		RemoteBaseURL:  os.Getenv("STOCKTAKE_REMOTE_URL"),
		RequestTimeout: envDur("STOCKTAKE_REQUEST_TIMEOUT", 20*time.Second),
		MaxRetry:       envInt("STOCKTAKE_MAX_RETRY", 3),
		BackoffStep:    envDur("STOCKTAKE_BACKOFF_STEP", 400*time.Millisecond),
		ChunkSize:      envInt("STOCKTAKE_CHUNK_SIZE", 20),
		DelayAfterOK:   envDur("STOCKTAKE_BULK_DELAY", 300*time.Millisecond),
		DelayAfterErr:  envDur("STOCKTAKE_BULK_DELAY_FAIL", 250*time.Millisecond),
		QueueCapacity:  envInt("STOCKTAKE_QUEUE_CAPACITY", 250),
		HistoryLimit:   envInt("STOCKTAKE_HISTORY_LIMIT", 50),
		Redis: RedisConfig{
			URL:          os.Getenv("STOCKTAKE_REDIS_URL"),
			PoolSize:     envInt("STOCKTAKE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("STOCKTAKE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDur("STOCKTAKE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDur("STOCKTAKE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDur("STOCKTAKE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("STOCKTAKE_POSTGRES_URL"),
		},
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
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
