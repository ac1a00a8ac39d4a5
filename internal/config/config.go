package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	PoolMaxConns       int
	PoolMinConns       int
	PoolMaxConnIdle    time.Duration
	PoolAcquireTimeout time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:               port,
		DatabaseURL:        os.Getenv("DB_DSN"),
		PoolMaxConns:       readInt("DB_POOL_MAX_CONNS", 10),
		PoolMinConns:       readInt("DB_POOL_MIN_CONNS", 2),
		PoolMaxConnIdle:    readDurationSeconds("DB_POOL_MAX_IDLE_SECONDS", 300),
		PoolAcquireTimeout: readDurationSeconds("DB_POOL_ACQUIRE_TIMEOUT_SECONDS", 5),
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
