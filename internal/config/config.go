package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	BucketURL       string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Archive read tuning.
	FetchConcurrency int
	ChunkCacheSize   int
	RequestTimeout   time.Duration

	// Run availability events.
	KafkaBrokers []string
	KafkaTopic   string

	// Run watcher configuration.
	WatchInterval time.Duration
	WatchKinds    []string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	watchInterval, err := parseDuration("WATCH_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	fetchConcurrency, err := parseInt("FETCH_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseInt("CHUNK_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BucketURL:       envOrDefault("BUCKET_URL", "s3://hrrrzarr?region=us-west-1"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FetchConcurrency: fetchConcurrency,
		ChunkCacheSize:   cacheSize,
		RequestTimeout:   requestTimeout,

		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "hrrr-run-events"),

		WatchInterval: watchInterval,
		WatchKinds:    splitList(envOrDefault("WATCH_KINDS", "anl")),
	}

	if cfg.BucketURL == "" {
		return nil, errors.New("BUCKET_URL is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}
	if cfg.FetchConcurrency < 1 || cfg.FetchConcurrency > 64 {
		return nil, errors.New("FETCH_CONCURRENCY must be between 1 and 64")
	}
	if cfg.WatchInterval < time.Second {
		return nil, errors.New("WATCH_INTERVAL must be at least 1s")
	}
	for _, kind := range cfg.WatchKinds {
		if kind != "anl" && kind != "fcst" {
			return nil, fmt.Errorf("WATCH_KINDS: unknown kind %q", kind)
		}
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	return splitList(s)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}
