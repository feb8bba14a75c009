package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3://hrrrzarr?region=us-west-1", cfg.BucketURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 8, cfg.FetchConcurrency)
	assert.Equal(t, 256, cfg.ChunkCacheSize)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "hrrr-run-events", cfg.KafkaTopic)
	assert.Equal(t, time.Minute, cfg.WatchInterval)
	assert.Equal(t, []string{"anl"}, cfg.WatchKinds)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("BUCKET_URL", "file:///data/hrrr?metadata=skip")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("FETCH_CONCURRENCY", "16")
	t.Setenv("CHUNK_CACHE_SIZE", "1024")
	t.Setenv("REQUEST_TIMEOUT", "5m")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-runs")
	t.Setenv("WATCH_INTERVAL", "30s")
	t.Setenv("WATCH_KINDS", "anl,fcst")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file:///data/hrrr?metadata=skip", cfg.BucketURL)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 16, cfg.FetchConcurrency)
	assert.Equal(t, 1024, cfg.ChunkCacheSize)
	assert.Equal(t, 5*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-runs", cfg.KafkaTopic)
	assert.Equal(t, 30*time.Second, cfg.WatchInterval)
	assert.Equal(t, []string{"anl", "fcst"}, cfg.WatchKinds)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidFetchConcurrency(t *testing.T) {
	t.Setenv("FETCH_CONCURRENCY", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_CONCURRENCY")
}

func TestLoad_FetchConcurrencyTooLarge(t *testing.T) {
	t.Setenv("FETCH_CONCURRENCY", "999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_CONCURRENCY")
}

func TestLoad_InvalidChunkCacheSize(t *testing.T) {
	t.Setenv("CHUNK_CACHE_SIZE", "not-a-number")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_CACHE_SIZE")
}

func TestLoad_WatchIntervalTooShort(t *testing.T) {
	t.Setenv("WATCH_INTERVAL", "100ms")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WATCH_INTERVAL")
}

func TestLoad_UnknownWatchKind(t *testing.T) {
	t.Setenv("WATCH_KINDS", "anl,hourly")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WATCH_KINDS")
}

func TestLoad_BrokersWithSpaces(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " broker1:9092 , broker2:9092 ")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}
