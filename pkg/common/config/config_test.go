package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("STATUS_POLL_INTERVAL", "")

	cfg := Load()
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, 5*time.Second, cfg.StatusPollInterval)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://backend:9000")
	t.Setenv("STATUS_POLL_INTERVAL", "250ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	assert.Equal(t, "http://backend:9000", cfg.BackendURL)
	assert.Equal(t, 250*time.Millisecond, cfg.StatusPollInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.MinIOUseSSL)
	assert.Equal(t, 0, cfg.RedisDB)
}
