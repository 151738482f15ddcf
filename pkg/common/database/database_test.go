package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/radiology-console/pkg/common/config"
)

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{
		PostgresHost:     "db",
		PostgresPort:     "5433",
		PostgresUser:     "u",
		PostgresPassword: "p",
		PostgresDB:       "radiology",
		PostgresSSLMode:  "require",
	}
	assert.Equal(t, "host=db user=u password=p dbname=radiology port=5433 sslmode=require", PostgresDSN(cfg))
}

func TestCloseWithoutConnections(t *testing.T) {
	assert.NoError(t, ClosePostgres())
	assert.NoError(t, CloseRedis())
}

func TestRedisOptions(t *testing.T) {
	opts := RedisOptions(&config.Config{RedisHost: "cache", RedisPort: "6380", RedisPassword: "secret", RedisDB: 2})
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Positive(t, opts.DialTimeout)
	assert.Positive(t, opts.ReadTimeout)
}

func TestGetRedisUnreachableStillReturnsClient(t *testing.T) {
	cfg := &config.Config{RedisHost: "127.0.0.1", RedisPort: "1"}
	client := GetRedis(cfg)
	require.NotNil(t, client)
	assert.Same(t, client, GetRedis(cfg))

	require.NoError(t, CloseRedis())
	reopened := GetRedis(cfg)
	assert.NotSame(t, client, reopened)
	require.NoError(t, CloseRedis())
}
