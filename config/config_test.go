package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "fern", cfg.AppName)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "PRODUCT", cfg.SchemaOwnerType)
	assert.Equal(t, 250, cfg.SchemaPageSize)
	assert.Equal(t, 50, cfg.SchemaChunkSize)
	assert.Equal(t, "2026-01", cfg.APIVersion)
	assert.Equal(t, 168*time.Hour, cfg.RedisStatusTTL)
	assert.Equal(t, "db/pg", cfg.DatabaseMigrationFolderPath)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.MasterKey)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DSI_MASTER_KEY", "secret")
	t.Setenv("SCHEMA_CHUNK_SIZE", "10")
	t.Setenv("CHUNK_TX_TIMEOUT", "5s")
	t.Setenv("SHOPIFY_SHOP_DOMAIN", "demo.myshopify.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.MasterKey)
	assert.Equal(t, 10, cfg.SchemaChunkSize)
	assert.Equal(t, 5*time.Second, cfg.ChunkTxTimeout)
	assert.Equal(t, "demo.myshopify.com", cfg.ShopDomain)
}

func TestLoad_DotEnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("KAFKA_TOPIC=from-file\nKAFKA_ENABLED=true\n"), 0o600))
	t.Setenv("KAFKA_TOPIC", "from-env")
	// godotenv.Load sets variables for the whole process
	t.Setenv("KAFKA_ENABLED", "")
	os.Unsetenv("KAFKA_ENABLED")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.KafkaTopic)
	assert.True(t, cfg.KafkaEnabled)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"page size above max": {"SCHEMA_PAGE_SIZE", "500"},
		"zero chunk size":     {"SCHEMA_CHUNK_SIZE", "0"},
		"bad log level":       {"LOG_LEVEL", "loud"},
		"bad otlp protocol":   {"OTLP_PROTOCOL", "udp"},
		"bad base url":        {"SHOPIFY_ADMIN_BASE_URL", "not a url"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
