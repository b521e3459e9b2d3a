package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8480, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, 1536, cfg.Storage.Dimension)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.GraphEnabled())
	assert.False(t, cfg.MediaEnabled())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("AGENTMEMZ_PORT", "9000")
	t.Setenv("AGENTMEMZ_STORAGE_ENGINE", "postgres")
	t.Setenv("AGENTMEMZ_POSTGRES_DSN", "postgres://localhost/memz")
	t.Setenv("AGENTMEMZ_EMBEDDING_DIMENSION", "768")
	t.Setenv("AGENTMEMZ_NEO4J_URI", "bolt://localhost:7687")
	t.Setenv("AGENTMEMZ_MINIO_USE_SSL", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Engine)
	assert.Equal(t, "postgres://localhost/memz", cfg.Storage.PostgresDSN)
	assert.Equal(t, 768, cfg.Storage.Dimension)
	assert.True(t, cfg.GraphEnabled())
	assert.True(t, cfg.Minio.UseSSL)
}

func TestLoadConfigBadIntFallsBack(t *testing.T) {
	t.Setenv("AGENTMEMZ_PORT", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8480, cfg.Server.Port)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 7000
storage:
  engine: postgres
  postgres_dsn: postgres://file-host/memz
  dimension: 512
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	// Environment still wins over file values.
	t.Setenv("AGENTMEMZ_POSTGRES_DSN", "postgres://env-host/memz")

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Engine)
	assert.Equal(t, "postgres://env-host/memz", cfg.Storage.PostgresDSN)
	assert.Equal(t, 512, cfg.Storage.Dimension)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadConfigFromFileMissing(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	cfg.Storage.Engine = "postgres"
	cfg.Storage.PostgresDSN = ""
	assert.Error(t, cfg.Validate())

	cfg.Storage.Engine = "mystery"
	assert.Error(t, cfg.Validate())

	cfg.Storage.Engine = "sqlite"
	cfg.Storage.Dimension = 0
	assert.Error(t, cfg.Validate())
}
