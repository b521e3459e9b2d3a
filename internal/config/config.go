// Package config provides configuration management for Agent Memz.
// Settings come from environment variables with the AGENTMEMZ_ prefix, with
// sensible defaults for everything, optionally seeded from a YAML file
// (environment variables take precedence over file values).
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the memory service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Redis     RedisConfig     `yaml:"redis"`
	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	Minio     MinioConfig     `yaml:"minio"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"` // default: 127.0.0.1
	Port int    `yaml:"port"` // default: 8480
}

// StorageConfig contains durable store configuration.
type StorageConfig struct {
	// Engine selects the fact store backend: sqlite or postgres.
	Engine      string `yaml:"engine"`
	PostgresDSN string `yaml:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path"`

	// Dimension is the fixed embedding dimensionality per deployment.
	Dimension int `yaml:"dimension"`
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	OpenAIAPIKey      string  `yaml:"openai_api_key"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 disables rate limiting
}

// RedisConfig contains cache backend configuration. When Addr is empty the
// service falls back to the in-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Neo4jConfig contains graph overlay configuration. The overlay is optional;
// it is enabled only when URI is set.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// MinioConfig contains audio blob storage configuration. Optional; enabled
// only when Endpoint is set.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // default: info
}

// LoadConfig loads configuration from environment variables with defaults.
// All environment variables use the AGENTMEMZ_ prefix.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	applyEnv(cfg)
	return cfg, nil
}

// LoadConfigFromFile seeds configuration from a YAML file, then lets
// environment variables override individual values.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// defaultConfig returns the built-in defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8480,
		},
		Storage: StorageConfig{
			Engine:     "sqlite",
			SQLitePath: "./data/agentmemz.db",
			Dimension:  1536,
		},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Neo4j: Neo4jConfig{
			Username: "neo4j",
		},
		Minio: MinioConfig{
			Bucket: "agentmemz-audio",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyEnv overrides cfg fields from AGENTMEMZ_ environment variables where
// set.
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("AGENTMEMZ_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("AGENTMEMZ_PORT", cfg.Server.Port)

	cfg.Storage.Engine = getEnv("AGENTMEMZ_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.PostgresDSN = getEnv("AGENTMEMZ_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.SQLitePath = getEnv("AGENTMEMZ_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.Dimension = getEnvInt("AGENTMEMZ_EMBEDDING_DIMENSION", cfg.Storage.Dimension)

	cfg.Embedding.OpenAIAPIKey = getEnv("AGENTMEMZ_OPENAI_API_KEY", cfg.Embedding.OpenAIAPIKey)
	cfg.Embedding.Model = getEnv("AGENTMEMZ_EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.BaseURL = getEnv("AGENTMEMZ_EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.RequestsPerSecond = getEnvFloat("AGENTMEMZ_EMBEDDING_RPS", cfg.Embedding.RequestsPerSecond)

	cfg.Redis.Addr = getEnv("AGENTMEMZ_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("AGENTMEMZ_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("AGENTMEMZ_REDIS_DB", cfg.Redis.DB)

	cfg.Neo4j.URI = getEnv("AGENTMEMZ_NEO4J_URI", cfg.Neo4j.URI)
	cfg.Neo4j.Username = getEnv("AGENTMEMZ_NEO4J_USERNAME", cfg.Neo4j.Username)
	cfg.Neo4j.Password = getEnv("AGENTMEMZ_NEO4J_PASSWORD", cfg.Neo4j.Password)
	cfg.Neo4j.Database = getEnv("AGENTMEMZ_NEO4J_DATABASE", cfg.Neo4j.Database)

	cfg.Minio.Endpoint = getEnv("AGENTMEMZ_MINIO_ENDPOINT", cfg.Minio.Endpoint)
	cfg.Minio.AccessKey = getEnv("AGENTMEMZ_MINIO_ACCESS_KEY", cfg.Minio.AccessKey)
	cfg.Minio.SecretKey = getEnv("AGENTMEMZ_MINIO_SECRET_KEY", cfg.Minio.SecretKey)
	cfg.Minio.Bucket = getEnv("AGENTMEMZ_MINIO_BUCKET", cfg.Minio.Bucket)
	cfg.Minio.UseSSL = getEnvBool("AGENTMEMZ_MINIO_USE_SSL", cfg.Minio.UseSSL)

	cfg.Logging.Level = getEnv("AGENTMEMZ_LOG_LEVEL", cfg.Logging.Level)
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("config: sqlite_path is required for the sqlite engine")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: postgres_dsn is required for the postgres engine")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Storage.Dimension <= 0 {
		return fmt.Errorf("config: embedding dimension must be positive, got %d", c.Storage.Dimension)
	}
	return nil
}

// GraphEnabled reports whether the optional graph overlay is configured.
func (c *Config) GraphEnabled() bool {
	return c.Neo4j.URI != ""
}

// MediaEnabled reports whether the optional audio blob store is configured.
func (c *Config) MediaEnabled() bool {
	return c.Minio.Endpoint != ""
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
