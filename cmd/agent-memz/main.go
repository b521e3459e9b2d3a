// Command agent-memz runs the fact memory service: embedding cache, fact
// store with similarity search, access tracking, optional graph overlay and
// audio blob storage, exposed over a JSON HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/cache"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/config"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/embedding"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/engine"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/graph"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/media"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/server"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/storage"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/storage/postgres"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	log := logrus.New()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cache: Redis when reachable, in-process fallback otherwise. The cache
	// is a performance layer, so a missing Redis degrades latency, not
	// correctness.
	var kv cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.WithError(err).Warn("redis unreachable, using in-process cache")
			kv = cache.NewMemoryCache()
		} else {
			kv = redisCache
		}
	} else {
		kv = cache.NewMemoryCache()
	}
	defer func() { _ = kv.Close() }()

	// Durable fact store.
	var facts storage.FactStore
	var conversations storage.ConversationStore
	switch cfg.Storage.Engine {
	case "postgres":
		pgStore, err := postgres.NewFactStore(cfg.Storage.PostgresDSN, cfg.Storage.Dimension)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize postgres store")
		}
		facts = pgStore
		conversations = postgres.NewConversationStore(pgStore.GetDB())
	case "sqlite":
		sqliteStore, err := sqlite.NewFactStore(cfg.Storage.SQLitePath, cfg.Storage.Dimension)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize sqlite store")
		}
		sqliteStore.SetLogger(log)
		facts = sqliteStore
	}
	defer func() { _ = facts.Close() }()

	// Embedding provider behind rate limiting, a circuit breaker, and the
	// cache-backed memoization layer.
	provider := embedding.NewOpenAIClient(embedding.OpenAIConfig{
		APIKey:            cfg.Embedding.OpenAIAPIKey,
		Model:             cfg.Embedding.Model,
		BaseURL:           cfg.Embedding.BaseURL,
		Dimension:         cfg.Storage.Dimension,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})
	embedder := embedding.NewCachedGenerator(provider, kv, log)

	// Optional graph overlay.
	var graphStore graph.Store
	if cfg.GraphEnabled() {
		neo4jStore, err := graph.NewNeo4jStore(ctx, graph.Neo4jConfig{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to initialize graph store")
		}
		graphStore = neo4jStore
		defer func() { _ = neo4jStore.Close(context.Background()) }()
	}

	// Optional audio blob store.
	var audio server.AudioStore
	if cfg.MediaEnabled() {
		mediaStore, err := media.NewStore(ctx, media.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to initialize media store")
		}
		audio = mediaStore
	}

	eng, err := engine.New(engine.Deps{
		Facts:         facts,
		Conversations: conversations,
		Graph:         graphStore,
		Embedder:      embedder,
		Cache:         kv,
		Logger:        log,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialize engine")
	}

	srv := server.New(eng, audio, log)
	addr, err := srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
	log.WithField("addr", addr).Info("agent-memz running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfigFromFile(path)
	}
	if envPath := os.Getenv("AGENTMEMZ_CONFIG_FILE"); envPath != "" {
		return config.LoadConfigFromFile(envPath)
	}
	return config.LoadConfig()
}
