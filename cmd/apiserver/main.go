// API server entry point for TermLens. Accepts term batches over HTTP,
// persists them, and hands analysis off to the worker via Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vantagelab/termlens/internal/application/analysis"
	"github.com/vantagelab/termlens/internal/config"
	"github.com/vantagelab/termlens/internal/infrastructure/database/postgres"
	"github.com/vantagelab/termlens/internal/infrastructure/database/postgres/repositories"
	"github.com/vantagelab/termlens/internal/infrastructure/database/redis"
	"github.com/vantagelab/termlens/internal/infrastructure/messaging/kafka"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/vantagelab/termlens/internal/infrastructure/monitoring/prometheus"
	"github.com/vantagelab/termlens/internal/infrastructure/search/milvus"
	"github.com/vantagelab/termlens/internal/infrastructure/search/opensearch"
	"github.com/vantagelab/termlens/internal/infrastructure/storage/minio"
	"github.com/vantagelab/termlens/internal/intelligence/annotator"
	"github.com/vantagelab/termlens/internal/intelligence/embedding"
	httpserver "github.com/vantagelab/termlens/internal/interfaces/http"
	"github.com/vantagelab/termlens/internal/interfaces/http/handlers"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: "+defaultConfigPath+", falling back to TERMLENS_* env)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("apiserver")
	logger.Info("starting termlens API server", logging.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := prommetrics.NewMetrics(registry)

	// Database.
	if err := postgres.RunMigrations(postgres.DSN(cfg.Database), cfg.Database.MigrationPath); err != nil {
		logger.Fatal("migrations failed", logging.Err(err))
	}
	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database connection failed", logging.Err(err))
	}
	defer pool.Close()

	termRepo := repositories.NewTermRepository(pool, logger)
	snapshotRepo := repositories.NewSnapshotRepository(pool, logger)
	runRepo := repositories.NewRunRepository(pool, logger)
	clusterRepo := repositories.NewClusterRepository(pool, logger)

	// Cache.
	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis connection failed", logging.Err(err))
	}
	defer redisClient.Close()
	embCache := redis.NewEmbeddingCache(redisClient, cfg.Redis.KeyPrefix,
		cfg.Intelligence.Embedding.Model, cfg.Intelligence.Embedding.Dimensions,
		cfg.Redis.EmbeddingTTL, logger)

	// Messaging.
	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("kafka producer failed", logging.Err(err))
	}
	defer producer.Close()

	// Intelligence.
	provider, err := embedding.NewOpenAIProvider(cfg.Intelligence.Embedding, logger)
	if err != nil {
		logger.Fatal("embedding provider failed", logging.Err(err))
	}
	batcher := embedding.NewBatcher(provider, embCache, metrics, logger)
	llm, err := annotator.NewLLMClient(cfg.Intelligence.Annotator, metrics, logger)
	if err != nil {
		logger.Fatal("annotator client failed", logging.Err(err))
	}

	pipeline := analysis.NewPipeline(analysis.PipelineDeps{
		Embedder:  batcher,
		Annotator: llm,
		Describer: llm,
		Logger:    logger,
	})

	deps := analysis.Deps{
		Pipeline:  pipeline,
		Terms:     termRepo,
		Snapshots: snapshotRepo,
		Runs:      runRepo,
		Clusters:  clusterRepo,
		Events:    producer,
		Metrics:   metrics,
		Logger:    logger,
	}

	// Enrichment backends are optional: the API degrades without them.
	if cfg.OpenSearch.Addresses != nil {
		indexer, err := opensearch.NewIndexer(ctx, cfg.OpenSearch, logger)
		if err != nil {
			logger.Warn("opensearch unavailable, cluster indexing disabled", logging.Err(err))
		} else {
			deps.Indexer = indexer
		}
	}
	if cfg.Milvus.Addr != "" {
		vectors, err := milvus.NewVectorStore(ctx, cfg.Milvus, logger)
		if err != nil {
			logger.Warn("milvus unavailable, vector archiving disabled", logging.Err(err))
		} else {
			deps.Vectors = vectors
			defer vectors.Close()
		}
	}
	if cfg.MinIO.Endpoint != "" {
		exports, err := minio.NewExportStore(ctx, cfg.MinIO, logger)
		if err != nil {
			logger.Warn("minio unavailable, result archiving disabled", logging.Err(err))
		} else {
			deps.Exports = exports
		}
	}

	service := analysis.NewService(deps)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Analysis: handlers.NewAnalysisHandler(service),
		Health: handlers.NewHealthHandler(
			handlers.HealthCheck{Name: "postgres", Check: pool.Ping},
			handlers.HealthCheck{Name: "redis", Check: redisClient.Ping},
		),
		Logger:   logger,
		Metrics:  metrics,
		Registry: registry,
		Mode:     cfg.Server.Mode,
	})

	server := httpserver.NewServer(cfg.Server, router, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown error", logging.Err(err))
	}
	logger.Info("server stopped")
}

// loadConfig resolves the configuration source: an explicit file, the
// conventional file when present, or environment variables.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}
	return config.LoadFromEnv()
}
