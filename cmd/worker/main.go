// Worker entry point for TermLens. Consumes analysis requests from Kafka and
// drives the clustering pipeline for each pending run.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

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
	"github.com/vantagelab/termlens/pkg/errors"
)

const (
	defaultConfigPath     = "configs/config.yaml"
	defaultConcurrency    = 2
	defaultHandlerTimeout = 10 * time.Minute
	defaultHealthPort     = 8081
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: "+defaultConfigPath+", falling back to TERMLENS_* env)")
	concurrency := flag.Int("concurrency", 0, "number of concurrent consumers (overrides config)")
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
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("worker")

	workers := cfg.Worker.Concurrency
	if *concurrency > 0 {
		workers = *concurrency
	}
	if workers <= 0 {
		workers = defaultConcurrency
	}
	handlerTimeout := cfg.Worker.HandlerTimeout
	if handlerTimeout <= 0 {
		handlerTimeout = defaultHandlerTimeout
	}
	logger.Info("starting termlens worker",
		logging.Int("concurrency", workers),
		logging.Duration("handler_timeout", handlerTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := prommetrics.NewMetrics(registry)

	// Database. Migrations are idempotent, so whichever process starts
	// first applies them.
	if err := postgres.RunMigrations(postgres.DSN(cfg.Database), cfg.Database.MigrationPath); err != nil {
		logger.Fatal("migrations failed", logging.Err(err))
	}
	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database connection failed", logging.Err(err))
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis connection failed", logging.Err(err))
	}
	defer redisClient.Close()
	embCache := redis.NewEmbeddingCache(redisClient, cfg.Redis.KeyPrefix,
		cfg.Intelligence.Embedding.Model, cfg.Intelligence.Embedding.Dimensions,
		cfg.Redis.EmbeddingTTL, logger)

	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("kafka producer failed", logging.Err(err))
	}
	defer producer.Close()

	provider, err := embedding.NewOpenAIProvider(cfg.Intelligence.Embedding, logger)
	if err != nil {
		logger.Fatal("embedding provider failed", logging.Err(err))
	}
	llm, err := annotator.NewLLMClient(cfg.Intelligence.Annotator, metrics, logger)
	if err != nil {
		logger.Fatal("annotator client failed", logging.Err(err))
	}

	pipeline := analysis.NewPipeline(analysis.PipelineDeps{
		Embedder:  embedding.NewBatcher(provider, embCache, metrics, logger),
		Annotator: llm,
		Describer: llm,
		Logger:    logger,
	})

	deps := analysis.Deps{
		Pipeline:  pipeline,
		Terms:     repositories.NewTermRepository(pool, logger),
		Snapshots: repositories.NewSnapshotRepository(pool, logger),
		Runs:      repositories.NewRunRepository(pool, logger),
		Clusters:  repositories.NewClusterRepository(pool, logger),
		Events:    producer,
		Metrics:   metrics,
		Logger:    logger,
	}
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
	var processed atomic.Int64

	handler := func(ctx context.Context, req kafka.AnalysisRequestedPayload) error {
		runCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()
		_, err := service.Execute(runCtx, req.RunID)
		if err == nil {
			processed.Add(1)
			return nil
		}
		// Duplicate deliveries and vanished runs can never succeed on
		// retry; commit them instead of redelivering forever.
		if errors.IsCode(err, errors.ErrCodeRunAlreadyActive) || errors.IsCode(err, errors.ErrCodeRunNotFound) {
			logger.Warn("skipping non-retryable run",
				logging.String("run_id", req.RunID), logging.Err(err))
			return nil
		}
		return err
	}

	// Consumers in the same group split partitions between them.
	var wg sync.WaitGroup
	consumers := make([]*kafka.Consumer, 0, workers)
	for i := 0; i < workers; i++ {
		consumer, err := kafka.NewConsumer(cfg.Kafka, handler, logger)
		if err != nil {
			logger.Fatal("kafka consumer failed", logging.Err(err))
		}
		consumers = append(consumers, consumer)
		wg.Add(1)
		go func(id int, c *kafka.Consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				logger.Error("consumer stopped", logging.Int("consumer", id), logging.Err(err))
			}
		}(i, consumer)
	}

	healthSrv := startHealthServer(cfg, registry, logger)
	go heartbeat(ctx, cfg.Worker.HeartbeatInterval, &processed, logger)

	<-ctx.Done()
	logger.Info("shutdown signal received, draining consumers")

	for _, c := range consumers {
		if err := c.Close(); err != nil {
			logger.Error("consumer close error", logging.Err(err))
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("all consumers finished")
	case <-time.After(30 * time.Second):
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}
	logger.Info("worker stopped", logging.Int64("runs_processed", processed.Load()))
}

// heartbeat periodically logs liveness with the processed-run counter.
func heartbeat(ctx context.Context, interval time.Duration, processed *atomic.Int64, logger logging.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Debug("worker heartbeat", logging.Int64("runs_processed", processed.Load()))
		}
	}
}

func startHealthServer(cfg *config.Config, registry *prometheus.Registry, logger logging.Logger) *http.Server {
	port := cfg.Worker.HealthPort
	if port <= 0 {
		port = defaultHealthPort
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		logger.Info("health server listening", logging.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}
	return config.LoadFromEnv()
}
