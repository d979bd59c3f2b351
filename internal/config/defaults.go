package config

import "time"

// ApplyDefaults fills every unset field of cfg with its platform default.
// It never overrides a value that is already set.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MinConns == 0 {
		cfg.Database.MinConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "termlens"
	}
	if cfg.Redis.EmbeddingTTL == 0 {
		cfg.Redis.EmbeddingTTL = 7 * 24 * time.Hour
	}

	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "termlens-worker"
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.ProducerRetries == 0 {
		cfg.Kafka.ProducerRetries = 3
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 100 * time.Millisecond
	}

	if cfg.Milvus.DBName == "" {
		cfg.Milvus.DBName = "default"
	}
	if cfg.Milvus.EmbeddingDim == 0 {
		cfg.Milvus.EmbeddingDim = 1536
	}
	if cfg.Milvus.IndexType == "" {
		cfg.Milvus.IndexType = "HNSW"
	}
	if cfg.Milvus.DefaultTopK == 0 {
		cfg.Milvus.DefaultTopK = 100
	}
	if cfg.Milvus.CollectionPrefix == "" {
		cfg.Milvus.CollectionPrefix = "termlens"
	}

	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "termlens-exports"
	}

	if cfg.OpenSearch.IndexPrefix == "" {
		cfg.OpenSearch.IndexPrefix = "termlens"
	}

	if cfg.Intelligence.Embedding.Model == "" {
		cfg.Intelligence.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Intelligence.Embedding.Dimensions == 0 {
		cfg.Intelligence.Embedding.Dimensions = 1536
	}
	if cfg.Intelligence.Embedding.Timeout == 0 {
		cfg.Intelligence.Embedding.Timeout = 30 * time.Second
	}

	if cfg.Intelligence.Annotator.Model == "" {
		cfg.Intelligence.Annotator.Model = "gpt-4o-mini"
	}
	if cfg.Intelligence.Annotator.Temperature == 0 {
		cfg.Intelligence.Annotator.Temperature = 0.3
	}
	if cfg.Intelligence.Annotator.MaxTokens == 0 {
		cfg.Intelligence.Annotator.MaxTokens = 1024
	}
	if cfg.Intelligence.Annotator.Timeout == 0 {
		cfg.Intelligence.Annotator.Timeout = 60 * time.Second
	}

	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Worker.HandlerTimeout == 0 {
		cfg.Worker.HandlerTimeout = 10 * time.Minute
	}
	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = 8081
	}
	if cfg.Worker.HeartbeatInterval == 0 {
		cfg.Worker.HeartbeatInterval = 30 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stdout"}
	}
	if len(cfg.Log.ErrorOutputPaths) == 0 {
		cfg.Log.ErrorOutputPaths = []string{"stderr"}
	}
}
