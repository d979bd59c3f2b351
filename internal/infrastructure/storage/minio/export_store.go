// Package minio archives finished run results as downloadable JSON objects.
package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vantagelab/termlens/internal/application/analysis"
	"github.com/vantagelab/termlens/internal/config"
	"github.com/vantagelab/termlens/internal/domain/cluster"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/pkg/errors"
)

// objectAPI is the slice of minio.Client the store uses, abstracted for
// testing.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// exportPayload is the serialized result object.
type exportPayload struct {
	RunID      string             `json:"run_id"`
	ExportedAt time.Time          `json:"exported_at"`
	Clusters   []*cluster.Cluster `json:"clusters"`
}

// ExportStore writes one JSON object per run under results/<run_id>.json.
type ExportStore struct {
	api    objectAPI
	bucket string
	logger logging.Logger
	now    func() time.Time
}

var _ analysis.ExportStore = (*ExportStore)(nil)

// NewExportStore connects to the object store and ensures the bucket exists.
func NewExportStore(ctx context.Context, cfg config.MinIOConfig, logger logging.Logger) (*ExportStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio bucket is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "create minio client")
	}

	s := &ExportStore{
		api:    client,
		bucket: cfg.Bucket,
		logger: logger.Named("minio"),
		now:    time.Now,
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	logger.Info("export store ready", logging.String("bucket", cfg.Bucket))
	return s, nil
}

func (s *ExportStore) ensureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "check bucket")
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "create bucket")
	}
	return nil
}

// StoreResult serializes the run's clusters and uploads them as one object.
func (s *ExportStore) StoreResult(ctx context.Context, runID string, clusters []*cluster.Cluster) error {
	payload := exportPayload{
		RunID:      runID,
		ExportedAt: s.now().UTC(),
		Clusters:   clusters,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal export payload")
	}

	objectName := fmt.Sprintf("results/%s.json", runID)
	_, err = s.api.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "upload export object")
	}
	s.logger.Debug("run result archived",
		logging.String("run_id", runID),
		logging.String("object", objectName),
		logging.Int("bytes", len(data)))
	return nil
}
