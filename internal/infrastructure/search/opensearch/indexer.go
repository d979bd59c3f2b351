// Package opensearch makes finished runs searchable: each cluster becomes a
// document carrying its title, terms, tags, and score so analysts can query
// results without touching the relational store.
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v3"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/vantagelab/termlens/internal/application/analysis"
	"github.com/vantagelab/termlens/internal/config"
	"github.com/vantagelab/termlens/internal/domain/cluster"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/pkg/errors"
)

const indexSuffix = "clusters"

// clusterDocument is the indexed projection of a cluster.
type clusterDocument struct {
	RunID     string        `json:"run_id"`
	ClusterID int           `json:"cluster_id"`
	Level     int           `json:"level"`
	Score     int           `json:"score"`
	Title     string        `json:"title,omitempty"`
	Summary   string        `json:"summary,omitempty"`
	Terms     []string      `json:"terms"`
	Tags      []cluster.Tag `json:"tags,omitempty"`
	IndexedAt time.Time     `json:"indexed_at"`
}

const clusterMapping = `{
	"mappings": {
		"properties": {
			"run_id":     {"type": "keyword"},
			"cluster_id": {"type": "integer"},
			"level":      {"type": "integer"},
			"score":      {"type": "integer"},
			"title":      {"type": "text"},
			"summary":    {"type": "text"},
			"terms":      {"type": "text"},
			"tags": {
				"properties": {
					"category":   {"type": "keyword"},
					"value":      {"type": "keyword"},
					"confidence": {"type": "float"}
				}
			},
			"indexed_at": {"type": "date"}
		}
	}
}`

// Indexer bulk-indexes cluster documents into a single index shared across
// runs.
type Indexer struct {
	client *opensearchapi.Client
	index  string
	logger logging.Logger
	now    func() time.Time
}

var _ analysis.ClusterIndexer = (*Indexer)(nil)

// NewIndexer connects to OpenSearch and ensures the cluster index exists.
func NewIndexer(ctx context.Context, cfg config.OpenSearchConfig, logger logging.Logger) (*Indexer, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "opensearch addresses are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	var transport http.RoundTripper
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.User,
			Password:  cfg.Password,
			Transport: transport,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "create opensearch client")
	}

	idx := &Indexer{
		client: client,
		index:  cfg.IndexPrefix + indexSuffix,
		logger: logger.Named("opensearch"),
		now:    time.Now,
	}
	if err := idx.ensureIndex(ctx); err != nil {
		return nil, err
	}
	logger.Info("opensearch indexer ready", logging.String("index", idx.index))
	return idx, nil
}

func (i *Indexer) ensureIndex(ctx context.Context) error {
	_, err := i.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: i.index,
		Body:  strings.NewReader(clusterMapping),
	})
	if err != nil {
		if strings.Contains(err.Error(), "resource_already_exists_exception") {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeExternalService, "create cluster index")
	}
	return nil
}

// IndexClusters writes one document per cluster in a single bulk request.
func (i *Indexer) IndexClusters(ctx context.Context, runID string, clusters []*cluster.Cluster) error {
	if len(clusters) == 0 {
		return nil
	}

	var buf bytes.Buffer
	indexedAt := i.now().UTC()
	for _, c := range clusters {
		action := map[string]map[string]string{
			"index": {
				"_index": i.index,
				"_id":    fmt.Sprintf("%s:%d", runID, c.ID),
			},
		}
		doc := clusterDocument{
			RunID:     runID,
			ClusterID: c.ID,
			Level:     c.Level,
			Score:     c.Score,
			Title:     c.Title,
			Summary:   c.Summary,
			Terms:     c.TermTexts(),
			Tags:      c.Tags,
			IndexedAt: indexedAt,
		}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "encode bulk action")
		}
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "encode cluster document")
		}
	}

	resp, err := i.client.Bulk(ctx, opensearchapi.BulkReq{Body: &buf})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "bulk index clusters")
	}
	if resp.Errors {
		return errors.New(errors.ErrCodeExternalService, "bulk indexing reported item failures")
	}
	i.logger.Debug("clusters indexed",
		logging.String("run_id", runID),
		logging.Int("count", len(clusters)))
	return nil
}
