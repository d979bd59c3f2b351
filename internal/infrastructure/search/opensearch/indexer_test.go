package opensearch

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opensearch-project/opensearch-go/v3"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagelab/termlens/internal/config"
	"github.com/vantagelab/termlens/internal/domain/cluster"
	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/vantagelab/termlens/pkg/errors"
)

type bulkCapture struct {
	path string
	body string
}

func newFakeSearch(t *testing.T, bulkResponse string, status int) (*httptest.Server, *bulkCapture) {
	t.Helper()
	capture := &bulkCapture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPut:
			w.Write([]byte(`{"acknowledged":true,"shards_acknowledged":true,"index":"termlens_clusters"}`))
		case strings.HasSuffix(r.URL.Path, "/_bulk"):
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			capture.path = r.URL.Path
			capture.body = string(body)
			w.WriteHeader(status)
			w.Write([]byte(bulkResponse))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, capture
}

func newTestIndexer(t *testing.T, serverURL string) *Indexer {
	t.Helper()
	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{Addresses: []string{serverURL}},
	})
	require.NoError(t, err)
	return &Indexer{
		client: client,
		index:  "termlens_clusters",
		logger: logging.NewNopLogger(),
		now:    func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func sampleClusters() []*cluster.Cluster {
	arena := cluster.NewArena()
	a := arena.NewLeaf([]term.Record{{Term: "wireless mouse"}, {Term: "bluetooth mouse"}})
	a.Score = 72
	a.Title = "Wireless mice"
	a.Tags = []cluster.Tag{{Category: "function", Value: "input", Confidence: 0.9}}
	b := arena.NewLeaf([]term.Record{{Term: "desk lamp"}})
	b.Score = 40
	return []*cluster.Cluster{a, b}
}

func TestIndexClustersBuildsBulkBody(t *testing.T) {
	server, capture := newFakeSearch(t, `{"took":5,"errors":false,"items":[]}`, http.StatusOK)
	idx := newTestIndexer(t, server.URL)

	require.NoError(t, idx.IndexClusters(context.Background(), "run-1", sampleClusters()))

	scanner := bufio.NewScanner(strings.NewReader(capture.body))
	var lines []string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	// Two documents, each preceded by an action line.
	require.Len(t, lines, 4)

	var action map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &action))
	assert.Equal(t, "termlens_clusters", action["index"]["_index"])
	assert.Equal(t, "run-1:0", action["index"]["_id"])

	var doc clusterDocument
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, 72, doc.Score)
	assert.Equal(t, "Wireless mice", doc.Title)
	assert.Equal(t, []string{"wireless mouse", "bluetooth mouse"}, doc.Terms)
	require.Len(t, doc.Tags, 1)
	assert.Equal(t, "function", doc.Tags[0].Category)
}

func TestIndexClustersEmptyIsNoop(t *testing.T) {
	server, capture := newFakeSearch(t, `{"took":0,"errors":false,"items":[]}`, http.StatusOK)
	idx := newTestIndexer(t, server.URL)

	require.NoError(t, idx.IndexClusters(context.Background(), "run-1", nil))
	assert.Empty(t, capture.body)
}

func TestIndexClustersReportsItemFailures(t *testing.T) {
	server, _ := newFakeSearch(t, `{"took":5,"errors":true,"items":[]}`, http.StatusOK)
	idx := newTestIndexer(t, server.URL)

	err := idx.IndexClusters(context.Background(), "run-1", sampleClusters())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeExternalService))
}

func TestIndexClustersWrapsTransportError(t *testing.T) {
	server, _ := newFakeSearch(t, `{"error":"boom"}`, http.StatusInternalServerError)
	idx := newTestIndexer(t, server.URL)

	err := idx.IndexClusters(context.Background(), "run-1", sampleClusters())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeExternalService))
}

func TestEnsureIndexCreates(t *testing.T) {
	server, _ := newFakeSearch(t, "", http.StatusOK)
	idx := newTestIndexer(t, server.URL)

	require.NoError(t, idx.ensureIndex(context.Background()))
}

func TestNewIndexerRequiresAddresses(t *testing.T) {
	_, err := NewIndexer(context.Background(), config.OpenSearchConfig{}, logging.NewNopLogger())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}
