package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/pkg/errors"
)

func embeddedExport(t *testing.T) string {
	t.Helper()
	return writeFile(t, "terms.json", `[
		{"term": "wireless mouse", "volume": 1000, "growth": 0.2, "competition": 30,
			"attributes": {"function": "input"}, "embedding": [1, 0.01]},
		{"term": "wireless keyboard", "volume": 800, "growth": 0.1, "competition": 40,
			"attributes": {"function": "input"}, "embedding": [1, 0.02]}
	]`)
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzePreEmbeddedExport(t *testing.T) {
	out, err := runCommand(t, "analyze", "--input", embeddedExport(t))
	require.NoError(t, err)

	var doc analyzeResult
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 2, doc.TermCount)
	assert.Equal(t, 2, doc.EmbeddedTerms)
	assert.Zero(t, doc.DroppedTerms)
	require.Len(t, doc.Clusters, 1)
	assert.ElementsMatch(t, []string{"wireless mouse", "wireless keyboard"}, doc.Clusters[0].TermTexts())
	assert.Positive(t, doc.Clusters[0].Score)
}

func TestAnalyzeWritesOutputFile(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "result.json")
	_, err := runCommand(t, "analyze", "--input", embeddedExport(t), "--output", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var doc analyzeResult
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Clusters, 1)
}

func TestAnalyzeMissingInput(t *testing.T) {
	_, err := runCommand(t, "analyze", "--input", filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExportNotFound))
}

func TestAnalyzeUnembeddedWithoutConfig(t *testing.T) {
	path := writeFile(t, "terms.json", `[{"term": "usb hub", "volume": 50}]`)

	_, err := runCommand(t, "analyze", "--input", path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingUnavailable))
}

func TestAnalyzeWithSnapshots(t *testing.T) {
	dir := t.TempDir()
	snapshot := func(ts string, volume int) string {
		return `{"timestamp": "` + ts + `", "terms": [
			{"term": "wireless mouse", "volume": ` + strconv.Itoa(volume) + `, "embedding": [1, 0.01]},
			{"term": "wireless keyboard", "volume": ` + strconv.Itoa(volume-200) + `, "embedding": [1, 0.02]}
		]}`
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-06.json"), []byte(snapshot("2026-06-01T00:00:00Z", 800)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-07.json"), []byte(snapshot("2026-07-01T00:00:00Z", 900)), 0o644))

	out, err := runCommand(t, "analyze", "--input", embeddedExport(t), "--snapshots", dir)
	require.NoError(t, err)

	var doc analyzeResult
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Clusters, 1)
	require.NotNil(t, doc.Clusters[0].Temporal)
	assert.NotEmpty(t, doc.Clusters[0].Temporal.VolumeTrend)
}

func TestStaticEmbedderSplitsRecords(t *testing.T) {
	records := []term.Record{
		{Term: "embedded", Embedding: []float64{1, 2, 3}},
		{Term: "bare"},
	}
	emb := newStaticEmbedder(records)
	assert.Equal(t, 3, emb.Dimensions())

	res, err := emb.EmbedAll(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, res.Embedded, 1)
	assert.Equal(t, "embedded", res.Embedded[0].Term)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "bare", res.Failed[0].Term)
}

func TestAllEmbedded(t *testing.T) {
	assert.False(t, allEmbedded(nil))
	assert.False(t, allEmbedded([]term.Record{{Term: "bare"}}))
	assert.True(t, allEmbedded([]term.Record{{Term: "a", Embedding: []float64{1}}}))
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "termlens")
}
