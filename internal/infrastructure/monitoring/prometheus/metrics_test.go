package prometheus

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersWithoutCollision(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	// Registering the same names twice must panic via MustRegister.
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestMetrics_CountersObservable(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RunsTotal.WithLabelValues("completed").Inc()
	m.RunsTotal.WithLabelValues("completed_partial").Add(2)
	m.TermsDropped.Add(3)
	m.EmbeddingCalls.WithLabelValues("ok").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("completed_partial")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TermsDropped))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP termlens_embedding_calls_total Embedding provider calls by outcome.
# TYPE termlens_embedding_calls_total counter
termlens_embedding_calls_total{outcome="ok"} 1
`), "termlens_embedding_calls_total")
	assert.NoError(t, err)
}
