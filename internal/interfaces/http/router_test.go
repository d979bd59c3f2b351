package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/vantagelab/termlens/internal/infrastructure/monitoring/prometheus"
	"github.com/vantagelab/termlens/internal/interfaces/http/handlers"
)

func TestRouterServesProbesAndMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := prommetrics.NewMetrics(registry)
	router := NewRouter(RouterConfig{
		Health:   handlers.NewHealthHandler(),
		Logger:   logging.NewNopLogger(),
		Metrics:  metrics,
		Registry: registry,
		Mode:     "test",
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Drive one labelled request through so the counter appears in /metrics.
	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200").Inc()

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "termlens_http_requests_total"))
}

func TestRouterWithoutHandlersStillServes404(t *testing.T) {
	router := NewRouter(RouterConfig{Logger: logging.NewNopLogger(), Mode: "test"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/analyses", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
