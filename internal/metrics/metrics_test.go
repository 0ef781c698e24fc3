package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DocumentProcessed("ready", time.Second)
		m.ChunksIndexed(3)
		m.Retrieval("grounded")
		m.StreamFinished("completed")
		m.ObserveGeneration(time.Second)
		m.HTTPRequest("GET", "/health", 200)
	})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.DocumentProcessed("ready", 2*time.Second)
	m.DocumentProcessed("error", time.Second)
	m.DocumentProcessed("ready", time.Second)
	m.ChunksIndexed(5)
	m.ChunksIndexed(0)
	m.Retrieval("no_documents")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.documents.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.chunks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retrievals.WithLabelValues("no_documents")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.StreamFinished("completed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `docchat_chat_streams_total{outcome="completed"} 1`)
}
