package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.IngestRun(3, time.Second, nil)
	m.EmbeddingAttempt(errors.New("x"))
	m.EmbeddingRetry()
	m.QueryDone(time.Millisecond)
	m.QueryFailed("embed")
	m.SocketClients(1)
	if m.Registry() != nil {
		t.Fatalf("nil metrics should have nil registry")
	}
}

func TestCounters(t *testing.T) {
	t.Parallel()
	m := New()
	m.IngestRun(4, time.Second, nil)
	m.IngestRun(0, time.Second, errors.New("boom"))
	m.EmbeddingAttempt(nil)
	m.EmbeddingAttempt(errors.New("x"))
	m.EmbeddingAttempt(errors.New("x"))
	m.EmbeddingRetry()
	m.QueryFailed("generate")

	if got := testutil.ToFloat64(m.ingestArticles); got != 4 {
		t.Fatalf("ingest articles = %v", got)
	}
	if got := testutil.ToFloat64(m.ingestRuns.WithLabelValues("error")); got != 1 {
		t.Fatalf("ingest error runs = %v", got)
	}
	if got := testutil.ToFloat64(m.embeddingAttempts.WithLabelValues("error")); got != 2 {
		t.Fatalf("embedding errors = %v", got)
	}
	if got := testutil.ToFloat64(m.embeddingRetries); got != 1 {
		t.Fatalf("retries = %v", got)
	}
	if got := testutil.ToFloat64(m.queryFailures.WithLabelValues("generate")); got != 1 {
		t.Fatalf("query failures = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()
	m := New()
	m.EmbeddingRetry()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "newsrag_embedding_retries_total 1") {
		t.Fatalf("exposition missing retries counter:\n%s", body)
	}
}
