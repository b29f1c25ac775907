package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountersAndHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.IncProgressUpdate("video", "ok")
	m.IncProgressUpdate("video", "ok")
	m.IncCompletion("document", "sync")
	m.ObserveAPI("GET", "", "200", 10*time.Millisecond)
	m.ObserveRollup("ok", time.Second, 3)

	if got := testutil.ToFloat64(m.progressUpdates.WithLabelValues("video", "ok")); got != 2 {
		t.Fatalf("progress updates: want=2 got=%v", got)
	}
	if got := testutil.ToFloat64(m.progressCompletions.WithLabelValues("document", "sync")); got != 1 {
		t.Fatalf("completions: want=1 got=%v", got)
	}
	if got := testutil.ToFloat64(m.rollupUnavailable); got != 3 {
		t.Fatalf("rollup unavailable: want=3 got=%v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `http_requests_total{method="GET",route="unmatched",status="200"} 1`) {
		t.Fatalf("expected unmatched route sample in output")
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.IncProgressUpdate("video", "ok")
	m.ObserveStorageOperation("op", "success", time.Millisecond)
	m.SetBreakerState("submission", 2)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("nil handler status: want=404 got=%d", rec.Code)
	}
}
