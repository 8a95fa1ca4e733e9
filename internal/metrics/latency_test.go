package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// These tests exercise the p95 latency window that backs the readiness
// payload's latency_p95_ms field (see internal/health.Checker.CheckAll).

func TestGetLatencyP95_EmptyWindow(t *testing.T) {
	ResetLatencyWindow()
	t.Cleanup(ResetLatencyWindow)

	if p95 := GetLatencyP95(); p95 != 0 {
		t.Errorf("GetLatencyP95() with empty window = %d, want 0", p95)
	}
}

func TestGetLatencyP95_OneHundredRequests(t *testing.T) {
	ResetLatencyWindow()
	t.Cleanup(ResetLatencyWindow)

	for i := int64(1); i <= 100; i++ {
		recordLatency(i)
	}

	p95 := GetLatencyP95()
	if p95 < 95 || p95 > 96 {
		t.Errorf("GetLatencyP95() = %d, want ~95", p95)
	}
}

func TestGetLatencyP95_SingleValue(t *testing.T) {
	ResetLatencyWindow()
	t.Cleanup(ResetLatencyWindow)

	recordLatency(50)

	if p95 := GetLatencyP95(); p95 != 50 {
		t.Errorf("GetLatencyP95() with single value = %d, want 50", p95)
	}
}

func TestRecordLatency_AppendsToWindow(t *testing.T) {
	ResetLatencyWindow()
	t.Cleanup(ResetLatencyWindow)

	recordLatency(100)
	recordLatency(200)
	recordLatency(300)

	latencyMu.Lock()
	count := len(latencyWindow)
	latencyMu.Unlock()

	if count != 3 {
		t.Errorf("latencyWindow has %d items, want 3", count)
	}
}

func TestRecordLatency_WindowEvictsOldestPastCapacity(t *testing.T) {
	ResetLatencyWindow()
	t.Cleanup(ResetLatencyWindow)

	for i := 0; i < maxLatencyRecords+100; i++ {
		recordLatency(int64(i))
	}

	latencyMu.Lock()
	count := len(latencyWindow)
	first := latencyWindow[0]
	latencyMu.Unlock()

	if count != maxLatencyRecords {
		t.Errorf("latencyWindow has %d items, want %d (maxLatencyRecords)", count, maxLatencyRecords)
	}
	if first != 100 {
		t.Errorf("first item in window = %d, want 100 (oldest records should be evicted)", first)
	}
}

func TestHTTPMetricsMiddleware_RecordsLatencySample(t *testing.T) {
	ResetLatencyWindow()
	t.Cleanup(ResetLatencyWindow)

	handler := HTTPMetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/config", nil))

	latencyMu.Lock()
	count := len(latencyWindow)
	latencyMu.Unlock()

	if count != 1 {
		t.Errorf("latencyWindow has %d items after middleware records one sample, want 1", count)
	}
}
