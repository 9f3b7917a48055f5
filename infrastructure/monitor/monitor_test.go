package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMonitorCounters(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordFetch(OutcomeOK, 0.2)
	m.RecordFetch(OutcomeOK, 0.1)
	m.RecordFetch(OutcomeCanceled, 0)
	m.RecordTicksApplied(3)
	m.RecordTicksApplied(0)
	m.UpdatePolling(true)

	if got := testutil.ToFloat64(m.fetches.WithLabelValues(OutcomeOK)); got != 2 {
		t.Errorf("Expected 2 ok fetches, got %f", got)
	}
	if got := testutil.ToFloat64(m.fetches.WithLabelValues(OutcomeCanceled)); got != 1 {
		t.Errorf("Expected 1 canceled fetch, got %f", got)
	}
	if got := testutil.ToFloat64(m.ticksApplied); got != 3 {
		t.Errorf("Expected ticksApplied to be 3, got %f", got)
	}
	if got := testutil.ToFloat64(m.polling); got != 1 {
		t.Errorf("Expected polling to be 1, got %f", got)
	}
}

func TestNilMonitorIsSafe(t *testing.T) {
	var m *Monitor
	m.RecordFetch(OutcomeOK, 1)
	m.RecordWSConnection()
	m.UpdateAssets(3)
}

func TestMonitorHandler(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordWSConnection()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "coinwatch_sync_ws_connections_total 1") {
		t.Fatalf("metrics output missing ws counter:\n%s", body)
	}
}
