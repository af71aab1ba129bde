package dashboard

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/justin4957/zeekreport/internal/config"
	"github.com/justin4957/zeekreport/pkg/models"
)

// createTestSummary returns a summary with a banned host finding
func createTestSummary(runID string) *models.Summary {
	return &models.Summary{
		RunID:       runID,
		Archive:     "c.zip",
		GeneratedAt: time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC),
		Counters: []models.Counter{
			{Name: models.CounterNumberOfLogs, Value: 3},
			{Name: models.CounterBannedHosts, Value: 1},
		},
		PortServices: []string{"http"},
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(config.DefaultConfig().DashboardConfig, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func TestSummaryEndpoint(t *testing.T) {
	s, ts := newTestServer(t)

	resp, _ := get(t, ts.URL+"/api/summary")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204 before the first run, got %d", resp.StatusCode)
	}

	s.Publish(createTestSummary("run-1"))

	resp, body := get(t, ts.URL+"/api/summary")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	for _, want := range []string{`"run_id":"run-1"`, `"banned_hosts_detected"`} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected body to contain %s, got %s", want, body)
		}
	}
	if s.Latest().RunID != "run-1" {
		t.Errorf("Expected latest run-1, got %s", s.Latest().RunID)
	}
}

func TestReportEndpoint(t *testing.T) {
	s, ts := newTestServer(t)

	resp, _ := get(t, ts.URL+"/report")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 before the first run, got %d", resp.StatusCode)
	}

	path := filepath.Join(t.TempDir(), "analysis_report.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.3 test"), 0o644); err != nil {
		t.Fatal(err)
	}
	summary := createTestSummary("run-1")
	summary.ReportPath = path
	s.Publish(summary)

	resp, body := get(t, ts.URL+"/report")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(body, "%PDF-") {
		t.Errorf("Expected PDF body, got %q", body)
	}
}

func TestIndex(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Zeek HTTP Log Report") {
		t.Errorf("Unexpected index response %d", resp.StatusCode)
	}

	resp, _ = get(t, ts.URL+"/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", resp.StatusCode)
	}
}

func TestWebSocketPush(t *testing.T) {
	s, ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.broadcastLoop(ctx)

	s.Publish(createTestSummary("run-1"))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !strings.Contains(string(msg), `"run_id":"run-1"`) {
		t.Errorf("Expected current summary on connect, got %s", msg)
	}

	s.Publish(createTestSummary("run-2"))

	for {
		_, msg, err = conn.ReadMessage()
		if err != nil {
			t.Fatalf("Read error: %v", err)
		}
		// the first publish may still be queued for broadcast
		if strings.Contains(string(msg), `"run_id":"run-2"`) {
			break
		}
	}
}
