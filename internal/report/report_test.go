package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/justin4957/zeekreport/internal/config"
	"github.com/justin4957/zeekreport/pkg/models"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// createTestSummary returns a summary with every counter set
func createTestSummary(services ...string) *models.Summary {
	s := &models.Summary{
		RunID:        "7d4f2a0e-3c51-4b8e-9a34-5f0d2a1c9e77",
		Archive:      "c.zip",
		GeneratedAt:  time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC),
		PortServices: services,
	}
	for i, name := range models.CounterOrder {
		s.Counters = append(s.Counters, models.Counter{Name: name, Value: i * 3})
	}
	return s
}

func newTestConfig(dir string) config.ReportConfig {
	cfg := config.DefaultConfig().ReportConfig
	cfg.OutputPath = filepath.Join(dir, "analysis_report.pdf")
	cfg.BarChartPath = filepath.Join(dir, "plot1.png")
	cfg.PieChartPath = filepath.Join(dir, "plot2.png")
	return cfg
}

func assertPrefix(t *testing.T, path string, prefix []byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if !bytes.HasPrefix(data, prefix) {
		t.Errorf("%s: unexpected header %q", path, data[:min(len(data), 8)])
	}
}

func TestBarChart_AllZero(t *testing.T) {
	counters := make([]models.Counter, 0, len(models.CounterOrder))
	for _, name := range models.CounterOrder {
		counters = append(counters, models.Counter{Name: name})
	}

	var buf bytes.Buffer
	if err := BarChart(&buf, counters); err != nil {
		t.Fatalf("BarChart error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("Expected PNG output")
	}
}

func TestBarChart_NoCounters(t *testing.T) {
	if err := BarChart(&bytes.Buffer{}, nil); err == nil {
		t.Error("Expected error for no counters")
	}
}

func TestPieChart(t *testing.T) {
	var buf bytes.Buffer
	if err := PieChart(&buf, []string{"Unknown", "http", "https"}); err != nil {
		t.Fatalf("PieChart error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("Expected PNG output")
	}

	if err := PieChart(&bytes.Buffer{}, nil); err == nil {
		t.Error("Expected error for empty service list")
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(dir)
	cfg.SummaryJSON = filepath.Join(dir, "summary.json")

	summary := createTestSummary("http", "https")
	gen := NewGenerator(cfg, zaptest.NewLogger(t))
	if err := gen.Generate(context.Background(), summary); err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	assertPrefix(t, cfg.OutputPath, []byte("%PDF-"))
	assertPrefix(t, cfg.BarChartPath, pngMagic)
	assertPrefix(t, cfg.PieChartPath, pngMagic)

	if summary.ReportPath != cfg.OutputPath {
		t.Errorf("Expected report path %q, got %q", cfg.OutputPath, summary.ReportPath)
	}

	data, err := os.ReadFile(cfg.SummaryJSON)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	for _, want := range []string{`"run_id": "7d4f2a0e-3c51-4b8e-9a34-5f0d2a1c9e77"`, `"google_was_detected"`, `"https"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Summary JSON missing %s", want)
		}
	}
}

func TestGenerate_NoPortServicesDropsImages(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(dir)
	cfg.KeepImages = false

	gen := NewGenerator(cfg, zaptest.NewLogger(t))
	if err := gen.Generate(context.Background(), createTestSummary()); err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	assertPrefix(t, cfg.OutputPath, []byte("%PDF-"))
	for _, p := range []string{cfg.BarChartPath, cfg.PieChartPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("Expected %s to be removed, stat err %v", p, err)
		}
	}
}

func TestGenerate_UnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(dir)
	cfg.OutputPath = filepath.Join(dir, "missing", "report.pdf")

	gen := NewGenerator(cfg, zaptest.NewLogger(t))
	if err := gen.Generate(context.Background(), createTestSummary("http")); err == nil {
		t.Error("Expected error writing into a missing directory")
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	cfg := newTestConfig(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := NewGenerator(cfg, zaptest.NewLogger(t))
	if err := gen.Generate(ctx, createTestSummary("http")); err == nil {
		t.Error("Expected context error")
	}
}
