package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func waitForTrigger(t *testing.T, events <-chan struct{}, timeout time.Duration) bool {
	t.Helper()
	select {
	case _, ok := <-events:
		return ok
	case <-time.After(timeout):
		return false
	}
}

func TestArchiveWatcher_TriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.zip")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(path, 50*time.Millisecond, zap.NewNop())
	events, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer w.Stop()

	// several writes in a burst collapse into one trigger
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if !waitForTrigger(t, events, 2*time.Second) {
		t.Fatal("Expected a trigger after writing the archive")
	}
	if waitForTrigger(t, events, 200*time.Millisecond) {
		t.Error("Expected a single trigger for one burst")
	}
}

func TestArchiveWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.zip")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(path, 20*time.Millisecond, zap.NewNop())
	events, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.zip"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if waitForTrigger(t, events, 300*time.Millisecond) {
		t.Error("Expected no trigger for unrelated files")
	}
}

func TestArchiveWatcher_RenameOverArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.zip")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(path, 20*time.Millisecond, zap.NewNop())
	events, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer w.Stop()

	tmp := filepath.Join(dir, "c.zip.tmp")
	if err := os.WriteFile(tmp, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	if !waitForTrigger(t, events, 2*time.Second) {
		t.Error("Expected a trigger after renaming over the archive")
	}
}

func TestArchiveWatcher_StopClosesChannel(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "c.zip"), time.Millisecond, zap.NewNop())
	events, err := w.Start(context.Background())
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop error: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Second Stop error: %v", err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("Expected closed channel")
		}
	case <-time.After(time.Second):
		t.Error("Expected channel to close after Stop")
	}
}

func TestArchiveWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope", "c.zip"), time.Millisecond, zap.NewNop())
	if _, err := w.Start(context.Background()); err == nil {
		t.Error("Expected error watching a missing directory")
	}
}
