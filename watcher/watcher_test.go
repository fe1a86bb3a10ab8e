package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestWatcher_EmitsEventForImageFile(t *testing.T) {
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	w, err := New(dir, []string{".png", ".jpg"}, 50*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()
	w.Start()

	path := filepath.Join(dir, "new.png")
	if err := os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	select {
	case ev := <-w.Events():
		if ev.Path != path {
			t.Errorf("Expected path %s, got %s", path, ev.Path)
		}
	case <-time.After(2 * time.Second):
		t.Error("Timeout waiting for event")
	}
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	w, err := New(dir, []string{".png"}, 50*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()
	w.Start()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("dot"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	select {
	case ev := <-w.Events():
		t.Errorf("Unexpected event for %s", ev.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_DebouncesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	w, err := New(dir, []string{".png"}, 100*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()
	w.Start()

	path := filepath.Join(dir, "burst.png")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{0x89, 'P', 'N', 'G', byte(i)}, 0644); err != nil {
			t.Fatalf("Failed to write test file: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	events := 0
	deadline := time.After(1 * time.Second)
	for {
		select {
		case <-w.Events():
			events++
		case <-deadline:
			if events != 1 {
				t.Errorf("Expected 1 debounced event, got %d", events)
			}
			return
		}
	}
}

func TestWatcher_StopIsClean(t *testing.T) {
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	w, err := New(dir, []string{".png"}, 50*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	w.Start()

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
