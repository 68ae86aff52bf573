package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWeekKey(t *testing.T) {
	tests := []struct {
		date     time.Time
		expected string
	}{
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2025-W01"},
		{time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), "2025-W01"},
		{time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), "2025-W24"},
	}

	for _, tt := range tests {
		if got := weekKey(tt.date); got != tt.expected {
			t.Errorf("weekKey(%s) = %s, want %s", tt.date.Format(time.DateOnly), got, tt.expected)
		}
	}
}

func TestRotatingLoggerWrite(t *testing.T) {
	dir := t.TempDir()
	rl, err := NewRotatingLogger(dir, 2)
	if err != nil {
		t.Fatalf("NewRotatingLogger failed: %v", err)
	}

	if _, err := rl.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := rl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := filepath.Join(dir, "app-"+weekKey(time.Now())+".log")
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file %s: %v", path, err)
	}
	if string(content) != "hello\n" {
		t.Errorf("unexpected content %q", content)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	rl, err := NewRotatingLogger(dir, 1)
	if err != nil {
		t.Fatalf("NewRotatingLogger failed: %v", err)
	}
	defer rl.Close()

	old := filepath.Join(dir, "app-2000-W01.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		past := time.Now().Add(-30 * 24 * time.Hour)
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := rl.cleanupOldLogs(time.Now())
	if err != nil {
		t.Fatalf("cleanupOldLogs failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted file, got %d", deleted)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old log file should have been removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non log file should be kept")
	}
}
