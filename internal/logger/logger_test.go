package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestActivityFileName(t *testing.T) {
	day := time.Date(2024, time.March, 7, 23, 59, 0, 0, time.UTC)
	if got := ActivityFileName(day); got != "etl_log_2024-03-07.txt" {
		t.Fatalf("ActivityFileName = %q", got)
	}
}

func TestActivityFileAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	day := time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC)

	for _, msg := range []string{"first run", "second run"} {
		f, err := OpenActivityFile(dir, day)
		if err != nil {
			t.Fatalf("OpenActivityFile: %v", err)
		}
		l := New("info", &bytes.Buffer{}, f)
		l.Info().Msg(msg)
		if err := f.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, ActivityFileName(day)))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "first run") || !strings.Contains(text, "second run") {
		t.Fatalf("activity log lost lines:\n%s", text)
	}
	if strings.Index(text, "first run") > strings.Index(text, "second run") {
		t.Fatalf("activity log is not append-ordered:\n%s", text)
	}
}

func TestNewLevelFallback(t *testing.T) {
	var console bytes.Buffer
	l := New("not-a-level", &console, nil)
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	out := console.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at default level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("info line missing: %s", out)
	}
}
