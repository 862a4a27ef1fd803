package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MaFalana/HWC-POTREE-API/internal/logging"
	"github.com/MaFalana/HWC-POTREE-API/internal/services"
)

func TestNewConsoleWritesTrimmedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "potreed.log")
	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	component := logging.NewComponentLogger(logger, "worker")
	component.Info("job claimed", logging.String(logging.FieldJobID, "job-1"), logging.Int("attempt", 1))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.Contains(line, "INFO worker: job claimed") {
		t.Fatalf("unexpected log line: %q", line)
	}
	if !strings.Contains(line, "job_id=job-1") || !strings.Contains(line, "attempt=1") {
		t.Fatalf("missing attributes in log line: %q", line)
	}
}

func TestNewJSONUsesLowercaseLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "potreed.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Warn("conversion slow", logging.String(logging.FieldJobID, "job-2"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if entry["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts field in json output")
	}
	if entry["job_id"] != "job-2" {
		t.Fatalf("expected job_id attribute, got %v", entry["job_id"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "potreed.log")
	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("dropped")
	logger.Error("kept", logging.Error(errors.New("boom")))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Fatal("info line should have been filtered")
	}
	if !strings.Contains(out, "ERROR") || !strings.Contains(out, "error=boom") {
		t.Fatalf("unexpected error output: %q", out)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "potreed.log")
	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "job-3")
	ctx = services.WithStep(ctx, "upload")
	logging.WithContext(ctx, logger).Info("publishing")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "job_id=job-3") || !strings.Contains(line, "step=upload") {
		t.Fatalf("context fields missing: %q", line)
	}
}
