package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"qoxide/internal/config"
	"qoxide/internal/logging"
)

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}

	if _, err := logging.NewFromConfig(nil); err != nil {
		t.Fatalf("NewFromConfig(nil) returned error: %v", err)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerFormatsMessageSubject(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "queue").Debug("message reserved",
		logging.Int64(logging.FieldMessageID, 42),
		logging.Int(logging.FieldAttempts, 2),
		logging.String("note", "two words"),
	)

	line := buf.String()
	for _, want := range []string{"DEBUG", "[queue]", "Message #42", "message reserved", "attempts=2", `note="two words"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "message_id=") {
		t.Fatalf("expected message id folded into subject, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no source without development mode, got %q", line)
	}
}

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "shown") {
		t.Fatalf("expected warn record, got %q", out)
	}
}

func TestJSONLoggerWritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "qoxide.log")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Error("store failed", logging.Error(errors.New("disk full")), logging.String(logging.FieldOp, "add"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("decode json log %q: %v", content, err)
	}
	if record["level"] != "error" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
	if record["msg"] != "store failed" || record["op"] != "add" || record["error"] != "disk full" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(t.Context(), 12) {
		t.Fatal("expected no-op logger to be disabled")
	}
	logging.NewComponentLogger(nil, "queue").Info("ignored")
}
