package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestConsoleHandlerPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.With("component", "pipeline").Info("image classified", "fichier", "photo 1.jpg", "id", 3)

	line := buf.String()
	if !strings.HasPrefix(line, "INFO pipeline: image classified") {
		t.Fatalf("unexpected line prefix: %q", line)
	}
	if !strings.Contains(line, `fichier="photo 1.jpg"`) {
		t.Fatalf("expected quoted value in %q", line)
	}
	if !strings.Contains(line, "id=3") {
		t.Fatalf("expected id attribute in %q", line)
	}
}

func TestConsoleHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "err", errors.New("file locked"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be filtered, got %q", out)
	}
	if !strings.Contains(out, "WARN shown") || !strings.Contains(out, `err="file locked"`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("done", "processed", 4)
	out := buf.String()
	if !strings.Contains(out, `"msg":"done"`) || !strings.Contains(out, `"processed":4`) {
		t.Fatalf("unexpected json output %q", out)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
