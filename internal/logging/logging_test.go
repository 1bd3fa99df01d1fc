package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONAtLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	log, err := New(Config{Level: "INFO", Encoding: "json", Output: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Debug("hidden")
	log.Info("visible")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(raw)
	if strings.Contains(text, "hidden") || !strings.Contains(text, `"msg":"visible"`) {
		t.Fatalf("unexpected log output: %s", text)
	}
}

func TestNewOffAndInvalid(t *testing.T) {
	log, err := New(Config{Level: "off"})
	if err != nil || log == nil {
		t.Fatalf("expected nop logger, got %v", err)
	}
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected invalid level error")
	}
	if _, err := New(Config{Encoding: "xml"}); err == nil {
		t.Fatal("expected invalid encoding error")
	}
}
