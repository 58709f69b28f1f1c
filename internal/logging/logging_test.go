package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/statico/meshtastic-cli-sub001/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for raw, want := range cases {
		got, err := parseLevel(raw)
		if err != nil {
			t.Fatalf("parse level %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse level %q: expected %v, got %v", raw, want, got)
		}
	}

	if _, err := parseLevel("loud"); err == nil {
		t.Fatal("expected unknown level to fail")
	}
}

func TestConfigureWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "meshterm.log")
	m := NewManager()
	defer func() { _ = m.Close() }()

	if err := m.Configure(config.LoggingConfig{Level: "debug", LogToFile: true}, logPath); err != nil {
		t.Fatalf("configure logging: %v", err)
	}

	m.Logger("test").Info("hello from test", "key", "value")

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "hello from test") {
		t.Fatalf("expected log file to contain message, got: %s", raw)
	}
	if !strings.Contains(string(raw), "component=test") {
		t.Fatalf("expected log file to contain component attr, got: %s", raw)
	}
}

func TestFanoutHandlerDuplicatesRecords(t *testing.T) {
	var a, b bytes.Buffer
	h := newFanoutHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h)

	logger.Info("info line")
	logger.Warn("warn line")

	if !strings.Contains(a.String(), "info line") || !strings.Contains(a.String(), "warn line") {
		t.Fatalf("expected both lines in first handler, got: %s", a.String())
	}
	if strings.Contains(b.String(), "info line") {
		t.Fatalf("expected info line filtered by second handler level, got: %s", b.String())
	}
	if !strings.Contains(b.String(), "warn line") {
		t.Fatalf("expected warn line in second handler, got: %s", b.String())
	}

	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected fanout to be enabled when any handler is")
	}
}
