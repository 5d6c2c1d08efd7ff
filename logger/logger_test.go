package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"WARNING": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitialize_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	cfg := DefaultConfig()
	cfg.ConsoleEnabled = false
	cfg.FileEnabled = true
	cfg.FilePath = path
	cfg.Level = "WARN"

	if err := Initialize(cfg); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() {
		Close()
		logger = nil
	}()

	Info("filtered out")
	Warning("player moved badly", "player_id", 7)
	Always("chat", "sender", "Alice")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "filtered out") {
		t.Error("INFO line should be filtered at WARN level")
	}
	if !strings.Contains(out, "player_id=7") {
		t.Errorf("missing warning line in %q", out)
	}
	if !strings.Contains(out, "level=ALWAYS") {
		t.Errorf("ALWAYS level should bypass filtering and be labelled, got %q", out)
	}
}

func TestInitialize_FileWithoutPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FileEnabled = true
	cfg.FilePath = ""
	if err := Initialize(cfg); err == nil {
		t.Error("expected an error when file logging has no path")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FILE_ENABLED", "true")
	t.Setenv("LOG_FILE_PATH", "/tmp/game.log")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Level != "DEBUG" || !cfg.FileEnabled || cfg.FilePath != "/tmp/game.log" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}
