package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %q", cfg.Log.Level)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "murmur.yaml")
	body := `
session:
  voice: Kore
  assistant_name: Echo
  stop_phrases: ["goodbye", "that's all"]
  stop_delay_ms: 1500
gemini:
  model: gemini-2.0-flash-live-001
log:
  level: debug
hands_free: true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("MURMUR_VOICE", "Aoede")
	t.Setenv("MURMUR_HANDS_FREE", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.AssistantName != "Echo" {
		t.Errorf("expected assistant name from file, got %q", cfg.Session.AssistantName)
	}
	if cfg.Session.Voice != "Aoede" {
		t.Errorf("expected env to override file voice, got %q", cfg.Session.Voice)
	}
	if cfg.Gemini.APIKey != "test-key" {
		t.Errorf("expected API key from env, got %q", cfg.Gemini.APIKey)
	}
	if cfg.HandsFree {
		t.Error("expected env to override hands_free")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level from file, got %q", cfg.Log.Level)
	}

	lc := cfg.Live()
	if lc.StopDelay != 1500*time.Millisecond {
		t.Errorf("expected 1.5s stop delay, got %v", lc.StopDelay)
	}
	if len(lc.StopPhrases) != 2 || lc.StopPhrases[1] != "that's all" {
		t.Errorf("unexpected stop phrases: %v", lc.StopPhrases)
	}
}
