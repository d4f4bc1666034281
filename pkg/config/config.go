// Package config resolves runtime configuration from an optional YAML
// file, environment variables, and defaults, in that order of
// precedence (environment wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/murmurkit/murmur/pkg/core/live"
)

// DefaultPath is tried when no config file is given explicitly.
const DefaultPath = "murmur.yaml"

// Config is the full runtime configuration.
type Config struct {
	Session   SessionConfig  `yaml:"session"`
	Gemini    GeminiConfig   `yaml:"gemini"`
	Deepgram  DeepgramConfig `yaml:"deepgram"`
	Log       LogConfig      `yaml:"log"`
	HandsFree bool           `yaml:"hands_free"`
}

// SessionConfig shapes the voice session.
type SessionConfig struct {
	Voice             string   `yaml:"voice"`
	Language          string   `yaml:"language"`
	SystemPrompt      string   `yaml:"system_prompt"`
	AssistantName     string   `yaml:"assistant_name"`
	Creator           string   `yaml:"creator"`
	StopPhrases       []string `yaml:"stop_phrases"`
	StopDelayMS       int      `yaml:"stop_delay_ms"`
	ActivityThreshold float64  `yaml:"activity_threshold"`
}

// GeminiConfig configures the live model connection. The API key is
// environment-only and never read from the file.
type GeminiConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
}

// DeepgramConfig configures the wake-word recognizer. The API key is
// environment-only and never read from the file.
type DeepgramConfig struct {
	APIKey       string  `yaml:"-"`
	Model        string  `yaml:"model"`
	Language     string  `yaml:"language"`
	SilenceFloor float64 `yaml:"silence_floor"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load resolves configuration. path may be empty, in which case
// DefaultPath is used when it exists.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{Level: "info"},
	}

	explicit := path != ""
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case explicit:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Gemini.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	c.Deepgram.APIKey = strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY"))

	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv("DEEPGRAM_MODEL"); v != "" {
		c.Deepgram.Model = v
	}
	if v := os.Getenv("MURMUR_VOICE"); v != "" {
		c.Session.Voice = v
	}
	if v := os.Getenv("MURMUR_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MURMUR_HANDS_FREE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.HandsFree = b
		}
	}
}

// Live maps the file-level session settings onto the core session
// configuration, leaving unset fields to the core defaults.
func (c Config) Live() live.SessionConfig {
	out := live.SessionConfig{
		Voice:             c.Session.Voice,
		Language:          c.Session.Language,
		SystemPrompt:      c.Session.SystemPrompt,
		AssistantName:     c.Session.AssistantName,
		Creator:           c.Session.Creator,
		StopPhrases:       c.Session.StopPhrases,
		ActivityThreshold: c.Session.ActivityThreshold,
	}
	if c.Session.StopDelayMS > 0 {
		out.StopDelay = time.Duration(c.Session.StopDelayMS) * time.Millisecond
	}
	return out
}
