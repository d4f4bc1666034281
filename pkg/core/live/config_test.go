package live

import (
	"strings"
	"testing"
	"time"
)

func TestDeriveVisualStatus(t *testing.T) {
	cases := []struct {
		status   Status
		playback bool
		capture  bool
		want     VisualStatus
	}{
		{StatusDisconnected, false, false, VisualIdle},
		{StatusDisconnected, true, true, VisualIdle},
		{StatusConnecting, false, false, VisualWaking},
		{StatusConnected, false, false, VisualListening},
		{StatusConnected, false, true, VisualListening},
		{StatusConnected, true, false, VisualSpeaking},
		{StatusConnected, true, true, VisualSpeaking},
		{StatusError, false, false, VisualIdle},
	}
	for _, tc := range cases {
		got := deriveVisualStatus(tc.status, tc.playback, tc.capture)
		if got != tc.want {
			t.Errorf("deriveVisualStatus(%s, playback=%v, capture=%v) = %s, want %s",
				tc.status, tc.playback, tc.capture, got, tc.want)
		}
	}
}

func TestSessionConfigWithDefaults(t *testing.T) {
	cfg := SessionConfig{Voice: "Kore"}.WithDefaults()

	if cfg.Voice != "Kore" {
		t.Errorf("expected explicit voice kept, got %q", cfg.Voice)
	}
	if cfg.AssistantName != "Murmur" {
		t.Errorf("expected default assistant name, got %q", cfg.AssistantName)
	}
	if cfg.StopDelay != 3*time.Second {
		t.Errorf("expected 3s stop delay, got %v", cfg.StopDelay)
	}
	if cfg.FrameSize != 4096 || cfg.InputSampleRate != 16000 || cfg.OutputSampleRate != 24000 {
		t.Errorf("unexpected audio defaults: %+v", cfg)
	}
	if len(cfg.StopPhrases) != 3 {
		t.Errorf("unexpected stop phrases: %v", cfg.StopPhrases)
	}
}

func TestSessionConfigDirective(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.Creator = "the Murmur project"

	directive := cfg.Directive()
	if !strings.Contains(directive, "Murmur") {
		t.Errorf("expected persona name in directive: %q", directive)
	}
	if !strings.Contains(directive, "Respond in English.") {
		t.Errorf("expected language instruction in directive: %q", directive)
	}
	if !strings.Contains(directive, "the Murmur project") {
		t.Errorf("expected creator attribution in directive: %q", directive)
	}

	cfg.SystemPrompt = "You are a pirate."
	if got := cfg.Directive(); !strings.HasPrefix(got, "You are a pirate.") {
		t.Errorf("expected custom prompt to lead the directive: %q", got)
	}
}

func TestAudioConfigMath(t *testing.T) {
	out := AudioConfig{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

	if got := out.BytesPerSecond(); got != 48000 {
		t.Errorf("expected 48000 bytes/s, got %d", got)
	}
	if got := out.Duration(4800); got != 100*time.Millisecond {
		t.Errorf("expected 100ms for 4800 bytes, got %v", got)
	}
	if got := out.BytesFor(100 * time.Millisecond); got != 4800 {
		t.Errorf("expected 4800 bytes for 100ms, got %d", got)
	}
	if got := (AudioConfig{}).Duration(100); got != 0 {
		t.Errorf("expected zero duration for zero config, got %v", got)
	}
}

func TestErrorClassification(t *testing.T) {
	for _, e := range []*Error{
		NewChannelError("stream reset", nil),
		NewAcquisitionError("mic busy", nil),
	} {
		if !e.IsFatal() {
			t.Errorf("expected %s to be fatal", e.Class)
		}
	}
	for _, e := range []*Error{
		NewFormatError("odd payload"),
		NewRecognizerError("socket reset", nil),
	} {
		if e.IsFatal() {
			t.Errorf("expected %s to be non-fatal", e.Class)
		}
	}
}
