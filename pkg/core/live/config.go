package live

import (
	"fmt"
	"strings"
	"time"
)

// Status is the externally observable connection state of a session.
type Status int

const (
	// StatusDisconnected is the resting state; no session exists.
	StatusDisconnected Status = iota
	// StatusConnecting is the window between RequestStart and channel open.
	StatusConnecting
	// StatusConnected is an open duplex session.
	StatusConnected
	// StatusError is the transient state after a fatal error, before
	// teardown settles back to StatusDisconnected.
	StatusError
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// VisualStatus is the finer-grained presentation state derived from the
// connection status and audio activity. Exactly one value holds at any
// instant.
type VisualStatus string

const (
	VisualIdle      VisualStatus = "idle"
	VisualWaking    VisualStatus = "waking"
	VisualListening VisualStatus = "listening"
	VisualSpeaking  VisualStatus = "speaking"
)

// deriveVisualStatus maps the session's observable inputs to a visual
// status. Model audio in progress takes priority over local capture
// activity; capture activity alone keeps the session at listening.
func deriveVisualStatus(status Status, playbackActive, captureActive bool) VisualStatus {
	switch status {
	case StatusConnecting:
		return VisualWaking
	case StatusConnected:
		if playbackActive {
			return VisualSpeaking
		}
		// Capture activity never lowers a connected session below
		// listening, and playback wins over it.
		return VisualListening
	default:
		return VisualIdle
	}
}

// SessionConfig holds the configuration captured at connect time.
// A running session never observes later changes; the manager copies the
// config into the session when the channel opens.
type SessionConfig struct {
	// Voice is the synthesized voice name requested from the remote service.
	Voice string `json:"voice"`

	// Language is the spoken language directive (for example "English").
	Language string `json:"language"`

	// SystemPrompt is the persona instruction text.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// AssistantName is the persona name, also matched by the wake trigger.
	AssistantName string `json:"assistant_name"`

	// Creator is named in the composed directive's attribution line.
	Creator string `json:"creator,omitempty"`

	// StopPhrases end the session when spoken by the user.
	StopPhrases []string `json:"stop_phrases,omitempty"`

	// StopDelay is how long to wait after a stop phrase before tearing
	// down, so the model can finish an acknowledgement utterance.
	// Default: 3s.
	StopDelay time.Duration `json:"stop_delay"`

	// WakeRestartDelay is the backoff before restarting a failed wake
	// recognizer. Default: 1s.
	WakeRestartDelay time.Duration `json:"wake_restart_delay"`

	// ActivityThreshold is the mean absolute amplitude above which a
	// capture frame counts as voice activity. Default: 0.01.
	ActivityThreshold float64 `json:"activity_threshold"`

	// FrameSize is the capture frame length in samples. Default: 4096.
	FrameSize int `json:"frame_size"`

	// InputSampleRate is the microphone rate in Hz. Default: 16000.
	InputSampleRate int `json:"input_sample_rate"`

	// OutputSampleRate is the playback rate in Hz. Default: 24000.
	OutputSampleRate int `json:"output_sample_rate"`
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Voice:             "Aoede",
		Language:          "English",
		AssistantName:     "Murmur",
		StopPhrases:       []string{"goodbye", "sleep", "stop session"},
		StopDelay:         3 * time.Second,
		WakeRestartDelay:  time.Second,
		ActivityThreshold: 0.01,
		FrameSize:         4096,
		InputSampleRate:   16000,
		OutputSampleRate:  24000,
	}
}

// WithDefaults fills zero-valued fields from DefaultSessionConfig.
func (c SessionConfig) WithDefaults() SessionConfig {
	def := DefaultSessionConfig()
	if c.Voice == "" {
		c.Voice = def.Voice
	}
	if c.Language == "" {
		c.Language = def.Language
	}
	if c.AssistantName == "" {
		c.AssistantName = def.AssistantName
	}
	if len(c.StopPhrases) == 0 {
		c.StopPhrases = def.StopPhrases
	}
	if c.StopDelay <= 0 {
		c.StopDelay = def.StopDelay
	}
	if c.WakeRestartDelay <= 0 {
		c.WakeRestartDelay = def.WakeRestartDelay
	}
	if c.ActivityThreshold <= 0 {
		c.ActivityThreshold = def.ActivityThreshold
	}
	if c.FrameSize <= 0 {
		c.FrameSize = def.FrameSize
	}
	if c.InputSampleRate <= 0 {
		c.InputSampleRate = def.InputSampleRate
	}
	if c.OutputSampleRate <= 0 {
		c.OutputSampleRate = def.OutputSampleRate
	}
	return c
}

// Directive composes the single instruction string sent at connect time:
// persona, language, and creator attribution.
func (c SessionConfig) Directive() string {
	var b strings.Builder
	if c.SystemPrompt != "" {
		b.WriteString(strings.TrimSpace(c.SystemPrompt))
	} else {
		fmt.Fprintf(&b, "You are %s, a friendly voice assistant.", c.AssistantName)
	}
	fmt.Fprintf(&b, " Respond in %s.", c.Language)
	if c.Creator != "" {
		fmt.Fprintf(&b, " If asked who made you, say you were created by %s.", c.Creator)
	}
	return b.String()
}

// AudioConfig specifies PCM format parameters.
type AudioConfig struct {
	// SampleRate in Hz. Common values: 16000, 24000.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: 16 for the wire format used here.
	BitsPerSample int `json:"bits_per_sample"`
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// Duration returns the playback duration of the given byte count.
func (c AudioConfig) Duration(bytes int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(bps)
}

// BytesFor returns the byte count for the given duration.
func (c AudioConfig) BytesFor(d time.Duration) int {
	return int(int64(c.BytesPerSecond()) * int64(d) / int64(time.Second))
}
