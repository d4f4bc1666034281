// Package gemini adapts the Gemini Live API to the session channel
// interface. It carries raw PCM both ways and surfaces the model's
// turn, interruption and transcription signals.
package gemini

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/murmurkit/murmur/pkg/core/live"
)

// DefaultModel is the live-audio model used when none is configured.
const DefaultModel = "gemini-2.0-flash-live-001"

// Config configures the Gemini dialer.
type Config struct {
	// APIKey authenticates against the Gemini API. Falls back to the
	// GEMINI_API_KEY environment variable when empty.
	APIKey string

	// Model overrides DefaultModel.
	Model string
}

// Dialer opens live sessions against the Gemini API.
type Dialer struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

// NewDialer creates a Gemini dialer.
func NewDialer(ctx context.Context, cfg Config, log *zap.Logger) (*Dialer, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required (set GEMINI_API_KEY)")
	}
	if log == nil {
		log = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Dialer{client: client, model: model, log: log.Named("gemini")}, nil
}

// Dial opens a live session configured for audio responses with
// transcription of both directions enabled.
func (d *Dialer) Dial(ctx context.Context, opts live.ConnectOptions) (live.Channel, error) {
	connectCfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: opts.Directive}},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if opts.Voice != "" {
		connectCfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: opts.Voice},
			},
		}
	}

	d.log.Debug("connecting live session",
		zap.String("model", d.model),
		zap.String("voice", opts.Voice))

	session, err := d.client.Live.Connect(ctx, d.model, connectCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: connect live session: %w", err)
	}

	return &channel{
		session:  session,
		mimeType: fmt.Sprintf("audio/pcm;rate=%d", opts.InputSampleRate),
	}, nil
}

// channel wraps one live Gemini session.
type channel struct {
	session  *genai.Session
	mimeType string
}

func (c *channel) Send(frame []byte) error {
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: frame, MIMEType: c.mimeType},
	})
}

func (c *channel) Receive() (live.ServerMessage, error) {
	msg, err := c.session.Receive()
	if err != nil {
		// io.EOF passes through untouched so the session manager can
		// tell a clean server close from a failure.
		return live.ServerMessage{}, err
	}
	return mapServerMessage(msg), nil
}

func (c *channel) Close() error {
	return c.session.Close()
}

// mapServerMessage flattens one live API message into the channel's
// neutral shape. Unknown content is dropped.
func mapServerMessage(msg *genai.LiveServerMessage) live.ServerMessage {
	var out live.ServerMessage
	if msg == nil || msg.ServerContent == nil {
		return out
	}
	content := msg.ServerContent

	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part != nil && part.InlineData != nil {
				out.Audio = append(out.Audio, part.InlineData.Data...)
			}
		}
	}
	if content.InputTranscription != nil {
		out.InputTranscriptDelta = content.InputTranscription.Text
	}
	if content.OutputTranscription != nil {
		out.OutputTranscriptDelta = content.OutputTranscription.Text
	}
	out.TurnComplete = content.TurnComplete
	out.Interrupted = content.Interrupted
	return out
}
