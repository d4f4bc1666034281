package live

import (
	"context"
)

// ServerMessage is the inbound message union from the remote service.
// Any subset of fields may be present on one message; absent fields are
// zero-valued.
type ServerMessage struct {
	// Audio is a decoded PCM payload for playback.
	Audio []byte

	// InputTranscriptDelta is a partial transcript of the user's speech.
	InputTranscriptDelta string

	// OutputTranscriptDelta is a partial transcript of the model's speech.
	OutputTranscriptDelta string

	// TurnComplete marks the end of one user/model exchange.
	TurnComplete bool

	// Interrupted signals the user began speaking while model audio was
	// still playing; all pending playback must be cancelled.
	Interrupted bool
}

// ConnectOptions is the configuration payload sent once when the
// channel opens.
type ConnectOptions struct {
	// Voice is the synthesized voice name.
	Voice string

	// Directive is the composed instruction text (persona + language +
	// creator attribution).
	Directive string

	// InputSampleRate is the rate of outbound PCM frames in Hz.
	InputSampleRate int
}

// Channel is the bidirectional streaming connection to the remote
// speech-to-speech service, provided by an external client library.
type Channel interface {
	// Send transmits one encoded PCM frame.
	Send(frame []byte) error

	// Receive blocks for the next inbound message. It returns io.EOF on
	// a clean server-initiated close and any other error on failure.
	Receive() (ServerMessage, error)

	// Close tears the channel down. Idempotent.
	Close() error
}

// Dialer opens channels to the remote service.
type Dialer interface {
	Dial(ctx context.Context, opts ConnectOptions) (Channel, error)
}
