package live

// Event is the interface for events exposed to the presentation layer.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StatusChangedEvent is emitted when the session status changes.
type StatusChangedEvent struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

func (e *StatusChangedEvent) EventType() string { return "status.changed" }

// VisualStatusChangedEvent is emitted when the derived visual status
// changes.
type VisualStatusChangedEvent struct {
	From VisualStatus `json:"from"`
	To   VisualStatus `json:"to"`
}

func (e *VisualStatusChangedEvent) EventType() string { return "visual.changed" }

// SessionOpenedEvent is emitted when the remote channel opens.
type SessionOpenedEvent struct {
	SessionID string        `json:"session_id"`
	Config    SessionConfig `json:"config"`
}

func (e *SessionOpenedEvent) EventType() string { return "session.opened" }

// SessionClosedEvent is emitted when a session ends, for any reason.
type SessionClosedEvent struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

func (e *SessionClosedEvent) EventType() string { return "session.closed" }

// TranscriptionEvent carries one finalized history record.
type TranscriptionEvent struct {
	Record Transcription `json:"record"`
}

func (e *TranscriptionEvent) EventType() string { return "transcription" }

// InterruptedEvent is emitted when the remote service signals the user
// interrupted the model mid-response and playback was cancelled.
type InterruptedEvent struct{}

func (e *InterruptedEvent) EventType() string { return "interrupted" }

// ErrorEvent is emitted for fatal session errors.
type ErrorEvent struct {
	Err *Error `json:"error"`
}

func (e *ErrorEvent) EventType() string { return "error" }

// WakeEvent is emitted when the wake trigger fires.
type WakeEvent struct {
	Text string `json:"text,omitempty"`
}

func (e *WakeEvent) EventType() string { return "wake" }
