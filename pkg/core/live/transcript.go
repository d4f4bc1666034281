package live

import (
	"strings"
	"sync"
	"time"
)

// Sender identifies which side of the conversation produced a record.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderModel Sender = "model"
)

// Transcription is one finalized utterance in the ordered, append-only
// history log.
type Transcription struct {
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Aggregator accumulates streamed partial text for the current
// conversational turn. Both fields grow monotonically via append and are
// reset exactly at turn completion.
type Aggregator struct {
	mu     sync.Mutex
	input  strings.Builder
	output strings.Builder
}

// NewAggregator creates an empty per-turn draft.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AppendInput appends a user transcript delta to the draft.
func (a *Aggregator) AppendInput(delta string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.input.WriteString(delta)
}

// AppendOutput appends a model transcript delta to the draft.
func (a *Aggregator) AppendOutput(delta string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.output.WriteString(delta)
}

// InputText returns the accumulated user text for the current turn.
func (a *Aggregator) InputText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.input.String()
}

// OutputText returns the accumulated model text for the current turn.
func (a *Aggregator) OutputText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.output.String()
}

// Finalize emits the user and model records for the completed turn and
// resets the draft. Two records are emitted unconditionally, even when
// one or both sides are empty text; callers may filter empty display
// text but the history entries exist for every turn-complete signal.
func (a *Aggregator) Finalize(now time.Time) []Transcription {
	a.mu.Lock()
	defer a.mu.Unlock()

	records := []Transcription{
		{Text: a.input.String(), Sender: SenderUser, Timestamp: now},
		{Text: a.output.String(), Sender: SenderModel, Timestamp: now},
	}
	a.input.Reset()
	a.output.Reset()
	return records
}
