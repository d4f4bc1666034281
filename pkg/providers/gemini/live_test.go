package gemini

import (
	"bytes"
	"testing"

	"google.golang.org/genai"
)

func TestMapServerMessage_Empty(t *testing.T) {
	if got := mapServerMessage(nil); len(got.Audio) != 0 || got.TurnComplete {
		t.Errorf("Expected zero message for nil input, got %+v", got)
	}
	if got := mapServerMessage(&genai.LiveServerMessage{}); len(got.Audio) != 0 {
		t.Errorf("Expected zero message for empty content, got %+v", got)
	}
}

func TestMapServerMessage_ConcatenatesAudioParts(t *testing.T) {
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{
				Parts: []*genai.Part{
					{InlineData: &genai.Blob{Data: []byte{1, 2}}},
					{Text: "ignored"},
					nil,
					{InlineData: &genai.Blob{Data: []byte{3, 4}}},
				},
			},
		},
	}

	got := mapServerMessage(msg)
	if !bytes.Equal(got.Audio, []byte{1, 2, 3, 4}) {
		t.Errorf("Expected concatenated audio, got %v", got.Audio)
	}
}

func TestMapServerMessage_Signals(t *testing.T) {
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			InputTranscription:  &genai.Transcription{Text: "hello "},
			OutputTranscription: &genai.Transcription{Text: "hi"},
			TurnComplete:        true,
			Interrupted:         true,
		},
	}

	got := mapServerMessage(msg)
	if got.InputTranscriptDelta != "hello " {
		t.Errorf("Expected input delta, got %q", got.InputTranscriptDelta)
	}
	if got.OutputTranscriptDelta != "hi" {
		t.Errorf("Expected output delta, got %q", got.OutputTranscriptDelta)
	}
	if !got.TurnComplete || !got.Interrupted {
		t.Errorf("Expected both signals set, got %+v", got)
	}
}
