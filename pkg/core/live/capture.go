package live

import (
	"context"
)

// Frame is one fixed-size block of microphone samples. Immutable once
// produced.
type Frame struct {
	Samples    []float32
	SampleRate int
}

// Microphone is the consumed capture device. Start yields a stream of
// fixed-size frames at a steady cadence; the channel closes when the
// device stops or the context is cancelled. Stop is idempotent.
type Microphone interface {
	Start(ctx context.Context) (<-chan Frame, error)
	Stop() error
}

// Pipeline turns live microphone frames into outbound wire frames while
// producing a lightweight voice-activity signal. All frames are
// forwarded regardless of activity; the signal only influences the
// displayed visual status.
type Pipeline struct {
	threshold float64
	emit      func(encoded []byte, active bool)
}

// NewPipeline creates a capture pipeline. emit receives each encoded
// frame as soon as it is produced, with no local buffering or batching;
// it runs on the frame-delivery goroutine and must return quickly.
func NewPipeline(threshold float64, emit func(encoded []byte, active bool)) *Pipeline {
	return &Pipeline{threshold: threshold, emit: emit}
}

// Push processes a single frame: computes the activity signal, encodes
// the samples to the wire format, and hands the result to emit.
func (p *Pipeline) Push(frame Frame) {
	active := MeanAbsAmplitude(frame.Samples) > p.threshold
	p.emit(EncodeFrame(frame.Samples), active)
}
