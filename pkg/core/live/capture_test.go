package live

import (
	"testing"
)

func TestPipeline_ForwardsAllFrames(t *testing.T) {
	var frames int
	var actives []bool
	p := NewPipeline(0.01, func(encoded []byte, active bool) {
		frames++
		actives = append(actives, active)
		if len(encoded) != 8 {
			t.Errorf("Expected 8 encoded bytes per 4-sample frame, got %d", len(encoded))
		}
	})

	loud := Frame{Samples: []float32{0.5, -0.5, 0.5, -0.5}, SampleRate: 16000}
	quiet := Frame{Samples: []float32{0.001, -0.001, 0.001, -0.001}, SampleRate: 16000}

	p.Push(quiet)
	p.Push(loud)
	p.Push(quiet)

	if frames != 3 {
		t.Fatalf("Expected all 3 frames forwarded, got %d", frames)
	}
	want := []bool{false, true, false}
	for i, w := range want {
		if actives[i] != w {
			t.Errorf("Frame %d: expected active=%v, got %v", i, w, actives[i])
		}
	}
}

func TestPipeline_ThresholdIsExclusive(t *testing.T) {
	var got []bool
	p := NewPipeline(0.5, func(_ []byte, active bool) { got = append(got, active) })

	// Mean exactly at the threshold does not count as active.
	p.Push(Frame{Samples: []float32{0.5, -0.5}})
	p.Push(Frame{Samples: []float32{0.6, -0.6}})

	if got[0] {
		t.Error("Expected mean equal to threshold to be inactive")
	}
	if !got[1] {
		t.Error("Expected mean above threshold to be active")
	}
}
