package audio

import (
	"sync"
	"testing"
	"time"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

func newTestSpeaker() *Speaker {
	return &Speaker{
		sampleRate: 24000,
		log:        zap.NewNop(),
		device:     &malgo.Device{},
	}
}

func TestSpeaker_RendersQueuedAudio(t *testing.T) {
	sp := newTestSpeaker()
	done := make(chan struct{}, 1)
	if _, err := sp.PlayAt([]byte{1, 2, 3, 4}, 0, func() { done <- struct{}{} }); err != nil {
		t.Fatalf("PlayAt failed: %v", err)
	}

	out := make([]byte, 8)
	sp.onSendFrames(out, nil, 4)

	want := []byte{1, 2, 3, 4, 0, 0, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("Expected rendered buffer %v, got %v", want, out)
		}
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Expected completion callback to fire")
	}
	if got := sp.Now(); got != sp.durationOf(4) {
		t.Errorf("Expected clock at 4 samples, got %v", got)
	}
}

func TestSpeaker_InsertsSilenceBeforeStart(t *testing.T) {
	sp := newTestSpeaker()
	start := sp.durationOf(2)
	if _, err := sp.PlayAt([]byte{9, 9, 9, 9}, start, nil); err != nil {
		t.Fatalf("PlayAt failed: %v", err)
	}

	out := make([]byte, 8)
	sp.onSendFrames(out, nil, 4)

	want := []byte{0, 0, 0, 0, 9, 9, 9, 9}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("Expected gap then audio %v, got %v", want, out)
		}
	}
}

func TestSpeaker_StoppedSegmentIsSkipped(t *testing.T) {
	sp := newTestSpeaker()
	fired := make(chan struct{}, 1)
	h, err := sp.PlayAt([]byte{7, 7, 7, 7}, 0, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("PlayAt failed: %v", err)
	}
	h.Stop()

	out := make([]byte, 8)
	sp.onSendFrames(out, nil, 4)

	for i, b := range out {
		if b != 0 {
			t.Fatalf("Expected silence after stop, got %d at byte %d", b, i)
		}
	}
	select {
	case <-fired:
		t.Error("Expected no completion callback after stop")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSpeaker_StopDuringRender(t *testing.T) {
	sp := newTestSpeaker()
	data := make([]byte, 480)
	var handles []interface{ Stop() }
	for i := 0; i < 32; i++ {
		h, err := sp.PlayAt(data, sp.durationOf(int64(i)*240), nil)
		if err != nil {
			t.Fatalf("PlayAt failed: %v", err)
		}
		handles = append(handles, h)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, h := range handles {
			h.Stop()
		}
	}()

	out := make([]byte, 256)
	for i := 0; i < 64; i++ {
		sp.onSendFrames(out, nil, 128)
	}
	wg.Wait()
}
