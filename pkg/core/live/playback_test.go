package live

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced output clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

type fakeHandle struct {
	mu      sync.Mutex
	stopped bool
}

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
}

func (h *fakeHandle) wasStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

type sinkCall struct {
	pcm    []byte
	start  time.Duration
	onDone func()
	handle *fakeHandle
}

// fakeSink records scheduled segments and lets tests complete them.
type fakeSink struct {
	mu    sync.Mutex
	calls []sinkCall
	err   error
}

func (s *fakeSink) PlayAt(pcm []byte, start time.Duration, onDone func()) (SegmentHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	h := &fakeHandle{}
	s.calls = append(s.calls, sinkCall{pcm: pcm, start: start, onDone: onDone, handle: h})
	return h, nil
}

func (s *fakeSink) call(i int) sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func seg(d time.Duration) Segment {
	return Segment{PCM: make([]byte, 4), Duration: d}
}

func TestScheduler_BackToBack(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	sched := NewScheduler(clock, sink, nil)

	sched.Enqueue(seg(100 * time.Millisecond))
	sched.Enqueue(seg(100 * time.Millisecond))
	sched.Enqueue(seg(100 * time.Millisecond))

	want := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}
	for i, w := range want {
		if got := sink.call(i).start; got != w {
			t.Errorf("Segment %d: expected start %v, got %v", i, w, got)
		}
	}
	if got := sched.NextPlaybackTime(); got != 300*time.Millisecond {
		t.Errorf("Expected next playback time 300ms, got %v", got)
	}
}

func TestScheduler_StartsNeverDecrease(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	sched := NewScheduler(clock, sink, nil)

	sched.Enqueue(seg(50 * time.Millisecond))
	clock.advance(200 * time.Millisecond)
	sched.Enqueue(seg(50 * time.Millisecond))
	sched.Enqueue(seg(50 * time.Millisecond))

	var prev time.Duration
	for i := 0; i < sink.count(); i++ {
		start := sink.call(i).start
		if start < prev {
			t.Errorf("Segment %d start %v is before previous start %v", i, start, prev)
		}
		prev = start
	}
	// The second segment's slot at 50ms was already in the past.
	if got := sink.call(1).start; got != 200*time.Millisecond {
		t.Errorf("Expected stale slot bumped to clock time 200ms, got %v", got)
	}
}

func TestScheduler_DrainedSignal(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	sched := NewScheduler(clock, sink, nil)

	drained := 0
	sched.SetDrainedFunc(func() { drained++ })

	sched.Enqueue(seg(100 * time.Millisecond))
	sched.Enqueue(seg(100 * time.Millisecond))

	sink.call(0).onDone()
	if drained != 0 {
		t.Fatal("Drained fired while a segment was still active")
	}
	sink.call(1).onDone()
	if drained != 1 {
		t.Fatalf("Expected exactly one drained signal, got %d", drained)
	}
	if sched.Active() != 0 {
		t.Errorf("Expected empty active set, got %d", sched.Active())
	}
}

func TestScheduler_Interrupt(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	sched := NewScheduler(clock, sink, nil)

	drained := 0
	sched.SetDrainedFunc(func() { drained++ })

	sched.Enqueue(seg(100 * time.Millisecond))
	sched.Enqueue(seg(100 * time.Millisecond))
	clock.advance(30 * time.Millisecond)

	sched.Interrupt()

	for i := 0; i < 2; i++ {
		if !sink.call(i).handle.wasStopped() {
			t.Errorf("Segment %d was not stopped on interrupt", i)
		}
	}
	if sched.Active() != 0 {
		t.Errorf("Expected empty active set after interrupt, got %d", sched.Active())
	}
	if drained != 0 {
		t.Error("Interrupt must not fire the drained signal")
	}

	// Late completion of a stopped segment is a no-op.
	sink.call(0).onDone()
	if drained != 0 {
		t.Error("Stale completion fired the drained signal")
	}

	// The next segment schedules at the current clock, not a stale slot.
	sched.Enqueue(seg(100 * time.Millisecond))
	if got := sink.call(2).start; got != 30*time.Millisecond {
		t.Errorf("Expected post-interrupt start at clock time 30ms, got %v", got)
	}
}

func TestScheduler_SinkErrorDropsSegment(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{err: errors.New("device gone")}
	sched := NewScheduler(clock, sink, nil)

	sched.Enqueue(seg(100 * time.Millisecond))

	if sched.Active() != 0 {
		t.Errorf("Expected no active segments, got %d", sched.Active())
	}
	if got := sched.NextPlaybackTime(); got != 0 {
		t.Errorf("Expected next playback time unchanged at 0, got %v", got)
	}

	// Recovery: the sink comes back and the next segment plays.
	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()
	sched.Enqueue(seg(100 * time.Millisecond))
	if sink.count() != 1 {
		t.Fatalf("Expected one scheduled segment after recovery, got %d", sink.count())
	}
}
