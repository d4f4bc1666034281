package live

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// OutputClock is the monotonically increasing clock of the audio output
// device. Zero is the moment the device opened.
type OutputClock interface {
	Now() time.Duration
}

// SegmentHandle controls one scheduled segment.
type SegmentHandle interface {
	// Stop cancels the segment immediately. Safe to call after the
	// segment finished.
	Stop()
}

// Sink accepts scheduled buffer playback requests against the output
// clock. onDone is invoked exactly once when the segment completes
// naturally; it is not invoked after Stop.
type Sink interface {
	PlayAt(pcm []byte, start time.Duration, onDone func()) (SegmentHandle, error)
}

// Segment is a decoded audio buffer awaiting playback.
type Segment struct {
	PCM      []byte
	Duration time.Duration
}

// Scheduler serializes bursty segment arrival into gapless, non-overlapping
// playback. Segments may arrive faster than real time; each is scheduled
// back-to-back after the previous one, falling back to "now" when the
// queue has drained so stale future timestamps never delay a start.
type Scheduler struct {
	clock OutputClock
	sink  Sink
	log   *zap.Logger

	mu        sync.Mutex
	next      time.Duration
	active    map[int64]SegmentHandle
	seq       int64
	onDrained func()
}

// NewScheduler creates a scheduler over the given clock and sink.
func NewScheduler(clock OutputClock, sink Sink, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		clock:  clock,
		sink:   sink,
		log:    log.Named("playback"),
		active: make(map[int64]SegmentHandle),
	}
}

// SetDrainedFunc registers the callback invoked when the last scheduled
// segment completes naturally. It runs on the sink's completion
// goroutine and must not block.
func (s *Scheduler) SetDrainedFunc(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrained = fn
}

// Enqueue schedules a segment at max(nextPlaybackTime, now) and advances
// nextPlaybackTime by the segment's duration. Sink errors are non-fatal:
// the segment is dropped, logged, and playback continues with the next.
func (s *Scheduler) Enqueue(seg Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.next
	if now := s.clock.Now(); now > start {
		start = now
	}

	id := s.seq
	s.seq++

	handle, err := s.sink.PlayAt(seg.PCM, start, func() { s.complete(id) })
	if err != nil {
		s.log.Warn("segment scheduling failed, dropping",
			zap.Int64("segment", id),
			zap.Duration("start", start),
			zap.Error(err))
		return
	}

	s.active[id] = handle
	s.next = start + seg.Duration
}

// complete removes a finished segment and fires the drained signal when
// the active set empties.
func (s *Scheduler) complete(id int64) {
	s.mu.Lock()
	if _, ok := s.active[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, id)
	drained := len(s.active) == 0
	fn := s.onDrained
	s.mu.Unlock()

	if drained && fn != nil {
		fn()
	}
}

// Interrupt stops all playing and pending segments, clears the active
// set, and resets nextPlaybackTime so the next enqueue schedules
// immediately.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	handles := make([]SegmentHandle, 0, len(s.active))
	for id, h := range s.active {
		handles = append(handles, h)
		delete(s.active, id)
	}
	s.next = 0
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

// Active returns the number of segments currently scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// NextPlaybackTime returns the clock value the next segment would be
// scheduled no earlier than.
func (s *Scheduler) NextPlaybackTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
