package live

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Detector scans the accumulated input transcript for exit phrases and
// requests session termination after a delay, giving the model room to
// finish an acknowledgement utterance before teardown.
type Detector struct {
	phrases []string
	delay   time.Duration
	stop    func()
	log     *zap.Logger

	mu      sync.Mutex
	pending *time.Timer
}

// NewDetector creates a detector over the given lowercase phrases.
// stop runs on a timer goroutine after delay; it must not block.
func NewDetector(phrases []string, delay time.Duration, stop func(), log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	return &Detector{
		phrases: lowered,
		delay:   delay,
		stop:    stop,
		log:     log.Named("command"),
	}
}

// Scan checks the full accumulated input text for any exit phrase and
// schedules the delayed stop on the first match. Only one delayed stop
// may be pending at a time; matches while one is pending are no-ops.
// Returns true when a stop was newly scheduled.
func (d *Detector) Scan(accumulated string) bool {
	text := strings.ToLower(accumulated)

	var matched string
	for _, p := range d.phrases {
		if strings.Contains(text, p) {
			matched = p
			break
		}
	}
	if matched == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		return false
	}

	d.log.Info("stop phrase detected, scheduling session stop",
		zap.String("phrase", matched),
		zap.Duration("delay", d.delay))
	d.pending = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		d.pending = nil
		d.mu.Unlock()
		d.stop()
	})
	return true
}

// Cancel aborts a pending delayed stop so a superseding state change
// (a second stop, a reconnect) never acts on a stale session.
func (d *Detector) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}

// Pending reports whether a delayed stop is currently scheduled.
func (d *Detector) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}
