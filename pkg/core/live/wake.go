package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RecognizerResult is one interim or final result from the always-on
// local speech recognizer.
type RecognizerResult struct {
	Text  string
	Final bool
}

// RecognizerStream is one live recognition stream. Results closes when
// the stream ends, naturally or otherwise; Err reports the terminal
// error, if any, once Results has closed.
type RecognizerStream interface {
	Results() <-chan RecognizerResult
	Err() error
	Close() error
}

// Recognizer is the consumed always-on speech recognition capability.
type Recognizer interface {
	Start(ctx context.Context) (RecognizerStream, error)
}

// WakeTrigger runs the local recognizer while hands-free mode is on and
// no session is active, and fires onWake when a result contains the
// wake phrase. Recognizer failures are absorbed: the stream is
// restarted on a fixed backoff for as long as the trigger stays
// enabled.
type WakeTrigger struct {
	rec          Recognizer
	name         string
	restartDelay time.Duration
	onWake       func(text string)
	log          *zap.Logger

	mu      sync.Mutex
	desired bool
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewWakeTrigger creates a wake trigger matching "wake up", or "hey"
// together with the assistant's name. onWake receives the recognized
// text, runs on the trigger's goroutine and must not block.
func NewWakeTrigger(rec Recognizer, assistantName string, restartDelay time.Duration, onWake func(text string), log *zap.Logger) *WakeTrigger {
	if log == nil {
		log = zap.NewNop()
	}
	return &WakeTrigger{
		rec:          rec,
		name:         strings.ToLower(assistantName),
		restartDelay: restartDelay,
		onWake:       onWake,
		log:          log.Named("wake"),
	}
}

// Enable starts the recognizer loop. A no-op while already enabled.
func (w *WakeTrigger) Enable() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.desired {
		return
	}
	w.desired = true

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.stopped = make(chan struct{})
	go w.run(ctx, w.stopped)
}

// Disable stops the recognizer and waits for the loop to exit. A no-op
// while already disabled. Safe to call from any state.
func (w *WakeTrigger) Disable() {
	w.mu.Lock()
	if !w.desired {
		w.mu.Unlock()
		return
	}
	w.desired = false
	cancel := w.cancel
	stopped := w.stopped
	w.cancel = nil
	w.stopped = nil
	w.mu.Unlock()

	cancel()
	<-stopped
}

// Enabled reports whether the trigger is currently desired on.
func (w *WakeTrigger) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.desired
}

func (w *WakeTrigger) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	for {
		if ctx.Err() != nil {
			return
		}

		stream, err := w.rec.Start(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("recognizer start failed, retrying",
				zap.Duration("backoff", w.restartDelay),
				zap.Error(NewRecognizerError("start recognition stream", err)))
			if !w.sleep(ctx) {
				return
			}
			continue
		}

		w.consume(ctx, stream)
		_ = stream.Close()

		if ctx.Err() != nil {
			return
		}
		if err := stream.Err(); err != nil {
			// Internal error: restart after the backoff while
			// hands-free is still desired.
			w.log.Warn("recognizer stream failed, restarting",
				zap.Duration("backoff", w.restartDelay),
				zap.Error(NewRecognizerError("recognition stream", err)))
			if !w.sleep(ctx) {
				return
			}
			continue
		}
		// Natural end: restart immediately while still desired.
		w.log.Debug("recognizer stream ended, restarting")
	}
}

func (w *WakeTrigger) consume(ctx context.Context, stream RecognizerStream) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-stream.Results():
			if !ok {
				return
			}
			if w.matches(result.Text) {
				w.log.Info("wake phrase detected", zap.String("text", result.Text))
				w.onWake(result.Text)
			}
		}
	}
}

func (w *WakeTrigger) matches(text string) bool {
	lowered := strings.ToLower(text)
	if strings.Contains(lowered, "wake up") {
		return true
	}
	return strings.Contains(lowered, "hey") && strings.Contains(lowered, w.name)
}

func (w *WakeTrigger) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.restartDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
