package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures a Manager.
type Options struct {
	// Config is the session configuration captured at each connect.
	Config SessionConfig

	// Dialer opens the bidirectional channel to the remote service.
	Dialer Dialer

	// Microphone is the capture device.
	Microphone Microphone

	// Clock and Sink are the speaker's monotonic clock and scheduled
	// playback interface.
	Clock OutputClock
	Sink  Sink

	// Recognizer is the always-on wake-word recognizer. Optional; when
	// nil, hands-free mode is unavailable.
	Recognizer Recognizer

	// HandsFree enables the wake trigger from startup.
	HandsFree bool

	Logger *zap.Logger
}

// Manager owns the session lifecycle: it supervises capture, transmit,
// receive and playback for at most one active session, and coordinates
// the optional always-listening wake trigger.
//
// All state transitions are driven by one ordered queue consumed by a
// single goroutine, so no further locking protects session state.
// Microphone frames, inbound channel messages and timer callbacks are
// funneled into that queue; blocking work (dial, teardown) runs off it
// and reports back as queue messages.
type Manager struct {
	cfg  SessionConfig
	log  *zap.Logger
	dial Dialer
	mic  Microphone
	clk  OutputClock
	sink Sink
	wake *WakeTrigger

	events chan Event
	queue  chan any
	done   chan struct{}

	started atomic.Bool
	closed  atomic.Bool

	// Loop-owned; never touched outside the loop goroutine.
	current       *session
	attempt       int64
	connectCancel context.CancelFunc

	// Snapshot of loop-owned state for concurrent readers.
	mu        sync.RWMutex
	status    Status
	visual    VisualStatus
	handsFree bool
	history   []Transcription
}

// session is the single active conversation context. Its configuration
// is captured at connect time and immutable for its lifetime.
type session struct {
	id      string
	cfg     SessionConfig
	channel Channel
	cancel  context.CancelFunc

	scheduler  *Scheduler
	transcript *Aggregator
	detector   *Detector
	outAudio   AudioConfig

	playbackActive bool
	captureActive  bool
}

// Queue messages. Each is handled on the loop goroutine.
type (
	msgRequestStart struct {
		fromWake bool
		text     string
	}
	msgStop            struct{ reason string }
	msgToggleHandsFree struct{}
	msgConnected struct {
		attempt int64
		channel Channel
		frames  <-chan Frame
		cancel  context.CancelFunc
		cfg     SessionConfig
	}
	msgConnectFailed struct {
		attempt int64
		err     *Error
	}
	msgServer struct {
		id  string
		msg ServerMessage
	}
	msgChannelClosed struct {
		id  string
		err error
	}
	msgActivity struct {
		id     string
		active bool
	}
	msgDrained  struct{ id string }
	msgShutdown struct{}
)

// NewManager creates a Manager. Call Start before using the action
// hooks.
func NewManager(opts Options) (*Manager, error) {
	if opts.Dialer == nil {
		return nil, fmt.Errorf("manager: dialer is required")
	}
	if opts.Microphone == nil {
		return nil, fmt.Errorf("manager: microphone is required")
	}
	if opts.Clock == nil || opts.Sink == nil {
		return nil, fmt.Errorf("manager: output clock and sink are required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("session")

	m := &Manager{
		cfg:       opts.Config.WithDefaults(),
		log:       log,
		dial:      opts.Dialer,
		mic:       opts.Microphone,
		clk:       opts.Clock,
		sink:      opts.Sink,
		events:    make(chan Event, 100),
		queue:     make(chan any, 256),
		done:      make(chan struct{}),
		status:    StatusDisconnected,
		visual:    VisualIdle,
		handsFree: opts.HandsFree,
	}
	if opts.Recognizer != nil {
		m.wake = NewWakeTrigger(
			opts.Recognizer,
			m.cfg.AssistantName,
			m.cfg.WakeRestartDelay,
			func(text string) {
				// Never blocks: the loop may be waiting on the wake
				// trigger's own shutdown. A dropped wake under a full
				// queue just means the phrase must be repeated.
				select {
				case m.queue <- msgRequestStart{fromWake: true, text: text}:
				default:
				}
			},
			log,
		)
	}
	return m, nil
}

// Start begins processing the event queue. A no-op when already started.
func (m *Manager) Start() {
	if m.started.Swap(true) {
		return
	}
	go m.loop()
	if m.handsFree && m.wake != nil {
		m.wake.Enable()
	}
}

// Close tears down any active session and stops the manager. Idempotent.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.wake != nil {
		m.wake.Disable()
	}
	if m.started.Load() {
		m.queue <- msgShutdown{}
		<-m.done
	} else {
		close(m.done)
		close(m.events)
	}
	return nil
}

// Events returns the channel of presentation-layer events.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// RequestStart opens a session. Valid only while disconnected; a no-op
// when a session is already connecting or connected.
func (m *Manager) RequestStart() {
	m.post(msgRequestStart{})
}

// StopSession ends the active session. Idempotent and safe from any
// state.
func (m *Manager) StopSession() {
	m.post(msgStop{reason: "requested"})
}

// ToggleHandsFree flips hands-free mode, enabling or disabling the
// always-on wake recognizer.
func (m *Manager) ToggleHandsFree() {
	m.post(msgToggleHandsFree{})
}

// Status returns the externally observable session status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// VisualStatus returns the finer-grained presentation status.
func (m *Manager) VisualStatus() VisualStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visual
}

// HandsFree reports whether hands-free mode is on.
func (m *Manager) HandsFree() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handsFree
}

// History returns a copy of the ordered, append-only transcription log.
func (m *Manager) History() []Transcription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Transcription, len(m.history))
	copy(out, m.history)
	return out
}

// post enqueues a message without ever blocking a frame or recognizer
// callback; messages are dropped once the manager shuts down.
func (m *Manager) post(msg any) {
	select {
	case m.queue <- msg:
	case <-m.done:
	}
}

func (m *Manager) loop() {
	for {
		select {
		case <-m.done:
			return
		case raw := <-m.queue:
			switch msg := raw.(type) {
			case msgRequestStart:
				m.handleRequestStart(msg)
			case msgStop:
				m.handleStop(msg.reason)
			case msgToggleHandsFree:
				m.handleToggleHandsFree()
			case msgConnected:
				m.handleConnected(msg)
			case msgConnectFailed:
				m.handleConnectFailed(msg)
			case msgServer:
				m.handleServer(msg)
			case msgChannelClosed:
				m.handleChannelClosed(msg)
			case msgActivity:
				m.handleActivity(msg)
			case msgDrained:
				m.handleDrained(msg)
			case msgShutdown:
				m.handleStop("shutdown")
				close(m.done)
				close(m.events)
				return
			}
		}
	}
}

func (m *Manager) handleRequestStart(msg msgRequestStart) {
	if m.statusLocked() != StatusDisconnected {
		m.log.Debug("ignoring start request",
			zap.Stringer("status", m.statusLocked()))
		return
	}
	if msg.fromWake {
		if !m.handsFreeLocked() {
			return
		}
		m.emit(&WakeEvent{Text: msg.text})
	}

	m.attempt++
	attempt := m.attempt
	cfg := m.cfg

	// The local recognizer and a live session never run simultaneously.
	if m.wake != nil {
		m.wake.Disable()
	}

	m.setStatus(StatusConnecting)
	m.log.Info("connecting",
		zap.String("voice", cfg.Voice),
		zap.String("language", cfg.Language))

	ctx, cancel := context.WithCancel(context.Background())
	m.connectCancel = cancel
	go m.connect(ctx, cancel, attempt, cfg)
}

// connect performs the blocking acquisition work off the loop goroutine
// and reports the outcome back as a queue message.
func (m *Manager) connect(ctx context.Context, cancel context.CancelFunc, attempt int64, cfg SessionConfig) {
	frames, err := m.mic.Start(ctx)
	if err != nil {
		cancel()
		m.post(msgConnectFailed{
			attempt: attempt,
			err:     NewAcquisitionError("open microphone", err),
		})
		return
	}

	ch, err := m.dial.Dial(ctx, ConnectOptions{
		Voice:           cfg.Voice,
		Directive:       cfg.Directive(),
		InputSampleRate: cfg.InputSampleRate,
	})
	if err != nil {
		_ = m.mic.Stop()
		cancel()
		m.post(msgConnectFailed{
			attempt: attempt,
			err:     NewChannelError("open remote channel", err),
		})
		return
	}

	m.post(msgConnected{
		attempt: attempt,
		channel: ch,
		frames:  frames,
		cancel:  cancel,
		cfg:     cfg,
	})
}

func (m *Manager) handleConnected(msg msgConnected) {
	if msg.attempt != m.attempt || m.statusLocked() != StatusConnecting {
		// A stop superseded this attempt while the dial was in flight.
		msg.cancel()
		_ = msg.channel.Close()
		_ = m.mic.Stop()
		return
	}
	m.connectCancel = nil

	sess := &session{
		id:      uuid.NewString(),
		cfg:     msg.cfg,
		channel: msg.channel,
		cancel:  msg.cancel,
		outAudio: AudioConfig{
			SampleRate:    msg.cfg.OutputSampleRate,
			Channels:      1,
			BitsPerSample: 16,
		},
		transcript: NewAggregator(),
	}
	sess.scheduler = NewScheduler(m.clk, m.sink, m.log)
	id := sess.id
	sess.scheduler.SetDrainedFunc(func() { m.post(msgDrained{id: id}) })
	sess.detector = NewDetector(msg.cfg.StopPhrases, msg.cfg.StopDelay, func() {
		m.post(msgStop{reason: "stop command"})
	}, m.log)

	m.current = sess
	m.setStatus(StatusConnected)
	m.log.Info("connected", zap.String("session_id", sess.id))
	m.emit(&SessionOpenedEvent{SessionID: sess.id, Config: sess.cfg})

	go m.receiveLoop(sess)
	go m.captureLoop(sess, msg.frames)
}

func (m *Manager) handleConnectFailed(msg msgConnectFailed) {
	if msg.attempt != m.attempt || m.statusLocked() != StatusConnecting {
		return
	}
	m.connectCancel = nil

	m.log.Error("connect failed", zap.Error(msg.err))
	m.setStatus(StatusError)
	m.emit(&ErrorEvent{Err: msg.err})
	m.setStatus(StatusDisconnected)
	m.restartWake()
}

// receiveLoop pumps inbound channel messages into the queue.
func (m *Manager) receiveLoop(sess *session) {
	for {
		msg, err := sess.channel.Receive()
		if err != nil {
			m.post(msgChannelClosed{id: sess.id, err: err})
			return
		}
		m.post(msgServer{id: sess.id, msg: msg})
	}
}

// captureLoop runs the capture pipeline over the microphone frame
// stream. Frames go straight to the outbound channel; only activity
// flips are posted to the queue.
func (m *Manager) captureLoop(sess *session, frames <-chan Frame) {
	var (
		lastActive bool
		sendFailed bool
	)
	pipeline := NewPipeline(sess.cfg.ActivityThreshold, func(encoded []byte, active bool) {
		if !sendFailed {
			if err := sess.channel.Send(encoded); err != nil {
				sendFailed = true
				m.post(msgChannelClosed{id: sess.id, err: err})
			}
		}
		if active != lastActive {
			lastActive = active
			m.post(msgActivity{id: sess.id, active: active})
		}
	})

	for frame := range frames {
		pipeline.Push(frame)
		if sendFailed {
			return
		}
	}
}

func (m *Manager) handleServer(msg msgServer) {
	sess := m.current
	if sess == nil || sess.id != msg.id || m.statusLocked() != StatusConnected {
		return
	}

	if len(msg.msg.Audio) > 0 {
		if len(msg.msg.Audio)%2 != 0 {
			m.log.Warn("dropping malformed audio frame",
				zap.Int("bytes", len(msg.msg.Audio)),
				zap.Error(NewFormatError("audio payload must contain whole s16le samples")))
		} else {
			sess.scheduler.Enqueue(Segment{
				PCM:      msg.msg.Audio,
				Duration: sess.outAudio.Duration(len(msg.msg.Audio)),
			})
			if !sess.playbackActive {
				sess.playbackActive = true
				m.refreshVisual()
			}
		}
	}

	if msg.msg.InputTranscriptDelta != "" {
		sess.transcript.AppendInput(msg.msg.InputTranscriptDelta)
		sess.detector.Scan(sess.transcript.InputText())
	}

	if msg.msg.OutputTranscriptDelta != "" {
		sess.transcript.AppendOutput(msg.msg.OutputTranscriptDelta)
	}

	if msg.msg.TurnComplete {
		records := sess.transcript.Finalize(time.Now())
		m.mu.Lock()
		m.history = append(m.history, records...)
		m.mu.Unlock()
		for _, r := range records {
			m.emit(&TranscriptionEvent{Record: r})
		}
	}

	if msg.msg.Interrupted {
		m.log.Debug("user interrupted model audio, flushing playback")
		sess.scheduler.Interrupt()
		if sess.playbackActive {
			sess.playbackActive = false
			m.refreshVisual()
		}
		m.emit(&InterruptedEvent{})
	}
}

func (m *Manager) handleChannelClosed(msg msgChannelClosed) {
	sess := m.current
	if sess == nil || sess.id != msg.id {
		return
	}

	if errors.Is(msg.err, io.EOF) {
		m.log.Info("remote channel closed by server")
		m.teardown(sess, "server closed")
		return
	}

	chanErr := NewChannelError("remote channel failed", msg.err)
	var known *Error
	if errors.As(msg.err, &known) {
		chanErr = known
	}
	m.log.Error("remote channel error", zap.Error(chanErr))
	m.setStatus(StatusError)
	m.emit(&ErrorEvent{Err: chanErr})
	m.teardown(sess, "channel error")
}

func (m *Manager) handleActivity(msg msgActivity) {
	sess := m.current
	if sess == nil || sess.id != msg.id {
		return
	}
	sess.captureActive = msg.active
	m.refreshVisual()
}

func (m *Manager) handleDrained(msg msgDrained) {
	sess := m.current
	if sess == nil || sess.id != msg.id {
		return
	}
	sess.playbackActive = false
	m.refreshVisual()
}

func (m *Manager) handleStop(reason string) {
	switch m.statusLocked() {
	case StatusConnecting:
		// Invalidate the in-flight attempt; its completion message
		// will arrive stale and be discarded.
		m.attempt++
		if m.connectCancel != nil {
			m.connectCancel()
			m.connectCancel = nil
		}
		_ = m.mic.Stop()
		m.setStatus(StatusDisconnected)
		m.restartWake()
	case StatusConnected:
		m.teardown(m.current, reason)
	default:
		// Already disconnected; stop is a no-op from any state.
	}
}

// teardown releases whatever subset of resources the session holds, in
// any order, without raising on already-released resources.
func (m *Manager) teardown(sess *session, reason string) {
	m.current = nil
	if sess != nil {
		sess.detector.Cancel()
		sess.scheduler.Interrupt()
		_ = sess.channel.Close()
		sess.cancel()
	}
	_ = m.mic.Stop()

	m.setStatus(StatusDisconnected)
	if sess != nil {
		m.log.Info("session closed",
			zap.String("session_id", sess.id),
			zap.String("reason", reason))
		m.emit(&SessionClosedEvent{SessionID: sess.id, Reason: reason})
	}
	m.restartWake()
}

func (m *Manager) handleToggleHandsFree() {
	m.mu.Lock()
	m.handsFree = !m.handsFree
	on := m.handsFree
	m.mu.Unlock()

	if m.wake == nil {
		if on {
			m.log.Warn("hands-free enabled but no recognizer is configured")
		}
		return
	}
	if on && m.statusLocked() == StatusDisconnected {
		m.wake.Enable()
	} else if !on {
		m.wake.Disable()
	}
}

// restartWake re-enables the wake trigger after a session ends, if
// hands-free is still desired.
func (m *Manager) restartWake() {
	if m.wake != nil && m.handsFreeLocked() && !m.closed.Load() {
		m.wake.Enable()
	}
}

func (m *Manager) statusLocked() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) handsFreeLocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handsFree
}

func (m *Manager) setStatus(st Status) {
	m.mu.Lock()
	old := m.status
	m.status = st
	m.mu.Unlock()

	if old != st {
		m.log.Debug("status", zap.Stringer("from", old), zap.Stringer("to", st))
		m.emit(&StatusChangedEvent{From: old, To: st})
	}
	m.refreshVisual()
}

func (m *Manager) refreshVisual() {
	var playback, capture bool
	if sess := m.current; sess != nil {
		playback = sess.playbackActive
		capture = sess.captureActive
	}

	m.mu.Lock()
	next := deriveVisualStatus(m.status, playback, capture)
	old := m.visual
	m.visual = next
	m.mu.Unlock()

	if old != next {
		m.emit(&VisualStatusChangedEvent{From: old, To: next})
	}
}

// emit sends an event to the presentation channel, dropping it when the
// consumer has fallen behind.
func (m *Manager) emit(event Event) {
	select {
	case m.events <- event:
	default:
	}
}
