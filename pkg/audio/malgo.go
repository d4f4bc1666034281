// Package audio binds the session's capture and playback interfaces to
// real devices through miniaudio.
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/murmurkit/murmur/pkg/core/live"
)

// Devices owns the miniaudio context shared by all devices.
type Devices struct {
	ctx *malgo.AllocatedContext
	log *zap.Logger
}

// NewDevices initializes the audio backend.
func NewDevices(log *zap.Logger) (*Devices, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}
	return &Devices{ctx: ctx, log: log.Named("audio")}, nil
}

// Close releases the audio backend. Devices created from it must be
// stopped first.
func (d *Devices) Close() {
	_ = d.ctx.Uninit()
	d.ctx.Free()
}

// NewMicrophone creates a capture device producing fixed-size frames.
func (d *Devices) NewMicrophone(sampleRate, frameSize int) *Microphone {
	return &Microphone{
		parent:     d,
		sampleRate: sampleRate,
		frameSize:  frameSize,
		log:        d.log.Named("mic"),
	}
}

// Microphone captures mono float32 audio from the default input device.
// Start and Stop may be called repeatedly; the device is held only
// between them.
type Microphone struct {
	parent     *Devices
	sampleRate int
	frameSize  int
	log        *zap.Logger

	mu     sync.Mutex
	device *malgo.Device
	frames chan live.Frame
}

// Start opens the default capture device and begins producing frames.
// Frames are dropped when the consumer falls behind; capture never
// blocks the device callback.
func (m *Microphone) Start(ctx context.Context) (<-chan live.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return nil, fmt.Errorf("audio: microphone already started")
	}

	frames := make(chan live.Frame, 64)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	var buf []float32
	dropped := 0
	onRecvFrames := func(_, pSample []byte, frameCount uint32) {
		n := int(frameCount)
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(pSample[i*4:])
			buf = append(buf, math.Float32frombits(bits))
		}
		for len(buf) >= m.frameSize {
			frame := make([]float32, m.frameSize)
			copy(frame, buf[:m.frameSize])
			buf = append(buf[:0], buf[m.frameSize:]...)
			select {
			case frames <- live.Frame{Samples: frame, SampleRate: m.sampleRate}:
			default:
				dropped++
				if dropped%100 == 1 {
					m.log.Warn("dropping capture frames, consumer is slow",
						zap.Int("dropped", dropped))
				}
			}
		}
	}

	device, err := malgo.InitDevice(m.parent.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return nil, fmt.Errorf("audio: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("audio: start capture device: %w", err)
	}

	m.device = device
	m.frames = frames
	m.log.Debug("capture started",
		zap.Int("sample_rate", m.sampleRate),
		zap.Int("frame_size", m.frameSize))
	return frames, nil
}

// Stop releases the capture device and closes the frame channel.
// Idempotent.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	m.device.Uninit()
	m.device = nil
	close(m.frames)
	m.frames = nil
	m.log.Debug("capture stopped")
	return nil
}

// queued is one segment awaiting or undergoing playback. stopped is
// guarded by the owning speaker's mutex; the render callback reads it
// under the same lock.
type queued struct {
	owner       *Speaker
	startSample int64
	data        []byte
	pos         int
	onDone      func()
	stopped     bool
}

// Stop cancels the segment. onDone will not fire afterwards.
func (q *queued) Stop() {
	q.owner.mu.Lock()
	q.stopped = true
	q.owner.mu.Unlock()
}

// Speaker plays scheduled s16le segments on the default output device
// and exposes the device's running sample counter as the output clock.
// It implements both the clock and sink halves of playback scheduling.
type Speaker struct {
	sampleRate int
	log        *zap.Logger

	mu      sync.Mutex
	device  *malgo.Device
	samples int64
	queue   []*queued
}

// NewSpeaker opens the default playback device. The output clock starts
// at zero and runs for the life of the speaker.
func (d *Devices) NewSpeaker(sampleRate int) (*Speaker, error) {
	s := &Speaker{sampleRate: sampleRate, log: d.log.Named("speaker")}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(d.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onSendFrames,
	})
	if err != nil {
		return nil, fmt.Errorf("audio: init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("audio: start playback device: %w", err)
	}
	s.device = device
	return s, nil
}

// Close releases the playback device.
func (s *Speaker) Close() {
	s.mu.Lock()
	device := s.device
	s.device = nil
	s.queue = nil
	s.mu.Unlock()
	if device != nil {
		device.Uninit()
	}
}

// Now returns the device clock: samples rendered since the speaker
// opened, as a duration.
func (s *Speaker) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durationOf(s.samples)
}

func (s *Speaker) durationOf(samples int64) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(s.sampleRate)
}

func (s *Speaker) samplesAt(d time.Duration) int64 {
	return int64(d) * int64(s.sampleRate) / int64(time.Second)
}

// PlayAt schedules a segment at the given clock offset. Segments are
// rendered in schedule order; onDone fires once when the last byte has
// been handed to the device.
func (s *Speaker) PlayAt(pcm []byte, start time.Duration, onDone func()) (live.SegmentHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return nil, fmt.Errorf("audio: speaker is closed")
	}

	q := &queued{
		owner:       s,
		startSample: s.samplesAt(start),
		data:        pcm,
		onDone:      onDone,
	}
	s.queue = append(s.queue, q)
	return q, nil
}

const bytesPerSample = 2

// onSendFrames renders the queue into the device buffer, inserting
// silence before segments whose start has not been reached yet.
func (s *Speaker) onSendFrames(out, _ []byte, frameCount uint32) {
	for i := range out {
		out[i] = 0
	}

	var completed []func()

	s.mu.Lock()
	base := s.samples
	n := int(frameCount)
	cursor := 0

	for cursor < n && len(s.queue) > 0 {
		q := s.queue[0]
		if q.stopped {
			s.queue = s.queue[1:]
			continue
		}

		playhead := q.startSample + int64(q.pos/bytesPerSample)
		now := base + int64(cursor)
		if playhead > now {
			gap := int(playhead - now)
			if gap >= n-cursor {
				break
			}
			cursor += gap
		}

		want := (n - cursor) * bytesPerSample
		avail := len(q.data) - q.pos
		c := want
		if avail < c {
			c = avail
		}
		copy(out[cursor*bytesPerSample:], q.data[q.pos:q.pos+c])
		q.pos += c
		cursor += c / bytesPerSample

		if q.pos >= len(q.data) {
			s.queue = s.queue[1:]
			if q.onDone != nil {
				completed = append(completed, q.onDone)
			}
		}
	}
	s.samples += int64(n)
	s.mu.Unlock()

	// Completion callbacks run off the device thread.
	for _, fn := range completed {
		go fn()
	}
}
