// Package deepgram implements the always-on wake-word recognizer over
// the Deepgram streaming transcription websocket.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/murmurkit/murmur/pkg/core/live"
)

// keepAliveEvery is the number of consecutively withheld silent frames
// after which a KeepAlive message holds the websocket open.
const keepAliveEvery = 16

// Config controls the Deepgram websocket connection.
type Config struct {
	// APIKey authenticates the connection. Required.
	APIKey string

	// APIBaseURL overrides the production endpoint, mainly for tests.
	APIBaseURL string

	Model    string
	Language string

	// SampleRate of the microphone frames, in Hz.
	SampleRate int

	// SilenceFloor is the RMS level below which frames are withheld
	// from the wire once the hangover window passes. Zero sends
	// everything.
	SilenceFloor float64

	// SilenceHangover is how many silent frames are still sent after
	// speech ends, so trailing words are not clipped.
	SilenceHangover int
}

func (c Config) withDefaults() Config {
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.SilenceHangover <= 0 {
		c.SilenceHangover = 4
	}
	return c
}

// Recognizer opens streaming recognition sessions, pulling audio from
// its own microphone handle. It runs only while no voice session is
// active, so the device is never contended.
type Recognizer struct {
	cfg Config
	mic live.Microphone
	log *zap.Logger
}

// NewRecognizer creates a Deepgram recognizer over the given microphone.
func NewRecognizer(cfg Config, mic live.Microphone, log *zap.Logger) *Recognizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recognizer{cfg: cfg.withDefaults(), mic: mic, log: log.Named("deepgram")}
}

// Start opens the websocket and the microphone and begins streaming.
func (r *Recognizer) Start(ctx context.Context) (live.RecognizerStream, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(r.cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("connect to Deepgram websocket: %w", err)
	}

	frames, err := r.mic.Start(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open microphone for recognition: %w", err)
	}

	s := &stream{
		conn:    conn,
		mic:     r.mic,
		cfg:     r.cfg,
		log:     r.log,
		results: make(chan live.RecognizerResult, 64),
		done:    make(chan struct{}),
	}

	s.wg.Add(2)
	go s.writeLoop(frames)
	go s.readLoop()
	go func() {
		// Both loops exit before the stream is observably finished, so
		// the microphone is free again the moment done closes.
		s.wg.Wait()
		s.release()
		close(s.results)
		close(s.done)
	}()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	return s, nil
}

type stream struct {
	conn *websocket.Conn
	mic  live.Microphone
	cfg  Config
	log  *zap.Logger

	results chan live.RecognizerResult
	done    chan struct{}
	wg      sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
	writeMu   sync.Mutex
}

func (s *stream) Results() <-chan live.RecognizerResult {
	return s.results
}

// Err reports the terminal stream error once Results has closed.
func (s *stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *stream) Close() error {
	s.release()
	<-s.done
	return s.Err()
}

// release stops the microphone and closes the socket. Stopping the
// microphone closes the frame channel, which unblocks writeLoop.
func (s *stream) release() {
	s.closeOnce.Do(func() {
		_ = s.mic.Stop()
		_ = s.conn.Close()
	})
}

func (s *stream) setErr(err error) {
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *stream) write(messageType int, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, payload)
}

// writeLoop streams encoded frames, withholding sustained silence to
// keep wake listening cheap. Silent stretches are bridged with
// KeepAlive messages so Deepgram does not drop the idle socket.
func (s *stream) writeLoop(frames <-chan live.Frame) {
	defer s.wg.Done()

	quiet := 0
	for frame := range frames {
		encoded := live.EncodeFrame(frame.Samples)

		if s.cfg.SilenceFloor > 0 {
			if live.RMSEnergy(encoded) < s.cfg.SilenceFloor {
				quiet++
			} else {
				quiet = 0
			}
			if quiet > s.cfg.SilenceHangover {
				if quiet%keepAliveEvery == 0 {
					if err := s.write(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`)); err != nil {
						s.setErr(fmt.Errorf("send keepalive: %w", err))
						return
					}
				}
				continue
			}
		}

		if err := s.write(websocket.BinaryMessage, encoded); err != nil {
			s.setErr(fmt.Errorf("send audio: %w", err))
			return
		}
	}

	if err := s.write(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("close stream: %w", err))
	}
}

func (s *stream) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("read recognition event: %w", err))
			s.release()
			return
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(message))
			s.release()
			return
		}

		transcript := response.transcript()
		if transcript == "" {
			continue
		}

		s.emit(live.RecognizerResult{
			Text:  transcript,
			Final: response.IsFinal || response.SpeechFinal,
		})
	}
}

// emit never blocks the read loop; results are dropped when the
// consumer has fallen behind.
func (s *stream) emit(result live.RecognizerResult) {
	select {
	case s.results <- result:
	default:
	}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r listenResponse) transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Channel.Alternatives[0].Transcript)
}

func buildListenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", fmt.Sprintf("%d", cfg.SampleRate))
	query.Set("channels", "1")
	query.Set("interim_results", "true")
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
