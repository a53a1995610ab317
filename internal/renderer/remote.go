package renderer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/qmuntal/gltf"
	"github.com/rs/zerolog"

	"github.com/normanking/anchorcast/internal/viseme"
)

// stageMessage is the frame format exchanged with the stage process
type stageMessage struct {
	Type       string      `json:"type"`
	Avatar     *AvatarSpec `json:"avatar,omitempty"`
	URL        string      `json:"url,omitempty"`
	Audio      string      `json:"audio,omitempty"` // base64 PCM
	SampleRate int         `json:"sampleRate,omitempty"`
	Words      []string    `json:"words,omitempty"`
	WTimes     []int       `json:"wtimes,omitempty"`
	WDurations []int       `json:"wdurations,omitempty"`
	Visemes    []string    `json:"visemes,omitempty"`
	VTimes     []int       `json:"vtimes,omitempty"`
	VDurations []int       `json:"vdurations,omitempty"`
	Mood       string      `json:"mood,omitempty"`
	View       string      `json:"view,omitempty"`
	Distance   float64     `json:"distance,omitempty"`
	Name       string      `json:"name,omitempty"`
	Duration   float64     `json:"duration,omitempty"`
	Shape      string      `json:"shape,omitempty"`
	Value      *float64    `json:"value,omitempty"`
	Index      int         `json:"index,omitempty"`
	FPS        int         `json:"fps,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// RemoteStage drives a TalkingHead stage over a websocket connection.
// One outbound frame per operation; the stage reports avatar loads,
// word boundaries and speech completion back on the same connection.
type RemoteStage struct {
	url    string
	logger zerolog.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	speaking atomic.Bool
	closed   atomic.Bool

	mu       sync.Mutex
	onWord   WordFunc
	words    []string
	loadWait chan error
	capture  []byte

	reconnectDelay time.Duration
	maxReconnects  int
}

// NewRemoteStage creates a stage client for the given websocket URL
func NewRemoteStage(stageURL string, logger zerolog.Logger) *RemoteStage {
	return &RemoteStage{
		url:    stageURL,
		logger: logger.With().Str("component", "stage").Logger(),
	}
}

// EnableReconnect makes the stage redial after a lost connection,
// waiting delay between attempts and giving up after maxAttempts.
// Call before Connect.
func (s *RemoteStage) EnableReconnect(delay time.Duration, maxAttempts int) {
	s.reconnectDelay = delay
	s.maxReconnects = maxAttempts
}

// Connect dials the stage and starts the read loop
func (s *RemoteStage) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to stage: %w", err)
	}

	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()

	go s.readLoop(conn)

	s.logger.Info().Str("url", s.url).Msg("Connected to stage")
	return nil
}

func (s *RemoteStage) readLoop(conn *websocket.Conn) {
	for {
		var msg stageMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.speaking.Store(false)
			if s.closed.Load() {
				return
			}
			s.logger.Warn().Err(err).Msg("Stage connection lost")
			if s.maxReconnects > 0 {
				go s.reconnect()
			}
			return
		}

		switch msg.Type {
		case "avatarLoaded":
			s.deliverLoad(nil)
		case "avatarError":
			s.deliverLoad(fmt.Errorf("%w: %s", ErrAvatarLoad, msg.Error))
		case "speechStarted":
			s.speaking.Store(true)
		case "word":
			s.mu.Lock()
			fn, words := s.onWord, s.words
			s.mu.Unlock()
			if fn != nil && msg.Index >= 0 && msg.Index < len(words) {
				fn(words[msg.Index], msg.Index)
			}
		case "speechEnded":
			s.speaking.Store(false)
		case "recordChunk":
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Bad recording chunk")
				continue
			}
			s.mu.Lock()
			s.capture = append(s.capture, chunk...)
			s.mu.Unlock()
		default:
			s.logger.Debug().Str("type", msg.Type).Msg("Unknown stage message")
		}
	}
}

// reconnect redials a lost connection with a fixed backoff
func (s *RemoteStage) reconnect() {
	for attempt := 1; attempt <= s.maxReconnects; attempt++ {
		if s.closed.Load() {
			return
		}
		time.Sleep(s.reconnectDelay)

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.Dial(s.url, nil)
		if err != nil {
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("Stage reconnect failed")
			continue
		}

		s.writeMu.Lock()
		s.conn = conn
		s.writeMu.Unlock()
		s.logger.Info().Int("attempt", attempt).Msg("Stage reconnected")
		go s.readLoop(conn)
		return
	}
	s.logger.Error().Int("attempts", s.maxReconnects).Msg("Stage reconnect gave up")
}

func (s *RemoteStage) deliverLoad(err error) {
	s.mu.Lock()
	ch := s.loadWait
	s.loadWait = nil
	s.mu.Unlock()
	if ch != nil {
		ch <- err
	}
}

func (s *RemoteStage) send(msg stageMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.WriteJSON(msg)
}

// ShowAvatar loads an avatar onto the stage and waits for the load to
// complete. Local .glb files are validated before they are sent.
func (s *RemoteStage) ShowAvatar(ctx context.Context, spec AvatarSpec) error {
	if isLocalModel(spec.URL) {
		if err := validateModel(spec.URL); err != nil {
			return err
		}
	}

	ch := make(chan error, 1)
	s.mu.Lock()
	s.loadWait = ch
	s.mu.Unlock()

	if err := s.send(stageMessage{Type: "showAvatar", Avatar: &spec}); err != nil {
		s.mu.Lock()
		s.loadWait = nil
		s.mu.Unlock()
		return err
	}

	select {
	case err := <-ch:
		if err != nil {
			s.logger.Error().Err(err).Str("url", spec.URL).Msg("Avatar load failed")
			return err
		}
		s.logger.Info().Str("url", spec.URL).Msg("Avatar loaded")
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		s.loadWait = nil
		s.mu.Unlock()
		return ctx.Err()
	}
}

// isLocalModel reports whether the avatar URL points at a file on disk
func isLocalModel(raw string) bool {
	if !strings.HasSuffix(strings.ToLower(raw), ".glb") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	return u.Scheme == "" || u.Scheme == "file"
}

// validateModel checks that a local file is a parseable glTF binary
// with at least one mesh, so a corrupt upload fails before it reaches
// the stage.
func validateModel(path string) error {
	path = strings.TrimPrefix(path, "file://")
	doc, err := gltf.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAvatar, err)
	}
	if len(doc.Meshes) == 0 {
		return fmt.Errorf("%w: model has no meshes", ErrInvalidAvatar)
	}
	return nil
}

// SetBackground changes the studio backdrop image
func (s *RemoteStage) SetBackground(bgURL string) error {
	return s.send(stageMessage{Type: "setBackground", URL: bgURL})
}

// SpeakAudio hands a clip to the stage for lip-synced playback
func (s *RemoteStage) SpeakAudio(clip AudioClip, opts SpeakOptions, onWord WordFunc) error {
	s.mu.Lock()
	s.onWord = onWord
	s.words = clip.Words
	s.mu.Unlock()

	msg := stageMessage{
		Type:       "speakAudio",
		Audio:      base64.StdEncoding.EncodeToString(clip.Audio),
		SampleRate: clip.SampleRate,
		Words:      clip.Words,
		WTimes:     clip.WordTimes,
		WDurations: clip.WordDurations,
		Visemes:    timelineStrings(clip.Timeline),
		VTimes:     clip.Timeline.Times,
		VDurations: clip.Timeline.Durations,
		Mood:       opts.Mood,
	}
	if err := s.send(msg); err != nil {
		return err
	}

	// Mark speaking immediately; the stage confirms with speechStarted
	// but a fast poll must not observe a false idle window.
	s.speaking.Store(true)
	return nil
}

// IsSpeaking reports whether the stage is still playing audio
func (s *RemoteStage) IsSpeaking() bool {
	return s.speaking.Load()
}

// Stop halts any in-progress speech
func (s *RemoteStage) Stop() error {
	err := s.send(stageMessage{Type: "stop"})
	s.speaking.Store(false)
	return err
}

// SetMood switches the avatar's facial mood
func (s *RemoteStage) SetMood(mood string) error {
	return s.send(stageMessage{Type: "setMood", Mood: mood})
}

// SetView moves the camera to a named framing
func (s *RemoteStage) SetView(view string, distance float64) error {
	return s.send(stageMessage{Type: "setView", View: view, Distance: distance})
}

// PlayGesture runs a one-shot gesture animation
func (s *RemoteStage) PlayGesture(name string, duration float64) error {
	return s.send(stageMessage{Type: "playGesture", Name: name, Duration: duration})
}

// SetFixedValue pins a morph target; a nil value releases it
func (s *RemoteStage) SetFixedValue(shape string, value *float64) error {
	return s.send(stageMessage{Type: "setValue", Shape: shape, Value: value})
}

// LookAtCamera directs the avatar's gaze at the camera
func (s *RemoteStage) LookAtCamera(duration float64) error {
	return s.send(stageMessage{Type: "lookAtCamera", Duration: duration})
}

// StartCapture asks the stage to begin encoding its canvas. Encoded
// chunks arrive as recordChunk frames and queue until drained.
func (s *RemoteStage) StartCapture(fps int) error {
	return s.send(stageMessage{Type: "startCapture", FPS: fps})
}

// StopCapture ends canvas encoding on the stage
func (s *RemoteStage) StopCapture() error {
	return s.send(stageMessage{Type: "stopCapture"})
}

// CaptureChunk drains the encoded video received since the last call
func (s *RemoteStage) CaptureChunk() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk := s.capture
	s.capture = nil
	return chunk, nil
}

// Close releases the stage connection
func (s *RemoteStage) Close() error {
	s.closed.Store(true)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func timelineStrings(t viseme.Timeline) []string {
	out := make([]string, t.Len())
	for i, v := range t.Visemes {
		out[i] = string(v)
	}
	return out
}
