package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/anchorcast/internal/viseme"
)

// Default neural engine parameters
const (
	NeuralDefaultVoice      = "af_bella"
	NeuralDefaultSampleRate = 24000
)

// NeuralConfig holds neural TTS configuration
type NeuralConfig struct {
	Endpoint   string        `json:"endpoint"`
	APIKey     string        `json:"api_key"`
	Voice      string        `json:"voice"`
	SampleRate int           `json:"sample_rate"`
	Timeout    time.Duration `json:"timeout"`  // per-frame read deadline
	LipSync    bool          `json:"lip_sync"` // request word timestamps for the viseme timeline
}

// DefaultNeuralConfig returns sensible defaults
func DefaultNeuralConfig() *NeuralConfig {
	return &NeuralConfig{
		Endpoint:   "ws://localhost:8880/ws/tts",
		Voice:      NeuralDefaultVoice,
		SampleRate: NeuralDefaultSampleRate,
		Timeout:    30 * time.Second,
		LipSync:    true,
	}
}

// NeuralEngine streams synthesis from a neural TTS server over a
// websocket. Connections are reused across requests for low latency.
type NeuralEngine struct {
	logger zerolog.Logger
	config *NeuralConfig

	conn     *websocket.Conn
	connMu   sync.Mutex
	lastUsed time.Time
}

// NewNeuralEngine creates a neural TTS engine
func NewNeuralEngine(logger zerolog.Logger, config *NeuralConfig) *NeuralEngine {
	if config == nil {
		config = DefaultNeuralConfig()
	}
	return &NeuralEngine{
		logger: logger.With().Str("engine", "neural-tts").Logger(),
		config: config,
	}
}

// Name returns the engine identifier
func (e *NeuralEngine) Name() string {
	return "neural"
}

// IsAvailable reports whether an endpoint is configured
func (e *NeuralEngine) IsAvailable() bool {
	return e.config.Endpoint != ""
}

// --- WebSocket messages ---

// neuralRequest is the generation request format
type neuralRequest struct {
	RequestID     string  `json:"request_id"`
	Text          string  `json:"text"`
	Voice         string  `json:"voice"`
	Speed         float64 `json:"speed"`
	SampleRate    int     `json:"sample_rate"`
	AddTimestamps bool    `json:"add_timestamps"`
}

// neuralResponse covers every frame type the server sends
type neuralResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`

	// For type="chunk"
	Data string `json:"data,omitempty"`

	// For type="timestamps"
	Words []string  `json:"words,omitempty"`
	Start []float64 `json:"start,omitempty"` // seconds
	End   []float64 `json:"end,omitempty"`   // seconds

	// For type="error"
	Error string `json:"error,omitempty"`
}

// connect establishes or reuses a websocket connection
func (e *NeuralEngine) connect(ctx context.Context) (*websocket.Conn, error) {
	e.connMu.Lock()
	defer e.connMu.Unlock()

	if e.conn != nil && time.Since(e.lastUsed) < 30*time.Second {
		e.lastUsed = time.Now()
		return e.conn, nil
	}

	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := http.Header{}
	if e.config.APIKey != "" {
		header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	conn, resp, err := dialer.DialContext(ctx, e.config.Endpoint, header)
	if err != nil {
		if resp != nil {
			e.logger.Error().Int("status", resp.StatusCode).Err(err).Msg("TTS websocket connection failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	e.conn = conn
	e.lastUsed = time.Now()
	e.logger.Info().Str("endpoint", e.config.Endpoint).Msg("Connected to TTS server")
	return conn, nil
}

// Synthesize converts text to audio, collecting all streamed chunks
func (e *NeuralEngine) Synthesize(ctx context.Context, req *Request) (*Result, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	if !e.IsAvailable() {
		return nil, ErrEngineUnavailable
	}

	startTime := time.Now()

	voice := req.Voice
	if voice == "" {
		voice = e.config.Voice
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	conn, err := e.connect(ctx)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	wireReq := neuralRequest{
		RequestID:     requestID,
		Text:          req.Text,
		Voice:         voice,
		Speed:         speed,
		SampleRate:    e.config.SampleRate,
		AddTimestamps: e.config.LipSync,
	}

	if err := conn.WriteJSON(wireReq); err != nil {
		e.dropConn(conn)
		return nil, fmt.Errorf("write request: %w", err)
	}

	e.logger.Debug().
		Str("voice", voice).
		Str("requestID", requestID).
		Int("textLen", len(req.Text)).
		Msg("Sent TTS request")

	// Closing the connection is the only way to unblock a pending
	// read, so a watcher tears it down on cancellation.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			e.dropConn(conn)
		case <-watchDone:
		}
	}()

	readTimeout := e.config.Timeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}

	var audio []byte
	var words []string
	var starts, ends []float64

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var resp neuralResponse
		if err := conn.ReadJSON(&resp); err != nil {
			e.dropConn(conn)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch resp.Type {
		case "chunk":
			chunk, err := base64.StdEncoding.DecodeString(resp.Data)
			if err != nil {
				e.logger.Warn().Err(err).Msg("Failed to decode audio chunk")
				continue
			}
			audio = append(audio, chunk...)

		case "timestamps":
			words = append(words, resp.Words...)
			starts = append(starts, resp.Start...)
			ends = append(ends, resp.End...)

		case "done":
			result := e.buildResult(audio, words, starts, ends, time.Since(startTime))
			e.logger.Info().
				Str("voice", voice).
				Int("audioBytes", len(audio)).
				Int("words", len(words)).
				Dur("totalTime", result.ProcessingTime).
				Msg("TTS synthesis complete")
			return result, nil

		case "error":
			return nil, fmt.Errorf("%w: %s", ErrSynthesisFailed, resp.Error)

		default:
			continue
		}
	}
}

func (e *NeuralEngine) buildResult(audio []byte, words []string, starts, ends []float64, elapsed time.Duration) *Result {
	res := &Result{
		Audio:          audio,
		SampleRate:     e.config.SampleRate,
		Words:          words,
		ProcessingTime: elapsed,
		Engine:         e.Name(),
	}

	n := len(words)
	if n > len(starts) {
		n = len(starts)
	}
	if n > len(ends) {
		n = len(ends)
	}
	for i := 0; i < n; i++ {
		res.WordTimes = append(res.WordTimes, int(starts[i]*1000))
		res.WordDurations = append(res.WordDurations, int((ends[i]-starts[i])*1000))
	}

	if n > 0 {
		res.Timeline = viseme.FromWordTimings(words[:n], starts[:n], ends[:n])
	}
	return res
}

func (e *NeuralEngine) dropConn(conn *websocket.Conn) {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if e.conn == conn {
		e.conn.Close()
		e.conn = nil
	}
}

// Close closes the engine and any open connection
func (e *NeuralEngine) Close() error {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if e.conn != nil {
		err := e.conn.Close()
		e.conn = nil
		return err
	}
	return nil
}
