package tts

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/anchorcast/internal/viseme"
)

// Speaking-rate assumptions for the offline fallback
const (
	localWordsPerMinute = 150
	localSampleRate     = 24000
)

// LocalEngine is an offline fallback used when the neural server is
// unreachable. It produces silent audio of an estimated length with an
// approximate viseme timeline, so broadcasts still run visually with
// the avatar mouthing the words.
type LocalEngine struct {
	logger zerolog.Logger
}

// NewLocalEngine creates the offline fallback engine
func NewLocalEngine(logger zerolog.Logger) *LocalEngine {
	return &LocalEngine{
		logger: logger.With().Str("engine", "local-tts").Logger(),
	}
}

// Name returns the engine identifier
func (e *LocalEngine) Name() string {
	return "local"
}

// IsAvailable always reports true; the fallback has no dependencies
func (e *LocalEngine) IsAvailable() bool {
	return true
}

// Synthesize produces silent audio with estimated word and viseme timing
func (e *LocalEngine) Synthesize(ctx context.Context, req *Request) (*Result, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	words := strings.Fields(req.Text)
	perWord := time.Minute / localWordsPerMinute
	total := time.Duration(float64(len(words))*float64(perWord)/speed) + 300*time.Millisecond

	totalMs := int(total / time.Millisecond)
	res := &Result{
		Audio:      make([]byte, 2*localSampleRate*totalMs/1000), // silence
		SampleRate: localSampleRate,
		Words:      words,
		Timeline:   viseme.ApproximateFromText(req.Text, total),
		Engine:     e.Name(),
	}

	slot := 0
	if len(words) > 0 {
		slot = totalMs / len(words)
	}
	for i := range words {
		res.WordTimes = append(res.WordTimes, i*slot)
		res.WordDurations = append(res.WordDurations, slot)
	}

	e.logger.Debug().
		Int("words", len(words)).
		Dur("estimated", total).
		Msg("Generated offline speech timing")
	return res, nil
}

// Close is a no-op for the local engine
func (e *LocalEngine) Close() error {
	return nil
}
