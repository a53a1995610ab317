// Package speech coordinates synthesis and stage playback for single utterances
package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/anchorcast/internal/bus"
	"github.com/normanking/anchorcast/internal/renderer"
	"github.com/normanking/anchorcast/internal/tts"
)

// ErrSpeechTimeout is returned when the stage never reports the end of
// an utterance within the safety window.
var ErrSpeechTimeout = errors.New("speech completion timed out")

// Options tunes completion polling
type Options struct {
	PollInterval time.Duration // how often to check stage playback state
	Margin       time.Duration // slack beyond the estimated audio duration
}

// DefaultOptions returns polling defaults
func DefaultOptions() Options {
	return Options{
		PollInterval: 100 * time.Millisecond,
		Margin:       5 * time.Second,
	}
}

// Speaker turns text into on-stage speech and blocks until the stage
// finishes playing it. A primary engine is tried first; when it fails
// the fallback engine keeps the broadcast running in degraded form.
type Speaker struct {
	primary  tts.Engine
	fallback tts.Engine
	stage    renderer.Stage
	events   *bus.EventBus
	opts     Options
	logger   zerolog.Logger

	// synthMu serializes engine use. The neural engine multiplexes one
	// websocket; interleaved requests would corrupt each other's reads.
	synthMu sync.Mutex

	mu       sync.Mutex
	degraded bool
	cancel   context.CancelFunc
}

// NewSpeaker creates a speaker. fallback may be nil.
func NewSpeaker(primary, fallback tts.Engine, stage renderer.Stage, events *bus.EventBus, opts Options, logger zerolog.Logger) *Speaker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultOptions().Margin
	}
	return &Speaker{
		primary:  primary,
		fallback: fallback,
		stage:    stage,
		events:   events,
		opts:     opts,
		logger:   logger.With().Str("component", "speaker").Logger(),
	}
}

// Degraded reports whether the last utterance used the fallback engine
func (s *Speaker) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Speak synthesizes text with the given voice settings, plays it on the
// stage, and returns once the stage reports playback finished. It
// returns early with an error when synthesis fails, the context is
// cancelled, or the safety timeout expires.
func (s *Speaker) Speak(ctx context.Context, text, voice string, speed float64) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	result, err := s.synthesize(ctx, &tts.Request{Text: text, Voice: voice, Speed: speed})
	if err != nil {
		s.publish(bus.EventTypeSpeechFailed, map[string]any{"error": err.Error()})
		return err
	}

	clip := renderer.AudioClip{
		Audio:         result.Audio,
		SampleRate:    result.SampleRate,
		Words:         result.Words,
		WordTimes:     result.WordTimes,
		WordDurations: result.WordDurations,
		Timeline:      result.Timeline,
	}

	onWord := func(word string, index int) {
		s.publish(bus.EventTypeSpeechWord, map[string]any{"word": word, "index": index})
	}

	if err := s.stage.SpeakAudio(clip, renderer.SpeakOptions{}, onWord); err != nil {
		s.publish(bus.EventTypeSpeechFailed, map[string]any{"error": err.Error()})
		return fmt.Errorf("stage playback: %w", err)
	}
	s.publish(bus.EventTypeSpeechStarted, map[string]any{"engine": result.Engine, "words": len(result.Words)})

	err = s.waitForCompletion(ctx, result.Duration())
	s.publish(bus.EventTypeSpeechEnded, map[string]any{"timedOut": errors.Is(err, ErrSpeechTimeout)})
	return err
}

// synthesize tries the primary engine, falling back when it fails.
// One utterance synthesizes at a time.
func (s *Speaker) synthesize(ctx context.Context, req *tts.Request) (*tts.Result, error) {
	s.synthMu.Lock()
	defer s.synthMu.Unlock()

	if s.primary != nil && s.primary.IsAvailable() {
		result, err := s.primary.Synthesize(ctx, req)
		if err == nil {
			s.setDegraded(false)
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if s.fallback == nil {
			return nil, err
		}
		s.logger.Warn().Err(err).
			Str("engine", s.primary.Name()).
			Msg("Primary TTS failed, using fallback")
	} else if s.fallback == nil {
		return nil, tts.ErrEngineUnavailable
	}

	result, err := s.fallback.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	s.setDegraded(true)
	return result, nil
}

func (s *Speaker) setDegraded(v bool) {
	s.mu.Lock()
	changed := s.degraded != v
	s.degraded = v
	s.mu.Unlock()
	if changed {
		s.publish(bus.EventTypeIndicator, map[string]any{"degraded": v})
	}
}

// waitForCompletion polls the stage until it stops speaking. The safety
// timeout keeps a stage that never reports completion from wedging the
// broadcast: twice the estimated audio duration plus a fixed margin.
func (s *Speaker) waitForCompletion(ctx context.Context, estimated time.Duration) error {
	deadline := 2*estimated + s.opts.Margin

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			s.logger.Warn().Dur("waited", deadline).Msg("Stage never reported speech end")
			return fmt.Errorf("%w after %v", ErrSpeechTimeout, deadline)
		case <-ticker.C:
			if !s.stage.IsSpeaking() {
				return nil
			}
		}
	}
}

// Cancel interrupts any in-progress utterance and stops stage playback
func (s *Speaker) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err := s.stage.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stop stage playback")
	}
}

func (s *Speaker) publish(t bus.EventType, data map[string]any) {
	if s.events != nil {
		s.events.Publish(bus.Event{Type: t, Data: data})
	}
}
