package script

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/anchorcast/internal/bus"
)

// ErrAlreadyStarted is returned when Run is called on a runner that
// has left the idle state. Runners are single-use.
var ErrAlreadyStarted = errors.New("runner already started")

// State is the runner lifecycle position
type State int32

// Runner states. A runner moves Idle -> Running -> Completed or
// Cancelled and never back.
const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Scene receives the visual directions of each segment
type Scene interface {
	ApplyMood(mood string) error
	ApplyView(view string) error
	FireGesture(name string) error
}

// Voice speaks a segment's text and blocks until playback finishes
type Voice interface {
	Speak(ctx context.Context, text, voice string, speed float64) error
}

// Runner plays a script's segments strictly in order. Visual direction
// failures and synthesis failures are logged and the broadcast moves
// on; only cancellation stops a run early.
type Runner struct {
	script *Script
	scene  Scene
	voice  Voice
	events *bus.EventBus
	logger zerolog.Logger

	state    atomic.Int32
	current  atomic.Int32
	failures atomic.Int32

	// sleep is replaceable so tests run without real delays
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner for one playback of a script
func NewRunner(s *Script, scene Scene, voice Voice, events *bus.EventBus, logger zerolog.Logger) *Runner {
	return &Runner{
		script: s,
		scene:  scene,
		voice:  voice,
		events: events,
		logger: logger.With().Str("component", "runner").Logger(),
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns the runner's current lifecycle state
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Progress reports the 1-based index of the segment being played and
// the total segment count. Current is 0 before the first segment.
func (r *Runner) Progress() (current, total int) {
	return int(r.current.Load()), len(r.script.Segments)
}

// Failures returns how many segments failed to synthesize during the run
func (r *Runner) Failures() int {
	return int(r.failures.Load())
}

// Run plays every segment in order and returns when the script ends or
// the context is cancelled. A runner can run exactly once; subsequent
// calls return ErrAlreadyStarted. An empty script completes
// immediately. Cancellation is honored between segments and, through
// the voice, inside one.
func (r *Runner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	total := len(r.script.Segments)
	r.logger.Info().Int("segments", total).Msg("Broadcast started")

	for i, seg := range r.script.Segments {
		if err := ctx.Err(); err != nil {
			return r.cancelled(err)
		}

		r.current.Store(int32(i + 1))
		r.publish(bus.EventTypeSegmentStarted, map[string]any{"index": i, "total": total})
		r.publishProgress(i+1, total)

		r.direct(seg)

		// Silent segments direct the scene and pause, but say nothing.
		if !seg.Silent() {
			if err := r.voice.Speak(ctx, seg.Text, seg.Voice, seg.Speed); err != nil {
				if ctx.Err() != nil {
					return r.cancelled(ctx.Err())
				}
				// A failed segment still counts as played; the show goes on.
				r.failures.Add(1)
				r.logger.Warn().Err(err).Int("segment", i).Msg("Segment speech failed")
			}
		}

		r.publish(bus.EventTypeSegmentCompleted, map[string]any{"index": i, "total": total})

		if i < total-1 {
			if err := r.sleep(ctx, time.Duration(*seg.Delay)*time.Millisecond); err != nil {
				return r.cancelled(err)
			}
		}
	}

	r.state.Store(int32(StateCompleted))
	r.logger.Info().Int("failures", r.Failures()).Msg("Broadcast completed")
	return nil
}

// direct applies a segment's visual direction to the scene
func (r *Runner) direct(seg Segment) {
	if err := r.scene.ApplyMood(seg.Mood); err != nil {
		r.logger.Warn().Err(err).Str("mood", seg.Mood).Msg("Mood change failed")
	}
	if err := r.scene.ApplyView(seg.View); err != nil {
		r.logger.Warn().Err(err).Str("view", seg.View).Msg("View change failed")
	}
	if seg.Gesture != "" {
		if err := r.scene.FireGesture(seg.Gesture); err != nil {
			r.logger.Warn().Err(err).Str("gesture", seg.Gesture).Msg("Gesture failed")
		}
	}
}

func (r *Runner) cancelled(err error) error {
	r.state.Store(int32(StateCancelled))
	r.logger.Info().Msg("Broadcast cancelled")
	return err
}

func (r *Runner) publish(t bus.EventType, data map[string]any) {
	if r.events != nil {
		r.events.Publish(bus.Event{Type: t, Data: data})
	}
}

func (r *Runner) publishProgress(current, total int) {
	r.publish(bus.EventTypeSegmentProgress, map[string]any{"current": current, "total": total})
}
