// Package session manages broadcast lifecycle: one session owns the
// stage, plays at most one script at a time, and exposes pause/resume
// and stop controls to the host.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/anchorcast/internal/bus"
	"github.com/normanking/anchorcast/internal/catalog"
	"github.com/normanking/anchorcast/internal/renderer"
	"github.com/normanking/anchorcast/internal/script"
	"github.com/normanking/anchorcast/internal/speech"
)

// Lifecycle errors
var (
	ErrNotIdle    = errors.New("broadcast already in progress")
	ErrNotPlaying = errors.New("no broadcast playing")
	ErrNotPaused  = errors.New("broadcast not paused")
)

// Phase is the session lifecycle position
type Phase int

// Session phases. Stopped is transient while a run tears down; the
// session returns to Idle once the runner goroutine exits.
const (
	PhaseIdle Phase = iota
	PhasePlaying
	PhasePaused
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session coordinates script playback on a stage
type Session struct {
	stage    renderer.Stage
	speaker  *speech.Speaker
	catalog  *catalog.Catalog
	events   *bus.EventBus
	defaults script.Defaults
	logger   zerolog.Logger

	Overlays *Overlays

	mu     sync.Mutex
	cond   *sync.Cond
	phase  Phase
	runner *script.Runner
	cancel context.CancelFunc
	runID  string
	zoom   float64

	// Scene snapshot, maintained by the scene methods
	avatar       string
	customAvatar bool
	background   string
	mood         string
	view         string
	indicator    string
}

// State is a point-in-time snapshot of the session for hosts that
// poll instead of subscribing to the bus.
type State struct {
	Phase        string `json:"phase"`
	RunID        string `json:"runID,omitempty"`
	Avatar       string `json:"avatar"`
	CustomAvatar bool   `json:"customAvatar"`
	Background   string `json:"background"`
	Mood         string `json:"mood"`
	View         string `json:"view"`
	Indicator    string `json:"indicator"` // ready, warning or error
}

// New creates a session bound to a stage and speaker
func New(stage renderer.Stage, speaker *speech.Speaker, cat *catalog.Catalog, events *bus.EventBus, defaults script.Defaults, logger zerolog.Logger) *Session {
	s := &Session{
		stage:     stage,
		speaker:   speaker,
		catalog:   cat,
		events:    events,
		defaults:  defaults,
		logger:    logger.With().Str("component", "session").Logger(),
		zoom:      1.0,
		mood:      defaults.Mood,
		view:      defaults.View,
		indicator: "ready",
	}
	s.cond = sync.NewCond(&s.mu)
	s.Overlays = newOverlays(events)
	if events != nil {
		events.SubscribeMultiple([]bus.EventType{
			bus.EventTypeSpeechFailed,
			bus.EventTypeIndicator,
		}, s.onHealth)
	}
	return s
}

// onHealth tracks the broadcast-readiness indicator from speech events
func (s *Session) onHealth(e bus.Event) {
	switch e.Type {
	case bus.EventTypeSpeechFailed:
		s.setIndicator("error")
	case bus.EventTypeIndicator:
		degraded, ok := e.Data["degraded"].(bool)
		if !ok {
			return
		}
		if degraded {
			s.setIndicator("warning")
		} else {
			s.setIndicator("ready")
		}
	}
}

func (s *Session) setIndicator(level string) {
	s.mu.Lock()
	changed := s.indicator != level
	s.indicator = level
	s.mu.Unlock()

	if changed && s.events != nil {
		s.events.Publish(bus.Event{
			Type: bus.EventTypeIndicator,
			Data: map[string]any{"status": level},
		})
	}
}

// State returns a snapshot of the session
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Phase:        s.phase.String(),
		RunID:        s.runID,
		Avatar:       s.avatar,
		CustomAvatar: s.customAvatar,
		Background:   s.background,
		Mood:         s.mood,
		View:         s.view,
		Indicator:    s.indicator,
	}
}

// Phase returns the current lifecycle phase
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// RunID identifies the current or most recent broadcast
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Progress reports segment progress of the active run
func (s *Session) Progress() (current, total int) {
	s.mu.Lock()
	runner := s.runner
	s.mu.Unlock()
	if runner == nil {
		return 0, 0
	}
	return runner.Progress()
}

// Start begins playing a script. It returns immediately; playback runs
// on its own goroutine until the script ends or Stop is called. Only
// an idle session may start.
func (s *Session) Start(scr *script.Script) error {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}

	runCtx, cancel := context.WithCancel(context.Background())
	runner := script.NewRunner(scr, s.sceneAdapter(), s.gatedVoice(), s.events, s.logger)

	s.phase = PhasePlaying
	s.runner = runner
	s.cancel = cancel
	s.runID = uuid.NewString()
	runID := s.runID
	s.mu.Unlock()

	if s.events != nil {
		s.events.Publish(bus.Event{
			Type: bus.EventTypeScriptLoaded,
			Data: map[string]any{"segments": len(scr.Segments), "words": scr.EstimatedWords()},
		})
	}
	s.publishPhase(PhasePlaying)
	s.publishStatus("started", map[string]any{"segments": len(scr.Segments)})
	s.logger.Info().Str("runID", runID).Int("segments", len(scr.Segments)).Msg("Broadcast starting")
	s.Overlays.Show()

	// Anchors address the viewer.
	if err := s.stage.LookAtCamera(1.0); err != nil {
		s.logger.Debug().Err(err).Msg("Gaze direction failed")
	}

	go func() {
		err := runner.Run(runCtx)
		s.finish(runner, err)
	}()
	return nil
}

// finish runs on the runner goroutine after every run
func (s *Session) finish(runner *script.Runner, runErr error) {
	s.Overlays.HideAll()

	s.mu.Lock()
	s.phase = PhaseIdle
	s.cancel = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	switch runner.State() {
	case script.StateCompleted:
		s.publishStatus("completed", map[string]any{"failures": runner.Failures()})
	default:
		s.publishStatus("cancelled", nil)
	}
	s.publishPhase(PhaseIdle)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		s.logger.Warn().Err(runErr).Msg("Broadcast ended with error")
	}
}

// Pause halts the current utterance and holds the broadcast before the
// next one. Only a playing session may pause.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.phase != PhasePlaying {
		s.mu.Unlock()
		return ErrNotPlaying
	}
	s.phase = PhasePaused
	s.mu.Unlock()

	// Cut the audio now; the runner resumes from the next segment.
	if err := s.stage.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to halt stage audio on pause")
	}
	s.publishPhase(PhasePaused)
	s.publishStatus("paused", nil)
	return nil
}

// Resume releases a paused broadcast
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.phase != PhasePaused {
		s.mu.Unlock()
		return ErrNotPaused
	}
	s.phase = PhasePlaying
	s.cond.Broadcast()
	s.mu.Unlock()

	s.publishPhase(PhasePlaying)
	s.publishStatus("resumed", nil)
	return nil
}

// Stop cancels any active broadcast and returns the session to idle.
// Stopping an idle session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.phase == PhaseIdle || s.phase == PhaseStopped {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseStopped
	cancel := s.cancel
	s.mu.Unlock()

	// Cancel the run before releasing the pause gate so the runner
	// observes cancellation, not a failed segment.
	if cancel != nil {
		cancel()
	}
	s.speaker.Cancel()
	s.publishPhase(PhaseStopped)

	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// gate blocks the voice while the session is paused. It returns an
// error when the session is stopped so the runner unwinds.
func (s *Session) gate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.phase == PhasePaused {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.cond.Wait()
	}
	if s.phase == PhaseStopped {
		return context.Canceled
	}
	return ctx.Err()
}

// sessionVoice gates each utterance on the pause state
type sessionVoice struct{ s *Session }

func (v sessionVoice) Speak(ctx context.Context, text, voice string, speed float64) error {
	if err := v.s.gate(ctx); err != nil {
		return err
	}
	return v.s.speaker.Speak(ctx, text, voice, speed)
}

func (s *Session) gatedVoice() script.Voice {
	return sessionVoice{s}
}

func (s *Session) publishPhase(p Phase) {
	if s.events != nil {
		s.events.Publish(bus.Event{
			Type: bus.EventTypePhaseChanged,
			Data: map[string]any{"phase": p.String()},
		})
	}
}

func (s *Session) publishStatus(status string, extra map[string]any) {
	if s.events == nil {
		return
	}
	data := map[string]any{"status": status, "runID": s.RunID()}
	for k, v := range extra {
		data[k] = v
	}
	s.events.Publish(bus.Event{Type: bus.EventTypeStatusChanged, Data: data})
}
