package session

import (
	"context"
	"fmt"

	"github.com/normanking/anchorcast/internal/bus"
	"github.com/normanking/anchorcast/internal/catalog"
	"github.com/normanking/anchorcast/internal/renderer"
	"github.com/normanking/anchorcast/internal/script"
)

// LoadAvatar shows a catalog avatar on the stage
func (s *Session) LoadAvatar(ctx context.Context, id string) error {
	av, err := s.catalog.Avatar(id)
	if err != nil {
		return err
	}
	if err := s.showAvatar(ctx, renderer.AvatarSpec{
		URL:  av.URL,
		Body: av.Body,
		Mood: s.defaults.Mood,
	}); err != nil {
		return err
	}
	s.mu.Lock()
	s.avatar = id
	s.customAvatar = false
	s.mu.Unlock()
	return nil
}

// LoadAvatarFromSource shows an avatar from an arbitrary model URL,
// for hosts that bring their own Ready Player Me characters. The
// session marks the avatar as custom in its state snapshot.
func (s *Session) LoadAvatarFromSource(ctx context.Context, url, body string) error {
	if body != "M" && body != "F" {
		return fmt.Errorf("body must be M or F, got %q", body)
	}
	if err := s.showAvatar(ctx, renderer.AvatarSpec{URL: url, Body: body, Mood: s.defaults.Mood}); err != nil {
		return err
	}
	s.mu.Lock()
	s.avatar = url
	s.customAvatar = true
	s.mu.Unlock()
	return nil
}

func (s *Session) showAvatar(ctx context.Context, spec renderer.AvatarSpec) error {
	if err := s.stage.ShowAvatar(ctx, spec); err != nil {
		s.setIndicator("error")
		return err
	}
	s.setIndicator("ready")
	s.publishScene(bus.EventTypeAvatarChanged, map[string]any{"url": spec.URL})
	return nil
}

// LoadBackground switches the studio backdrop to a catalog background
func (s *Session) LoadBackground(id string) error {
	bg, err := s.catalog.Background(id)
	if err != nil {
		return err
	}
	if err := s.stage.SetBackground(bg.URL); err != nil {
		return err
	}
	s.mu.Lock()
	s.background = bg.ID
	s.mu.Unlock()
	s.publishScene(bus.EventTypeBackgroundChanged, map[string]any{"id": bg.ID})
	return nil
}

// SetMood changes the anchor's mood outside of script playback
func (s *Session) SetMood(mood string) error {
	if err := s.stage.SetMood(mood); err != nil {
		return err
	}
	s.mu.Lock()
	s.mood = mood
	s.mu.Unlock()
	s.publishScene(bus.EventTypeMoodChanged, map[string]any{"mood": mood})
	return nil
}

// SetView moves the camera to a named framing
func (s *Session) SetView(name string) error {
	view, ok := s.catalog.View(name)
	if !ok {
		return fmt.Errorf("%w: view %q", catalog.ErrNotFound, name)
	}

	s.mu.Lock()
	zoom := s.zoom
	s.mu.Unlock()

	if err := s.stage.SetView(name, view.Distance*zoom); err != nil {
		return err
	}
	s.mu.Lock()
	s.view = name
	s.mu.Unlock()
	s.publishScene(bus.EventTypeViewChanged, map[string]any{"view": name})
	return nil
}

// SetZoom scales every camera framing's distance
func (s *Session) SetZoom(zoom float64) error {
	if zoom <= 0 {
		return fmt.Errorf("zoom must be positive, got %v", zoom)
	}
	s.mu.Lock()
	s.zoom = zoom
	s.mu.Unlock()
	return nil
}

// LookAtCamera directs the anchor's gaze to the camera
func (s *Session) LookAtCamera(duration float64) error {
	return s.stage.LookAtCamera(duration)
}

// SetMorph pins a morph target on the avatar; nil releases the pin.
// Used for held expressions like a raised eyebrow during commentary.
func (s *Session) SetMorph(shape string, value *float64) error {
	return s.stage.SetFixedValue(shape, value)
}

// stageGestures maps script gesture names to the stage's animation set
var stageGestures = map[string]string{
	"wave":      "wave",
	"thumbsUp":  "thumbsup",
	"think":     "think",
	"nod":       "nod",
	"headShake": "shake",
	"point":     "point",
}

// PlayGesture fires a one-shot gesture animation
func (s *Session) PlayGesture(name string) error {
	// A smile is not a hand animation; it reads as a mood shift.
	if name == "smile" {
		return s.SetMood("happy")
	}
	anim, ok := stageGestures[name]
	if !ok {
		return fmt.Errorf("%w: gesture %q", catalog.ErrNotFound, name)
	}
	return s.stage.PlayGesture(anim, gestureDuration)
}

// gestureDuration is how long one-shot gestures hold, in seconds
const gestureDuration = 2.0

func (s *Session) publishScene(t bus.EventType, data map[string]any) {
	if s.events != nil {
		s.events.Publish(bus.Event{Type: t, Data: data})
	}
}

// runnerScene adapts the session to the runner's scene interface.
// Direction failures are returned so the runner can log them, but they
// never abort a broadcast.
type runnerScene struct{ s *Session }

func (r runnerScene) ApplyMood(mood string) error {
	return r.s.SetMood(mood)
}

func (r runnerScene) ApplyView(view string) error {
	return r.s.SetView(view)
}

func (r runnerScene) FireGesture(name string) error {
	return r.s.PlayGesture(name)
}

func (s *Session) sceneAdapter() script.Scene {
	return runnerScene{s}
}
