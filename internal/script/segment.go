// Package script defines broadcast scripts and runs them segment by segment
package script

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validation errors
var (
	ErrUnknownMood    = errors.New("unknown mood")
	ErrUnknownView    = errors.New("unknown camera view")
	ErrUnknownGesture = errors.New("unknown gesture")
)

// Moods the avatar can express
var validMoods = map[string]bool{
	"neutral": true,
	"happy":   true,
	"angry":   true,
	"sad":     true,
	"fear":    true,
	"disgust": true,
	"love":    true,
	"sleep":   true,
}

// Camera framings
var validViews = map[string]bool{
	"full":  true,
	"upper": true,
	"mid":   true,
	"head":  true,
}

// One-shot gesture animations
var validGestures = map[string]bool{
	"wave":      true,
	"thumbsUp":  true,
	"think":     true,
	"smile":     true,
	"nod":       true,
	"headShake": true,
	"point":     true,
}

// Defaults fills in segment fields the script author omitted
type Defaults struct {
	Mood  string
	View  string
	Voice string
	Speed float64
	Delay int // ms pause after the segment
}

// StandardDefaults returns the stock segment defaults
func StandardDefaults() Defaults {
	return Defaults{
		Mood:  "neutral",
		View:  "upper",
		Voice: "af_bella",
		Speed: 1.0,
		Delay: 500,
	}
}

// Segment is one unit of a broadcast script: what to say and how the
// anchor should look while saying it. Delay distinguishes an absent
// value (use the default) from an explicit zero (no pause).
type Segment struct {
	Text    string  `json:"text"`
	Mood    string  `json:"mood,omitempty"`
	View    string  `json:"view,omitempty"`
	Gesture string  `json:"gesture,omitempty"`
	Voice   string  `json:"voice,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
	Delay   *int    `json:"delay,omitempty"`
}

// withDefaults returns a copy with omitted fields filled in
func (s Segment) withDefaults(d Defaults) Segment {
	if s.Mood == "" {
		s.Mood = d.Mood
	}
	if s.View == "" {
		s.View = d.View
	}
	if s.Voice == "" {
		s.Voice = d.Voice
	}
	if s.Speed == 0 {
		s.Speed = d.Speed
	}
	if s.Delay == nil {
		delay := d.Delay
		s.Delay = &delay
	}
	return s
}

// validate checks a segment after defaults have been applied. Text may
// be empty: a silent segment still directs the anchor and honors its
// delay.
func (s Segment) validate() error {
	if !validMoods[s.Mood] {
		return fmt.Errorf("%w: %q", ErrUnknownMood, s.Mood)
	}
	if !validViews[s.View] {
		return fmt.Errorf("%w: %q", ErrUnknownView, s.View)
	}
	if s.Gesture != "" && !validGestures[s.Gesture] {
		return fmt.Errorf("%w: %q", ErrUnknownGesture, s.Gesture)
	}
	if s.Speed <= 0 {
		return fmt.Errorf("speed %v must be positive", s.Speed)
	}
	if *s.Delay < 0 {
		return fmt.Errorf("negative delay %d", *s.Delay)
	}
	return nil
}

// Silent reports whether the segment has nothing to say. Presentation
// still applies.
func (s Segment) Silent() bool {
	return strings.TrimSpace(s.Text) == ""
}

// Moods lists the accepted mood names
func Moods() []string {
	return sortedKeys(validMoods)
}

// Views lists the accepted camera view names
func Views() []string {
	return sortedKeys(validViews)
}

// Gestures lists the accepted gesture names
func Gestures() []string {
	return sortedKeys(validGestures)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
