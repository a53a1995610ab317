package session

import (
	"fmt"
	"sync"

	"github.com/normanking/anchorcast/internal/bus"
)

// Overlay style presets for the host's graphics layer
var overlayStyles = map[string]bool{
	"modern":   true,
	"classic":  true,
	"minimal":  true,
	"breaking": true,
}

// LowerThird is the name strap shown at the bottom of the frame
type LowerThird struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Visible  bool   `json:"visible"`
}

// OverlayState is the full graphics state pushed to the host
type OverlayState struct {
	LowerThird  LowerThird `json:"lowerThird"`
	Ticker      []string   `json:"ticker"`
	Subtitles   bool       `json:"subtitles"`
	CurrentWord int        `json:"currentWord"` // -1 when nothing is highlighted
	Style       string     `json:"style"`
	AccentColor string     `json:"accentColor"`
}

// Overlays manages broadcast graphics state. The engine does not draw
// anything itself; every change is published for the host to render.
type Overlays struct {
	events *bus.EventBus

	mu    sync.Mutex
	state OverlayState
}

func newOverlays(events *bus.EventBus) *Overlays {
	o := &Overlays{
		events: events,
		state: OverlayState{
			Subtitles:   true,
			CurrentWord: -1,
			Style:       "classic",
			AccentColor: "#e63946",
		},
	}
	if events != nil {
		events.Subscribe(bus.EventTypeSpeechWord, o.onWord)
		events.Subscribe(bus.EventTypeSpeechEnded, func(bus.Event) { o.clearHighlight() })
	}
	return o
}

// State returns a snapshot of the current overlay state
func (o *Overlays) State() OverlayState {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state
	st.Ticker = append([]string(nil), o.state.Ticker...)
	return st
}

// SetLowerThird shows the name strap with the given text
func (o *Overlays) SetLowerThird(title, subtitle string) {
	o.update(func(st *OverlayState) {
		st.LowerThird = LowerThird{Title: title, Subtitle: subtitle, Visible: true}
	})
}

// ClearLowerThird hides the name strap
func (o *Overlays) ClearLowerThird() {
	o.update(func(st *OverlayState) {
		st.LowerThird = LowerThird{}
	})
}

// Show brings the configured graphics on air. A lower third with no
// title stays hidden.
func (o *Overlays) Show() {
	o.update(func(st *OverlayState) {
		st.LowerThird.Visible = st.LowerThird.Title != ""
	})
}

// HideAll takes every overlay off air without forgetting its content,
// so the next broadcast can show it again.
func (o *Overlays) HideAll() {
	o.update(func(st *OverlayState) {
		st.LowerThird.Visible = false
		st.CurrentWord = -1
	})
}

// SetTicker replaces the scrolling headline items
func (o *Overlays) SetTicker(items []string) {
	o.update(func(st *OverlayState) {
		st.Ticker = append([]string(nil), items...)
	})
}

// SetSubtitles toggles the subtitle line
func (o *Overlays) SetSubtitles(enabled bool) {
	o.update(func(st *OverlayState) {
		st.Subtitles = enabled
		if !enabled {
			st.CurrentWord = -1
		}
	})
}

// SetStyle switches the graphics preset
func (o *Overlays) SetStyle(name string) error {
	if !overlayStyles[name] {
		return fmt.Errorf("unknown overlay style %q", name)
	}
	o.update(func(st *OverlayState) {
		st.Style = name
	})
	return nil
}

// SetAccentColor changes the highlight color of the graphics package
func (o *Overlays) SetAccentColor(hex string) error {
	if !validHexColor(hex) {
		return fmt.Errorf("invalid accent color %q", hex)
	}
	o.update(func(st *OverlayState) {
		st.AccentColor = hex
	})
	return nil
}

// onWord advances the subtitle highlight as speech reaches each word
func (o *Overlays) onWord(e bus.Event) {
	idx, ok := e.Data["index"].(int)
	if !ok {
		return
	}
	o.mu.Lock()
	enabled := o.state.Subtitles
	o.mu.Unlock()
	if !enabled {
		return
	}
	o.update(func(st *OverlayState) {
		st.CurrentWord = idx
	})
}

func (o *Overlays) clearHighlight() {
	o.update(func(st *OverlayState) {
		st.CurrentWord = -1
	})
}

func (o *Overlays) update(f func(*OverlayState)) {
	o.mu.Lock()
	f(&o.state)
	snapshot := o.state
	snapshot.Ticker = append([]string(nil), o.state.Ticker...)
	o.mu.Unlock()

	if o.events != nil {
		o.events.Publish(bus.Event{
			Type: bus.EventTypeOverlayChanged,
			Data: map[string]any{"state": snapshot},
		})
	}
}

func validHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
