// Package renderer drives the remote 3D stage that displays the anchor
package renderer

import (
	"context"
	"errors"

	"github.com/normanking/anchorcast/internal/viseme"
)

// Common renderer errors
var (
	ErrNotConnected  = errors.New("stage not connected")
	ErrAvatarLoad    = errors.New("avatar failed to load")
	ErrInvalidAvatar = errors.New("invalid avatar model")
)

// AvatarSpec describes an avatar model to display
type AvatarSpec struct {
	URL         string  `json:"url"`
	Body        string  `json:"body"` // M or F
	Mood        string  `json:"avatarMood,omitempty"`
	LipSyncLang string  `json:"lipsyncLang,omitempty"`
	CameraView  string  `json:"cameraView,omitempty"`
	Scale       float64 `json:"modelScale,omitempty"`
}

// AudioClip is a synthesized utterance ready for lip-synced playback.
// Words and their timings are optional; when present the stage shows
// word-level subtitles as playback reaches each word.
type AudioClip struct {
	Audio         []byte          `json:"-"`
	SampleRate    int             `json:"sampleRate"`
	Words         []string        `json:"words,omitempty"`
	WordTimes     []int           `json:"wtimes,omitempty"`
	WordDurations []int           `json:"wdurations,omitempty"`
	Timeline      viseme.Timeline `json:"-"`
}

// SpeakOptions adjusts delivery of a single utterance
type SpeakOptions struct {
	Mood    string  `json:"avatarMood,omitempty"`
	Volume  float64 `json:"volume,omitempty"`
	Emulate bool    `json:"lipsyncEmulate,omitempty"` // derive visemes on the stage if no timeline
}

// WordFunc is invoked as playback reaches each word of an utterance
type WordFunc func(word string, index int)

// Stage is the rendering surface for the anchor. Implementations must be
// safe for use from a single goroutine; callers serialize access.
type Stage interface {
	// ShowAvatar loads and displays an avatar, replacing any current one.
	ShowAvatar(ctx context.Context, spec AvatarSpec) error

	// SetBackground changes the studio backdrop image.
	SetBackground(url string) error

	// SpeakAudio starts lip-synced playback of a clip. It returns once
	// playback has been handed to the stage, not when it finishes.
	SpeakAudio(clip AudioClip, opts SpeakOptions, onWord WordFunc) error

	// IsSpeaking reports whether the stage is still playing audio.
	IsSpeaking() bool

	// Stop halts any in-progress speech and clears the playback queue.
	Stop() error

	// SetMood switches the avatar's facial mood.
	SetMood(mood string) error

	// SetView moves the camera to a named framing at the given distance.
	SetView(view string, distance float64) error

	// PlayGesture runs a one-shot hand gesture or emoji animation.
	PlayGesture(name string, duration float64) error

	// SetFixedValue pins a morph target to a value; nil releases it.
	SetFixedValue(shape string, value *float64) error

	// LookAtCamera directs the avatar's gaze at the camera.
	LookAtCamera(duration float64) error

	// Close releases the connection to the stage.
	Close() error
}
