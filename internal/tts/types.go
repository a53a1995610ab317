// Package tts provides speech synthesis engines for the anchor's voice
package tts

import (
	"context"
	"errors"
	"time"

	"github.com/normanking/anchorcast/internal/viseme"
)

// Common synthesis errors
var (
	ErrEngineUnavailable = errors.New("tts engine unavailable")
	ErrEmptyText         = errors.New("empty text")
	ErrSynthesisFailed   = errors.New("synthesis failed")
)

// Request describes a single utterance to synthesize
type Request struct {
	Text  string
	Voice string  // voice identifier, engine default when empty
	Speed float64 // playback rate, 1.0 = normal
}

// Result is a fully synthesized utterance
type Result struct {
	Audio          []byte // PCM s16le
	SampleRate     int
	Words          []string
	WordTimes      []int // ms offsets into the audio
	WordDurations  []int // ms
	Timeline       viseme.Timeline
	ProcessingTime time.Duration
	Engine         string
}

// Duration estimates the playback length of the result's audio
func (r *Result) Duration() time.Duration {
	if r.SampleRate <= 0 || len(r.Audio) == 0 {
		return 0
	}
	samples := len(r.Audio) / 2 // 16-bit mono
	return time.Duration(samples) * time.Second / time.Duration(r.SampleRate)
}

// Engine converts text into audio with lip-sync timing
type Engine interface {
	// Name identifies the engine in logs and status reports.
	Name() string

	// IsAvailable reports whether the engine can accept requests.
	IsAvailable() bool

	// Synthesize converts text to a playable result. Engines assume
	// one request at a time; callers serialize.
	Synthesize(ctx context.Context, req *Request) (*Result, error)

	// Close releases engine resources.
	Close() error
}
