package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
	"github.com/rs/zerolog"

	"github.com/normanking/anchorcast/internal/renderer"
	"github.com/normanking/anchorcast/internal/viseme"
)

// ClipPlayer plays prerecorded WAV announcements (stings, intros,
// station idents) through the local audio device while the stage
// animates the mouth from a sidecar lip-sync file.
type ClipPlayer struct {
	stage  renderer.Stage
	logger zerolog.Logger

	initOnce sync.Once
	initErr  error
	rate     beep.SampleRate
}

// NewClipPlayer creates a player for prerecorded clips
func NewClipPlayer(stage renderer.Stage, logger zerolog.Logger) *ClipPlayer {
	return &ClipPlayer{
		stage:  stage,
		logger: logger.With().Str("component", "clips").Logger(),
	}
}

// Play decodes and plays a WAV file, blocking until playback finishes
// or the context is cancelled. When a sidecar "<name>.json" lip-sync
// file exists next to the WAV, its viseme timeline is sent to the
// stage so the avatar mouths along.
func (p *ClipPlayer) Play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open clip: %w", err)
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode clip: %w", err)
	}
	defer streamer.Close()

	p.initOnce.Do(func() {
		p.rate = format.SampleRate
		p.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if p.initErr != nil {
		return fmt.Errorf("audio device: %w", p.initErr)
	}

	if timeline, ok := p.loadSidecar(path); ok {
		clip := renderer.AudioClip{Timeline: timeline}
		if err := p.stage.SpeakAudio(clip, renderer.SpeakOptions{Emulate: false}, nil); err != nil {
			p.logger.Warn().Err(err).Msg("Stage rejected lip-sync timeline")
		}
	}

	done := make(chan struct{})
	var play beep.Streamer = streamer
	if format.SampleRate != p.rate {
		play = beep.Resample(4, format.SampleRate, p.rate, streamer)
	}
	speaker.Play(beep.Seq(play, beep.Callback(func() {
		close(done)
	})))

	p.logger.Info().Str("clip", filepath.Base(path)).Msg("Playing clip")

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		p.stage.Stop()
		return ctx.Err()
	}
}

// loadSidecar reads the lip-sync JSON next to a WAV file if present
func (p *ClipPlayer) loadSidecar(wavPath string) (viseme.Timeline, bool) {
	jsonPath := strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + ".json"
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return viseme.Timeline{}, false
	}

	timeline, err := viseme.ParseLipSyncFile(data)
	if err != nil {
		p.logger.Warn().Err(err).Str("file", jsonPath).Msg("Bad lip-sync sidecar")
		return viseme.Timeline{}, false
	}
	return timeline, true
}
