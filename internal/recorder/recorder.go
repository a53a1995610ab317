// Package recorder captures broadcasts to disk
package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/anchorcast/internal/bus"
)

// Recorder errors
var (
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNoSurface        = errors.New("no capture surface")
)

// Surface supplies encoded video chunks of the rendered broadcast.
// The stage encodes its own canvas; the engine only drains and stores
// the stream.
type Surface interface {
	// CaptureChunk returns the encoded bytes produced since the last
	// call. An empty slice with nil error means no new data yet.
	CaptureChunk() ([]byte, error)
}

// Recorder drains a surface at a fixed rate into a .webm file. Start
// and Stop may be called from any goroutine; stopping an idle recorder
// is a no-op.
type Recorder struct {
	surface Surface
	events  *bus.EventBus
	logger  zerolog.Logger

	outputDir string
	fps       int

	mu     sync.Mutex
	active bool
	stop   chan struct{}
	doneWg sync.WaitGroup
	file   *os.File
	path   string
}

// New creates a recorder writing files into outputDir
func New(surface Surface, outputDir string, fps int, events *bus.EventBus, logger zerolog.Logger) *Recorder {
	if fps <= 0 {
		fps = 30
	}
	return &Recorder{
		surface:   surface,
		events:    events,
		logger:    logger.With().Str("component", "recorder").Logger(),
		outputDir: outputDir,
		fps:       fps,
	}
}

// Active reports whether a recording is in progress
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start begins draining the surface into a new file
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return ErrAlreadyRecording
	}
	if r.surface == nil {
		return ErrNoSurface
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	r.path = filepath.Join(r.outputDir, fmt.Sprintf("anchorcast_%d.webm", time.Now().UnixMilli()))
	f, err := os.Create(r.path + ".part")
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}

	r.file = f
	r.active = true
	r.stop = make(chan struct{})
	r.doneWg.Add(1)
	go r.drain(r.stop, f)

	r.publish(bus.EventTypeRecordingStarted, map[string]any{"path": r.path})
	r.logger.Info().Str("path", r.path).Int("fps", r.fps).Msg("Recording started")
	return nil
}

func (r *Recorder) drain(stop chan struct{}, f *os.File) {
	defer r.doneWg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(r.fps))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			// Final drain so no tail chunks are lost.
			for r.writeChunk(f) {
			}
			return
		case <-ticker.C:
			r.writeChunk(f)
		}
	}
}

// writeChunk reports whether it wrote any data
func (r *Recorder) writeChunk(f *os.File) bool {
	chunk, err := r.surface.CaptureChunk()
	if err != nil {
		r.logger.Warn().Err(err).Msg("Frame capture failed")
		return false
	}
	if len(chunk) == 0 {
		return false
	}
	if _, err := f.Write(chunk); err != nil {
		r.logger.Error().Err(err).Msg("Recording write failed")
		return false
	}
	return true
}

// Stop finalizes the current recording and returns the saved path.
// Stopping when idle returns an empty path and no error.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return "", nil
	}
	r.active = false
	close(r.stop)
	file, path := r.file, r.path
	r.file = nil
	r.mu.Unlock()

	r.doneWg.Wait()

	if err := file.Close(); err != nil {
		r.publish(bus.EventTypeRecordingFailed, map[string]any{"error": err.Error()})
		return "", fmt.Errorf("close recording: %w", err)
	}
	if err := os.Rename(path+".part", path); err != nil {
		r.publish(bus.EventTypeRecordingFailed, map[string]any{"error": err.Error()})
		return "", fmt.Errorf("finalize recording: %w", err)
	}

	r.publish(bus.EventTypeRecordingSaved, map[string]any{"path": path})
	r.logger.Info().Str("path", path).Msg("Recording saved")
	return path, nil
}

func (r *Recorder) publish(t bus.EventType, data map[string]any) {
	if r.events != nil {
		r.events.Publish(bus.Event{Type: t, Data: data})
	}
}
