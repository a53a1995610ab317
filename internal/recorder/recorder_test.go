package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// chunkSurface hands out queued chunks one per call
type chunkSurface struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (s *chunkSurface) push(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, b)
}

func (s *chunkSurface) CaptureChunk() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) == 0 {
		return nil, nil
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func TestRecordAndSave(t *testing.T) {
	dir := t.TempDir()
	surface := &chunkSurface{}
	surface.push([]byte("head"))
	surface.push([]byte("tail"))

	r := New(surface, dir, 200, nil, zerolog.Nop())
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !r.Active() {
		t.Error("Active = false after Start")
	}

	path, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("saved outside output dir: %s", path)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "anchorcast_") || !strings.HasSuffix(base, ".webm") {
		t.Errorf("filename = %q, want anchorcast_<ts>.webm", base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read recording: %v", err)
	}
	if string(data) != "headtail" {
		t.Errorf("contents = %q, want both chunks in order", data)
	}
	if r.Active() {
		t.Error("Active = true after Stop")
	}

	// No leftover partial file.
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	r := New(&chunkSurface{}, t.TempDir(), 30, nil, zerolog.Nop())
	path, err := r.Stop()
	if err != nil || path != "" {
		t.Errorf("Stop idle = (%q, %v), want empty no-op", path, err)
	}
}

func TestDoubleStartRejected(t *testing.T) {
	r := New(&chunkSurface{}, t.TempDir(), 30, nil, zerolog.Nop())
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start err = %v, want ErrAlreadyRecording", err)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestRestartAfterStop(t *testing.T) {
	surface := &chunkSurface{}
	r := New(surface, t.TempDir(), 100, nil, zerolog.Nop())

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	first, err := r.Stop()
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(2 * time.Millisecond) // distinct timestamp for the second file
	if err := r.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	second, err := r.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("both recordings used path %q", first)
	}
}

func TestStartWithoutSurfaceRejected(t *testing.T) {
	r := New(nil, t.TempDir(), 30, nil, zerolog.Nop())
	if err := r.Start(); !errors.Is(err, ErrNoSurface) {
		t.Errorf("err = %v, want ErrNoSurface", err)
	}
	if r.Active() {
		t.Error("recorder active after rejected start")
	}
	if path, err := r.Stop(); err != nil || path != "" {
		t.Errorf("Stop = (%q, %v), want idle no-op", path, err)
	}
}
