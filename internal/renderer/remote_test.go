package renderer

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/anchorcast/internal/viseme"
)

// fakeStage is an in-process websocket endpoint that scripts replies
type fakeStage struct {
	t       *testing.T
	srv     *httptest.Server
	mu      sync.Mutex
	conn    *websocket.Conn
	inbound []stageMessage
}

func newFakeStage(t *testing.T, onMessage func(conn *websocket.Conn, msg stageMessage)) *fakeStage {
	t.Helper()
	fs := &fakeStage{t: t}
	upgrader := websocket.Upgrader{}

	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		fs.mu.Lock()
		fs.conn = conn
		fs.mu.Unlock()

		for {
			var msg stageMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			fs.mu.Lock()
			fs.inbound = append(fs.inbound, msg)
			fs.mu.Unlock()
			if onMessage != nil {
				onMessage(conn, msg)
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeStage) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func (fs *fakeStage) received(msgType string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, m := range fs.inbound {
		if m.Type == msgType {
			return true
		}
	}
	return false
}

func connectStage(t *testing.T, fs *fakeStage) *RemoteStage {
	t.Helper()
	stage := NewRemoteStage(fs.wsURL(), zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stage.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { stage.Close() })
	return stage
}

func TestShowAvatarSuccess(t *testing.T) {
	fs := newFakeStage(t, func(conn *websocket.Conn, msg stageMessage) {
		if msg.Type == "showAvatar" {
			conn.WriteJSON(stageMessage{Type: "avatarLoaded"})
		}
	})
	stage := connectStage(t, fs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := stage.ShowAvatar(ctx, AvatarSpec{URL: "https://models.example.com/sarah.glb?x=1", Body: "F"})
	if err != nil {
		t.Fatalf("ShowAvatar: %v", err)
	}
}

func TestShowAvatarError(t *testing.T) {
	fs := newFakeStage(t, func(conn *websocket.Conn, msg stageMessage) {
		if msg.Type == "showAvatar" {
			conn.WriteJSON(stageMessage{Type: "avatarError", Error: "mesh missing"})
		}
	})
	stage := connectStage(t, fs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := stage.ShowAvatar(ctx, AvatarSpec{URL: "https://models.example.com/bad.glb", Body: "F"})
	if err == nil {
		t.Fatal("expected load error")
	}
	if !strings.Contains(err.Error(), "mesh missing") {
		t.Errorf("error = %v, want stage-reported reason", err)
	}
}

func TestShowAvatarContextCancel(t *testing.T) {
	// Server never replies avatarLoaded.
	fs := newFakeStage(t, nil)
	stage := connectStage(t, fs)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := stage.ShowAvatar(ctx, AvatarSpec{URL: "https://models.example.com/slow.glb", Body: "M"})
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestSpeakAudioLifecycle(t *testing.T) {
	fs := newFakeStage(t, func(conn *websocket.Conn, msg stageMessage) {
		if msg.Type == "speakAudio" {
			conn.WriteJSON(stageMessage{Type: "speechStarted"})
			conn.WriteJSON(stageMessage{Type: "word", Index: 0})
			conn.WriteJSON(stageMessage{Type: "word", Index: 1})
			conn.WriteJSON(stageMessage{Type: "speechEnded"})
		}
	})
	stage := connectStage(t, fs)

	var mu sync.Mutex
	var words []string
	clip := AudioClip{
		Audio:      []byte{1, 2, 3},
		SampleRate: 24000,
		Words:      []string{"good", "evening"},
		WordTimes:  []int{0, 400},
		Timeline: viseme.Timeline{
			Visemes:   []viseme.Viseme{viseme.VisemeFF, viseme.VisemeO},
			Times:     []int{0, 120},
			Durations: []int{120, 300},
		},
	}

	err := stage.SpeakAudio(clip, SpeakOptions{Mood: "happy"}, func(w string, i int) {
		mu.Lock()
		words = append(words, w)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("SpeakAudio: %v", err)
	}
	if !stage.IsSpeaking() {
		t.Error("IsSpeaking = false right after SpeakAudio")
	}

	deadline := time.Now().Add(5 * time.Second)
	for stage.IsSpeaking() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if stage.IsSpeaking() {
		t.Fatal("stage still speaking after speechEnded")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(words) != 2 || words[0] != "good" || words[1] != "evening" {
		t.Errorf("word callbacks = %v, want [good evening]", words)
	}
}

func TestStopClearsSpeaking(t *testing.T) {
	fs := newFakeStage(t, nil)
	stage := connectStage(t, fs)

	clip := AudioClip{Audio: []byte{0}, SampleRate: 24000}
	if err := stage.SpeakAudio(clip, SpeakOptions{}, nil); err != nil {
		t.Fatalf("SpeakAudio: %v", err)
	}
	if err := stage.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stage.IsSpeaking() {
		t.Error("IsSpeaking = true after Stop")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !fs.received("stop") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !fs.received("stop") {
		t.Error("stage never received stop frame")
	}
}

func TestSendBeforeConnect(t *testing.T) {
	stage := NewRemoteStage("ws://localhost:1/nowhere", zerolog.Nop())
	if err := stage.SetMood("happy"); err != ErrNotConnected {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestIsLocalModel(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://models.example.com/sarah.glb", false},
		{"https://example.com/page.html", false},
		{"/home/anchor/models/custom.glb", true},
		{"file:///home/anchor/models/custom.glb", true},
		{"custom.GLB", true},
		{"notamodel.txt", false},
	}
	for _, tt := range tests {
		if got := isLocalModel(tt.url); got != tt.want {
			t.Errorf("isLocalModel(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestCaptureChunks(t *testing.T) {
	fs := newFakeStage(t, func(conn *websocket.Conn, msg stageMessage) {
		if msg.Type == "startCapture" {
			conn.WriteJSON(stageMessage{Type: "recordChunk", Audio: base64.StdEncoding.EncodeToString([]byte("vid1"))})
			conn.WriteJSON(stageMessage{Type: "recordChunk", Audio: base64.StdEncoding.EncodeToString([]byte("vid2"))})
		}
	})
	stage := connectStage(t, fs)

	if err := stage.StartCapture(30); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}

	var got []byte
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 8 && time.Now().Before(deadline) {
		chunk, err := stage.CaptureChunk()
		if err != nil {
			t.Fatalf("CaptureChunk: %v", err)
		}
		got = append(got, chunk...)
		time.Sleep(2 * time.Millisecond)
	}
	if string(got) != "vid1vid2" {
		t.Errorf("captured = %q, want chunks in order", got)
	}

	if err := stage.StopCapture(); err != nil {
		t.Fatalf("StopCapture: %v", err)
	}
}

func TestValidateModelRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.glb")
	if err := os.WriteFile(path, []byte("not a gltf binary"), 0644); err != nil {
		t.Fatal(err)
	}

	err := validateModel(path)
	if err == nil {
		t.Fatal("expected error for non-glTF file")
	}
	if !strings.Contains(err.Error(), "invalid avatar model") {
		t.Errorf("err = %v, want ErrInvalidAvatar wrap", err)
	}
}

func TestReconnectAfterConnectionLoss(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		if conns.Add(1) == 1 {
			conn.Close() // the first connection drops right away
			return
		}
		for {
			var msg stageMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	stage := NewRemoteStage("ws"+strings.TrimPrefix(srv.URL, "http"), zerolog.Nop())
	stage.EnableReconnect(5*time.Millisecond, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stage.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer stage.Close()

	deadline := time.Now().Add(2 * time.Second)
	for conns.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if conns.Load() < 2 {
		t.Fatal("stage never redialed after the connection dropped")
	}

	// Frames flow again once the new connection is up.
	var lastErr error
	for time.Now().Before(deadline) {
		if lastErr = stage.SetMood("happy"); lastErr == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("send still failing after reconnect: %v", lastErr)
}

func TestNoReconnectByDefault(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns.Add(1)
		conn.Close()
	}))
	defer srv.Close()

	stage := NewRemoteStage("ws"+strings.TrimPrefix(srv.URL, "http"), zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stage.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer stage.Close()

	time.Sleep(100 * time.Millisecond)
	if got := conns.Load(); got != 1 {
		t.Errorf("connections = %d, want 1 without a reconnect policy", got)
	}
}
