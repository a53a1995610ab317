package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// recorder captures every direction and utterance in arrival order
type recorder struct {
	mu    sync.Mutex
	calls []string

	speakErr   map[int]error // by utterance index
	speakCount int
	blockSpeak chan struct{} // when set, Speak waits here
}

func (r *recorder) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) ApplyMood(m string) error   { r.record("mood:" + m); return nil }
func (r *recorder) ApplyView(v string) error   { r.record("view:" + v); return nil }
func (r *recorder) FireGesture(g string) error { r.record("gesture:" + g); return nil }

func (r *recorder) Speak(ctx context.Context, text, voice string, speed float64) error {
	r.mu.Lock()
	idx := r.speakCount
	r.speakCount++
	block := r.blockSpeak
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.record(fmt.Sprintf("speak:%s", text))
	if r.speakErr != nil {
		if err := r.speakErr[idx]; err != nil {
			return err
		}
	}
	return nil
}

func (r *recorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func mustParse(t *testing.T, data string) *Script {
	t.Helper()
	s, err := Parse([]byte(data), StandardDefaults())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return s
}

// instantRunner returns a runner whose inter-segment delays are
// recorded instead of slept.
func instantRunner(s *Script, rec *recorder, delays *[]time.Duration) *Runner {
	r := NewRunner(s, rec, rec, nil, zerolog.Nop())
	r.sleep = func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return ctx.Err()
	}
	return r
}

func TestRunStrictOrder(t *testing.T) {
	s := mustParse(t, `[
		{"text": "first", "mood": "happy", "view": "head", "gesture": "wave"},
		{"text": "second"},
		{"text": "third", "mood": "sad"}
	]`)
	rec := &recorder{}
	r := instantRunner(s, rec, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.State() != StateCompleted {
		t.Errorf("state = %v, want completed", r.State())
	}

	want := []string{
		"mood:happy", "view:head", "gesture:wave", "speak:first",
		"mood:neutral", "view:upper", "speak:second",
		"mood:sad", "view:upper", "speak:third",
	}
	got := rec.recorded()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunDelaySkippedAfterLastSegment(t *testing.T) {
	s := mustParse(t, `[{"text": "a", "delay": 100}, {"text": "b", "delay": 999}]`)
	rec := &recorder{}
	var delays []time.Duration
	r := instantRunner(s, rec, &delays)

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(delays) != 1 || delays[0] != 100*time.Millisecond {
		t.Errorf("delays = %v, want exactly [100ms]", delays)
	}
}

func TestRunSilentSegmentSkipsSpeech(t *testing.T) {
	s := mustParse(t, `[
		{"text": "a"},
		{"mood": "sad", "view": "full", "gesture": "nod", "delay": 75},
		{"text": "b"}
	]`)
	rec := &recorder{}
	var delays []time.Duration
	r := instantRunner(s, rec, &delays)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.speakCount != 2 {
		t.Errorf("speak calls = %d, want 2 (silent segment never speaks)", rec.speakCount)
	}

	want := []string{
		"mood:neutral", "view:upper", "speak:a",
		"mood:sad", "view:full", "gesture:nod",
		"mood:neutral", "view:upper", "speak:b",
	}
	got := rec.recorded()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
	if len(delays) != 2 || delays[1] != 75*time.Millisecond {
		t.Errorf("delays = %v, want the silent segment's 75ms pause honored", delays)
	}
}

func TestRunEmptyScriptCompletes(t *testing.T) {
	rec := &recorder{}
	r := instantRunner(&Script{}, rec, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.State() != StateCompleted {
		t.Errorf("state = %v, want completed", r.State())
	}
	if len(rec.recorded()) != 0 {
		t.Errorf("calls = %v, want none", rec.recorded())
	}
	if cur, _ := r.Progress(); cur != 0 {
		t.Errorf("current = %d, want 0", cur)
	}
}

func TestRunSingleUse(t *testing.T) {
	s := mustParse(t, `[{"text": "once"}]`)
	rec := &recorder{}
	r := instantRunner(s, rec, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Run err = %v, want ErrAlreadyStarted", err)
	}
}

func TestRunAdvancesPastSynthesisFailure(t *testing.T) {
	s := mustParse(t, `[{"text": "a"}, {"text": "b"}, {"text": "c"}]`)
	rec := &recorder{speakErr: map[int]error{1: errors.New("synthesis failed")}}
	r := instantRunner(s, rec, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.State() != StateCompleted {
		t.Errorf("state = %v, want completed despite mid-script failure", r.State())
	}
	if r.Failures() != 1 {
		t.Errorf("failures = %d, want 1", r.Failures())
	}
	if rec.speakCount != 3 {
		t.Errorf("speak calls = %d, want all 3 segments attempted", rec.speakCount)
	}
}

func TestRunCancelBetweenSegments(t *testing.T) {
	s := mustParse(t, `[{"text": "a"}, {"text": "b"}, {"text": "c"}]`)
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	r := NewRunner(s, rec, rec, nil, zerolog.Nop())
	r.sleep = func(ctx context.Context, d time.Duration) error {
		cancel() // cancel arrives during the inter-segment pause
		return ctx.Err()
	}

	err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if r.State() != StateCancelled {
		t.Errorf("state = %v, want cancelled", r.State())
	}
	if rec.speakCount != 1 {
		t.Errorf("speak calls = %d, want 1 (no segment after cancellation)", rec.speakCount)
	}
}

func TestRunCancelDuringSpeech(t *testing.T) {
	s := mustParse(t, `[{"text": "a"}, {"text": "b"}]`)
	block := make(chan struct{})
	rec := &recorder{blockSpeak: block}
	ctx, cancel := context.WithCancel(context.Background())

	r := instantRunner(s, rec, nil)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Let the first utterance start, then cancel mid-speech.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if r.State() != StateCancelled {
		t.Errorf("state = %v, want cancelled", r.State())
	}
}

func TestProgressDuringRun(t *testing.T) {
	s := mustParse(t, `[{"text": "a"}, {"text": "b"}]`)
	rec := &recorder{}
	r := instantRunner(s, rec, nil)

	var seen []int
	orig := r.sleep
	r.sleep = func(ctx context.Context, d time.Duration) error {
		cur, total := r.Progress()
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
		seen = append(seen, cur)
		return orig(ctx, d)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0] != 1 {
		t.Errorf("progress during first pause = %v, want [1]", seen)
	}
	if cur, _ := r.Progress(); cur != 2 {
		t.Errorf("final current = %d, want 2", cur)
	}
}
