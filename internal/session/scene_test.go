package session

import (
	"context"
	"errors"
	"testing"

	"github.com/normanking/anchorcast/internal/catalog"
)

func TestLoadAvatarFromCatalog(t *testing.T) {
	s, _, _ := newTestSession(t)
	if err := s.LoadAvatar(context.Background(), "female-1"); err != nil {
		t.Errorf("LoadAvatar: %v", err)
	}
	if err := s.LoadAvatar(context.Background(), "nobody"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadAvatarFromSource(t *testing.T) {
	s, _, _ := newTestSession(t)
	if err := s.LoadAvatarFromSource(context.Background(), "https://models.example.com/me.glb", "F"); err != nil {
		t.Errorf("LoadAvatarFromSource: %v", err)
	}
	if err := s.LoadAvatarFromSource(context.Background(), "https://models.example.com/me.glb", "X"); err == nil {
		t.Error("invalid body type accepted")
	}
}

func TestLoadBackground(t *testing.T) {
	s, stage, _ := newTestSession(t)
	if err := s.LoadBackground("newsroom"); err != nil {
		t.Fatalf("LoadBackground: %v", err)
	}
	stage.mu.Lock()
	defer stage.mu.Unlock()
	if len(stage.bgs) != 1 {
		t.Errorf("backgrounds set = %v, want 1 entry", stage.bgs)
	}
}

func TestSetViewUsesCatalogDistances(t *testing.T) {
	s, stage, _ := newTestSession(t)

	for _, view := range []string{"full", "upper", "mid", "head"} {
		if err := s.SetView(view); err != nil {
			t.Errorf("SetView(%q): %v", view, err)
		}
	}
	if err := s.SetView("closeup"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	stage.mu.Lock()
	defer stage.mu.Unlock()
	if len(stage.views) != 4 {
		t.Errorf("views applied = %v, want 4", stage.views)
	}
}

func TestSetMorph(t *testing.T) {
	s, _, _ := newTestSession(t)
	v := 0.6
	if err := s.SetMorph("browInnerUp", &v); err != nil {
		t.Errorf("SetMorph pin: %v", err)
	}
	if err := s.SetMorph("browInnerUp", nil); err != nil {
		t.Errorf("SetMorph release: %v", err)
	}
}

func TestSetZoom(t *testing.T) {
	s, _, _ := newTestSession(t)
	if err := s.SetZoom(1.5); err != nil {
		t.Errorf("SetZoom: %v", err)
	}
	if err := s.SetZoom(0); err == nil {
		t.Error("zero zoom accepted")
	}
	if err := s.SetZoom(-1); err == nil {
		t.Error("negative zoom accepted")
	}
}

func TestPlayGestureTranslatesToStageNames(t *testing.T) {
	s, stage, _ := newTestSession(t)

	for _, g := range []string{"wave", "thumbsUp", "think", "nod", "headShake", "point"} {
		if err := s.PlayGesture(g); err != nil {
			t.Errorf("PlayGesture(%q): %v", g, err)
		}
	}

	stage.mu.Lock()
	got := append([]string(nil), stage.gestures...)
	stage.mu.Unlock()
	want := []string{"wave", "thumbsup", "think", "nod", "shake", "point"}
	if len(got) != len(want) {
		t.Fatalf("stage gestures = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("gesture %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPlayGestureSmileShiftsMood(t *testing.T) {
	s, stage, _ := newTestSession(t)
	if err := s.PlayGesture("smile"); err != nil {
		t.Fatalf("PlayGesture(smile): %v", err)
	}

	stage.mu.Lock()
	defer stage.mu.Unlock()
	if len(stage.gestures) != 0 {
		t.Errorf("gestures = %v, want none for smile", stage.gestures)
	}
	if len(stage.moods) != 1 || stage.moods[0] != "happy" {
		t.Errorf("moods = %v, want [happy]", stage.moods)
	}
}

func TestPlayGestureUnknown(t *testing.T) {
	s, _, _ := newTestSession(t)
	if err := s.PlayGesture("jazzhands"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStateTracksScene(t *testing.T) {
	s, _, _ := newTestSession(t)

	st := s.State()
	if st.Mood != "neutral" || st.View != "upper" || st.Indicator != "ready" {
		t.Errorf("initial state = %+v", st)
	}

	if err := s.LoadAvatar(context.Background(), "male-2"); err != nil {
		t.Fatal(err)
	}
	if err := s.LoadBackground("city"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMood("happy"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetView("head"); err != nil {
		t.Fatal(err)
	}

	st = s.State()
	if st.Avatar != "male-2" || st.CustomAvatar {
		t.Errorf("avatar = %q custom = %v, want male-2 from catalog", st.Avatar, st.CustomAvatar)
	}
	if st.Background != "city" {
		t.Errorf("background = %q, want city", st.Background)
	}
	if st.Mood != "happy" || st.View != "head" {
		t.Errorf("mood/view = %q/%q, want happy/head", st.Mood, st.View)
	}
}

func TestStateMarksCustomAvatar(t *testing.T) {
	s, _, _ := newTestSession(t)
	url := "https://models.example.com/me.glb"
	if err := s.LoadAvatarFromSource(context.Background(), url, "F"); err != nil {
		t.Fatal(err)
	}
	st := s.State()
	if !st.CustomAvatar || st.Avatar != url {
		t.Errorf("state = %+v, want custom avatar %q", st, url)
	}
}

func TestAvatarLoadFailureSetsErrorIndicator(t *testing.T) {
	s, stage, _ := newTestSession(t)
	stage.avatarErr = errors.New("model refused to load")

	if err := s.LoadAvatar(context.Background(), "female-1"); err == nil {
		t.Fatal("LoadAvatar succeeded, want error")
	}
	if st := s.State(); st.Indicator != "error" {
		t.Errorf("indicator = %q, want error", st.Indicator)
	}

	stage.avatarErr = nil
	if err := s.LoadAvatar(context.Background(), "female-1"); err != nil {
		t.Fatal(err)
	}
	if st := s.State(); st.Indicator != "ready" {
		t.Errorf("indicator = %q, want ready after recovery", st.Indicator)
	}
}
