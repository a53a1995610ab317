package viseme

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Timeline is a lip-sync animation track in the stage's playback format:
// parallel arrays of viseme, start time and duration, all in milliseconds.
// A Timeline is consumed exactly once by the stage during playback of one
// segment's audio.
type Timeline struct {
	Visemes   []Viseme `json:"visemes"`
	Times     []int    `json:"vtimes"`
	Durations []int    `json:"vdurations"`
}

// Len returns the number of viseme events.
func (t Timeline) Len() int { return len(t.Visemes) }

// Duration returns the end of the last viseme event.
func (t Timeline) Duration() time.Duration {
	if len(t.Times) == 0 {
		return 0
	}
	last := len(t.Times) - 1
	end := t.Times[last]
	if last < len(t.Durations) {
		end += t.Durations[last]
	}
	return time.Duration(end) * time.Millisecond
}

// Shift returns a copy of the timeline with all start times moved by offset.
func (t Timeline) Shift(offset time.Duration) Timeline {
	ms := int(offset.Milliseconds())
	out := Timeline{
		Visemes:   append([]Viseme(nil), t.Visemes...),
		Times:     make([]int, len(t.Times)),
		Durations: append([]int(nil), t.Durations...),
	}
	for i, at := range t.Times {
		out.Times[i] = at + ms
	}
	return out
}

// Append concatenates another timeline onto this one without re-timing;
// callers shift the tail first when chunks arrive with zero-based times.
func (t *Timeline) Append(tail Timeline) {
	t.Visemes = append(t.Visemes, tail.Visemes...)
	t.Times = append(t.Times, tail.Times...)
	t.Durations = append(t.Durations, tail.Durations...)
}

// MouthCue is one timestamped phoneme-class marker from an external lip-sync
// analysis file. Times are in seconds.
type MouthCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Value string  `json:"value"`
}

// FromMouthCues converts a seconds-based mouth-cue list to the stage's
// millisecond timebase. Each cue's duration is the gap to the next cue, or
// end-of-clip for the last cue.
func FromMouthCues(cues []MouthCue) Timeline {
	tl := Timeline{
		Visemes:   make([]Viseme, 0, len(cues)),
		Times:     make([]int, 0, len(cues)),
		Durations: make([]int, 0, len(cues)),
	}
	for i, cue := range cues {
		tl.Visemes = append(tl.Visemes, MapCue(cue.Value))
		tl.Times = append(tl.Times, int(math.Round(cue.Start*1000)))

		dur := cue.End - cue.Start
		if i < len(cues)-1 {
			dur = cues[i+1].Start - cue.Start
		}
		tl.Durations = append(tl.Durations, int(math.Round(dur*1000)))
	}
	return tl
}

// ErrBadLipSyncFile reports a lip-sync file in neither supported format.
var ErrBadLipSyncFile = errors.New("lip-sync file: expected mouthCues or visemes format")

type lipSyncFile struct {
	MouthCues []MouthCue `json:"mouthCues"`
	Visemes   []Viseme   `json:"visemes"`
	Times     []int      `json:"vtimes"`
	Durations []int      `json:"vdurations"`
}

// ParseLipSyncFile reads an external lip-sync JSON file in either the
// mouth-cue format ({"mouthCues": [...]}) or the pre-mapped triple format
// ({"visemes": [...], "vtimes": [...], "vdurations": [...]}).
func ParseLipSyncFile(data []byte) (Timeline, error) {
	var f lipSyncFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Timeline{}, fmt.Errorf("lip-sync file: %w", err)
	}
	switch {
	case len(f.MouthCues) > 0:
		return FromMouthCues(f.MouthCues), nil
	case len(f.Visemes) > 0:
		if len(f.Times) != len(f.Visemes) || len(f.Durations) != len(f.Visemes) {
			return Timeline{}, fmt.Errorf("%w: mismatched array lengths", ErrBadLipSyncFile)
		}
		return Timeline{Visemes: f.Visemes, Times: f.Times, Durations: f.Durations}, nil
	default:
		return Timeline{}, ErrBadLipSyncFile
	}
}

// letterToViseme drives the approximate text path: vowels map to open-jaw
// shapes, consonants to their closest class.
var letterToViseme = map[string]Viseme{
	"a": VisemeAA, "e": VisemeE, "i": VisemeI, "o": VisemeO, "u": VisemeU,
	"p": VisemePP, "b": VisemePP, "m": VisemePP,
	"f": VisemeFF, "v": VisemeFF,
	"th": VisemeTH,
	"t":  VisemeDD, "d": VisemeDD,
	"k": VisemeKK, "g": VisemeKK, "c": VisemeKK, "q": VisemeKK, "x": VisemeKK,
	"ch": VisemeCH, "sh": VisemeCH, "j": VisemeCH,
	"s": VisemeSS, "z": VisemeSS,
	"n": VisemeNN, "l": VisemeNN,
	"r": VisemeRR,
	"w": VisemeU, "y": VisemeI, "h": VisemeAA,
}

// wordVisemes converts a word to a deduplicated viseme sequence, checking the
// th/ch/sh digraphs before single letters.
func wordVisemes(word string) []Viseme {
	chars := []byte(strings.ToLower(word))
	out := make([]Viseme, 0, len(chars))

	for i := 0; i < len(chars); i++ {
		ch := chars[i]
		if ch < 'a' || ch > 'z' {
			continue
		}

		key := string(ch)
		if i < len(chars)-1 {
			digraph := string(chars[i : i+2])
			if digraph == "th" || digraph == "ch" || digraph == "sh" {
				key = digraph
				i++
			}
		}

		v, ok := letterToViseme[key]
		if !ok {
			v = VisemeAA
		}
		// Avoid consecutive identical visemes
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}

// FromWordTimings builds a timeline from word-level timestamps (seconds),
// spreading each word's viseme sequence evenly across the word's span. This
// is approximate lip-sync, not true phoneme alignment.
func FromWordTimings(words []string, starts, ends []float64) Timeline {
	var tl Timeline
	for i, word := range words {
		if i >= len(starts) || i >= len(ends) {
			break
		}
		vs := wordVisemes(word)
		if len(vs) == 0 {
			continue
		}

		startMs := starts[i] * 1000
		step := (ends[i] - starts[i]) * 1000 / float64(len(vs))
		for j, v := range vs {
			tl.Visemes = append(tl.Visemes, v)
			tl.Times = append(tl.Times, int(math.Round(startMs+float64(j)*step)))
			tl.Durations = append(tl.Durations, int(math.Round(step)))
		}
	}
	return tl
}

// ApproximateFromText derives a coarse viseme stream for plain text spoken
// over the given duration: word boundaries are spaced evenly and each word's
// visemes share its slot. Used when no engine-supplied alignment exists.
func ApproximateFromText(text string, total time.Duration) Timeline {
	words := strings.Fields(text)
	if len(words) == 0 || total <= 0 {
		return Timeline{}
	}

	starts := make([]float64, len(words))
	ends := make([]float64, len(words))
	slot := total.Seconds() / float64(len(words))
	for i := range words {
		starts[i] = float64(i) * slot
		// Hold a short silence at each word boundary
		ends[i] = starts[i] + slot*0.85
	}
	return FromWordTimings(words, starts, ends)
}
