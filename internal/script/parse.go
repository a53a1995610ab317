package script

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Script is a validated, defaults-applied broadcast script
type Script struct {
	Segments []Segment
}

// scriptEnvelope is the object form of the on-disk format
type scriptEnvelope struct {
	Segments []Segment `json:"segments"`
}

// Parse reads a script from JSON. Both a bare segment array and an
// object with a "segments" key are accepted. Parsing is atomic: any
// invalid segment rejects the whole script, and the error names the
// offending segment's index.
func Parse(data []byte, defaults Defaults) (*Script, error) {
	raw, err := decodeSegments(data)
	if err != nil {
		return nil, err
	}

	segments := make([]Segment, len(raw))
	for i, seg := range raw {
		seg = seg.withDefaults(defaults)
		if err := seg.validate(); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		segments[i] = seg
	}

	return &Script{Segments: segments}, nil
}

func decodeSegments(data []byte) ([]Segment, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty script file")
	}

	if strings.HasPrefix(trimmed, "[") {
		var segs []Segment
		if err := json.Unmarshal(data, &segs); err != nil {
			return nil, fmt.Errorf("parse script: %w", err)
		}
		return segs, nil
	}

	var env scriptEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if env.Segments == nil {
		return nil, fmt.Errorf("script object has no \"segments\" key")
	}
	return env.Segments, nil
}

// FromText builds a single-segment script from plain text input
func FromText(text string, defaults Defaults) (*Script, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text to broadcast")
	}
	seg := Segment{Text: text}.withDefaults(defaults)
	if err := seg.validate(); err != nil {
		return nil, err
	}
	return &Script{Segments: []Segment{seg}}, nil
}

// Preview returns a short human-readable listing of the script,
// truncating each segment's text to one line.
func (s *Script) Preview() string {
	var b strings.Builder
	for i, seg := range s.Segments {
		text := seg.Text
		if runes := []rune(text); len(runes) > 60 {
			text = string(runes[:57]) + "..."
		}
		fmt.Fprintf(&b, "%2d. [%s/%s] %s\n", i+1, seg.Mood, seg.View, text)
	}
	return b.String()
}

// EstimatedWords returns the total word count across all segments
func (s *Script) EstimatedWords() int {
	total := 0
	for _, seg := range s.Segments {
		total += len(strings.Fields(seg.Text))
	}
	return total
}
