// Package catalog holds the selectable avatars, backgrounds, voices and
// camera views as data, each with exactly one default entry.
package catalog

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotFound         = errors.New("catalog entry not found")
	ErrDuplicateID      = errors.New("duplicate catalog id")
	ErrNoDefault        = errors.New("catalog has no default entry")
	ErrMultipleDefaults = errors.New("catalog has multiple default entries")
)

// Avatar describes a loadable talking-head model.
type Avatar struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Body      string `json:"body"` // "F" or "M" rig
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Default   bool   `json:"default,omitempty"`
}

// Background describes a scene backdrop image.
type Background struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Default   bool   `json:"default,omitempty"`
}

// Voice describes a selectable synthetic voice.
type Voice struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Gender  string `json:"gender"` // "F" or "M"
	Default bool   `json:"default,omitempty"`
}

// CameraView holds the camera placement for a named framing.
type CameraView struct {
	Distance float64 `json:"distance"`
	YOffset  float64 `json:"yOffset"`
}

// Catalog bundles the selectable broadcast resources with O(1) id lookup.
type Catalog struct {
	avatars     []Avatar
	backgrounds []Background
	voices      []Voice

	avatarByID     map[string]int
	backgroundByID map[string]int
	voiceByID      map[string]int

	defaultAvatar     int
	defaultBackground int
	defaultVoice      int
}

// New builds a Catalog, validating that ids are unique within each list and
// that each list flags exactly one default.
func New(avatars []Avatar, backgrounds []Background, voices []Voice) (*Catalog, error) {
	c := &Catalog{
		avatars:        avatars,
		backgrounds:    backgrounds,
		voices:         voices,
		avatarByID:     make(map[string]int, len(avatars)),
		backgroundByID: make(map[string]int, len(backgrounds)),
		voiceByID:      make(map[string]int, len(voices)),
	}

	c.defaultAvatar = -1
	for i, a := range avatars {
		if _, dup := c.avatarByID[a.ID]; dup {
			return nil, fmt.Errorf("%w: avatar %q", ErrDuplicateID, a.ID)
		}
		c.avatarByID[a.ID] = i
		if a.Default {
			if c.defaultAvatar >= 0 {
				return nil, fmt.Errorf("%w: avatars", ErrMultipleDefaults)
			}
			c.defaultAvatar = i
		}
	}
	if c.defaultAvatar < 0 {
		return nil, fmt.Errorf("%w: avatars", ErrNoDefault)
	}

	c.defaultBackground = -1
	for i, b := range backgrounds {
		if _, dup := c.backgroundByID[b.ID]; dup {
			return nil, fmt.Errorf("%w: background %q", ErrDuplicateID, b.ID)
		}
		c.backgroundByID[b.ID] = i
		if b.Default {
			if c.defaultBackground >= 0 {
				return nil, fmt.Errorf("%w: backgrounds", ErrMultipleDefaults)
			}
			c.defaultBackground = i
		}
	}
	if c.defaultBackground < 0 {
		return nil, fmt.Errorf("%w: backgrounds", ErrNoDefault)
	}

	c.defaultVoice = -1
	for i, v := range voices {
		if _, dup := c.voiceByID[v.ID]; dup {
			return nil, fmt.Errorf("%w: voice %q", ErrDuplicateID, v.ID)
		}
		c.voiceByID[v.ID] = i
		if v.Default {
			if c.defaultVoice >= 0 {
				return nil, fmt.Errorf("%w: voices", ErrMultipleDefaults)
			}
			c.defaultVoice = i
		}
	}
	if c.defaultVoice < 0 {
		return nil, fmt.Errorf("%w: voices", ErrNoDefault)
	}

	return c, nil
}

// Avatar looks up an avatar by id.
func (c *Catalog) Avatar(id string) (Avatar, error) {
	if i, ok := c.avatarByID[id]; ok {
		return c.avatars[i], nil
	}
	return Avatar{}, fmt.Errorf("%w: avatar %q", ErrNotFound, id)
}

// Background looks up a background by id.
func (c *Catalog) Background(id string) (Background, error) {
	if i, ok := c.backgroundByID[id]; ok {
		return c.backgrounds[i], nil
	}
	return Background{}, fmt.Errorf("%w: background %q", ErrNotFound, id)
}

// Voice looks up a voice by id.
func (c *Catalog) Voice(id string) (Voice, error) {
	if i, ok := c.voiceByID[id]; ok {
		return c.voices[i], nil
	}
	return Voice{}, fmt.Errorf("%w: voice %q", ErrNotFound, id)
}

// DefaultAvatar returns the avatar flagged as default.
func (c *Catalog) DefaultAvatar() Avatar { return c.avatars[c.defaultAvatar] }

// DefaultBackground returns the background flagged as default.
func (c *Catalog) DefaultBackground() Background { return c.backgrounds[c.defaultBackground] }

// DefaultVoice returns the voice flagged as default.
func (c *Catalog) DefaultVoice() Voice { return c.voices[c.defaultVoice] }

// Avatars returns the avatar list in declaration order.
func (c *Catalog) Avatars() []Avatar { return append([]Avatar(nil), c.avatars...) }

// Backgrounds returns the background list in declaration order.
func (c *Catalog) Backgrounds() []Background { return append([]Background(nil), c.backgrounds...) }

// Voices returns the voice list in declaration order.
func (c *Catalog) Voices() []Voice { return append([]Voice(nil), c.voices...) }

// cameraViews maps framing names to camera placement.
var cameraViews = map[string]CameraView{
	"full":  {Distance: 2.5, YOffset: 0},
	"upper": {Distance: 0.8, YOffset: 0.1},
	"mid":   {Distance: 0.5, YOffset: 0.15},
	"head":  {Distance: 0.3, YOffset: 0.2},
}

// View returns the camera placement for a named framing.
func (c *Catalog) View(name string) (CameraView, bool) {
	v, ok := cameraViews[name]
	return v, ok
}
