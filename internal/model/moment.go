// Package model defines domain entities for the application.
package model

import (
	"encoding/json"
	"slices"
	"time"
)

// MomentType is the kind of a diary moment.
// It is fixed at creation and never changes afterwards.
type MomentType string

const (
	MomentText  MomentType = "TEXT"
	MomentImage MomentType = "IMAGE"
	MomentVideo MomentType = "VIDEO"
	MomentAudio MomentType = "AUDIO"
)

// MomentTypes contains all valid moment types.
var MomentTypes = []MomentType{MomentText, MomentImage, MomentVideo, MomentAudio}

// IsValid checks if the moment type is one of the known variants.
func (t MomentType) IsValid() bool {
	return slices.Contains(MomentTypes, t)
}

// IsMedia returns true for types whose content is a media reference.
func (t MomentType) IsMedia() bool {
	return t.IsValid() && t != MomentText
}

// ParseMomentType converts a wire value into a MomentType.
// The wire format is upper case; anything else is rejected.
func ParseMomentType(raw string) (MomentType, bool) {
	t := MomentType(raw)
	return t, t.IsValid()
}

// ContentKind tags the Content variant.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentMedia
)

// Content is either literal text or a reference to stored media.
// The kind follows the moment type; persistence keeps a single string.
type Content struct {
	kind  ContentKind
	value string
}

// TextContent returns a literal text content.
func TextContent(text string) Content {
	return Content{kind: ContentText, value: text}
}

// MediaContent returns a content pointing at stored media.
func MediaContent(ref string) Content {
	return Content{kind: ContentMedia, value: ref}
}

// ContentFor builds the variant matching the given moment type.
func ContentFor(t MomentType, value string) Content {
	if t.IsMedia() {
		return MediaContent(value)
	}
	return TextContent(value)
}

// Kind returns the variant tag.
func (c Content) Kind() ContentKind { return c.kind }

// Value returns the raw string (text or reference).
func (c Content) Value() string { return c.value }

// IsMedia returns true if the content is a media reference.
func (c Content) IsMedia() bool { return c.kind == ContentMedia }

// MarshalJSON keeps the wire format a plain string.
func (c Content) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.value)
}

// Moment is a single diary entry owned by a user.
type Moment struct {
	ID      string     `json:"id"`
	OwnerID string     `json:"userId"`
	Type    MomentType `json:"type"`
	Content Content    `json:"content"`
	// CreatedAt is when the moment happened, chosen by the user.
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MediaRef returns the media reference and true for media moments.
func (m *Moment) MediaRef() (string, bool) {
	if !m.Content.IsMedia() {
		return "", false
	}
	return m.Content.Value(), true
}
