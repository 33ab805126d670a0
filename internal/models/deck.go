// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Template identifies the layout family a deck was generated with.
type Template string

const (
	TemplateStartup   Template = "startup"
	TemplateCorporate Template = "corporate"
	TemplateCreative  Template = "creative"
)

// Valid reports whether t is one of the known templates.
func (t Template) Valid() bool {
	switch t {
	case TemplateStartup, TemplateCorporate, TemplateCreative:
		return true
	}
	return false
}

// VisualBrief is the structured style descriptor shared by every generated
// slide image of a deck. It is replaced wholesale, never edited in place.
type VisualBrief struct {
	Style        string   `json:"style"`
	ColorPalette []string `json:"colorPalette"`
	Keywords     []string `json:"keywords"`
	Mood         string   `json:"mood"`
}

// Slide is one titled, bulleted unit of deck content. Its position in the
// deck is its index in Deck.Slides.
type Slide struct {
	ID           *uuid.UUID `json:"id,omitempty"`
	Title        string     `json:"title"`
	Content      []string   `json:"content"`
	Image        *string    `json:"image,omitempty"`
	ImageLoading bool       `json:"imageLoading,omitempty"` // never persisted
}

// HasImage returns true if the slide carries a non-empty image reference.
func (s *Slide) HasImage() bool {
	return s.Image != nil && *s.Image != ""
}

// Clone returns a deep copy of the slide.
func (s Slide) Clone() Slide {
	c := s
	if s.ID != nil {
		id := *s.ID
		c.ID = &id
	}
	if s.Image != nil {
		img := *s.Image
		c.Image = &img
	}
	c.Content = append([]string(nil), s.Content...)
	return c
}

// Deck is a user's pitch presentation.
type Deck struct {
	ID               uuid.UUID    `json:"id"`
	OwnerID          uuid.UUID    `json:"-"`
	Name             string       `json:"name"`
	Slides           []Slide      `json:"slides"`
	LastEdited       int64        `json:"lastEdited"` // epoch milliseconds
	Template         Template     `json:"template"`
	ThemeDescription *string      `json:"themeDescription,omitempty"`
	VisualBrief      *VisualBrief `json:"visualBrief,omitempty"`
}

// Clone returns a deep copy of the deck so a working copy never aliases the
// authoritative one.
func (d *Deck) Clone() *Deck {
	if d == nil {
		return nil
	}
	c := *d
	c.Slides = make([]Slide, len(d.Slides))
	for i, s := range d.Slides {
		c.Slides[i] = s.Clone()
	}
	if d.ThemeDescription != nil {
		td := *d.ThemeDescription
		c.ThemeDescription = &td
	}
	if d.VisualBrief != nil {
		vb := *d.VisualBrief
		vb.ColorPalette = append([]string(nil), d.VisualBrief.ColorPalette...)
		vb.Keywords = append([]string(nil), d.VisualBrief.Keywords...)
		c.VisualBrief = &vb
	}
	return &c
}

// NowMillis returns the current time as epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// NormalizeContent trims every bullet and drops empty ones. Order is kept.
func NormalizeContent(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// SplitContent turns a newline-delimited bullet list into content lines.
func SplitContent(s string) []string {
	return NormalizeContent(strings.Split(s, "\n"))
}

// JoinContent is the inverse of SplitContent.
func JoinContent(lines []string) string {
	return strings.Join(lines, "\n")
}

// DefaultSlide is the slide appended by the editor's "add slide" action.
func DefaultSlide() Slide {
	return Slide{
		Title:   "New Slide",
		Content: []string{"Add your first point here"},
	}
}
