// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render produces the read-only presenter view of a deck. Slide
// bullets go through the Markdown renderer, so inline emphasis and links
// work while raw HTML stays escaped.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"strings"

	"pitchdeck/internal/markdown"
	"pitchdeck/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// hexColor accepts CSS hex colors only; anything else in a palette is
// ignored.
var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// defaultAccent is used when the deck has no usable palette.
const defaultAccent = "#4f46e5"

// PresentSlide is one slide as the presenter template sees it.
type PresentSlide struct {
	Number int
	Title  string
	Body   template.HTML
	Image  template.URL
}

// PresentData is passed to the presenter template.
type PresentData struct {
	Name   string
	Accent template.CSS
	Mood   string
	Slides []PresentSlide
}

// Renderer holds the parsed presenter template.
type Renderer struct {
	present *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/present.html")
	if err != nil {
		return nil, fmt.Errorf("parse template present.html: %w", err)
	}
	return &Renderer{present: tmpl}, nil
}

// Present writes the deck as a standalone HTML page.
func (rn *Renderer) Present(w http.ResponseWriter, deck *models.Deck) error {
	data, err := presentData(deck)
	if err != nil {
		return err
	}

	// Render into a buffer so a template error never leaves a half page.
	var buf bytes.Buffer
	if err := rn.present.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute present: %w", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = buf.WriteTo(w)
	return err
}

func presentData(deck *models.Deck) (*PresentData, error) {
	data := &PresentData{
		Name:   deck.Name,
		Accent: template.CSS(defaultAccent),
		Slides: make([]PresentSlide, 0, len(deck.Slides)),
	}
	if vb := deck.VisualBrief; vb != nil {
		data.Mood = vb.Mood
		for _, c := range vb.ColorPalette {
			if hexColor.MatchString(c) {
				data.Accent = template.CSS(c)
				break
			}
		}
	}

	for i, s := range deck.Slides {
		var bullets strings.Builder
		for _, line := range models.NormalizeContent(s.Content) {
			bullets.WriteString("- " + strings.Join(strings.Fields(line), " ") + "\n")
		}
		body, err := markdown.ToHTML(bullets.String())
		if err != nil {
			return nil, fmt.Errorf("render slide %d: %w", i+1, err)
		}
		ps := PresentSlide{
			Number: i + 1,
			Title:  s.Title,
			Body:   template.HTML(body),
		}
		if s.HasImage() && safeImage(*s.Image) {
			ps.Image = template.URL(*s.Image)
		}
		data.Slides = append(data.Slides, ps)
	}
	return data, nil
}

// safeImage allows http(s) URLs and inline raster images.
func safeImage(src string) bool {
	switch {
	case strings.HasPrefix(src, "https://"), strings.HasPrefix(src, "http://"):
		return true
	case strings.HasPrefix(src, "data:image/png;"),
		strings.HasPrefix(src, "data:image/jpeg;"),
		strings.HasPrefix(src, "data:image/webp;"),
		strings.HasPrefix(src, "data:image/gif;"):
		return true
	}
	return false
}
