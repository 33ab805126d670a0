// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package export turns a deck into portable Markdown.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"pitchdeck/internal/models"
)

// Markdown renders the whole deck: a level-one heading with the deck name,
// then one numbered level-two section per slide.
func Markdown(deck *models.Deck) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n", oneLine(deck.Name))
	if deck.ThemeDescription != nil && strings.TrimSpace(*deck.ThemeDescription) != "" {
		fmt.Fprintf(&b, "\n> Theme: %s\n", oneLine(*deck.ThemeDescription))
	}
	for i, s := range deck.Slides {
		fmt.Fprintf(&b, "\n## %d. %s\n", i+1, oneLine(s.Title))
		if body := SlideBody(s); body != "" {
			b.WriteString("\n")
			b.WriteString(body)
		}
	}
	return b.Bytes()
}

// SlideBody renders a slide's bullets, followed by its image when the image
// is a linkable URL. Inline data URIs are left out.
func SlideBody(s models.Slide) string {
	var b strings.Builder
	for _, line := range models.NormalizeContent(s.Content) {
		fmt.Fprintf(&b, "- %s\n", oneLine(line))
	}
	if s.HasImage() && !strings.HasPrefix(*s.Image, "data:") {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "![%s](%s)\n", escapeAlt(s.Title), *s.Image)
	}
	return b.String()
}

// oneLine collapses newlines so a value cannot break out of its heading or
// list item.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func escapeAlt(s string) string {
	r := strings.NewReplacer("[", `\[`, "]", `\]`)
	return r.Replace(oneLine(s))
}
