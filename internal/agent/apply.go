// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/models"
)

// ErrInvalidPosition is returned when a delete or update targets a slide
// position that does not exist. It wraps apperr.ErrValidation.
var ErrInvalidPosition = fmt.Errorf("slide position out of range: %w", apperr.ErrValidation)

// OpName identifies one of the three slide operations the agent may plan.
type OpName string

const (
	OpAddSlide    OpName = "addSlide"
	OpDeleteSlide OpName = "deleteSlide"
	OpUpdateSlide OpName = "updateSlideContent"
)

// Op is one planned slide operation. Positions are 1-based.
type Op struct {
	Name       OpName  `json:"name"`
	Position   int     `json:"position"`
	Title      string  `json:"title,omitempty"`
	Content    Lines   `json:"content,omitempty"`
	NewTitle   *string `json:"newTitle,omitempty"`
	NewContent *Lines  `json:"newContent,omitempty"`
}

// Plan is the agent's answer to a command.
type Plan struct {
	Operations []Op   `json:"operations"`
	Message    string `json:"message"`
}

// Lines is a bullet list that decodes from either a JSON array or a
// newline-delimited string.
type Lines []string

func (l *Lines) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = models.SplitContent(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	*l = models.NormalizeContent(arr)
	return nil
}

// Apply runs ops in order against a copy of slides and returns the result.
// Positions renumber after every insert and delete. Add positions are
// clamped into [1, n+1]; a delete or update outside [1, n] aborts the whole
// batch with ErrInvalidPosition and slides is left as it was.
func Apply(slides []models.Slide, ops []Op) ([]models.Slide, error) {
	out := make([]models.Slide, len(slides))
	for i, s := range slides {
		out[i] = s.Clone()
	}

	for i, op := range ops {
		n := len(out)
		switch op.Name {
		case OpAddSlide:
			pos := min(max(op.Position, 1), n+1)
			slide := models.Slide{
				Title:   strings.TrimSpace(op.Title),
				Content: models.NormalizeContent(op.Content),
			}
			out = append(out[:pos-1], append([]models.Slide{slide}, out[pos-1:]...)...)

		case OpDeleteSlide:
			if op.Position < 1 || op.Position > n {
				return nil, fmt.Errorf("operation %d (%s position %d of %d): %w", i+1, op.Name, op.Position, n, ErrInvalidPosition)
			}
			out = append(out[:op.Position-1], out[op.Position:]...)

		case OpUpdateSlide:
			if op.Position < 1 || op.Position > n {
				return nil, fmt.Errorf("operation %d (%s position %d of %d): %w", i+1, op.Name, op.Position, n, ErrInvalidPosition)
			}
			s := &out[op.Position-1]
			if op.NewTitle != nil {
				s.Title = strings.TrimSpace(*op.NewTitle)
			}
			if op.NewContent != nil {
				s.Content = models.NormalizeContent(*op.NewContent)
			}

		default:
			return nil, fmt.Errorf("operation %d: unknown operation %q: %w", i+1, op.Name, apperr.ErrValidation)
		}
	}
	return out, nil
}

// Listing renders slide titles by 1-based position, one per line.
func Listing(slides []models.Slide) string {
	if len(slides) == 0 {
		return "(the deck has no slides)"
	}
	var b strings.Builder
	for i, s := range slides {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Title)
	}
	return b.String()
}
