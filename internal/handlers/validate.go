// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/models"
)

// Validation limits for deck, slide and wizard fields.
const (
	maxDeckNameLen    = 200
	maxSlides         = 100
	maxSlideTitleLen  = 300
	maxBullets        = 30
	maxBulletLen      = 1_000
	maxThemeLen       = 1_000
	maxCommandLen     = 2_000
	maxWizardFieldLen = 5_000
)

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, apperr.ErrValidation)...)
}

// validateDeckName checks a deck name.
func validateDeckName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("deck name is required")
	}
	if utf8.RuneCountInString(name) > maxDeckNameLen {
		return invalid("deck name is too long (max %d characters)", maxDeckNameLen)
	}
	return nil
}

// validateSlides checks slide count and each slide's fields.
func validateSlides(slides []models.Slide) error {
	if len(slides) > maxSlides {
		return invalid("too many slides (max %d)", maxSlides)
	}
	for i, s := range slides {
		if err := validateSlide(i, s.Title, s.Content); err != nil {
			return err
		}
	}
	return nil
}

// validateSlide checks a single slide's title and bullets. index is 0-based.
func validateSlide(index int, title string, content []string) error {
	if utf8.RuneCountInString(title) > maxSlideTitleLen {
		return invalid("slide %d title is too long (max %d characters)", index+1, maxSlideTitleLen)
	}
	if len(content) > maxBullets {
		return invalid("slide %d has too many bullets (max %d)", index+1, maxBullets)
	}
	for _, line := range content {
		if utf8.RuneCountInString(line) > maxBulletLen {
			return invalid("slide %d bullet is too long (max %d characters)", index+1, maxBulletLen)
		}
	}
	return nil
}

// validateTheme checks a free-text theme description.
func validateTheme(description string) error {
	if utf8.RuneCountInString(description) > maxThemeLen {
		return invalid("theme description is too long (max %d characters)", maxThemeLen)
	}
	return nil
}

// validateCommand checks a natural-language command or research query.
func validateCommand(input string) error {
	if strings.TrimSpace(input) == "" {
		return invalid("command is required")
	}
	if utf8.RuneCountInString(input) > maxCommandLen {
		return invalid("command is too long (max %d characters)", maxCommandLen)
	}
	return nil
}

// validateWizard checks the wizard input and fills the default template.
func validateWizard(in *models.WizardInput) error {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	if in.CompanyName == "" {
		return invalid("company name is required")
	}
	if utf8.RuneCountInString(in.CompanyName) > maxDeckNameLen {
		return invalid("company name is too long (max %d characters)", maxDeckNameLen)
	}
	for _, f := range []string{in.Industry, in.Problem, in.Solution, in.Market, in.Traction, in.Team, in.Ask} {
		if utf8.RuneCountInString(f) > maxWizardFieldLen {
			return invalid("wizard answers are limited to %d characters each", maxWizardFieldLen)
		}
	}
	if in.Template == "" {
		in.Template = models.TemplateStartup
	}
	if !in.Template.Valid() {
		return invalid("unknown template %q", in.Template)
	}
	return nil
}
