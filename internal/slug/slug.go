// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL- and filename-friendly slugs from arbitrary strings.
package slug

import (
	"regexp"
	"strings"
)

var (
	// unsafeChars matches anything that isn't a letter, digit, whitespace or hyphen.
	unsafeChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	// multipleHyphens collapses consecutive hyphens into one.
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// maxFilenameLen bounds the slug part of an export filename.
const maxFilenameLen = 80

// Generate creates a URL-friendly slug from the given string.
// Example: "Acme Pay: Seed 2026!" → "acme-pay-seed-2026"
func Generate(s string) string {
	result := unsafeChars.ReplaceAllString(strings.ToLower(s), "")
	result = strings.Join(strings.Fields(result), "-")
	result = multipleHyphens.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// Filename returns a download filename for a deck name with the given
// extension. An empty slug falls back to "deck".
func Filename(name, ext string) string {
	base := Generate(name)
	if len(base) > maxFilenameLen {
		base = strings.TrimRight(base[:maxFilenameLen], "-")
	}
	if base == "" {
		base = "deck"
	}
	return base + "." + strings.TrimPrefix(ext, ".")
}
