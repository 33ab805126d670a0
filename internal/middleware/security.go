// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// apiPolicy is the Content-Security-Policy for JSON responses. Nothing an
// API response returns should ever load or run in a browser.
const apiPolicy = "default-src 'none'; frame-ancestors 'none'"

// SecureHeaders adds security-related HTTP headers to every response.
// These headers protect against clickjacking and MIME-sniffing, and keep
// API responses from being rendered as documents.
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()

		// Prevent the browser from MIME-sniffing the Content-Type.
		h.Set("X-Content-Type-Options", "nosniff")

		// Prevent embedding in iframes from other origins (clickjacking).
		h.Set("X-Frame-Options", "SAMEORIGIN")

		// Disable the legacy XSS filter; the CSP below replaces it.
		h.Set("X-XSS-Protection", "0")

		h.Set("Content-Security-Policy", apiPolicy)

		// Share-links to a presenter page must not leak the deck path.
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Disable browser features the app never uses.
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

		next.ServeHTTP(w, r)
	})
}

// PresenterPolicy builds the Content-Security-Policy of the presenter page.
// The page carries its own inline stylesheet and shows slide images that
// are either data URIs or objects served from imageOrigins.
func PresenterPolicy(imageOrigins ...string) string {
	img := []string{"'self'", "data:"}
	for _, o := range imageOrigins {
		if origin, ok := originOf(o); ok {
			img = append(img, origin)
		}
	}
	return "default-src 'none'; style-src 'unsafe-inline'; img-src " +
		strings.Join(img, " ") + "; frame-ancestors 'self'; base-uri 'none'; form-action 'none'"
}

// PresenterHeaders replaces the API policy set by SecureHeaders with the
// presenter policy and lets the page go fullscreen.
func PresenterHeaders(imageOrigins ...string) func(http.Handler) http.Handler {
	policy := PresenterPolicy(imageOrigins...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", policy)
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), fullscreen=(self)")
			next.ServeHTTP(w, r)
		})
	}
}

// originOf reduces a base URL to scheme://host[:port].
func originOf(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}
