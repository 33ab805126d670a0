// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON API and the presenter page. Handlers
// are grouped by resource; each group receives its dependencies through its
// constructor.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pitchdeck/internal/apperr"
)

// Request body limits.
const (
	maxSmallBody = 64 << 10
	maxDeckBody  = 16 << 20 // slides may carry inline data-URI images
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// extendWriteDeadline pushes the connection's write deadline d into the
// future for handlers that outlive the server's WriteTimeout. d <= 0 keeps
// the server default.
func extendWriteDeadline(w http.ResponseWriter, d time.Duration) {
	if d <= 0 {
		return
	}
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(d)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.Warn("extend write deadline failed", "error", err)
	}
}

// writeError maps err to a status code and writes {"error": "..."}. Server
// side failures are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	msg := err.Error()
	switch {
	case status == http.StatusBadGateway:
		slog.Warn("ai request failed", "path", r.URL.Path, "error", err)
		msg = "The AI service could not complete the request. Please try again."
	case status >= http.StatusInternalServerError:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a JSON body of at most limit bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes: %w", tooLarge.Limit, apperr.ErrValidation)
		}
		return fmt.Errorf("malformed JSON body: %w", apperr.ErrValidation)
	}
	return nil
}

// urlID parses a UUID route parameter. Malformed ids are reported as not
// found, like ids of decks owned by someone else.
func urlID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %q: %w", name, chi.URLParam(r, name), apperr.ErrNotFound)
	}
	return id, nil
}

// urlIndex parses a non-negative integer route parameter.
func urlIndex(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer: %w", name, apperr.ErrValidation)
	}
	return n, nil
}
