// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package apperr defines the error taxonomy shared by the store, gateway,
// editor and HTTP layers. Callers wrap these sentinels with fmt.Errorf("%w")
// and match them with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrAuth means no authenticated session exists. Never retried.
	ErrAuth = errors.New("not authenticated")

	// ErrNotFound means the entity is absent or not owned by the caller.
	// Reads usually return a nil result instead; writes fail with this.
	ErrNotFound = errors.New("not found")

	// ErrAgent means a remote AI function failed or returned an error envelope.
	ErrAgent = errors.New("agent request failed")

	// ErrGeneration means a remote AI function succeeded but its payload
	// was missing or unusable (no image, no brief).
	ErrGeneration = errors.New("generation returned no usable result")

	// ErrValidation means local input was malformed and no network call was made.
	ErrValidation = errors.New("invalid input")

	// ErrConflict means the operation clashes with one already running or
	// the working copy was replaced while it ran.
	ErrConflict = errors.New("conflicting operation")
)

// Status maps an error to the HTTP status code the JSON API responds with.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrAgent), errors.Is(err, ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
