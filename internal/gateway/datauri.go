// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package gateway

import (
	"encoding/base64"
	"fmt"
	"strings"

	"pitchdeck/internal/apperr"
)

// DataURI encodes raw image bytes as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI splits "data:<mime>;base64,<payload>" into its MIME type and
// base64 payload. Anything else, remote URLs included, is an ErrValidation.
func ParseDataURI(uri string) (mimeType, payload string, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", fmt.Errorf("image is not a data URI: %w", apperr.ErrValidation)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || payload == "" {
		return "", "", fmt.Errorf("data URI has no payload: %w", apperr.ErrValidation)
	}
	mimeType, ok = strings.CutSuffix(meta, ";base64")
	if !ok || !strings.Contains(mimeType, "/") {
		return "", "", fmt.Errorf("data URI is not base64 encoded image data: %w", apperr.ErrValidation)
	}
	return mimeType, payload, nil
}
