// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// ModerationResult contains the outcome of a prompt safety check.
type ModerationResult struct {
	Safe       bool     // true if the prompt passes moderation
	Categories []string // flagged category names (empty when safe)
}

// Moderator checks free-text user input (commands, research queries,
// image instructions) before it reaches a generation endpoint.
type Moderator interface {
	CheckSafety(ctx context.Context, text string) (*ModerationResult, error)
}

// apiModerator calls an OpenAI-style POST {base}/moderations endpoint.
// OpenAI's is free; Mistral's uses the same request shape but has no
// top-level "flagged" field, so flagged is derived from the categories.
type apiModerator struct {
	label   string
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
}

func newOpenAIModerator(apiKey, baseURL string) *apiModerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &apiModerator{
		label:   "openai moderation",
		model:   "omni-moderation-latest",
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func newMistralModerator(apiKey, baseURL string) *apiModerator {
	if baseURL == "" {
		baseURL = "https://api.mistral.ai/v1"
	}
	return &apiModerator{
		label:   "mistral moderation",
		model:   "mistral-moderation-latest",
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *apiModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	body := moderationRequest{Model: m.model, Input: text}

	var result moderationResponse
	err := postJSON(ctx, m.client, m.baseURL+"/moderations",
		map[string]string{"Authorization": "Bearer " + m.apiKey}, body, &result, m.label)
	if err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return &ModerationResult{Safe: true}, nil
	}

	var flagged []string
	for cat, hit := range result.Results[0].Categories {
		if hit {
			flagged = append(flagged, strings.NewReplacer("/", " ", "_", " ").Replace(cat))
		}
	}
	sort.Strings(flagged)

	return &ModerationResult{Safe: len(flagged) == 0, Categories: flagged}, nil
}

// fallbackModerator tries primary and switches to secondary for good once
// primary rejects its credentials (project-scoped OpenAI keys often lack
// moderation access).
type fallbackModerator struct {
	primary   Moderator
	secondary Moderator
	disabled  atomic.Bool
}

func (f *fallbackModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	if !f.disabled.Load() {
		res, err := f.primary.CheckSafety(ctx, text)
		var apiErr *APIError
		if err == nil || !errors.As(err, &apiErr) || !apiErr.IsAuthError() {
			return res, err
		}
		slog.Warn("primary moderator rejected credentials, using fallback", "error", err)
		f.disabled.Store(true)
	}
	return f.secondary.CheckSafety(ctx, text)
}

type moderationRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}
