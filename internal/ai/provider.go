// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ai provides a unified interface over several LLM providers
// (OpenAI, Gemini, Claude, Mistral). Each provider implements Provider;
// image-capable ones also implement ImageGenerator and/or ImageEditor.
// The Registry selects the active provider by name.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Provider is implemented by every text-generation backend.
type Provider interface {
	// Generate sends a prompt to the LLM and returns the generated text.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string
}

// ImageGenerator is implemented by providers that can create images.
type ImageGenerator interface {
	// GenerateImage returns the raw image bytes and their MIME type.
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

// ImageEditor is implemented by providers that can modify an existing image.
type ImageEditor interface {
	EditImage(ctx context.Context, image []byte, mimeType, instruction string) ([]byte, string, error)
}

// ProviderConfig holds the credentials and settings for a single provider.
type ProviderConfig struct {
	APIKey     string
	Model      string
	ModelImage string // image model; empty disables image features where required
	BaseURL    string
}

// Registry manages the configured providers and the active one.
// All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	active    string
	moderator Moderator // nil when no moderation API key is configured
}

// NewRegistry initialises a provider for every config with a non-empty API
// key. Moderation prefers OpenAI's free endpoint and falls back to Mistral.
func NewRegistry(active string, configs map[string]ProviderConfig) *Registry {
	r := &Registry{
		providers: make(map[string]Provider),
		active:    active,
	}

	for name, cfg := range configs {
		if cfg.APIKey == "" {
			continue
		}
		switch name {
		case "openai":
			r.providers[name] = newOpenAI(cfg)
		case "gemini":
			r.providers[name] = newGemini(cfg)
		case "claude":
			r.providers[name] = newClaude(cfg)
		case "mistral":
			r.providers[name] = newMistral(cfg)
		}
	}

	openaiCfg := configs["openai"]
	mistralCfg := configs["mistral"]
	switch {
	case openaiCfg.APIKey != "" && mistralCfg.APIKey != "":
		r.moderator = &fallbackModerator{
			primary:   newOpenAIModerator(openaiCfg.APIKey, openaiCfg.BaseURL),
			secondary: newMistralModerator(mistralCfg.APIKey, mistralCfg.BaseURL),
		}
	case openaiCfg.APIKey != "":
		r.moderator = newOpenAIModerator(openaiCfg.APIKey, openaiCfg.BaseURL)
	case mistralCfg.APIKey != "":
		r.moderator = newMistralModerator(mistralCfg.APIKey, mistralCfg.BaseURL)
	}

	return r
}

// Generate calls the active provider.
func (r *Registry) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	p, err := r.Active()
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, systemPrompt, userPrompt)
}

// GenerateJSON calls the active provider and decodes its answer into out.
// Models like to wrap JSON in code fences or chatter; ExtractJSON strips that.
func (r *Registry) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	text, err := r.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(ExtractJSON(text)), out); err != nil {
		return fmt.Errorf("ai: model returned invalid JSON: %w", err)
	}
	return nil
}

// GenerateImage uses the first image-capable provider, preferring the
// active one. Text-only providers (Claude, Mistral) can be active while
// images still come from OpenAI or Gemini.
func (r *Registry) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	p, ok := pick[ImageGenerator](r)
	if !ok {
		return nil, "", fmt.Errorf("ai: no configured provider supports image generation")
	}
	return p.GenerateImage(ctx, prompt)
}

// EditImage uses the first provider able to edit images.
func (r *Registry) EditImage(ctx context.Context, image []byte, mimeType, instruction string) ([]byte, string, error) {
	p, ok := pick[ImageEditor](r)
	if !ok {
		return nil, "", fmt.Errorf("ai: no configured provider supports image editing")
	}
	return p.EditImage(ctx, image, mimeType, instruction)
}

// SupportsImageGeneration returns true if any provider can generate images.
func (r *Registry) SupportsImageGeneration() bool {
	_, ok := pick[ImageGenerator](r)
	return ok
}

// pick returns the active provider if it implements T, otherwise the first
// provider (by name) that does.
func pick[T any](r *Registry) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.providers[r.active].(T); ok {
		return p, true
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p, ok := r.providers[name].(T); ok {
			return p, true
		}
	}
	var zero T
	return zero, false
}

// Active returns the currently active provider.
func (r *Registry) Active() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[r.active]
	if !ok {
		return nil, fmt.Errorf("ai: no provider configured for %q", r.active)
	}
	return p, nil
}

// SetActive switches the active provider at runtime.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("ai: provider %q is not available (no API key?)", name)
	}
	r.active = name
	return nil
}

// ActiveName returns the name of the currently active provider.
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Available returns the sorted names of all configured providers.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds or replaces a provider. Used by tests to inject fakes.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// SetModerator replaces the moderator. nil disables moderation.
func (r *Registry) SetModerator(m Moderator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moderator = m
}

// CheckPrompt runs free-text input through moderation. With no moderator
// configured every prompt passes; providers keep their own safety filters.
func (r *Registry) CheckPrompt(ctx context.Context, prompt string) (*ModerationResult, error) {
	r.mu.RLock()
	m := r.moderator
	r.mu.RUnlock()

	if m == nil {
		return &ModerationResult{Safe: true}, nil
	}
	return m.CheckSafety(ctx, prompt)
}

// ExtractJSON returns the JSON object or array embedded in a model answer,
// dropping Markdown code fences and any prose around it.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl != -1 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return strings.TrimSpace(text)
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return strings.TrimSpace(text[start:])
	}
	return text[start : end+1]
}
