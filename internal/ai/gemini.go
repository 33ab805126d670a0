// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
)

// geminiProvider implements Provider, ImageGenerator and ImageEditor using
// the Gemini generateContent REST API.
type geminiProvider struct {
	config ProviderConfig
	client *http.Client
	images *http.Client
}

func newGemini(cfg ProviderConfig) *geminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	return &geminiProvider{
		config: cfg,
		client: &http.Client{Timeout: textTimeout},
		images: &http.Client{Timeout: imageTimeout},
	}
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) url(model string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.config.BaseURL, model)
}

func (p *geminiProvider) headers() map[string]string {
	return map[string]string{"x-goog-api-key": p.config.APIKey}
}

// Generate sends a text-only generateContent request.
func (p *geminiProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: userPrompt}}}},
	}

	var result geminiResponse
	if err := postJSON(ctx, p.client, p.url(p.config.Model), p.headers(), body, &result, "gemini"); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates returned")
	}
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			return part.Text, nil
		}
	}
	return "", fmt.Errorf("gemini: no text in response")
}

// GenerateImage asks the image model for an IMAGE modality response.
func (p *geminiProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	return p.imageRequest(ctx, []geminiPart{{Text: prompt}}, "gemini image")
}

// EditImage sends the source image inline together with the instruction
// and returns the edited image.
func (p *geminiProvider) EditImage(ctx context.Context, image []byte, mimeType, instruction string) ([]byte, string, error) {
	parts := []geminiPart{
		{InlineData: &geminiInlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
		{Text: instruction},
	}
	return p.imageRequest(ctx, parts, "gemini image edit")
}

func (p *geminiProvider) imageRequest(ctx context.Context, parts []geminiPart, label string) ([]byte, string, error) {
	if p.config.ModelImage == "" {
		return nil, "", fmt.Errorf("%s: GEMINI_MODEL_IMAGE is not set", label)
	}

	body := geminiRequest{
		Contents:         []geminiContent{{Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	}

	var result geminiResponse
	if err := postJSON(ctx, p.images, p.url(p.config.ModelImage), p.headers(), body, &result, label); err != nil {
		return nil, "", err
	}

	for _, c := range result.Candidates {
		for _, part := range c.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			img, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, "", fmt.Errorf("%s decode base64: %w", label, err)
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return img, mime, nil
		}
	}
	return nil, "", fmt.Errorf("%s: no image data in response", label)
}

// --- Gemini API types ---

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}
