package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
)

// openAIProvider talks to the OpenAI chat completions API and, for images,
// the images/generations endpoint. Mistral reuses the chat half.
type openAIProvider struct {
	name   string
	config ProviderConfig
	client *http.Client
	images *http.Client
}

func newOpenAI(cfg ProviderConfig) *openAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.ModelImage == "" {
		cfg.ModelImage = "gpt-image-1"
	}
	return &openAIProvider{
		name:   "openai",
		config: cfg,
		client: &http.Client{Timeout: textTimeout},
		images: &http.Client{Timeout: imageTimeout},
	}
}

// newMistral builds a chat-only provider on Mistral's OpenAI-compatible API.
func newMistral(cfg ProviderConfig) *mistralProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mistral.ai/v1"
	}
	return &mistralProvider{inner: &openAIProvider{
		name:   "mistral",
		config: cfg,
		client: &http.Client{Timeout: textTimeout},
	}}
}

func (p *openAIProvider) Name() string { return p.name }

// Generate sends a chat completion request and returns the assistant's text.
func (p *openAIProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body := openAIRequest{
		Model: p.config.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	var result openAIResponse
	err := postJSON(ctx, p.client, p.config.BaseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + p.config.APIKey}, body, &result, p.name)
	if err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices returned", p.name)
	}
	return result.Choices[0].Message.Content, nil
}

// GenerateImage creates one image via the images/generations endpoint,
// asking for base64 output so nothing depends on a short-lived URL.
func (p *openAIProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	body := openAIImageRequest{
		Model:  p.config.ModelImage,
		Prompt: prompt,
		N:      1,
		Size:   "1536x1024",
	}

	var result openAIImageResponse
	err := postJSON(ctx, p.images, p.config.BaseURL+"/images/generations",
		map[string]string{"Authorization": "Bearer " + p.config.APIKey}, body, &result, "openai image")
	if err != nil {
		return nil, "", err
	}
	if len(result.Data) == 0 || result.Data[0].B64JSON == "" {
		return nil, "", fmt.Errorf("openai image: no image data in response")
	}

	img, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
	if err != nil {
		return nil, "", fmt.Errorf("openai image decode base64: %w", err)
	}
	return img, "image/png", nil
}

// mistralProvider is text-only.
type mistralProvider struct {
	inner *openAIProvider
}

func (p *mistralProvider) Name() string { return "mistral" }

func (p *mistralProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return p.inner.Generate(ctx, systemPrompt, userPrompt)
}

// --- OpenAI-compatible request/response types ---

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIImageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}
