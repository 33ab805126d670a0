// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package gateway is the typed client for the remote AI functions. Each
// method is one JSON POST to {base}/functions/v1/{name}; nothing is retried.
// Responses are checked against the shape each function promises before
// they reach the caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/models"
)

// DefaultTimeout bounds a single function call when none is configured.
const DefaultTimeout = 90 * time.Second

// maxResponseSize caps how much of a function response is read (images
// travel as data URIs, so this is generous).
const maxResponseSize = 32 << 20

// Client calls the remote AI functions on behalf of one owner.
type Client struct {
	baseURL    string
	serviceKey string
	owner      uuid.UUID
	http       *http.Client
}

// New creates a client for the functions served at baseURL. A zero timeout
// selects DefaultTimeout.
func New(baseURL, serviceKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: timeout},
	}
}

// As returns a copy of the client that acts for owner.
func (c *Client) As(owner uuid.UUID) *Client {
	cp := *c
	cp.owner = owner
	return &cp
}

// Owner returns the user the client acts for.
func (c *Client) Owner() uuid.UUID {
	return c.owner
}

// call POSTs in to the named function and decodes the envelope's data into out.
func (c *Client) call(ctx context.Context, name string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+functionsPathPrefix+name, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderServiceKey, c.serviceKey)
	if c.owner != uuid.Nil {
		req.Header.Set(HeaderOwner, c.owner.String())
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", name, apperr.ErrAgent, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s: %w: read response: %v", name, apperr.ErrAgent, err)
	}
	slog.Debug("function call", "function", name, "status", resp.StatusCode, "duration", time.Since(start))

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: %w: status %d, malformed envelope", name, apperr.ErrAgent, resp.StatusCode)
	}
	if env.Error != nil {
		return fmt.Errorf("%s: %w: %s", name, apperr.ErrAgent, env.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w: status %d", name, apperr.ErrAgent, resp.StatusCode)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s: %w: empty payload", name, apperr.ErrAgent)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: %w: unexpected payload: %v", name, apperr.ErrAgent, err)
	}
	return nil
}

// RefineText returns an improved version of text. fieldName tells the model
// what it is editing ("title", "bullet point").
func (c *Client) RefineText(ctx context.Context, text, fieldName string) (string, error) {
	var out RefineTextResponse
	if err := c.call(ctx, FnRefineText, RefineTextRequest{Text: text, FieldName: fieldName}, &out); err != nil {
		return "", err
	}
	if out.RefinedText == nil {
		return "", fmt.Errorf("%s: %w: refinedText missing", FnRefineText, apperr.ErrAgent)
	}
	return *out.RefinedText, nil
}

// SuggestSlideEdit asks for an improvement to slide. A nil result means no
// suggestion. Content comes back as one newline-delimited string.
func (c *Client) SuggestSlideEdit(ctx context.Context, slide models.Slide) (*models.SlideSuggestion, error) {
	slide.Image = nil
	slide.ImageLoading = false

	var out SuggestResponse
	if err := c.call(ctx, FnSuggestSlide, SuggestRequest{Slide: slide}, &out); err != nil {
		return nil, err
	}
	if out.Suggestion == nil {
		return nil, nil
	}

	s := &models.SlideSuggestion{Title: out.Suggestion.SuggestedTitle}
	if out.Suggestion.SuggestedContent != nil {
		content := string(*out.Suggestion.SuggestedContent)
		s.Content = &content
	}
	if s.Empty() {
		return nil, nil
	}
	return s, nil
}

// GenerateSlideImage returns an image URI (URL or data URI) for a slide.
func (c *Client) GenerateSlideImage(ctx context.Context, title string, content []string, brief *models.VisualBrief) (string, error) {
	in := GenerateImageRequest{SlideTitle: title, SlideContent: content, VisualBrief: brief}
	var out GenerateImageResponse
	if err := c.call(ctx, FnGenerateImage, in, &out); err != nil {
		return "", err
	}
	if out.ImageURL == "" {
		return "", fmt.Errorf("%s: %w: imageUrl missing", FnGenerateImage, apperr.ErrGeneration)
	}
	return out.ImageURL, nil
}

// RefineSlideImage edits an existing image according to instruction.
func (c *Client) RefineSlideImage(ctx context.Context, base64Data, mimeType, instruction string) (string, error) {
	if base64Data == "" || mimeType == "" {
		return "", fmt.Errorf("%s: image data and MIME type are required: %w", FnRefineImage, apperr.ErrValidation)
	}
	in := RefineImageRequest{Base64ImageData: base64Data, MimeType: mimeType, RefinementPrompt: instruction}
	var out RefineImageResponse
	if err := c.call(ctx, FnRefineImage, in, &out); err != nil {
		return "", err
	}
	if out.NewImageURL == "" {
		return "", fmt.Errorf("%s: %w: newImageUrl missing", FnRefineImage, apperr.ErrGeneration)
	}
	return out.NewImageURL, nil
}

// GenerateVisualTheme turns a free-text description into a VisualBrief.
func (c *Client) GenerateVisualTheme(ctx context.Context, description string) (*models.VisualBrief, error) {
	var out VisualThemeResponse
	if err := c.call(ctx, FnVisualTheme, VisualThemeRequest{ThemeDescription: description}, &out); err != nil {
		return nil, err
	}
	if out.VisualBrief == nil || (out.VisualBrief.Style == "" && len(out.VisualBrief.ColorPalette) == 0) {
		return nil, fmt.Errorf("%s: %w: visualBrief missing", FnVisualTheme, apperr.ErrGeneration)
	}
	return out.VisualBrief, nil
}

// RunEditorAgent lets the server-side agent apply command to the stored
// deck. The caller must re-fetch the deck afterwards.
func (c *Client) RunEditorAgent(ctx context.Context, deckID uuid.UUID, command string) error {
	var out EditorAgentResponse
	if err := c.call(ctx, FnEditorAgent, EditorAgentRequest{DeckID: deckID, Command: command}, &out); err != nil {
		return err
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "agent reported failure"
		}
		return fmt.Errorf("%s: %w: %s", FnEditorAgent, apperr.ErrAgent, msg)
	}
	return nil
}

// RunAnalysisAgent returns a strategic review of the stored deck.
func (c *Client) RunAnalysisAgent(ctx context.Context, deckID uuid.UUID) (*models.AnalysisResult, error) {
	var out AnalyzeResponse
	if err := c.call(ctx, FnAnalyzeDeck, DeckRequest{DeckID: deckID}, &out); err != nil {
		return nil, err
	}
	if out.Analysis == nil {
		return nil, fmt.Errorf("%s: %w: analysis missing", FnAnalyzeDeck, apperr.ErrAgent)
	}
	if out.Analysis.Score < 0 || out.Analysis.Score > 100 {
		return nil, fmt.Errorf("%s: %w: score %d out of range", FnAnalyzeDeck, apperr.ErrAgent, out.Analysis.Score)
	}
	return out.Analysis, nil
}

// RunResearchAgent answers a research query.
func (c *Client) RunResearchAgent(ctx context.Context, query string) (*models.ResearchResult, error) {
	var out ResearchResponse
	if err := c.call(ctx, FnResearchAgent, ResearchRequest{Query: query}, &out); err != nil {
		return nil, err
	}
	if out.Result == nil || out.Result.Answer == "" {
		return nil, fmt.Errorf("%s: %w: result missing", FnResearchAgent, apperr.ErrAgent)
	}
	if out.Result.Sources == nil {
		out.Result.Sources = []string{}
	}
	return out.Result, nil
}

// GenerateWorkflowDiagram returns diagram source (Mermaid) for the deck.
func (c *Client) GenerateWorkflowDiagram(ctx context.Context, deckID uuid.UUID) (string, error) {
	var out DiagramResponse
	if err := c.call(ctx, FnWorkflowDiagram, DeckRequest{DeckID: deckID}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.DiagramCode) == "" {
		return "", fmt.Errorf("%s: %w: diagramCode missing", FnWorkflowDiagram, apperr.ErrGeneration)
	}
	return out.DiagramCode, nil
}

// GenerateDeck drafts a deck from the wizard input. The result is not saved.
func (c *Client) GenerateDeck(ctx context.Context, in models.WizardInput) (*GenerateDeckResponse, error) {
	var out GenerateDeckResponse
	if err := c.call(ctx, FnGenerateDeck, GenerateDeckRequest{Wizard: in}, &out); err != nil {
		return nil, err
	}
	if len(out.Slides) == 0 {
		return nil, fmt.Errorf("%s: %w: no slides", FnGenerateDeck, apperr.ErrGeneration)
	}
	for i := range out.Slides {
		out.Slides[i].ID = nil
		out.Slides[i].ImageLoading = false
		out.Slides[i].Content = models.NormalizeContent(out.Slides[i].Content)
	}
	if out.Name == "" {
		out.Name = in.CompanyName
	}
	return &out, nil
}
