// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package gateway

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"pitchdeck/internal/models"
)

// Function names, appended to {base}/functions/v1/.
const (
	FnRefineText        = "refine-text"
	FnSuggestSlide      = "generate-slide-suggestions"
	FnGenerateImage     = "generate-slide-image"
	FnRefineImage       = "refine-slide-image"
	FnVisualTheme       = "generate-visual-theme"
	FnEditorAgent       = "invoke-editor-agent"
	FnAnalyzeDeck       = "analyze-deck"
	FnResearchAgent     = "invoke-research-agent"
	FnWorkflowDiagram   = "generate-workflow-diagram"
	FnGenerateDeck      = "generate-deck"
	functionsPathPrefix = "/functions/v1/"
)

// Headers carried by every call.
const (
	HeaderServiceKey = "X-Functions-Key"
	HeaderOwner      = "X-Owner-ID"
)

// Envelope wraps every function response. Exactly one of Data and Error is set.
type Envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *EnvelopeError  `json:"error,omitempty"`
}

// EnvelopeError is the error half of an Envelope.
type EnvelopeError struct {
	Message string `json:"message"`
}

type RefineTextRequest struct {
	Text      string `json:"text"`
	FieldName string `json:"fieldName"`
}

type RefineTextResponse struct {
	RefinedText *string `json:"refinedText"`
}

type SuggestRequest struct {
	Slide models.Slide `json:"slide"`
}

// WireSuggestion is a suggestion as returned by generate-slide-suggestions.
type WireSuggestion struct {
	SuggestedTitle   *string   `json:"suggested_title,omitempty"`
	SuggestedContent *LineText `json:"suggested_content,omitempty"`
}

type SuggestResponse struct {
	Suggestion *WireSuggestion `json:"suggestion"`
}

type GenerateImageRequest struct {
	SlideTitle   string              `json:"slideTitle"`
	SlideContent []string            `json:"slideContent"`
	VisualBrief  *models.VisualBrief `json:"visualBrief,omitempty"`
}

type GenerateImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

type RefineImageRequest struct {
	Base64ImageData  string `json:"base64ImageData"`
	MimeType         string `json:"mimeType"`
	RefinementPrompt string `json:"refinementPrompt"`
}

type RefineImageResponse struct {
	NewImageURL string `json:"newImageUrl"`
}

type VisualThemeRequest struct {
	ThemeDescription string `json:"themeDescription"`
}

type VisualThemeResponse struct {
	VisualBrief *models.VisualBrief `json:"visualBrief"`
}

type EditorAgentRequest struct {
	DeckID  uuid.UUID `json:"deckId"`
	Command string    `json:"command"`
}

type EditorAgentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type DeckRequest struct {
	DeckID uuid.UUID `json:"deckId"`
}

type AnalyzeResponse struct {
	Analysis *models.AnalysisResult `json:"analysis"`
}

type ResearchRequest struct {
	Query string `json:"query"`
}

type ResearchResponse struct {
	Result *models.ResearchResult `json:"result"`
}

type DiagramResponse struct {
	DiagramCode string `json:"diagramCode"`
}

type GenerateDeckRequest struct {
	Wizard models.WizardInput `json:"wizard"`
}

type GenerateDeckResponse struct {
	Name   string         `json:"name"`
	Slides []models.Slide `json:"slides"`
}

// LineText is a newline-delimited bullet list. Models answer with either a
// string or an array of strings; both decode into the joined form.
type LineText string

func (t *LineText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = LineText(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(b, &lines); err != nil {
		return err
	}
	*t = LineText(strings.Join(lines, "\n"))
	return nil
}
