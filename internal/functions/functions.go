// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package functions

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"pitchdeck/internal/agent"
	"pitchdeck/internal/ai"
	"pitchdeck/internal/apperr"
	"pitchdeck/internal/gateway"
	"pitchdeck/internal/models"
)

func (s *Server) refineText(ctx context.Context, owner uuid.UUID, in *gateway.RefineTextRequest) (*gateway.RefineTextResponse, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("text is required: %w", apperr.ErrValidation)
	}
	field := in.FieldName
	if field == "" {
		field = "text"
	}

	system := fmt.Sprintf(`You polish pitch deck copy. Improve the given %s so it is clear, confident and concise.
Rules:
- Keep the original meaning and language.
- Keep one item per line if the input has several lines.
- Output ONLY the improved text, no quotes, no commentary.`, field)

	out, err := s.llm.Generate(ctx, system, text)
	if err != nil {
		return nil, llmErr("refine text", err)
	}
	refined := strings.Trim(strings.TrimSpace(out), `"`)
	if refined == "" {
		return nil, fmt.Errorf("refine text: %w", apperr.ErrGeneration)
	}
	return &gateway.RefineTextResponse{RefinedText: &refined}, nil
}

const suggestPrompt = `You review a single pitch deck slide and propose an improvement.
Reply with JSON only:
{"suggested_title": "...", "suggested_content": ["bullet", ...]}
Omit a field if it is already good. Reply {} if the slide needs no change.
Keep bullets under 15 words and keep 3 to 5 of them.`

func (s *Server) suggestSlide(ctx context.Context, owner uuid.UUID, in *gateway.SuggestRequest) (*gateway.SuggestResponse, error) {
	user := fmt.Sprintf("Title: %s\nContent:\n%s", in.Slide.Title, models.JoinContent(in.Slide.Content))

	var sug gateway.WireSuggestion
	if err := s.llm.GenerateJSON(ctx, suggestPrompt, user, &sug); err != nil {
		return nil, llmErr("suggest slide", err)
	}
	if sug.SuggestedTitle == nil && sug.SuggestedContent == nil {
		return &gateway.SuggestResponse{}, nil
	}
	return &gateway.SuggestResponse{Suggestion: &sug}, nil
}

// imagePrompt describes one slide image in the deck's visual style.
func imagePrompt(title string, content []string, brief *models.VisualBrief) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A presentation slide illustration for %q.", title)
	if len(content) > 0 {
		fmt.Fprintf(&b, " It supports these points: %s.", strings.Join(content, "; "))
	}
	if brief != nil {
		fmt.Fprintf(&b, " Style: %s. Mood: %s.", brief.Style, brief.Mood)
		if len(brief.ColorPalette) > 0 {
			fmt.Fprintf(&b, " Colour palette: %s.", strings.Join(brief.ColorPalette, ", "))
		}
		if len(brief.Keywords) > 0 {
			fmt.Fprintf(&b, " Motifs: %s.", strings.Join(brief.Keywords, ", "))
		}
	}
	b.WriteString(" No text, letters or logos in the image. Wide 16:9 composition.")
	return b.String()
}

func (s *Server) generateImage(ctx context.Context, owner uuid.UUID, in *gateway.GenerateImageRequest) (*gateway.GenerateImageResponse, error) {
	if strings.TrimSpace(in.SlideTitle) == "" {
		return nil, fmt.Errorf("slideTitle is required: %w", apperr.ErrValidation)
	}

	data, mime, err := s.llm.GenerateImage(ctx, imagePrompt(in.SlideTitle, in.SlideContent, in.VisualBrief))
	if err != nil {
		return nil, llmErr("generate image", err)
	}
	url, err := s.storeImage(ctx, owner, data, mime)
	if err != nil {
		return nil, err
	}
	return &gateway.GenerateImageResponse{ImageURL: url}, nil
}

func (s *Server) refineImage(ctx context.Context, owner uuid.UUID, in *gateway.RefineImageRequest) (*gateway.RefineImageResponse, error) {
	instruction := strings.TrimSpace(in.RefinementPrompt)
	if in.Base64ImageData == "" || in.MimeType == "" || instruction == "" {
		return nil, fmt.Errorf("image data, mime type and prompt are required: %w", apperr.ErrValidation)
	}
	image, err := base64.StdEncoding.DecodeString(in.Base64ImageData)
	if err != nil {
		return nil, fmt.Errorf("image data is not base64: %w", apperr.ErrValidation)
	}
	if err := s.moderate(ctx, instruction); err != nil {
		return nil, err
	}

	data, mime, err := s.llm.EditImage(ctx, image, in.MimeType, instruction)
	if err != nil {
		return nil, llmErr("refine image", err)
	}
	url, err := s.storeImage(ctx, owner, data, mime)
	if err != nil {
		return nil, err
	}
	return &gateway.RefineImageResponse{NewImageURL: url}, nil
}

// storeImage uploads to object storage when configured and otherwise
// returns the image inline.
func (s *Server) storeImage(ctx context.Context, owner uuid.UUID, data []byte, mime string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("provider returned no image: %w", apperr.ErrGeneration)
	}
	if mime == "" {
		mime = "image/png"
	}
	if s.images == nil {
		return gateway.DataURI(mime, data), nil
	}
	url, err := s.images.PutImage(ctx, owner, data, mime)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return url, nil
}

const themePrompt = `You are an art director. Turn the user's theme description into a visual brief for a pitch deck.
Reply with JSON only:
{"style": "...", "colorPalette": ["#rrggbb", ...], "keywords": ["...", ...], "mood": "..."}
Use 3 to 5 hex colours and 3 to 6 keywords.`

func (s *Server) visualTheme(ctx context.Context, owner uuid.UUID, in *gateway.VisualThemeRequest) (*gateway.VisualThemeResponse, error) {
	desc := strings.TrimSpace(in.ThemeDescription)
	if desc == "" {
		return nil, fmt.Errorf("themeDescription is required: %w", apperr.ErrValidation)
	}
	if err := s.moderate(ctx, desc); err != nil {
		return nil, err
	}

	var brief models.VisualBrief
	if err := s.llm.GenerateJSON(ctx, themePrompt, desc, &brief); err != nil {
		return nil, llmErr("visual theme", err)
	}
	if brief.Style == "" && len(brief.ColorPalette) == 0 {
		return nil, fmt.Errorf("visual theme: empty brief: %w", apperr.ErrGeneration)
	}
	return &gateway.VisualThemeResponse{VisualBrief: &brief}, nil
}

func (s *Server) editorAgent(ctx context.Context, owner uuid.UUID, in *gateway.EditorAgentRequest) (*gateway.EditorAgentResponse, error) {
	command := strings.TrimSpace(in.Command)
	if in.DeckID == uuid.Nil || command == "" {
		return nil, fmt.Errorf("deckId and command are required: %w", apperr.ErrValidation)
	}
	if err := s.moderate(ctx, command); err != nil {
		return nil, err
	}

	msg, err := s.editor.Run(ctx, owner, in.DeckID, command)
	if err != nil {
		return nil, llmErr("editor agent", err)
	}
	return &gateway.EditorAgentResponse{Success: true, Message: msg}, nil
}

// loadDeck returns the owner's deck or ErrNotFound.
func (s *Server) loadDeck(ctx context.Context, owner, deckID uuid.UUID) (*models.Deck, error) {
	if deckID == uuid.Nil {
		return nil, fmt.Errorf("deckId is required: %w", apperr.ErrValidation)
	}
	deck, err := s.decks.GetDeck(ctx, owner, deckID)
	if err != nil {
		return nil, fmt.Errorf("load deck: %w", err)
	}
	if deck == nil {
		return nil, fmt.Errorf("deck %s: %w", deckID, apperr.ErrNotFound)
	}
	return deck, nil
}

// outline renders a deck as numbered slides with their bullets.
func outline(deck *models.Deck) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Deck: %s (template: %s)\n", deck.Name, deck.Template)
	for i, sl := range deck.Slides {
		fmt.Fprintf(&b, "\nSlide %d: %s\n", i+1, sl.Title)
		for _, line := range sl.Content {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

const analyzePrompt = `You are a seasoned venture investor reviewing a startup pitch deck.
Reply with JSON only:
{"pitch_readiness_score": <0-100>, "executive_summary": "...", "key_insights": [{"category": "...", "insight": "...", "slide_number": <1-based>}]}
Categories are one of: Strength, Weakness, Opportunity, Risk. Give 3 to 6 insights.`

func (s *Server) analyzeDeck(ctx context.Context, owner uuid.UUID, in *gateway.DeckRequest) (*gateway.AnalyzeResponse, error) {
	deck, err := s.loadDeck(ctx, owner, in.DeckID)
	if err != nil {
		return nil, err
	}

	var res models.AnalysisResult
	if err := s.llm.GenerateJSON(ctx, analyzePrompt, outline(deck), &res); err != nil {
		return nil, llmErr("analyze deck", err)
	}
	res.Score = min(max(res.Score, 0), 100)
	return &gateway.AnalyzeResponse{Analysis: &res}, nil
}

const researchPrompt = `You are a startup market research analyst. Answer the question with concrete figures where you can.
Reply with JSON only:
{"answer": "...", "sources": ["https://...", ...]}
List only sources you are confident exist; use an empty list otherwise.`

func (s *Server) researchAgent(ctx context.Context, owner uuid.UUID, in *gateway.ResearchRequest) (*gateway.ResearchResponse, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", apperr.ErrValidation)
	}
	if err := s.moderate(ctx, query); err != nil {
		return nil, err
	}

	var res models.ResearchResult
	if err := s.llm.GenerateJSON(ctx, researchPrompt, query, &res); err != nil {
		return nil, llmErr("research", err)
	}
	if strings.TrimSpace(res.Answer) == "" {
		return nil, fmt.Errorf("research: empty answer: %w", apperr.ErrAgent)
	}
	if res.Sources == nil {
		res.Sources = []string{}
	}
	return &gateway.ResearchResponse{Result: &res}, nil
}

const diagramPrompt = `You turn a pitch deck into a Mermaid flowchart of how the product works for its users.
Output ONLY Mermaid code starting with "graph TD" or "graph LR". No code fences, no commentary.`

func (s *Server) workflowDiagram(ctx context.Context, owner uuid.UUID, in *gateway.DeckRequest) (*gateway.DiagramResponse, error) {
	deck, err := s.loadDeck(ctx, owner, in.DeckID)
	if err != nil {
		return nil, err
	}

	out, err := s.llm.Generate(ctx, diagramPrompt, outline(deck))
	if err != nil {
		return nil, llmErr("workflow diagram", err)
	}
	code := stripFence(out)
	if code == "" {
		return nil, fmt.Errorf("workflow diagram: %w", apperr.ErrGeneration)
	}
	return &gateway.DiagramResponse{DiagramCode: code}, nil
}

// stripFence removes a Markdown code fence (```mermaid ... ```) if present.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

const deckPrompt = `You write investor pitch decks. Draft a deck from the startup information.
Reply with JSON only:
{"name": "...", "slides": [{"title": "...", "content": ["bullet", ...]}, ...]}
Write 8 to 12 slides in the usual order: title, problem, solution, market, product, business model, traction, competition, team, ask.
Keep bullets under 15 words and use 3 to 5 per slide. Match the tone of the %s template.`

// draftDeck is the model's answer for generate-deck.
type draftDeck struct {
	Name   string `json:"name"`
	Slides []struct {
		Title   string      `json:"title"`
		Content agent.Lines `json:"content"`
	} `json:"slides"`
}

func (s *Server) generateDeck(ctx context.Context, owner uuid.UUID, in *gateway.GenerateDeckRequest) (*gateway.GenerateDeckResponse, error) {
	w := in.Wizard
	if strings.TrimSpace(w.CompanyName) == "" {
		return nil, fmt.Errorf("companyName is required: %w", apperr.ErrValidation)
	}
	tmpl := w.Template
	if !tmpl.Valid() {
		tmpl = models.TemplateStartup
	}

	user := fmt.Sprintf(`Company: %s
Industry: %s
Problem: %s
Solution: %s
Market: %s
Traction: %s
Team: %s
Ask: %s`, w.CompanyName, w.Industry, w.Problem, w.Solution, w.Market, w.Traction, w.Team, w.Ask)
	if err := s.moderate(ctx, user); err != nil {
		return nil, err
	}

	var draft draftDeck
	if err := s.llm.GenerateJSON(ctx, fmt.Sprintf(deckPrompt, tmpl), user, &draft); err != nil {
		return nil, llmErr("generate deck", err)
	}

	out := &gateway.GenerateDeckResponse{Name: strings.TrimSpace(draft.Name)}
	for _, sl := range draft.Slides {
		title := strings.TrimSpace(sl.Title)
		if title == "" {
			continue
		}
		out.Slides = append(out.Slides, models.Slide{Title: title, Content: []string(sl.Content)})
	}
	if len(out.Slides) == 0 {
		return nil, fmt.Errorf("generate deck: no slides: %w", apperr.ErrGeneration)
	}
	if out.Name == "" {
		out.Name = w.CompanyName
	}
	return out, nil
}

var _ LLM = (*ai.Registry)(nil)
