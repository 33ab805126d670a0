// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package editor holds the working copy of a deck while it is being edited
// and mediates every change to it: field edits, slide images, themes,
// analysis and saves.
//
// Network calls are never made while the editor's lock is held. Each
// operation copies what it needs, releases the lock, calls out and then
// re-locks to apply the result. A result is dropped if the working copy was
// replaced (Sync or Refresh) in the meantime.
package editor

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/gateway"
	"pitchdeck/internal/models"
	"pitchdeck/internal/suggest"
)

// NoticeTTL is how long a save notice stays visible.
const NoticeTTL = 3 * time.Second

// AI is the subset of the gateway the editor uses.
type AI interface {
	suggest.Fetcher
	RefineText(ctx context.Context, text, fieldName string) (string, error)
	GenerateSlideImage(ctx context.Context, title string, content []string, brief *models.VisualBrief) (string, error)
	RefineSlideImage(ctx context.Context, base64Data, mimeType, instruction string) (string, error)
	GenerateVisualTheme(ctx context.Context, description string) (*models.VisualBrief, error)
	RunAnalysisAgent(ctx context.Context, deckID uuid.UUID) (*models.AnalysisResult, error)
	GenerateWorkflowDiagram(ctx context.Context, deckID uuid.UUID) (string, error)
}

// Store loads and persists decks.
type Store interface {
	GetDeck(ctx context.Context, owner, id uuid.UUID) (*models.Deck, error)
	SaveDeck(ctx context.Context, owner uuid.UUID, deck *models.Deck) (*models.Deck, error)
}

// DiagramCache remembers generated diagrams per deck version.
type DiagramCache interface {
	GetDiagram(ctx context.Context, deckID uuid.UUID, lastEdited int64) (string, bool)
	SetDiagram(ctx context.Context, deckID uuid.UUID, lastEdited int64, code string)
}

// ImageFetcher downloads slide images kept in object storage.
type ImageFetcher interface {
	FetchURL(ctx context.Context, rawURL string) (data []byte, mimeType string, err error)
}

// Notice is a transient message shown after a save.
type Notice struct {
	Kind      string    `json:"kind"` // "success" or "error"
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Analysis is the loading/error/result state of a deck analysis.
type Analysis struct {
	Loading bool                   `json:"loading"`
	Error   string                 `json:"error,omitempty"`
	Result  *models.AnalysisResult `json:"result,omitempty"`
}

// Diagram is the loading/error/result state of the workflow diagram.
type Diagram struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Options tunes an Editor.
type Options struct {
	// SuggestDelay is the typing pause before a suggestion is fetched.
	SuggestDelay time.Duration

	// ImageWorkers bounds concurrent image calls during theme generation.
	ImageWorkers int

	// Diagrams caches workflow diagrams. nil disables caching.
	Diagrams DiagramCache

	// Images fetches stored slide images for refinement. nil limits
	// refinement to data URI images.
	Images ImageFetcher

	// ThemeTimeout bounds the brief and image calls of one theme run.
	// Images still pending at the deadline count as failed.
	ThemeTimeout time.Duration
}

// DefaultThemeTimeout is used when Options.ThemeTimeout is zero.
const DefaultThemeTimeout = 5 * time.Minute

// Editor owns one working copy of a deck.
type Editor struct {
	owner        uuid.UUID
	ai           AI
	store        Store
	diagrams     DiagramCache
	images       ImageFetcher
	workers      int
	themeTimeout time.Duration
	suggestions  *suggest.Engine

	mu                sync.Mutex
	deck              *models.Deck
	active            int
	epoch             uint64 // bumped whenever the working copy is replaced
	notice            *Notice
	analysis          Analysis
	diagram           Diagram
	themeLoading      bool
	refineInstruction string
}

// New creates an editor over deck for owner. The deck is copied.
func New(owner uuid.UUID, deck *models.Deck, ai AI, store Store, opts Options) *Editor {
	if opts.ImageWorkers <= 0 {
		opts.ImageWorkers = 4
	}
	if opts.ThemeTimeout <= 0 {
		opts.ThemeTimeout = DefaultThemeTimeout
	}
	return &Editor{
		owner:        owner,
		ai:           ai,
		store:        store,
		diagrams:     opts.Diagrams,
		images:       opts.Images,
		workers:      opts.ImageWorkers,
		themeTimeout: opts.ThemeTimeout,
		suggestions:  suggest.New(ai, opts.SuggestDelay),
		deck:         deck.Clone(),
	}
}

// Close stops the suggestion engine.
func (e *Editor) Close() {
	e.suggestions.Close()
}

// DeckID returns the id of the deck being edited.
func (e *Editor) DeckID() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deck.ID
}

// Sync replaces the working copy with an authoritative deck.
func (e *Editor) Sync(deck *models.Deck) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replaceLocked(deck)
}

func (e *Editor) replaceLocked(deck *models.Deck) {
	e.deck = deck.Clone()
	e.epoch++
	e.active = clamp(e.active, len(e.deck.Slides))
	e.suggestions.Reset()
	e.suggestions.SetActive(e.active)
}

// clamp keeps index within [0, n-1], or 0 for an empty deck.
func clamp(index, n int) int {
	if index >= n {
		index = n - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}

func (e *Editor) slideLocked(index int) (*models.Slide, error) {
	if index < 0 || index >= len(e.deck.Slides) {
		return nil, fmt.Errorf("slide %d of %d: %w", index, len(e.deck.Slides), apperr.ErrValidation)
	}
	return &e.deck.Slides[index], nil
}

// SetTitle edits a slide title locally, selects the slide and schedules a
// suggestion.
func (e *Editor) SetTitle(index int, title string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.slideLocked(index)
	if err != nil {
		return err
	}
	s.Title = title
	e.editedLocked(index, *s)
	return nil
}

// SetContent edits a slide's bullets locally and schedules a suggestion.
// Blank bullets are kept until the next save so typing is not disturbed.
func (e *Editor) SetContent(index int, content []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.slideLocked(index)
	if err != nil {
		return err
	}
	s.Content = append([]string(nil), content...)
	e.editedLocked(index, *s)
	return nil
}

// SetThemeDescription edits the free-text theme description locally.
func (e *Editor) SetThemeDescription(description string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if description == "" {
		e.deck.ThemeDescription = nil
		return
	}
	e.deck.ThemeDescription = &description
}

// SetName renames the deck locally.
func (e *Editor) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("deck name is required: %w", apperr.ErrValidation)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deck.Name = name
	return nil
}

// SetRefineInstruction stores the draft image refinement instruction.
func (e *Editor) SetRefineInstruction(instruction string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refineInstruction = instruction
}

// SetActive selects the slide being edited.
func (e *Editor) SetActive(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.slideLocked(index); err != nil {
		return err
	}
	e.active = index
	e.suggestions.SetActive(index)
	return nil
}

// AddSlide appends a default slide and selects it. Nothing is saved.
func (e *Editor) AddSlide() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.deck.Slides = append(e.deck.Slides, models.DefaultSlide())
	e.active = len(e.deck.Slides) - 1
	e.suggestions.SetActive(e.active)
	return e.active
}

// Save stamps the working copy and commits it. The success notice is only
// produced when the store accepted the deck.
func (e *Editor) Save(ctx context.Context) (Notice, error) {
	e.mu.Lock()
	e.deck.LastEdited = models.NowMillis()
	snapshot := e.deck.Clone()
	epoch := e.epoch
	e.mu.Unlock()

	for i := range snapshot.Slides {
		snapshot.Slides[i].Content = models.NormalizeContent(snapshot.Slides[i].Content)
		snapshot.Slides[i].ImageLoading = false
	}

	saved, err := e.store.SaveDeck(ctx, e.owner, snapshot)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		slog.Error("save deck failed", "deck_id", snapshot.ID, "error", err)
		n := Notice{Kind: "error", Message: "Save failed. Please try again.", ExpiresAt: time.Now().Add(NoticeTTL)}
		e.notice = &n
		return n, fmt.Errorf("save deck: %w", err)
	}

	if e.epoch == epoch {
		e.adoptSavedLocked(snapshot, saved)
	}
	n := Notice{Kind: "success", Message: "Deck saved.", ExpiresAt: time.Now().Add(NoticeTTL)}
	e.notice = &n
	return n, nil
}

// adoptSavedLocked copies ids assigned by the store to slides that were new
// in the snapshot and are still unsaved at the same position.
func (e *Editor) adoptSavedLocked(snapshot, saved *models.Deck) {
	e.deck.LastEdited = saved.LastEdited
	for i := range snapshot.Slides {
		if i >= len(saved.Slides) || i >= len(e.deck.Slides) {
			break
		}
		if snapshot.Slides[i].ID == nil && e.deck.Slides[i].ID == nil && saved.Slides[i].ID != nil {
			id := *saved.Slides[i].ID
			e.deck.Slides[i].ID = &id
		}
	}
}

// startImageLocked marks the slide at index as loading, or fails if an
// image operation is already running on it.
func (e *Editor) startImageLocked(index int) (*models.Slide, error) {
	s, err := e.slideLocked(index)
	if err != nil {
		return nil, err
	}
	if s.ImageLoading {
		return nil, fmt.Errorf("slide %d image is already being generated: %w", index, apperr.ErrConflict)
	}
	s.ImageLoading = true
	return s, nil
}

// finishImageLocked clears the loading flag on index and, if url is non-empty,
// stores it as the slide image. It reports false if the working copy was
// replaced since epoch.
func (e *Editor) finishImageLocked(index int, epoch uint64, url string) bool {
	if e.epoch != epoch || index >= len(e.deck.Slides) {
		return false
	}
	s := &e.deck.Slides[index]
	s.ImageLoading = false
	if url != "" {
		s.Image = &url
	}
	return true
}

// GenerateImage creates an image for the active slide from its current
// title, content and the deck's visual brief. On failure the previous image
// is kept and the error is returned.
func (e *Editor) GenerateImage(ctx context.Context) (int, error) {
	e.mu.Lock()
	index := e.active
	s, err := e.startImageLocked(index)
	if err != nil {
		e.mu.Unlock()
		return index, err
	}
	title, content := s.Title, models.NormalizeContent(s.Content)
	var brief *models.VisualBrief
	if e.deck.VisualBrief != nil {
		brief = e.deck.Clone().VisualBrief
	}
	epoch := e.epoch
	e.mu.Unlock()

	url, err := e.ai.GenerateSlideImage(ctx, title, content, brief)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.finishImageLocked(index, epoch, "")
		slog.Warn("slide image generation failed", "deck_id", e.deck.ID, "slide", index, "error", err)
		return index, fmt.Errorf("generate image for slide %d: %w", index+1, err)
	}
	if !e.finishImageLocked(index, epoch, url) {
		return index, fmt.Errorf("deck was reloaded while the image was generated: %w", apperr.ErrConflict)
	}
	return index, nil
}

// RefineImage edits the active slide's image. Without an image or with a
// blank instruction it does nothing. Data URI images are sent as they are;
// URLs are downloaded through the configured ImageFetcher first. On success
// the instruction is cleared and the deck is saved.
func (e *Editor) RefineImage(ctx context.Context, instruction string) error {
	instruction = strings.TrimSpace(instruction)

	e.mu.Lock()
	index := e.active
	if index >= len(e.deck.Slides) || !e.deck.Slides[index].HasImage() || instruction == "" {
		e.mu.Unlock()
		return nil
	}
	image := *e.deck.Slides[index].Image
	remote := !strings.HasPrefix(image, "data:") && e.images != nil
	var mimeType, payload string
	if !remote {
		var err error
		mimeType, payload, err = gateway.ParseDataURI(image)
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("refine image for slide %d: %w", index+1, err)
		}
	}
	if _, err := e.startImageLocked(index); err != nil {
		e.mu.Unlock()
		return err
	}
	epoch := e.epoch
	e.mu.Unlock()

	var (
		url string
		err error
	)
	if remote {
		var data []byte
		data, mimeType, err = e.images.FetchURL(ctx, image)
		payload = base64.StdEncoding.EncodeToString(data)
	}
	if err == nil {
		url, err = e.ai.RefineSlideImage(ctx, payload, mimeType, instruction)
	}

	e.mu.Lock()
	if err != nil {
		e.finishImageLocked(index, epoch, "")
		e.mu.Unlock()
		slog.Warn("slide image refinement failed", "slide", index, "error", err)
		return fmt.Errorf("refine image for slide %d: %w", index+1, err)
	}
	if !e.finishImageLocked(index, epoch, url) {
		e.mu.Unlock()
		return fmt.Errorf("deck was reloaded while the image was refined: %w", apperr.ErrConflict)
	}
	e.refineInstruction = ""
	e.mu.Unlock()

	_, err = e.Save(ctx)
	return err
}

// ThemeResult reports the outcome of a theme regeneration.
type ThemeResult struct {
	VisualBrief *models.VisualBrief `json:"visualBrief"`
	Generated   int                 `json:"generated"`
	Failed      []int               `json:"failed"` // 0-based slide indexes that kept their old image
}

// GenerateThemeAndVisuals saves the deck, derives a visual brief from
// description (or the stored theme description), then regenerates every
// slide image with it. Individual image failures keep the slide's previous
// image. The batch is committed with a single save.
func (e *Editor) GenerateThemeAndVisuals(ctx context.Context, description string) (*ThemeResult, error) {
	description = strings.TrimSpace(description)

	e.mu.Lock()
	if e.themeLoading {
		e.mu.Unlock()
		return nil, fmt.Errorf("theme generation already running: %w", apperr.ErrConflict)
	}
	if description == "" && e.deck.ThemeDescription != nil {
		description = strings.TrimSpace(*e.deck.ThemeDescription)
	}
	if description == "" {
		e.mu.Unlock()
		return nil, fmt.Errorf("theme description is required: %w", apperr.ErrValidation)
	}
	e.deck.ThemeDescription = &description
	e.themeLoading = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.themeLoading = false
		e.mu.Unlock()
	}()

	if _, err := e.Save(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	epoch := e.epoch
	type job struct {
		title   string
		content []string
	}
	jobs := make([]job, len(e.deck.Slides))
	for i := range e.deck.Slides {
		s := &e.deck.Slides[i]
		s.ImageLoading = true
		jobs[i] = job{title: s.Title, content: models.NormalizeContent(s.Content)}
	}
	e.mu.Unlock()

	// Saves use ctx so the batch still commits after genCtx expires.
	genCtx, cancel := context.WithTimeout(ctx, e.themeTimeout)
	defer cancel()

	brief, err := e.ai.GenerateVisualTheme(genCtx, description)
	if err != nil {
		e.mu.Lock()
		if e.epoch == epoch {
			for i := range e.deck.Slides {
				e.deck.Slides[i].ImageLoading = false
			}
		}
		e.mu.Unlock()
		return nil, fmt.Errorf("generate visual theme: %w", err)
	}

	outcomes := renderAll(genCtx, e.ai, brief, e.workers, len(jobs), func(i int) (string, []string) {
		return jobs[i].title, jobs[i].content
	})

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return nil, fmt.Errorf("deck was reloaded during theme generation: %w", apperr.ErrConflict)
	}
	res := &ThemeResult{VisualBrief: brief, Failed: []int{}}
	e.deck.VisualBrief = brief
	for i := range e.deck.Slides {
		s := &e.deck.Slides[i]
		s.ImageLoading = false
		if i >= len(outcomes) {
			continue
		}
		if o := outcomes[i]; o.err != nil {
			slog.Warn("theme image failed, keeping previous image", "deck_id", e.deck.ID, "slide", i, "error", o.err)
			res.Failed = append(res.Failed, i)
		} else {
			url := o.url
			s.Image = &url
			res.Generated++
		}
	}
	e.mu.Unlock()

	if _, err := e.Save(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// Analyze saves the deck so the analysis sees current content, then runs
// the analysis agent.
func (e *Editor) Analyze(ctx context.Context) (*models.AnalysisResult, error) {
	e.mu.Lock()
	if e.analysis.Loading {
		e.mu.Unlock()
		return nil, fmt.Errorf("analysis already running: %w", apperr.ErrConflict)
	}
	e.analysis = Analysis{Loading: true}
	deckID := e.deck.ID
	e.mu.Unlock()

	result, err := e.analyze(ctx, deckID)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.analysis.Loading = false
	if err != nil {
		e.analysis.Error = "Analysis failed. Please try again."
		return nil, err
	}
	e.analysis.Result = result
	return result, nil
}

func (e *Editor) analyze(ctx context.Context, deckID uuid.UUID) (*models.AnalysisResult, error) {
	if _, err := e.Save(ctx); err != nil {
		return nil, err
	}
	result, err := e.ai.RunAnalysisAgent(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("analyze deck: %w", err)
	}
	return result, nil
}

// GenerateDiagram returns workflow diagram source for the stored deck. It
// does not change the working copy.
func (e *Editor) GenerateDiagram(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.diagram.Loading {
		e.mu.Unlock()
		return "", fmt.Errorf("diagram already being generated: %w", apperr.ErrConflict)
	}
	e.diagram = Diagram{Loading: true}
	deckID, lastEdited := e.deck.ID, e.deck.LastEdited
	e.mu.Unlock()

	code, err := e.diagramFor(ctx, deckID, lastEdited)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.diagram.Loading = false
	if err != nil {
		e.diagram.Error = "Diagram generation failed. Please try again."
		return "", err
	}
	e.diagram.Code = code
	return code, nil
}

func (e *Editor) diagramFor(ctx context.Context, deckID uuid.UUID, lastEdited int64) (string, error) {
	if e.diagrams != nil {
		if code, ok := e.diagrams.GetDiagram(ctx, deckID, lastEdited); ok {
			return code, nil
		}
	}
	code, err := e.ai.GenerateWorkflowDiagram(ctx, deckID)
	if err != nil {
		return "", fmt.Errorf("generate diagram: %w", err)
	}
	if e.diagrams != nil {
		e.diagrams.SetDiagram(ctx, deckID, lastEdited, code)
	}
	return code, nil
}

// Refresh reloads the deck from the store and replaces the working copy.
// The active slide is clamped to the new slide count.
func (e *Editor) Refresh(ctx context.Context) error {
	deckID := e.DeckID()

	deck, err := e.store.GetDeck(ctx, e.owner, deckID)
	if err != nil {
		return fmt.Errorf("refresh deck: %w", err)
	}
	if deck == nil {
		return fmt.Errorf("deck %s: %w", deckID, apperr.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.replaceLocked(deck)
	return nil
}

// RefineField asks the model to improve a slide's title or bullets and
// writes the answer into the working copy.
func (e *Editor) RefineField(ctx context.Context, index int, field suggest.Field) (string, error) {
	e.mu.Lock()
	s, err := e.slideLocked(index)
	if err != nil {
		e.mu.Unlock()
		return "", err
	}
	var text, label string
	switch field {
	case suggest.FieldTitle:
		text, label = s.Title, "slide title"
	case suggest.FieldContent:
		text, label = models.JoinContent(models.NormalizeContent(s.Content)), "slide bullet points"
	default:
		e.mu.Unlock()
		return "", fmt.Errorf("unknown field %q: %w", field, apperr.ErrValidation)
	}
	epoch := e.epoch
	e.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("nothing to refine: %w", apperr.ErrValidation)
	}

	refined, err := e.ai.RefineText(ctx, text, label)
	if err != nil {
		return "", fmt.Errorf("refine %s: %w", field, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.epoch != epoch || index >= len(e.deck.Slides) {
		return "", fmt.Errorf("deck was reloaded while refining: %w", apperr.ErrConflict)
	}
	e.applyFieldLocked(index, field, refined)
	return refined, nil
}

func (e *Editor) applyFieldLocked(index int, field suggest.Field, value string) {
	s := &e.deck.Slides[index]
	if field == suggest.FieldTitle {
		s.Title = strings.TrimSpace(value)
	} else {
		s.Content = models.SplitContent(value)
	}
	e.editedLocked(index, *s)
}

// editedLocked selects the edited slide and schedules its suggestion.
func (e *Editor) editedLocked(index int, s models.Slide) {
	e.active = index
	e.suggestions.Changed(index, s)
}

// AcceptSuggestion merges a pending suggestion field into the slide.
func (e *Editor) AcceptSuggestion(index int, field suggest.Field) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.slideLocked(index); err != nil {
		return err
	}
	value, err := e.suggestions.Accept(index, field)
	if err != nil {
		return err
	}
	e.applyFieldLocked(index, field, value)
	return nil
}

// RejectSuggestion drops a pending suggestion field.
func (e *Editor) RejectSuggestion(index int, field suggest.Field) error {
	return e.suggestions.Reject(index, field)
}

// State is an immutable view of the editor for the API.
type State struct {
	Deck              *models.Deck                   `json:"deck"`
	Active            int                            `json:"active"`
	Suggestions       map[int]models.SlideSuggestion `json:"suggestions"`
	SuggestionState   suggest.State                  `json:"suggestionState"`
	Notice            *Notice                        `json:"notice,omitempty"`
	Analysis          Analysis                       `json:"analysis"`
	Diagram           Diagram                        `json:"diagram"`
	ThemeLoading      bool                           `json:"themeLoading"`
	RefineInstruction string                         `json:"refineInstruction"`
}

// Snapshot returns a copy of the editor state. Expired notices are omitted.
func (e *Editor) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := State{
		Deck:              e.deck.Clone(),
		Active:            e.active,
		Suggestions:       e.suggestions.Pending(),
		SuggestionState:   e.suggestions.State(e.active),
		Analysis:          e.analysis,
		Diagram:           e.diagram,
		ThemeLoading:      e.themeLoading,
		RefineInstruction: e.refineInstruction,
	}
	if e.notice != nil && time.Now().Before(e.notice.ExpiresAt) {
		n := *e.notice
		st.Notice = &n
	}
	return st
}
