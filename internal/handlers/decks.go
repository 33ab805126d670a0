// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/export"
	"pitchdeck/internal/middleware"
	"pitchdeck/internal/models"
	"pitchdeck/internal/render"
	"pitchdeck/internal/slug"
)

// DeckStore is the persistence the deck handlers need.
type DeckStore interface {
	ListDecks(ctx context.Context, owner uuid.UUID) ([]models.Deck, error)
	GetDeck(ctx context.Context, owner, id uuid.UUID) (*models.Deck, error)
	SaveDeck(ctx context.Context, owner uuid.UUID, deck *models.Deck) (*models.Deck, error)
	CreateDeck(ctx context.Context, owner uuid.UUID, name string, tmpl models.Template, slides []models.Slide) (*models.Deck, error)
	DeleteDeck(ctx context.Context, owner, id uuid.UUID) error
	DuplicateDeck(ctx context.Context, owner, id uuid.UUID) (*models.Deck, error)
}

// ImageRemover deletes uploaded slide images.
type ImageRemover interface {
	DeleteURL(ctx context.Context, rawURL string) error
}

// DiagramInvalidator forgets cached diagrams of a deck.
type DiagramInvalidator interface {
	InvalidateDeck(ctx context.Context, deckID uuid.UUID)
}

// SessionCloser discards in-memory editing sessions.
type SessionCloser interface {
	Close(owner, deckID uuid.UUID)
}

// Decks groups the deck CRUD, export and presenter handlers.
type Decks struct {
	store    DeckStore
	renderer *render.Renderer
	editors  SessionCloser

	// Optional; nil when object storage or Valkey caching is off.
	images   ImageRemover
	diagrams DiagramInvalidator
}

// NewDecks creates a new Decks handler group. images and diagrams may be nil.
func NewDecks(store DeckStore, renderer *render.Renderer, editors SessionCloser, images ImageRemover, diagrams DiagramInvalidator) *Decks {
	return &Decks{
		store:    store,
		renderer: renderer,
		editors:  editors,
		images:   images,
		diagrams: diagrams,
	}
}

// deckSummary is a deck in the list view.
type deckSummary struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Template   models.Template `json:"template"`
	LastEdited int64           `json:"lastEdited"`
	SlideCount int             `json:"slideCount"`
	Cover      *string         `json:"cover,omitempty"`
}

// List returns the owner's decks, most recently edited first.
func (h *Decks) List(w http.ResponseWriter, r *http.Request) {
	decks, err := h.store.ListDecks(r.Context(), middleware.OwnerFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]deckSummary, 0, len(decks))
	for _, d := range decks {
		sum := deckSummary{
			ID:         d.ID,
			Name:       d.Name,
			Template:   d.Template,
			LastEdited: d.LastEdited,
			SlideCount: len(d.Slides),
		}
		for _, s := range d.Slides {
			if s.HasImage() {
				sum.Cover = s.Image
				break
			}
		}
		out = append(out, sum)
	}
	writeJSON(w, http.StatusOK, out)
}

type createDeckRequest struct {
	Name     string          `json:"name"`
	Template models.Template `json:"template"`
	Slides   []models.Slide  `json:"slides"`
}

// Create inserts a new deck. A deck without slides gets one default slide.
func (h *Decks) Create(w http.ResponseWriter, r *http.Request) {
	var req createDeckRequest
	if err := decodeJSON(w, r, maxDeckBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateDeckName(req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateSlides(req.Slides); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Slides) == 0 {
		req.Slides = []models.Slide{models.DefaultSlide()}
	}

	deck, err := h.store.CreateDeck(r.Context(), middleware.OwnerFromCtx(r.Context()),
		strings.TrimSpace(req.Name), req.Template, req.Slides)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("deck created", "deck_id", deck.ID)
	writeJSON(w, http.StatusCreated, deck)
}

// load fetches the {id} deck of the signed-in owner.
func (h *Decks) load(r *http.Request) (*models.Deck, error) {
	id, err := urlID(r, "id")
	if err != nil {
		return nil, err
	}
	deck, err := h.store.GetDeck(r.Context(), middleware.OwnerFromCtx(r.Context()), id)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, fmt.Errorf("deck %s: %w", id, apperr.ErrNotFound)
	}
	return deck, nil
}

// Get returns one deck with its slides.
func (h *Decks) Get(w http.ResponseWriter, r *http.Request) {
	deck, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

type updateDeckRequest struct {
	Name             *string             `json:"name"`
	Template         *models.Template    `json:"template"`
	Slides           *[]models.Slide     `json:"slides"`
	ThemeDescription *string             `json:"themeDescription"`
	VisualBrief      *models.VisualBrief `json:"visualBrief"`
}

// Update replaces the fields present in the body and saves the deck. Any
// open editing session on the deck is dropped so it reloads on next use.
func (h *Decks) Update(w http.ResponseWriter, r *http.Request) {
	deck, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateDeckRequest
	if err := decodeJSON(w, r, maxDeckBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name != nil {
		if err := validateDeckName(*req.Name); err != nil {
			writeError(w, r, err)
			return
		}
		deck.Name = strings.TrimSpace(*req.Name)
	}
	if req.Template != nil {
		deck.Template = *req.Template
	}
	if req.Slides != nil {
		if err := validateSlides(*req.Slides); err != nil {
			writeError(w, r, err)
			return
		}
		deck.Slides = *req.Slides
	}
	if req.ThemeDescription != nil {
		if err := validateTheme(*req.ThemeDescription); err != nil {
			writeError(w, r, err)
			return
		}
		if *req.ThemeDescription == "" {
			deck.ThemeDescription = nil
		} else {
			deck.ThemeDescription = req.ThemeDescription
		}
	}
	if req.VisualBrief != nil {
		deck.VisualBrief = req.VisualBrief
	}
	deck.LastEdited = models.NowMillis()

	owner := middleware.OwnerFromCtx(r.Context())
	saved, err := h.store.SaveDeck(r.Context(), owner, deck)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.editors.Close(owner, saved.ID)
	writeJSON(w, http.StatusOK, saved)
}

// Delete removes a deck, then its uploaded images, cached diagrams and any
// open editing session. Cleanup failures are logged, not returned.
func (h *Decks) Delete(w http.ResponseWriter, r *http.Request) {
	deck, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	owner := middleware.OwnerFromCtx(r.Context())
	if err := h.store.DeleteDeck(r.Context(), owner, deck.ID); err != nil {
		writeError(w, r, err)
		return
	}

	h.editors.Close(owner, deck.ID)
	if h.diagrams != nil {
		h.diagrams.InvalidateDeck(r.Context(), deck.ID)
	}
	if h.images != nil {
		for _, s := range deck.Slides {
			if !s.HasImage() {
				continue
			}
			if err := h.images.DeleteURL(r.Context(), *s.Image); err != nil {
				slog.Warn("slide image delete failed", "deck_id", deck.ID, "error", err)
			}
		}
	}

	slog.Info("deck deleted", "deck_id", deck.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Duplicate copies a deck under a new id.
func (h *Decks) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	dup, err := h.store.DuplicateDeck(r.Context(), middleware.OwnerFromCtx(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

// ExportMarkdown downloads the deck as a Markdown file.
func (h *Decks) ExportMarkdown(w http.ResponseWriter, r *http.Request) {
	deck, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, slug.Filename(deck.Name, "md")))
	w.WriteHeader(http.StatusOK)
	w.Write(export.Markdown(deck))
}

// Present renders the deck as a full-screen HTML page.
func (h *Decks) Present(w http.ResponseWriter, r *http.Request) {
	deck, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.renderer.Present(w, deck); err != nil {
		writeError(w, r, err)
	}
}
