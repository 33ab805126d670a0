// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"pitchdeck/internal/drafts"
	"pitchdeck/internal/gateway"
	"pitchdeck/internal/middleware"
	"pitchdeck/internal/models"
)

// DeckGenerator drafts a deck from wizard answers.
type DeckGenerator interface {
	GenerateDeck(ctx context.Context, in models.WizardInput) (*gateway.GenerateDeckResponse, error)
}

// DeckCreator inserts a generated deck.
type DeckCreator interface {
	CreateDeck(ctx context.Context, owner uuid.UUID, name string, tmpl models.Template, slides []models.Slide) (*models.Deck, error)
}

// Wizard turns startup information into a first deck.
type Wizard struct {
	generator func(owner uuid.UUID) DeckGenerator
	decks     DeckCreator
	drafts    DraftStore
}

// NewWizard creates the wizard handler. generator returns the AI gateway
// bound to an owner.
func NewWizard(generator func(owner uuid.UUID) DeckGenerator, decks DeckCreator, drafts DraftStore) *Wizard {
	return &Wizard{generator: generator, decks: decks, drafts: drafts}
}

// Generate drafts a deck, stores it and clears the wizard draft. The draft
// is kept when anything fails so the user can retry.
func (h *Wizard) Generate(w http.ResponseWriter, r *http.Request) {
	var in models.WizardInput
	if err := decodeJSON(w, r, maxSmallBody, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateWizard(&in); err != nil {
		writeError(w, r, err)
		return
	}

	owner := middleware.OwnerFromCtx(r.Context())
	draft, err := h.generator(owner).GenerateDeck(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	deck, err := h.decks.CreateDeck(r.Context(), owner, draft.Name, in.Template, draft.Slides)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.drafts.Clear(r.Context(), drafts.WizardKey(owner)); err != nil {
		slog.Warn("wizard draft not cleared", "user_id", owner, "error", err)
	}

	slog.Info("deck generated", "deck_id", deck.ID, "slides", len(deck.Slides))
	writeJSON(w, http.StatusCreated, deck)
}
