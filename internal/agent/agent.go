// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package agent turns a natural-language edit command into slide
// operations and applies them to a stored deck.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/models"
)

// Generator produces structured JSON from a prompt pair.
type Generator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error
}

// Decks loads and stores decks for an owner.
type Decks interface {
	GetDeck(ctx context.Context, owner, id uuid.UUID) (*models.Deck, error)
	SaveDeck(ctx context.Context, owner uuid.UUID, deck *models.Deck) (*models.Deck, error)
}

// Agent plans slide operations with an LLM and commits them.
type Agent struct {
	llm   Generator
	decks Decks
}

// New creates an Agent.
func New(llm Generator, decks Decks) *Agent {
	return &Agent{llm: llm, decks: decks}
}

const planPrompt = `You edit pitch deck slides. You receive the current slides as a numbered list of titles and a user command.
Reply with JSON only, in this shape:
{"operations": [...], "message": "<one sentence describing what you did>"}

Each operation is one of:
{"name": "addSlide", "title": "...", "content": ["bullet", ...], "position": <1-based position of the new slide>}
{"name": "deleteSlide", "position": <1-based position>}
{"name": "updateSlideContent", "position": <1-based position>, "newTitle": "...", "newContent": ["bullet", ...]}

Rules:
- Positions refer to the deck as it is after the previous operations ran.
- Omit newTitle or newContent to leave that field unchanged.
- Keep bullets short (under 15 words). Use 3 to 5 bullets per slide.
- Return an empty operations list if the command does not ask for a change.`

// Plan asks the LLM which operations fulfil command on deck.
func (a *Agent) Plan(ctx context.Context, deck *models.Deck, command string) (*Plan, error) {
	user := fmt.Sprintf("Deck: %s\nSlides:\n%s\nCommand: %s", deck.Name, Listing(deck.Slides), command)

	var plan Plan
	if err := a.llm.GenerateJSON(ctx, planPrompt, user, &plan); err != nil {
		return nil, fmt.Errorf("plan edit: %w", err)
	}
	return &plan, nil
}

// Run plans command against the owner's deck, applies the operations and
// saves the result. The deck is saved with a new last-edited stamp even
// when the plan has no operations. It returns the agent's summary message.
func (a *Agent) Run(ctx context.Context, owner, deckID uuid.UUID, command string) (string, error) {
	deck, err := a.decks.GetDeck(ctx, owner, deckID)
	if err != nil {
		return "", fmt.Errorf("load deck: %w", err)
	}
	if deck == nil {
		return "", fmt.Errorf("deck %s: %w", deckID, apperr.ErrNotFound)
	}

	plan, err := a.Plan(ctx, deck, command)
	if err != nil {
		return "", err
	}

	slides, err := Apply(deck.Slides, plan.Operations)
	if err != nil {
		return "", err
	}

	deck.Slides = slides
	deck.LastEdited = models.NowMillis()
	if _, err := a.decks.SaveDeck(ctx, owner, deck); err != nil {
		return "", fmt.Errorf("save deck: %w", err)
	}

	slog.Info("editor agent applied command", "deck_id", deckID, "operations", len(plan.Operations))

	msg := plan.Message
	if msg == "" {
		msg = fmt.Sprintf("Applied %d change(s).", len(plan.Operations))
	}
	return msg, nil
}
