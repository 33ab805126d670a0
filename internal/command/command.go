// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package command routes a free-form instruction typed into the editor
// either to the research agent or to the editor agent.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/models"
)

// ErrBusy is returned when a command is started while another is running.
var ErrBusy = fmt.Errorf("a command is already running: %w", apperr.ErrConflict)

// Generic messages shown when an agent call fails.
const (
	ResearchFailedMessage = "Sorry, the research request failed. Please try again."
	EditFailedMessage     = "Sorry, that change could not be applied. Please try again."
)

// Kind is the route a command takes.
type Kind string

const (
	Research Kind = "research"
	Edit     Kind = "edit"
)

// researchLeads are the words that mark an instruction as a question.
var researchLeads = []string{"what", "who", "why", "how", "when", "where", "find", "search", "list", "tell me about"}

// Classify returns Research if input starts with a research lead followed by
// whitespace, ignoring case; otherwise Edit.
func Classify(input string) Kind {
	s := strings.ToLower(strings.TrimSpace(input))
	for _, lead := range researchLeads {
		rest, ok := strings.CutPrefix(s, lead)
		if !ok || rest == "" {
			continue
		}
		if r := []rune(rest)[0]; unicode.IsSpace(r) {
			return Research
		}
	}
	return Edit
}

// Agents are the remote agents a command can reach.
type Agents interface {
	RunResearchAgent(ctx context.Context, query string) (*models.ResearchResult, error)
	RunEditorAgent(ctx context.Context, deckID uuid.UUID, command string) error
}

// Hooks run around an edit command. BeforeEdit saves the working copy so
// the agent sees it; AfterEdit reloads it from the store.
type Hooks struct {
	BeforeEdit func(ctx context.Context) error
	AfterEdit  func(ctx context.Context) error
}

// State is what the command bar displays.
type State struct {
	Input    string                 `json:"input"`
	Loading  bool                   `json:"loading"`
	LastKind Kind                   `json:"lastKind,omitempty"`
	Research *models.ResearchResult `json:"research,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Router dispatches commands for one deck. Only one command runs at a time.
type Router struct {
	agents Agents
	deckID uuid.UUID
	hooks  Hooks

	mu    sync.Mutex
	state State
}

// New creates a Router for deckID.
func New(agents Agents, deckID uuid.UUID, hooks Hooks) *Router {
	return &Router{agents: agents, deckID: deckID, hooks: hooks}
}

// Loading reports whether a command is in flight.
func (r *Router) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Loading
}

// State returns a copy of the command bar state.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run classifies input and dispatches it. On success the input is cleared;
// on failure State().Error carries a generic retry message and the returned
// error carries the cause.
func (r *Router) Run(ctx context.Context, input string) (State, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return r.State(), fmt.Errorf("empty command: %w", apperr.ErrValidation)
	}

	r.mu.Lock()
	if r.state.Loading {
		r.mu.Unlock()
		return State{}, ErrBusy
	}
	kind := Classify(input)
	r.state = State{Input: input, Loading: true, LastKind: kind, Research: r.state.Research}
	r.mu.Unlock()

	var (
		research *models.ResearchResult
		err      error
	)
	if kind == Research {
		research, err = r.agents.RunResearchAgent(ctx, input)
	} else {
		err = r.edit(ctx, input)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Loading = false
	if err != nil {
		slog.Warn("command failed", "deck_id", r.deckID, "kind", kind, "error", err)
		if kind == Research {
			r.state.Error = ResearchFailedMessage
		} else {
			r.state.Error = EditFailedMessage
		}
		return r.state, err
	}

	r.state.Input = ""
	if kind == Research {
		r.state.Research = research
	}
	return r.state, nil
}

func (r *Router) edit(ctx context.Context, input string) error {
	if r.hooks.BeforeEdit != nil {
		if err := r.hooks.BeforeEdit(ctx); err != nil {
			return fmt.Errorf("save before edit: %w", err)
		}
	}
	if err := r.agents.RunEditorAgent(ctx, r.deckID, input); err != nil {
		return err
	}
	if r.hooks.AfterEdit != nil {
		if err := r.hooks.AfterEdit(ctx); err != nil {
			return fmt.Errorf("refresh after edit: %w", err)
		}
	}
	return nil
}
