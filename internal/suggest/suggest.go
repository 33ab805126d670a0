// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package suggest fetches AI improvement suggestions for the slide being
// edited once typing pauses. Results that arrive after the slide changed
// again, or after another slide became active, are dropped.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/models"
)

// DefaultDelay is the quiescence interval before a suggestion is requested.
const DefaultDelay = 500 * time.Millisecond

// Field names a suggestable slide field.
type Field string

const (
	FieldTitle   Field = "title"
	FieldContent Field = "content"
)

// State is the lifecycle of the suggestion for one slide index.
type State int

const (
	Idle State = iota
	Debouncing
	Fetching
	Applied
	Discarded
)

var stateNames = [...]string{"idle", "debouncing", "fetching", "applied", "discarded"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Fetcher requests a suggestion for a slide. A nil suggestion means none.
type Fetcher interface {
	SuggestSlideEdit(ctx context.Context, slide models.Slide) (*models.SlideSuggestion, error)
}

type entry struct {
	gen     uint64
	state   State
	pending *models.SlideSuggestion
}

// Engine tracks suggestions per slide index. Safe for concurrent use.
type Engine struct {
	fetch     Fetcher
	debounced func(f func())
	ctx       context.Context
	cancel    context.CancelFunc

	mu      sync.Mutex
	active  int
	entries map[int]*entry
}

// New creates an engine that waits delay after the last change before
// fetching. A zero delay selects DefaultDelay.
func New(fetch Fetcher, delay time.Duration) *Engine {
	if delay <= 0 {
		delay = DefaultDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		fetch:     fetch,
		debounced: debounce.New(delay),
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[int]*entry),
	}
}

// Close drops pending timers' effects and cancels in-flight fetches.
func (e *Engine) Close() {
	e.cancel()
}

func (e *Engine) entry(index int) *entry {
	en, ok := e.entries[index]
	if !ok {
		en = &entry{}
		e.entries[index] = en
	}
	return en
}

// Changed records that the slide at index was edited and restarts the
// quiescence timer. slide is the content the request will carry. Editing a
// slide other than the active one switches to it first.
func (e *Engine) Changed(index int, slide models.Slide) {
	e.mu.Lock()
	e.switchActive(index)
	en := e.entry(index)
	en.gen++
	en.state = Debouncing
	gen := en.gen
	e.mu.Unlock()

	slide = slide.Clone()
	e.debounced(func() { e.fire(index, gen, slide) })
}

// SetActive switches the watched slide. Any suggestion still being
// debounced or fetched for the previous slide becomes stale.
func (e *Engine) SetActive(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.switchActive(index)
}

// switchActive invalidates the previous slide's timer or fetch. Callers
// hold e.mu.
func (e *Engine) switchActive(index int) {
	if index == e.active {
		return
	}
	prev := e.entry(e.active)
	prev.gen++
	if prev.state == Debouncing || prev.state == Fetching {
		prev.state = Discarded
	}
	e.active = index
}

// Reset drops every pending suggestion and invalidates in-flight fetches.
// Used when the working copy is replaced and indexes may have shifted.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, en := range e.entries {
		en.gen++
		en.state = Idle
		en.pending = nil
	}
}

func (e *Engine) fire(index int, gen uint64, slide models.Slide) {
	if e.ctx.Err() != nil {
		return
	}

	e.mu.Lock()
	en := e.entry(index)
	if en.gen != gen {
		e.mu.Unlock()
		return
	}
	en.state = Fetching
	e.mu.Unlock()

	sug, err := e.fetch.SuggestSlideEdit(e.ctx, slide)
	e.deliver(index, gen, slide, sug, err)
}

// deliver applies a fetch result if gen is still current for index.
func (e *Engine) deliver(index int, gen uint64, slide models.Slide, sug *models.SlideSuggestion, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	en := e.entry(index)
	if en.gen != gen {
		slog.Debug("stale suggestion discarded", "index", index)
		if en.state == Fetching {
			en.state = Discarded
		}
		return
	}
	if err != nil {
		slog.Warn("slide suggestion failed", "index", index, "error", err)
		en.state = Discarded
		return
	}

	filtered := Filter(slide, sug)
	en.pending = filtered
	if filtered == nil {
		en.state = Discarded
	} else {
		en.state = Applied
	}
}

// Filter keeps only the suggestion fields that differ from slide, comparing
// trimmed values case-insensitively. It returns nil if nothing is left.
func Filter(slide models.Slide, sug *models.SlideSuggestion) *models.SlideSuggestion {
	if sug.Empty() {
		return nil
	}

	out := &models.SlideSuggestion{}
	if sug.Title != nil && differs(*sug.Title, slide.Title) {
		t := strings.TrimSpace(*sug.Title)
		out.Title = &t
	}
	if sug.Content != nil {
		c := models.JoinContent(models.SplitContent(*sug.Content))
		if differs(c, models.JoinContent(models.NormalizeContent(slide.Content))) {
			out.Content = &c
		}
	}
	if out.Empty() {
		return nil
	}
	return out
}

func differs(suggested, current string) bool {
	suggested = strings.TrimSpace(suggested)
	return suggested != "" && !strings.EqualFold(suggested, strings.TrimSpace(current))
}

// Accept removes field from the pending suggestion at index and returns its
// value for the caller to merge into the slide.
func (e *Engine) Accept(index int, field Field) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.take(index, field)
}

// Reject removes field from the pending suggestion at index.
func (e *Engine) Reject(index int, field Field) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.take(index, field)
	return err
}

func (e *Engine) take(index int, field Field) (string, error) {
	en, ok := e.entries[index]
	if !ok || en.pending == nil {
		return "", fmt.Errorf("no suggestion for slide %d: %w", index, apperr.ErrNotFound)
	}

	var v *string
	switch field {
	case FieldTitle:
		v, en.pending.Title = en.pending.Title, nil
	case FieldContent:
		v, en.pending.Content = en.pending.Content, nil
	default:
		return "", fmt.Errorf("unknown suggestion field %q: %w", field, apperr.ErrValidation)
	}
	if v == nil {
		return "", fmt.Errorf("no %s suggestion for slide %d: %w", field, index, apperr.ErrNotFound)
	}
	if en.pending.Empty() {
		en.pending = nil
		en.state = Idle
	}
	return *v, nil
}

// Pending returns a copy of every surfaced suggestion keyed by slide index.
func (e *Engine) Pending() map[int]models.SlideSuggestion {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[int]models.SlideSuggestion)
	for i, en := range e.entries {
		if en.pending != nil {
			out[i] = *en.pending
		}
	}
	return out
}

// State reports the suggestion state for index.
func (e *Engine) State(index int) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if en, ok := e.entries[index]; ok {
		return en.state
	}
	return Idle
}
