// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/command"
	"pitchdeck/internal/editor"
	"pitchdeck/internal/middleware"
	"pitchdeck/internal/suggest"
)

// Editor exposes an editing session over JSON. Every handler resolves the
// session for the signed-in owner and the {id} deck, opening it on demand.
type Editor struct {
	sessions  *editor.Manager
	decks     DeckStore
	slowWrite time.Duration
}

// NewEditor creates the editor handler group. slowWrite is the write
// deadline granted to the theme, analysis and command endpoints, which chain
// several AI calls; zero keeps the server's WriteTimeout.
func NewEditor(sessions *editor.Manager, decks DeckStore, slowWrite time.Duration) *Editor {
	return &Editor{sessions: sessions, decks: decks, slowWrite: slowWrite}
}

// editorResponse is the body of every editor endpoint.
type editorResponse struct {
	Editor  editor.State  `json:"editor"`
	Command command.State `json:"command"`
	Result  any           `json:"result,omitempty"`
}

func respond(w http.ResponseWriter, s *editor.Session, result any) {
	writeJSON(w, http.StatusOK, editorResponse{
		Editor:  s.Editor.Snapshot(),
		Command: s.Commands.State(),
		Result:  result,
	})
}

func (h *Editor) session(r *http.Request) (*editor.Session, error) {
	id, err := urlID(r, "id")
	if err != nil {
		return nil, err
	}
	return h.sessions.Open(r.Context(), middleware.OwnerFromCtx(r.Context()), id)
}

// with resolves the session and runs fn. fn's error is reported with the
// current state left untouched.
func (h *Editor) with(fn func(w http.ResponseWriter, r *http.Request, s *editor.Session) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.session(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		result, err := fn(w, r, s)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respond(w, s, result)
	}
}

// slow is like with for endpoints that may run past the server's
// WriteTimeout.
func (h *Editor) slow(fn func(w http.ResponseWriter, r *http.Request, s *editor.Session) (any, error)) http.HandlerFunc {
	next := h.with(fn)
	return func(w http.ResponseWriter, r *http.Request) {
		extendWriteDeadline(w, h.slowWrite)
		next(w, r)
	}
}

// State returns the session state.
func (h *Editor) State(w http.ResponseWriter, r *http.Request) {
	h.with(func(http.ResponseWriter, *http.Request, *editor.Session) (any, error) {
		return nil, nil
	})(w, r)
}

// Open loads the stored deck into the session, discarding unsaved local
// edits. Used when the user navigates to the deck.
func (h *Editor) Open(w http.ResponseWriter, r *http.Request) {
	h.with(func(_ http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		deck, err := h.decks.GetDeck(r.Context(), middleware.OwnerFromCtx(r.Context()), s.Editor.DeckID())
		if err != nil {
			return nil, err
		}
		if deck == nil {
			return nil, fmt.Errorf("deck %s: %w", s.Editor.DeckID(), apperr.ErrNotFound)
		}
		s.Editor.Sync(deck)
		return nil, nil
	})(w, r)
}

// Close discards the session.
func (h *Editor) Close(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.sessions.Close(middleware.OwnerFromCtx(r.Context()), id)
	w.WriteHeader(http.StatusNoContent)
}

type deckFieldsRequest struct {
	Name              *string `json:"name"`
	ThemeDescription  *string `json:"themeDescription"`
	RefineInstruction *string `json:"refineInstruction"`
}

// UpdateDeck edits deck-level fields of the working copy.
func (h *Editor) UpdateDeck(w http.ResponseWriter, r *http.Request) {
	h.with(func(w http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		var req deckFieldsRequest
		if err := decodeJSON(w, r, maxSmallBody, &req); err != nil {
			return nil, err
		}
		if req.Name != nil {
			if err := validateDeckName(*req.Name); err != nil {
				return nil, err
			}
			if err := s.Editor.SetName(*req.Name); err != nil {
				return nil, err
			}
		}
		if req.ThemeDescription != nil {
			if err := validateTheme(*req.ThemeDescription); err != nil {
				return nil, err
			}
			s.Editor.SetThemeDescription(*req.ThemeDescription)
		}
		if req.RefineInstruction != nil {
			s.Editor.SetRefineInstruction(*req.RefineInstruction)
		}
		return nil, nil
	})(w, r)
}

// Save commits the working copy.
func (h *Editor) Save(w http.ResponseWriter, r *http.Request) {
	h.with(func(_ http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		notice, err := s.Editor.Save(r.Context())
		if err != nil {
			return nil, err
		}
		return notice, nil
	})(w, r)
}

// Refresh reloads the working copy from the store.
func (h *Editor) Refresh(w http.ResponseWriter, r *http.Request) {
	h.with(func(_ http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		return nil, s.Editor.Refresh(r.Context())
	})(w, r)
}

// AddSlide appends a default slide and selects it.
func (h *Editor) AddSlide(w http.ResponseWriter, r *http.Request) {
	h.with(func(_ http.ResponseWriter, _ *http.Request, s *editor.Session) (any, error) {
		if len(s.Editor.Snapshot().Deck.Slides) >= maxSlides {
			return nil, invalid("too many slides (max %d)", maxSlides)
		}
		return map[string]int{"index": s.Editor.AddSlide()}, nil
	})(w, r)
}

type activeRequest struct {
	Index int `json:"index"`
}

// SetActive selects the slide being edited.
func (h *Editor) SetActive(w http.ResponseWriter, r *http.Request) {
	h.with(func(w http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		var req activeRequest
		if err := decodeJSON(w, r, maxSmallBody, &req); err != nil {
			return nil, err
		}
		return nil, s.Editor.SetActive(req.Index)
	})(w, r)
}

type slideEditRequest struct {
	Title   *string   `json:"title"`
	Content *[]string `json:"content"`
}

// UpdateSlide edits the title and/or bullets of slide {index}.
func (h *Editor) UpdateSlide(w http.ResponseWriter, r *http.Request) {
	h.with(func(w http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		index, err := urlIndex(r, "index")
		if err != nil {
			return nil, err
		}
		var req slideEditRequest
		if err := decodeJSON(w, r, maxSmallBody, &req); err != nil {
			return nil, err
		}
		var title string
		var content []string
		if req.Title != nil {
			title = *req.Title
		}
		if req.Content != nil {
			content = *req.Content
		}
		if err := validateSlide(index, title, content); err != nil {
			return nil, err
		}
		if req.Title != nil {
			if err := s.Editor.SetTitle(index, *req.Title); err != nil {
				return nil, err
			}
		}
		if req.Content != nil {
			if err := s.Editor.SetContent(index, *req.Content); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})(w, r)
}

// RefineField asks the model to rewrite the {field} of slide {index}.
func (h *Editor) RefineField(w http.ResponseWriter, r *http.Request) {
	h.with(func(_ http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		index, err := urlIndex(r, "index")
		if err != nil {
			return nil, err
		}
		refined, err := s.Editor.RefineField(r.Context(), index, suggest.Field(chi.URLParam(r, "field")))
		if err != nil {
			return nil, err
		}
		return map[string]string{"refined": refined}, nil
	})(w, r)
}

// AcceptSuggestion merges a pending suggestion into slide {index}.
func (h *Editor) AcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	h.with(func(_ http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		index, err := urlIndex(r, "index")
		if err != nil {
			return nil, err
		}
		return nil, s.Editor.AcceptSuggestion(index, suggest.Field(chi.URLParam(r, "field")))
	})(w, r)
}

// RejectSuggestion drops a pending suggestion for slide {index}.
func (h *Editor) RejectSuggestion(w http.ResponseWriter, r *http.Request) {
	h.with(func(_ http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		index, err := urlIndex(r, "index")
		if err != nil {
			return nil, err
		}
		return nil, s.Editor.RejectSuggestion(index, suggest.Field(chi.URLParam(r, "field")))
	})(w, r)
}

// GenerateImage creates an image for the active slide.
func (h *Editor) GenerateImage(w http.ResponseWriter, r *http.Request) {
	h.with(func(_ http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		index, err := s.Editor.GenerateImage(r.Context())
		if err != nil {
			return nil, err
		}
		return map[string]int{"index": index}, nil
	})(w, r)
}

type refineImageRequest struct {
	Instruction string `json:"instruction"`
}

// RefineImage edits the active slide's image with an instruction. An empty
// instruction falls back to the stored draft instruction.
func (h *Editor) RefineImage(w http.ResponseWriter, r *http.Request) {
	h.with(func(w http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		var req refineImageRequest
		if err := decodeJSON(w, r, maxSmallBody, &req); err != nil {
			return nil, err
		}
		if req.Instruction == "" {
			req.Instruction = s.Editor.Snapshot().RefineInstruction
		}
		if len(req.Instruction) > maxCommandLen {
			return nil, invalid("instruction is too long (max %d characters)", maxCommandLen)
		}
		return nil, s.Editor.RefineImage(r.Context(), req.Instruction)
	})(w, r)
}

type themeRequest struct {
	Description string `json:"description"`
}

// Theme derives a visual brief and regenerates every slide image.
func (h *Editor) Theme(w http.ResponseWriter, r *http.Request) {
	h.slow(func(w http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		var req themeRequest
		if err := decodeJSON(w, r, maxSmallBody, &req); err != nil {
			return nil, err
		}
		if err := validateTheme(req.Description); err != nil {
			return nil, err
		}
		res, err := s.Editor.GenerateThemeAndVisuals(r.Context(), req.Description)
		if err != nil {
			return nil, err
		}
		return res, nil
	})(w, r)
}

// Analyze saves the deck and scores it.
func (h *Editor) Analyze(w http.ResponseWriter, r *http.Request) {
	h.slow(func(_ http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		res, err := s.Editor.Analyze(r.Context())
		if err != nil {
			return nil, err
		}
		return res, nil
	})(w, r)
}

// Diagram generates the deck's workflow diagram.
func (h *Editor) Diagram(w http.ResponseWriter, r *http.Request) {
	h.with(func(_ http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		code, err := s.Editor.GenerateDiagram(r.Context())
		if err != nil {
			return nil, err
		}
		return map[string]string{"diagramCode": code}, nil
	})(w, r)
}

type commandRequest struct {
	Input string `json:"input"`
}

// Command runs a natural-language research query or edit.
func (h *Editor) Command(w http.ResponseWriter, r *http.Request) {
	h.slow(func(w http.ResponseWriter, r *http.Request, s *editor.Session) (any, error) {
		var req commandRequest
		if err := decodeJSON(w, r, maxSmallBody, &req); err != nil {
			return nil, err
		}
		if err := validateCommand(req.Input); err != nil {
			return nil, err
		}
		_, err := s.Commands.Run(r.Context(), req.Input)
		return nil, err
	})(w, r)
}
