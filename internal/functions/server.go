// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package functions serves the AI functions the gateway client calls. Every
// endpoint takes a JSON body and answers with the {"data","error"} envelope.
// Requests must carry the shared service key and the acting owner's id.
package functions

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pitchdeck/internal/agent"
	"pitchdeck/internal/ai"
	"pitchdeck/internal/apperr"
	"pitchdeck/internal/gateway"
	"pitchdeck/internal/middleware"
)

// maxRequestSize bounds request bodies; refine-slide-image carries a
// base64 image.
const maxRequestSize = 24 << 20

// ErrRejected wraps ErrValidation for prompts refused by moderation.
var ErrRejected = fmt.Errorf("prompt rejected by moderation: %w", apperr.ErrValidation)

// LLM is the slice of the provider registry the functions use.
type LLM interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
	EditImage(ctx context.Context, image []byte, mimeType, instruction string) ([]byte, string, error)
	CheckPrompt(ctx context.Context, prompt string) (*ai.ModerationResult, error)
}

// Images stores generated image bytes and returns a public URL.
type Images interface {
	PutImage(ctx context.Context, owner uuid.UUID, data []byte, mimeType string) (string, error)
}

// EditorAgent applies a natural-language edit to a stored deck.
type EditorAgent interface {
	Run(ctx context.Context, owner, deckID uuid.UUID, command string) (string, error)
}

// Server implements the AI functions.
type Server struct {
	llm     LLM
	decks   agent.Decks
	editor  EditorAgent
	images  Images // nil returns images inline as data URIs
	key     string
	limiter *middleware.RateLimiter
}

// New creates a functions server. images and limiter may be nil.
func New(llm LLM, decks agent.Decks, editor EditorAgent, images Images, serviceKey string, limiter *middleware.RateLimiter) *Server {
	return &Server{
		llm:     llm,
		decks:   decks,
		editor:  editor,
		images:  images,
		key:     serviceKey,
		limiter: limiter,
	}
}

// Routes returns the router to mount under /functions/v1.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.authenticate)

	r.Post("/"+gateway.FnRefineText, handle(s.refineText))
	r.Post("/"+gateway.FnSuggestSlide, handle(s.suggestSlide))
	r.Post("/"+gateway.FnGenerateImage, handle(s.generateImage))
	r.Post("/"+gateway.FnRefineImage, handle(s.refineImage))
	r.Post("/"+gateway.FnVisualTheme, handle(s.visualTheme))
	r.Post("/"+gateway.FnEditorAgent, handle(s.editorAgent))
	r.Post("/"+gateway.FnAnalyzeDeck, handle(s.analyzeDeck))
	r.Post("/"+gateway.FnResearchAgent, handle(s.researchAgent))
	r.Post("/"+gateway.FnWorkflowDiagram, handle(s.workflowDiagram))
	r.Post("/"+gateway.FnGenerateDeck, handle(s.generateDeck))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, nil, "unknown function")
	})
	return r
}

type ownerKey struct{}

func ownerFromCtx(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ownerKey{}).(uuid.UUID)
	return id
}

// authenticate checks the service key and owner header, then applies the
// per-owner rate limit.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(gateway.HeaderServiceKey)
		if s.key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.key)) != 1 {
			writeEnvelope(w, http.StatusUnauthorized, nil, "invalid service key")
			return
		}

		owner, err := uuid.Parse(r.Header.Get(gateway.HeaderOwner))
		if err != nil || owner == uuid.Nil {
			writeEnvelope(w, http.StatusUnauthorized, nil, "missing owner")
			return
		}

		if s.limiter != nil && !s.limiter.Allow(owner.String()) {
			writeEnvelope(w, http.StatusTooManyRequests, nil, "rate limit exceeded, slow down")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

// handle adapts a typed function to an HTTP handler: decode the body,
// run fn, wrap the result in the envelope.
func handle[In, Out any](fn func(ctx context.Context, owner uuid.UUID, in *In) (*Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize))
		if err := dec.Decode(&in); err != nil {
			writeEnvelope(w, http.StatusBadRequest, nil, "invalid request body")
			return
		}

		out, err := fn(r.Context(), ownerFromCtx(r.Context()), &in)
		if err != nil {
			status := apperr.Status(err)
			msg := err.Error()
			if status >= http.StatusInternalServerError {
				slog.Error("function failed", "path", r.URL.Path, "error", err)
				msg = "function failed"
			}
			writeEnvelope(w, status, nil, msg)
			return
		}
		writeEnvelope(w, http.StatusOK, out, "")
	}
}

func writeEnvelope(w http.ResponseWriter, status int, data any, errMsg string) {
	var env gateway.Envelope
	if errMsg != "" {
		env.Error = &gateway.EnvelopeError{Message: errMsg}
	} else {
		raw, err := json.Marshal(data)
		if err != nil {
			slog.Error("encode function result", "error", err)
			status = http.StatusInternalServerError
			env.Error = &gateway.EnvelopeError{Message: "function failed"}
		} else {
			env.Data = raw
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// moderate runs free text through the registry's safety check. A failing
// moderation service lets the prompt through; providers keep their own
// filters.
func (s *Server) moderate(ctx context.Context, text string) error {
	res, err := s.llm.CheckPrompt(ctx, text)
	if err != nil {
		slog.Warn("moderation unavailable", "error", err)
		return nil
	}
	if !res.Safe {
		slog.Info("prompt rejected by moderation", "categories", res.Categories)
		return ErrRejected
	}
	return nil
}

// llmErr marks a provider failure as an agent error unless it already
// carries a classification.
func llmErr(op string, err error) error {
	if errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrAgent) || errors.Is(err, apperr.ErrGeneration) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, apperr.ErrAgent, err)
}
