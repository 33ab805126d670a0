// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/drafts"
	"pitchdeck/internal/middleware"
)

// jobIDPattern limits job ids to characters that are safe inside a key.
var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// DraftStore persists unsubmitted form state.
type DraftStore interface {
	Load(ctx context.Context, key string) (json.RawMessage, error)
	Save(ctx context.Context, key string, doc json.RawMessage) error
	Clear(ctx context.Context, key string) error
}

// Drafts groups the wizard and job-application draft handlers.
type Drafts struct {
	store DraftStore
}

// NewDrafts creates a new Drafts handler group.
func NewDrafts(store DraftStore) *Drafts {
	return &Drafts{store: store}
}

func (h *Drafts) wizardKey(r *http.Request) (string, error) {
	return drafts.WizardKey(middleware.OwnerFromCtx(r.Context())), nil
}

func (h *Drafts) jobKey(r *http.Request) (string, error) {
	jobID := chi.URLParam(r, "jobID")
	if !jobIDPattern.MatchString(jobID) {
		return "", fmt.Errorf("job id %q: %w", jobID, apperr.ErrValidation)
	}
	return drafts.JobKey(middleware.OwnerFromCtx(r.Context()), jobID), nil
}

// get answers with the stored draft, or 204 when there is none.
func (h *Drafts) get(key func(*http.Request) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k, err := key(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		doc, err := h.store.Load(r.Context(), k)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if doc == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(doc)
	}
}

func (h *Drafts) put(key func(*http.Request) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k, err := key(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, drafts.MaxSize+1))
		if err != nil {
			writeError(w, r, fmt.Errorf("draft exceeds %d bytes: %w", drafts.MaxSize, apperr.ErrValidation))
			return
		}
		if err := h.store.Save(r.Context(), k, body); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Drafts) clear(key func(*http.Request) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k, err := key(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := h.store.Clear(r.Context(), k); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetWizard returns the wizard draft.
func (h *Drafts) GetWizard(w http.ResponseWriter, r *http.Request) { h.get(h.wizardKey)(w, r) }

// PutWizard replaces the wizard draft.
func (h *Drafts) PutWizard(w http.ResponseWriter, r *http.Request) { h.put(h.wizardKey)(w, r) }

// DeleteWizard discards the wizard draft.
func (h *Drafts) DeleteWizard(w http.ResponseWriter, r *http.Request) { h.clear(h.wizardKey)(w, r) }

// GetJob returns the draft application for {jobID}.
func (h *Drafts) GetJob(w http.ResponseWriter, r *http.Request) { h.get(h.jobKey)(w, r) }

// PutJob replaces the draft application for {jobID}.
func (h *Drafts) PutJob(w http.ResponseWriter, r *http.Request) { h.put(h.jobKey)(w, r) }

// DeleteJob discards the draft application for {jobID}.
func (h *Drafts) DeleteJob(w http.ResponseWriter, r *http.Request) { h.clear(h.jobKey)(w, r) }
