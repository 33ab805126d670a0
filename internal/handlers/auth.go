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

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/middleware"
	"pitchdeck/internal/models"
	"pitchdeck/internal/session"
)

// UserFinder looks up accounts for login.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	CheckPassword(user *models.User, password string) bool
}

// Auth groups the login, logout and current-user handlers.
type Auth struct {
	sessions *session.Store
	users    UserFinder
}

// NewAuth creates a new Auth handler group.
func NewAuth(sessions *session.Store, users UserFinder) *Auth {
	return &Auth{sessions: sessions, users: users}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks credentials and starts a session.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, maxSmallBody, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.users.FindByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		writeError(w, r, fmt.Errorf("login lookup: %w", err))
		return
	}
	if user == nil || !a.users.CheckPassword(user, req.Password) {
		writeError(w, r, fmt.Errorf("invalid email or password: %w", apperr.ErrAuth))
		return
	}

	data := &session.Data{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}
	if _, err := a.sessions.Create(r.Context(), w, data); err != nil {
		writeError(w, r, fmt.Errorf("create session: %w", err))
		return
	}

	slog.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

// Logout destroys the current session.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Error("session destroy failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in user's session.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		writeError(w, r, apperr.ErrAuth)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
