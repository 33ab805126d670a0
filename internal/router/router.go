// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains. The AI
// functions are mounted outside the session and CSRF stack since they are
// called service-to-service with a shared key.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pitchdeck/internal/handlers"
	"pitchdeck/internal/middleware"
	"pitchdeck/internal/session"
)

// Deps are the handler groups and middleware state the router wires up.
type Deps struct {
	Sessions      *session.Store
	SecureCookies bool

	// LoginLimiter throttles login attempts per client IP. nil disables it.
	LoginLimiter *middleware.RateLimiter

	Auth   *handlers.Auth
	Decks  *handlers.Decks
	Wizard *handlers.Wizard
	Drafts *handlers.Drafts
	Editor *handlers.Editor

	// Functions serves /functions/v1/{name}. nil when the functions run
	// elsewhere.
	Functions http.Handler

	// ImageOrigins are the object storage URLs slide images may be served
	// from. The presenter page may load images from them.
	ImageOrigins []string
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	// Health check: no session, no CSRF.
	r.Get("/health", healthHandler)

	if d.Functions != nil {
		r.Mount("/functions/v1", d.Functions)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.LoadSession(d.Sessions))

		// Presenter view: a plain page load, read-only.
		r.With(middleware.PresenterHeaders(d.ImageOrigins...), middleware.RequireAuth).
			Get("/decks/{id}/present", d.Decks.Present)

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.CSRF(d.SecureCookies))

			login := http.Handler(http.HandlerFunc(d.Auth.Login))
			if d.LoginLimiter != nil {
				login = d.LoginLimiter.Middleware(login)
			}
			r.Method(http.MethodPost, "/login", login)
			r.Post("/logout", d.Auth.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)

				r.Get("/me", d.Auth.Me)

				// Decks
				r.Route("/decks", func(r chi.Router) {
					r.Get("/", d.Decks.List)
					r.Post("/", d.Decks.Create)
					r.Get("/{id}", d.Decks.Get)
					r.Put("/{id}", d.Decks.Update)
					r.Delete("/{id}", d.Decks.Delete)
					r.Post("/{id}/duplicate", d.Decks.Duplicate)
					r.Get("/{id}/export.md", d.Decks.ExportMarkdown)
				})

				// Wizard and drafts
				r.Post("/wizard/generate", d.Wizard.Generate)
				r.Route("/drafts", func(r chi.Router) {
					r.Get("/wizard", d.Drafts.GetWizard)
					r.Put("/wizard", d.Drafts.PutWizard)
					r.Delete("/wizard", d.Drafts.DeleteWizard)
					r.Get("/jobs/{jobID}", d.Drafts.GetJob)
					r.Put("/jobs/{jobID}", d.Drafts.PutJob)
					r.Delete("/jobs/{jobID}", d.Drafts.DeleteJob)
				})

				// Editing sessions
				r.Route("/editor/{id}", func(r chi.Router) {
					r.Get("/", d.Editor.State)
					r.Patch("/", d.Editor.UpdateDeck)
					r.Delete("/", d.Editor.Close)
					r.Post("/open", d.Editor.Open)
					r.Post("/save", d.Editor.Save)
					r.Post("/refresh", d.Editor.Refresh)
					r.Post("/slides", d.Editor.AddSlide)
					r.Post("/active", d.Editor.SetActive)
					r.Patch("/slides/{index}", d.Editor.UpdateSlide)
					r.Post("/slides/{index}/refine/{field}", d.Editor.RefineField)
					r.Post("/suggestions/{index}/{field}/accept", d.Editor.AcceptSuggestion)
					r.Post("/suggestions/{index}/{field}/reject", d.Editor.RejectSuggestion)
					r.Post("/image", d.Editor.GenerateImage)
					r.Post("/image/refine", d.Editor.RefineImage)
					r.Post("/theme", d.Editor.Theme)
					r.Post("/analyze", d.Editor.Analyze)
					r.Post("/diagram", d.Editor.Diagram)
					r.Post("/command", d.Editor.Command)
				})
			})
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
