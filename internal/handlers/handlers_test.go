// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handlers_test.go holds the in-memory fakes and the test router shared by
// the handler tests.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/drafts"
	"pitchdeck/internal/editor"
	"pitchdeck/internal/gateway"
	"pitchdeck/internal/middleware"
	"pitchdeck/internal/models"
	"pitchdeck/internal/render"
	"pitchdeck/internal/session"
)

// memDecks is an in-memory DeckStore that assigns ids and bumps LastEdited
// the way the SQL store does.
type memDecks struct {
	mu    sync.Mutex
	decks map[uuid.UUID]*models.Deck
}

func newMemDecks() *memDecks {
	return &memDecks{decks: make(map[uuid.UUID]*models.Deck)}
}

func (m *memDecks) ListDecks(ctx context.Context, owner uuid.UUID) ([]models.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Deck
	for _, d := range m.decks {
		if d.OwnerID == owner {
			out = append(out, *d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastEdited > out[j].LastEdited })
	return out, nil
}

func (m *memDecks) GetDeck(ctx context.Context, owner, id uuid.UUID) (*models.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[id]
	if !ok || d.OwnerID != owner {
		return nil, nil
	}
	return d.Clone(), nil
}

func (m *memDecks) SaveDeck(ctx context.Context, owner uuid.UUID, deck *models.Deck) (*models.Deck, error) {
	if owner == uuid.Nil {
		return nil, apperr.ErrAuth
	}
	if deck.Template == "" {
		deck.Template = models.TemplateStartup
	}
	if !deck.Template.Valid() {
		return nil, fmt.Errorf("template %q: %w", deck.Template, apperr.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if deck.ID == uuid.Nil {
		deck.ID = uuid.New()
	}
	if prev, ok := m.decks[deck.ID]; ok {
		if prev.OwnerID != owner {
			return nil, apperr.ErrNotFound
		}
		deck.LastEdited = max(deck.LastEdited, prev.LastEdited+1)
	}
	saved := deck.Clone()
	saved.OwnerID = owner
	for i := range saved.Slides {
		if saved.Slides[i].ID == nil {
			id := uuid.New()
			saved.Slides[i].ID = &id
		}
		saved.Slides[i].Content = models.NormalizeContent(saved.Slides[i].Content)
		saved.Slides[i].ImageLoading = false
	}
	m.decks[saved.ID] = saved
	return saved.Clone(), nil
}

func (m *memDecks) CreateDeck(ctx context.Context, owner uuid.UUID, name string, tmpl models.Template, slides []models.Slide) (*models.Deck, error) {
	return m.SaveDeck(ctx, owner, &models.Deck{Name: name, Template: tmpl, Slides: slides, LastEdited: models.NowMillis()})
}

func (m *memDecks) DeleteDeck(ctx context.Context, owner, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[id]
	if !ok || d.OwnerID != owner {
		return apperr.ErrNotFound
	}
	delete(m.decks, id)
	return nil
}

func (m *memDecks) DuplicateDeck(ctx context.Context, owner, id uuid.UUID) (*models.Deck, error) {
	src, _ := m.GetDeck(ctx, owner, id)
	if src == nil {
		return nil, apperr.ErrNotFound
	}
	dup := src.Clone()
	dup.ID = uuid.Nil
	dup.Name += " (Copy)"
	for i := range dup.Slides {
		dup.Slides[i].ID = nil
	}
	return m.SaveDeck(ctx, owner, dup)
}

// put seeds a deck for owner.
func (m *memDecks) put(t *testing.T, owner uuid.UUID, name string, titles ...string) *models.Deck {
	t.Helper()
	slides := make([]models.Slide, len(titles))
	for i, title := range titles {
		slides[i] = models.Slide{Title: title, Content: []string{title + " point"}}
	}
	d, err := m.SaveDeck(context.Background(), owner, &models.Deck{Name: name, Slides: slides, LastEdited: models.NowMillis()})
	if err != nil {
		t.Fatalf("seed deck: %v", err)
	}
	return d
}

// stubAI stands in for the gateway client bound to one owner.
type stubAI struct {
	mu       sync.Mutex
	research *models.ResearchResult
	edits    []string
	genErr   error
	drafted  []models.WizardInput

	themeDelay time.Duration
}

func (s *stubAI) SuggestSlideEdit(ctx context.Context, slide models.Slide) (*models.SlideSuggestion, error) {
	return nil, nil
}

func (s *stubAI) RefineText(ctx context.Context, text, fieldName string) (string, error) {
	return "Sharper " + text, nil
}

func (s *stubAI) GenerateSlideImage(ctx context.Context, title string, content []string, brief *models.VisualBrief) (string, error) {
	return "https://img.test/" + uuid.NewString() + ".png", nil
}

func (s *stubAI) RefineSlideImage(ctx context.Context, base64Data, mimeType, instruction string) (string, error) {
	return "data:image/png;base64,UkVGSU5FRA==", nil
}

func (s *stubAI) GenerateVisualTheme(ctx context.Context, description string) (*models.VisualBrief, error) {
	if s.themeDelay > 0 {
		time.Sleep(s.themeDelay)
	}
	return &models.VisualBrief{Style: "clean", ColorPalette: []string{"#112233"}, Mood: description}, nil
}

func (s *stubAI) RunAnalysisAgent(ctx context.Context, deckID uuid.UUID) (*models.AnalysisResult, error) {
	return &models.AnalysisResult{Score: 72, ExecutiveSummary: "Solid start"}, nil
}

func (s *stubAI) GenerateWorkflowDiagram(ctx context.Context, deckID uuid.UUID) (string, error) {
	return "graph TD; Idea-->Deck", nil
}

func (s *stubAI) RunResearchAgent(ctx context.Context, query string) (*models.ResearchResult, error) {
	return s.research, nil
}

func (s *stubAI) RunEditorAgent(ctx context.Context, deckID uuid.UUID, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, command)
	return nil
}

func (s *stubAI) GenerateDeck(ctx context.Context, in models.WizardInput) (*gateway.GenerateDeckResponse, error) {
	s.mu.Lock()
	s.drafted = append(s.drafted, in)
	s.mu.Unlock()
	if s.genErr != nil {
		return nil, s.genErr
	}
	return &gateway.GenerateDeckResponse{
		Name: in.CompanyName,
		Slides: []models.Slide{
			{Title: "Problem", Content: []string{in.Problem}},
			{Title: "Solution", Content: []string{in.Solution}},
		},
	}, nil
}

// recorder collects side effects of deck deletion.
type recorder struct {
	mu          sync.Mutex
	deletedURLs []string
	invalidated []uuid.UUID
}

func (r *recorder) DeleteURL(ctx context.Context, rawURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedURLs = append(r.deletedURLs, rawURL)
	return nil
}

func (r *recorder) InvalidateDeck(ctx context.Context, deckID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, deckID)
}

// testEnv wires the handler groups to fakes and a miniredis instance.
type testEnv struct {
	decks    *memDecks
	ai       *stubAI
	rec      *recorder
	drafts   *drafts.Store
	sessions *session.Store
	manager  *editor.Manager
	mr       *miniredis.Miniredis
	router   chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rn, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	env := &testEnv{
		decks:    newMemDecks(),
		ai:       &stubAI{},
		rec:      &recorder{},
		drafts:   drafts.NewStore(client, 0),
		sessions: session.NewStore(client, false),
		mr:       mr,
	}
	env.manager = editor.NewManager(env.decks, func(uuid.UUID) editor.SessionAI { return env.ai },
		editor.Options{SuggestDelay: time.Hour}, time.Hour)
	t.Cleanup(env.manager.Stop)

	decks := NewDecks(env.decks, rn, env.manager, env.rec, env.rec)
	wizard := NewWizard(func(uuid.UUID) DeckGenerator { return env.ai }, env.decks, env.drafts)
	draftsH := NewDrafts(env.drafts)
	ed := NewEditor(env.manager, env.decks, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.LoadSession(env.sessions))
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/decks/{id}/present", decks.Present)
		r.Route("/api", func(r chi.Router) {
			r.Get("/decks", decks.List)
			r.Post("/decks", decks.Create)
			r.Get("/decks/{id}", decks.Get)
			r.Put("/decks/{id}", decks.Update)
			r.Delete("/decks/{id}", decks.Delete)
			r.Post("/decks/{id}/duplicate", decks.Duplicate)
			r.Get("/decks/{id}/export.md", decks.ExportMarkdown)

			r.Post("/wizard/generate", wizard.Generate)
			r.Get("/drafts/wizard", draftsH.GetWizard)
			r.Put("/drafts/wizard", draftsH.PutWizard)
			r.Delete("/drafts/wizard", draftsH.DeleteWizard)
			r.Get("/drafts/jobs/{jobID}", draftsH.GetJob)
			r.Put("/drafts/jobs/{jobID}", draftsH.PutJob)
			r.Delete("/drafts/jobs/{jobID}", draftsH.DeleteJob)

			r.Route("/editor/{id}", func(r chi.Router) {
				r.Get("/", ed.State)
				r.Patch("/", ed.UpdateDeck)
				r.Delete("/", ed.Close)
				r.Post("/open", ed.Open)
				r.Post("/save", ed.Save)
				r.Post("/refresh", ed.Refresh)
				r.Post("/slides", ed.AddSlide)
				r.Post("/active", ed.SetActive)
				r.Patch("/slides/{index}", ed.UpdateSlide)
				r.Post("/slides/{index}/refine/{field}", ed.RefineField)
				r.Post("/suggestions/{index}/{field}/accept", ed.AcceptSuggestion)
				r.Post("/suggestions/{index}/{field}/reject", ed.RejectSuggestion)
				r.Post("/image", ed.GenerateImage)
				r.Post("/image/refine", ed.RefineImage)
				r.Post("/theme", ed.Theme)
				r.Post("/analyze", ed.Analyze)
				r.Post("/diagram", ed.Diagram)
				r.Post("/command", ed.Command)
			})
		})
	})
	env.router = r
	return env
}

// login creates a real session for owner and returns its cookie.
func (env *testEnv) login(t *testing.T, owner uuid.UUID) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	if _, err := env.sessions.Create(context.Background(), rr, &session.Data{UserID: owner, Email: "founder@example.com"}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

// do sends a request through the test router. body is JSON-encoded unless
// it is already a string.
func (env *testEnv) do(t *testing.T, cookie *http.Cookie, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]string](t, rr)["error"]
}
