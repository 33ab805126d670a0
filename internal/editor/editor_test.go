// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package editor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/models"
	"pitchdeck/internal/storage"
	"pitchdeck/internal/suggest"
)

// fakeAI is an in-memory AI whose image calls fail for titles listed in
// failTitles.
type fakeAI struct {
	mu             sync.Mutex
	failTitles     map[string]bool
	hangTitles     map[string]bool // image calls that wait for ctx to end
	imageCalls     int
	refineCalls    int
	briefErr       error
	analysisErr    error
	diagramCalls   int
	lastRefineMime string
	lastRefineData string
	research       *models.ResearchResult
	editErr        error
	suggestion     *models.SlideSuggestion
}

func (f *fakeAI) SuggestSlideEdit(ctx context.Context, slide models.Slide) (*models.SlideSuggestion, error) {
	return f.suggestion, nil
}

func (f *fakeAI) RefineText(ctx context.Context, text, fieldName string) (string, error) {
	return "Refined: " + text, nil
}

func (f *fakeAI) GenerateSlideImage(ctx context.Context, title string, content []string, brief *models.VisualBrief) (string, error) {
	if f.hangTitles[title] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageCalls++
	if f.failTitles[title] {
		return "", fmt.Errorf("image for %q: %w", title, apperr.ErrGeneration)
	}
	style := "plain"
	if brief != nil {
		style = brief.Style
	}
	return "https://img.test/" + style + "/" + title + ".png", nil
}

func (f *fakeAI) RefineSlideImage(ctx context.Context, base64Data, mimeType, instruction string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refineCalls++
	f.lastRefineMime = mimeType
	f.lastRefineData = base64Data
	return "data:image/png;base64,UkVGSU5FRA==", nil
}

func (f *fakeAI) GenerateVisualTheme(ctx context.Context, description string) (*models.VisualBrief, error) {
	if f.briefErr != nil {
		return nil, f.briefErr
	}
	return &models.VisualBrief{Style: "neon", ColorPalette: []string{"#0ff"}, Mood: description}, nil
}

func (f *fakeAI) RunAnalysisAgent(ctx context.Context, deckID uuid.UUID) (*models.AnalysisResult, error) {
	if f.analysisErr != nil {
		return nil, f.analysisErr
	}
	return &models.AnalysisResult{Score: 81, ExecutiveSummary: "Strong"}, nil
}

func (f *fakeAI) GenerateWorkflowDiagram(ctx context.Context, deckID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diagramCalls++
	return "graph TD; A-->B", nil
}

func (f *fakeAI) RunResearchAgent(ctx context.Context, query string) (*models.ResearchResult, error) {
	return f.research, nil
}

func (f *fakeAI) RunEditorAgent(ctx context.Context, deckID uuid.UUID, command string) error {
	return f.editErr
}

// memStore is an in-memory Store that assigns slide ids and bumps
// LastEdited the way the SQL store does.
type memStore struct {
	mu      sync.Mutex
	decks   map[uuid.UUID]*models.Deck
	saves   int
	saveErr error
}

func newMemStore(decks ...*models.Deck) *memStore {
	m := &memStore{decks: make(map[uuid.UUID]*models.Deck)}
	for _, d := range decks {
		m.decks[d.ID] = d.Clone()
	}
	return m
}

func (m *memStore) GetDeck(ctx context.Context, owner, id uuid.UUID) (*models.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[id]
	if !ok || d.OwnerID != owner {
		return nil, nil
	}
	return d.Clone(), nil
}

func (m *memStore) SaveDeck(ctx context.Context, owner uuid.UUID, deck *models.Deck) (*models.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	d := deck.Clone()
	d.OwnerID = owner
	if prev, ok := m.decks[d.ID]; ok && d.LastEdited <= prev.LastEdited {
		d.LastEdited = prev.LastEdited + 1
	}
	for i := range d.Slides {
		if d.Slides[i].ID == nil {
			id := uuid.New()
			d.Slides[i].ID = &id
		}
	}
	m.decks[d.ID] = d
	return d.Clone(), nil
}

func (m *memStore) saved(id uuid.UUID) *models.Deck {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decks[id].Clone()
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// memDiagrams is an in-memory DiagramCache.
type memDiagrams map[string]string

func (c memDiagrams) GetDiagram(ctx context.Context, deckID uuid.UUID, lastEdited int64) (string, bool) {
	v, ok := c[fmt.Sprintf("%s:%d", deckID, lastEdited)]
	return v, ok
}

func (c memDiagrams) SetDiagram(ctx context.Context, deckID uuid.UUID, lastEdited int64, code string) {
	c[fmt.Sprintf("%s:%d", deckID, lastEdited)] = code
}

func strPtr(s string) *string { return &s }

func testDeck(owner uuid.UUID, titles ...string) *models.Deck {
	d := &models.Deck{ID: uuid.New(), OwnerID: owner, Name: "Acme", Template: models.TemplateStartup, LastEdited: 1}
	for _, t := range titles {
		id := uuid.New()
		d.Slides = append(d.Slides, models.Slide{ID: &id, Title: t, Content: []string{t + " detail"}})
	}
	return d
}

func newTestEditor(t *testing.T, deck *models.Deck, ai *fakeAI, store *memStore) *Editor {
	t.Helper()
	ed := New(deck.OwnerID, deck, ai, store, Options{SuggestDelay: time.Hour, ImageWorkers: 2})
	t.Cleanup(ed.Close)
	return ed
}

func TestSaveProducesSuccessNotice(t *testing.T) {
	owner := uuid.New()
	deck := testDeck(owner, "Problem")
	store := newMemStore(deck)
	ed := newTestEditor(t, deck, &fakeAI{}, store)

	ed.AddSlide()
	ed.SetContent(1, []string{"first", "  ", "second"})

	before := time.Now()
	n, err := ed.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n.Kind != "success" {
		t.Errorf("notice kind: got %q", n.Kind)
	}
	if d := n.ExpiresAt.Sub(before); d < NoticeTTL || d > NoticeTTL+time.Second {
		t.Errorf("notice expiry: %v after save", d)
	}

	saved := store.saved(deck.ID)
	if !reflect.DeepEqual(saved.Slides[1].Content, []string{"first", "second"}) {
		t.Errorf("saved content not normalised: %v", saved.Slides[1].Content)
	}

	st := ed.Snapshot()
	if st.Deck.Slides[1].ID == nil {
		t.Error("new slide should adopt the id assigned by the store")
	}
	if *st.Deck.Slides[1].ID != *saved.Slides[1].ID {
		t.Error("adopted id differs from stored id")
	}
	if st.Deck.LastEdited != saved.LastEdited {
		t.Errorf("LastEdited: working %d, stored %d", st.Deck.LastEdited, saved.LastEdited)
	}
	if st.Notice == nil {
		t.Error("fresh notice should be visible in the snapshot")
	}

	// A second save must not create the slide again.
	if _, err := ed.Save(context.Background()); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if n := len(store.saved(deck.ID).Slides); n != 2 {
		t.Errorf("slides after second save: got %d, want 2", n)
	}
}

func TestSaveFailureHasNoSuccessNotice(t *testing.T) {
	owner := uuid.New()
	deck := testDeck(owner, "Problem")
	store := newMemStore(deck)
	store.saveErr = errors.New("connection refused")
	ed := newTestEditor(t, deck, &fakeAI{}, store)

	n, err := ed.Save(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if n.Kind != "error" {
		t.Errorf("notice kind: got %q, want error", n.Kind)
	}
	if st := ed.Snapshot(); st.Notice == nil || st.Notice.Kind != "error" {
		t.Errorf("snapshot notice: %+v", st.Notice)
	}
}

func TestAddSlideSelectsIt(t *testing.T) {
	deck := testDeck(uuid.New(), "A", "B")
	ed := newTestEditor(t, deck, &fakeAI{}, newMemStore(deck))

	idx := ed.AddSlide()
	st := ed.Snapshot()
	if idx != 2 || st.Active != 2 {
		t.Errorf("active: got %d/%d, want 2", idx, st.Active)
	}
	if got := st.Deck.Slides[2]; got.Title != "New Slide" || got.ID != nil {
		t.Errorf("new slide: %+v", got)
	}
}

func TestEditsValidateIndex(t *testing.T) {
	deck := testDeck(uuid.New(), "A")
	ed := newTestEditor(t, deck, &fakeAI{}, newMemStore(deck))

	if err := ed.SetTitle(3, "x"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("SetTitle: got %v", err)
	}
	if err := ed.SetActive(-1); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("SetActive: got %v", err)
	}
	if err := ed.SetName("  "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("SetName: got %v", err)
	}
}

func TestGenerateImage(t *testing.T) {
	deck := testDeck(uuid.New(), "Problem", "Solution")
	deck.VisualBrief = &models.VisualBrief{Style: "mono"}
	ai := &fakeAI{}
	ed := newTestEditor(t, deck, ai, newMemStore(deck))
	ed.SetActive(1)

	if _, err := ed.GenerateImage(context.Background()); err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	s := ed.Snapshot().Deck.Slides[1]
	if s.Image == nil || *s.Image != "https://img.test/mono/Solution.png" {
		t.Errorf("image: %v", s.Image)
	}
	if s.ImageLoading {
		t.Error("loading flag not cleared")
	}
}

func TestGenerateImageFailureKeepsImage(t *testing.T) {
	deck := testDeck(uuid.New(), "Problem")
	deck.Slides[0].Image = strPtr("https://img.test/old.png")
	ai := &fakeAI{failTitles: map[string]bool{"Problem": true}}
	ed := newTestEditor(t, deck, ai, newMemStore(deck))

	_, err := ed.GenerateImage(context.Background())
	if !errors.Is(err, apperr.ErrGeneration) {
		t.Fatalf("got %v, want ErrGeneration", err)
	}
	s := ed.Snapshot().Deck.Slides[0]
	if s.ImageLoading {
		t.Error("loading flag not cleared after failure")
	}
	if *s.Image != "https://img.test/old.png" {
		t.Errorf("image changed on failure: %q", *s.Image)
	}
}

func TestRefineImagePreconditions(t *testing.T) {
	tests := []struct {
		name        string
		image       *string
		instruction string
		wantErr     error
	}{
		{"no image", nil, "make it blue", nil},
		{"blank instruction", strPtr("data:image/png;base64,AAAA"), "   ", nil},
		{"remote url", strPtr("https://img.test/a.png"), "make it blue", apperr.ErrValidation},
		{"malformed data uri", strPtr("data:image/png,AAAA"), "make it blue", apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deck := testDeck(uuid.New(), "Problem")
			deck.Slides[0].Image = tt.image
			ai := &fakeAI{}
			store := newMemStore(deck)
			ed := newTestEditor(t, deck, ai, store)

			err := ed.RefineImage(context.Background(), tt.instruction)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("expected no-op, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if ai.refineCalls != 0 {
				t.Error("no network call expected")
			}
			if store.saveCount() != 0 {
				t.Error("no save expected")
			}
		})
	}
}

func TestRefineImage(t *testing.T) {
	deck := testDeck(uuid.New(), "Problem")
	deck.Slides[0].Image = strPtr("data:image/jpeg;base64,/9j/AAAA")
	ai := &fakeAI{}
	store := newMemStore(deck)
	ed := newTestEditor(t, deck, ai, store)
	ed.SetRefineInstruction("warmer colours")

	if err := ed.RefineImage(context.Background(), "warmer colours"); err != nil {
		t.Fatalf("RefineImage: %v", err)
	}
	if ai.lastRefineMime != "image/jpeg" {
		t.Errorf("mime sent: %q", ai.lastRefineMime)
	}
	st := ed.Snapshot()
	if *st.Deck.Slides[0].Image != "data:image/png;base64,UkVGSU5FRA==" {
		t.Errorf("image: %q", *st.Deck.Slides[0].Image)
	}
	if st.RefineInstruction != "" {
		t.Error("instruction should be cleared")
	}
	if store.saveCount() != 1 {
		t.Errorf("saves: got %d, want 1", store.saveCount())
	}
}

func TestRefineStoredImage(t *testing.T) {
	// A path-style S3 endpoint serving one object from bucket "decks".
	s3 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/decks/slides/a/b.webp" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/webp")
		w.Write([]byte("WEBPDATA"))
	}))
	defer s3.Close()

	images, err := storage.New(s3.URL, "fsn1", "AKIATEST", "secret", "decks", "https://cdn.example.com")
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	deck := testDeck(uuid.New(), "Problem")
	deck.Slides[0].Image = strPtr("https://cdn.example.com/slides/a/b.webp")
	ai := &fakeAI{}
	store := newMemStore(deck)
	ed := New(deck.OwnerID, deck, ai, store, Options{SuggestDelay: time.Hour, Images: images})
	defer ed.Close()

	if err := ed.RefineImage(context.Background(), "add a sunrise"); err != nil {
		t.Fatalf("RefineImage: %v", err)
	}
	if ai.lastRefineMime != "image/webp" {
		t.Errorf("mime sent: %q", ai.lastRefineMime)
	}
	if ai.lastRefineData != base64.StdEncoding.EncodeToString([]byte("WEBPDATA")) {
		t.Errorf("payload sent: %q", ai.lastRefineData)
	}
	if got := *ed.Snapshot().Deck.Slides[0].Image; got != "data:image/png;base64,UkVGSU5FRA==" {
		t.Errorf("image: %q", got)
	}
	if store.saveCount() != 1 {
		t.Errorf("saves: got %d, want 1", store.saveCount())
	}
}

type failingFetcher struct{}

func (failingFetcher) FetchURL(ctx context.Context, rawURL string) ([]byte, string, error) {
	return nil, "", fmt.Errorf("image url is not in bucket decks: %w", apperr.ErrValidation)
}

func TestRefineStoredImageFetchFails(t *testing.T) {
	deck := testDeck(uuid.New(), "Problem")
	old := "https://elsewhere.example.com/a.png"
	deck.Slides[0].Image = strPtr(old)
	ai := &fakeAI{}
	store := newMemStore(deck)
	ed := New(deck.OwnerID, deck, ai, store, Options{SuggestDelay: time.Hour, Images: failingFetcher{}})
	defer ed.Close()

	err := ed.RefineImage(context.Background(), "add a sunrise")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
	s := ed.Snapshot().Deck.Slides[0]
	if *s.Image != old || s.ImageLoading {
		t.Errorf("slide after failed fetch: image %q loading %v", *s.Image, s.ImageLoading)
	}
	if ai.refineCalls != 0 || store.saveCount() != 0 {
		t.Errorf("refine calls %d, saves %d; want none", ai.refineCalls, store.saveCount())
	}
}

func TestThemePartialFailure(t *testing.T) {
	deck := testDeck(uuid.New(), "S1", "S2", "S3", "S4", "S5")
	for i := range deck.Slides {
		deck.Slides[i].Image = strPtr(fmt.Sprintf("https://img.test/old/%d.png", i))
	}
	ai := &fakeAI{failTitles: map[string]bool{"S3": true}}
	store := newMemStore(deck)
	ed := newTestEditor(t, deck, ai, store)

	res, err := ed.GenerateThemeAndVisuals(context.Background(), "calm")
	if err != nil {
		t.Fatalf("GenerateThemeAndVisuals: %v", err)
	}
	if res.Generated != 4 || !reflect.DeepEqual(res.Failed, []int{2}) {
		t.Errorf("result: generated=%d failed=%v", res.Generated, res.Failed)
	}

	saved := store.saved(deck.ID)
	for i, s := range saved.Slides {
		if s.ImageLoading {
			t.Errorf("slide %d still loading", i+1)
		}
		want := fmt.Sprintf("https://img.test/neon/S%d.png", i+1)
		if i == 2 {
			want = "https://img.test/old/2.png"
		}
		if *s.Image != want {
			t.Errorf("slide %d image: got %q, want %q", i+1, *s.Image, want)
		}
	}
	if saved.VisualBrief == nil || saved.VisualBrief.Style != "neon" {
		t.Errorf("brief not committed: %+v", saved.VisualBrief)
	}
	if saved.ThemeDescription == nil || *saved.ThemeDescription != "calm" {
		t.Errorf("theme description: %v", saved.ThemeDescription)
	}
	if store.saveCount() != 2 {
		t.Errorf("saves: got %d, want 2 (before and after)", store.saveCount())
	}
	for i, s := range ed.Snapshot().Deck.Slides {
		if s.ImageLoading {
			t.Errorf("working slide %d still loading", i+1)
		}
	}
}

func TestThemeBriefFailure(t *testing.T) {
	deck := testDeck(uuid.New(), "S1", "S2")
	ai := &fakeAI{briefErr: apperr.ErrGeneration}
	ed := newTestEditor(t, deck, ai, newMemStore(deck))

	if _, err := ed.GenerateThemeAndVisuals(context.Background(), "bold"); !errors.Is(err, apperr.ErrGeneration) {
		t.Fatalf("got %v", err)
	}
	if ai.imageCalls != 0 {
		t.Error("no image calls without a brief")
	}
	st := ed.Snapshot()
	if st.ThemeLoading {
		t.Error("theme loading flag not cleared")
	}
	for _, s := range st.Deck.Slides {
		if s.ImageLoading {
			t.Error("slide loading flag not cleared")
		}
	}
}

func TestThemeRequiresDescription(t *testing.T) {
	deck := testDeck(uuid.New(), "S1")
	ed := newTestEditor(t, deck, &fakeAI{}, newMemStore(deck))

	if _, err := ed.GenerateThemeAndVisuals(context.Background(), ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestAnalyze(t *testing.T) {
	deck := testDeck(uuid.New(), "S1")
	store := newMemStore(deck)
	ed := newTestEditor(t, deck, &fakeAI{}, store)

	res, err := ed.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Score != 81 {
		t.Errorf("score: %d", res.Score)
	}
	if store.saveCount() != 1 {
		t.Error("Analyze must save first")
	}
	if a := ed.Snapshot().Analysis; a.Loading || a.Result == nil || a.Error != "" {
		t.Errorf("analysis state: %+v", a)
	}
}

func TestAnalyzeFailure(t *testing.T) {
	deck := testDeck(uuid.New(), "S1")
	ed := newTestEditor(t, deck, &fakeAI{analysisErr: apperr.ErrAgent}, newMemStore(deck))

	if _, err := ed.Analyze(context.Background()); !errors.Is(err, apperr.ErrAgent) {
		t.Fatalf("got %v", err)
	}
	if a := ed.Snapshot().Analysis; a.Loading || a.Error == "" || a.Result != nil {
		t.Errorf("analysis state: %+v", a)
	}
}

func TestGenerateDiagramCached(t *testing.T) {
	deck := testDeck(uuid.New(), "S1")
	ai := &fakeAI{}
	cache := memDiagrams{}
	ed := New(deck.OwnerID, deck, ai, newMemStore(deck), Options{SuggestDelay: time.Hour, Diagrams: cache})
	defer ed.Close()

	for i := 0; i < 2; i++ {
		code, err := ed.GenerateDiagram(context.Background())
		if err != nil {
			t.Fatalf("GenerateDiagram: %v", err)
		}
		if code != "graph TD; A-->B" {
			t.Errorf("code: %q", code)
		}
	}
	if ai.diagramCalls != 1 {
		t.Errorf("diagram calls: got %d, want 1", ai.diagramCalls)
	}
	if d := ed.Snapshot().Diagram; d.Loading || d.Code == "" {
		t.Errorf("diagram state: %+v", d)
	}
}

func TestRefreshClampsActive(t *testing.T) {
	deck := testDeck(uuid.New(), "A", "B", "C")
	store := newMemStore(deck)
	ed := newTestEditor(t, deck, &fakeAI{}, store)
	ed.SetActive(2)

	shrunk := deck.Clone()
	shrunk.Slides = shrunk.Slides[:1]
	store.SaveDeck(context.Background(), deck.OwnerID, shrunk)

	if err := ed.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	st := ed.Snapshot()
	if st.Active != 0 || len(st.Deck.Slides) != 1 {
		t.Errorf("active=%d slides=%d", st.Active, len(st.Deck.Slides))
	}

	empty := deck.Clone()
	empty.Slides = nil
	store.SaveDeck(context.Background(), deck.OwnerID, empty)
	if err := ed.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if st := ed.Snapshot(); st.Active != 0 {
		t.Errorf("active on empty deck: %d", st.Active)
	}
}

func TestRefreshDeletedDeck(t *testing.T) {
	deck := testDeck(uuid.New(), "A")
	store := newMemStore(deck)
	ed := newTestEditor(t, deck, &fakeAI{}, store)

	delete(store.decks, deck.ID)
	if err := ed.Refresh(context.Background()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestRefineField(t *testing.T) {
	deck := testDeck(uuid.New(), "Market")
	ed := newTestEditor(t, deck, &fakeAI{}, newMemStore(deck))

	got, err := ed.RefineField(context.Background(), 0, suggest.FieldTitle)
	if err != nil {
		t.Fatalf("RefineField: %v", err)
	}
	if got != "Refined: Market" || ed.Snapshot().Deck.Slides[0].Title != "Refined: Market" {
		t.Errorf("title: %q", got)
	}
}

func TestAcceptSuggestionMerges(t *testing.T) {
	deck := testDeck(uuid.New(), "Market")
	ai := &fakeAI{suggestion: &models.SlideSuggestion{Title: strPtr("Market Opportunity"), Content: strPtr("$40B TAM\n12% CAGR")}}
	ed := New(deck.OwnerID, deck, ai, newMemStore(deck), Options{SuggestDelay: 10 * time.Millisecond})
	defer ed.Close()

	if err := ed.AcceptSuggestion(0, suggest.FieldTitle); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("accept without suggestion: got %v", err)
	}

	ed.SetTitle(0, "market")

	deadline := time.Now().Add(2 * time.Second)
	for len(ed.Snapshot().Suggestions) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for a suggestion")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := ed.AcceptSuggestion(0, suggest.FieldContent); err != nil {
		t.Fatalf("AcceptSuggestion: %v", err)
	}
	if err := ed.RejectSuggestion(0, suggest.FieldTitle); err != nil {
		t.Fatalf("RejectSuggestion: %v", err)
	}

	s := ed.Snapshot().Deck.Slides[0]
	if s.Title != "market" {
		t.Errorf("rejected title was merged: %q", s.Title)
	}
	if !reflect.DeepEqual(s.Content, []string{"$40B TAM", "12% CAGR"}) {
		t.Errorf("content: %v", s.Content)
	}
}

func TestSyncReplacesWorkingCopy(t *testing.T) {
	deck := testDeck(uuid.New(), "A", "B")
	ed := newTestEditor(t, deck, &fakeAI{}, newMemStore(deck))
	ed.SetTitle(0, "edited")

	other := testDeck(deck.OwnerID, "X")
	ed.Sync(other)

	st := ed.Snapshot()
	if st.Deck.ID != other.ID || st.Deck.Slides[0].Title != "X" {
		t.Errorf("working copy not replaced: %+v", st.Deck)
	}

	other.Slides[0].Title = "mutated"
	if ed.Snapshot().Deck.Slides[0].Title != "X" {
		t.Error("working copy aliases the synced deck")
	}
}

func TestEditSelectsSlide(t *testing.T) {
	deck := testDeck(uuid.New(), "Problem", "Solution")
	ed := newTestEditor(t, deck, &fakeAI{}, newMemStore(deck))

	if err := ed.SetTitle(0, "The problem"); err != nil {
		t.Fatalf("SetTitle: %v", err)
	}
	if err := ed.SetContent(1, []string{"Instant payouts"}); err != nil {
		t.Fatalf("SetContent: %v", err)
	}

	st := ed.Snapshot()
	if st.Active != 1 {
		t.Errorf("active after editing slide 1: got %d", st.Active)
	}
	if st.SuggestionState != suggest.Debouncing {
		t.Errorf("suggestion state: got %v, want debouncing", st.SuggestionState)
	}
	if got := ed.suggestions.State(0); got != suggest.Discarded {
		t.Errorf("slide 0 suggestion: got %v, want discarded", got)
	}
}

func TestThemeTimeoutCommitsFinishedImages(t *testing.T) {
	deck := testDeck(uuid.New(), "S1", "S2", "S3")
	deck.Slides[1].Image = strPtr("https://img.test/old/1.png")
	ai := &fakeAI{hangTitles: map[string]bool{"S2": true}}
	store := newMemStore(deck)
	ed := New(deck.OwnerID, deck, ai, store, Options{SuggestDelay: time.Hour, ImageWorkers: 3, ThemeTimeout: 50 * time.Millisecond})
	t.Cleanup(ed.Close)

	res, err := ed.GenerateThemeAndVisuals(context.Background(), "calm")
	if err != nil {
		t.Fatalf("GenerateThemeAndVisuals: %v", err)
	}
	if res.Generated != 2 || !reflect.DeepEqual(res.Failed, []int{1}) {
		t.Errorf("result: generated=%d failed=%v", res.Generated, res.Failed)
	}

	saved := store.saved(deck.ID)
	if saved == nil || saved.VisualBrief == nil {
		t.Fatal("theme batch was not committed")
	}
	if *saved.Slides[1].Image != "https://img.test/old/1.png" {
		t.Errorf("timed out slide image: got %q", *saved.Slides[1].Image)
	}
	for i, s := range saved.Slides {
		if s.ImageLoading {
			t.Errorf("slide %d still loading", i+1)
		}
	}
}
