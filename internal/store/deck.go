// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/models"
)

// deckColumns lists the columns selected in deck queries.
const deckColumns = `id, owner_id, name, template, last_edited, theme_description, visual_brief`

// slideColumns lists the columns selected in slide queries.
const slideColumns = `id, deck_id, title, content, image`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DeckStore maps decks and their slides to the decks and slides tables.
// Every query is scoped to the owner id passed by the caller.
type DeckStore struct {
	db *sql.DB
}

// NewDeckStore creates a new DeckStore.
func NewDeckStore(db *sql.DB) *DeckStore {
	return &DeckStore{db: db}
}

// scanDeck scans a deck row without its slides.
func scanDeck(scanner interface{ Scan(...any) error }) (*models.Deck, error) {
	var (
		d     models.Deck
		brief []byte
	)
	err := scanner.Scan(&d.ID, &d.OwnerID, &d.Name, &d.Template, &d.LastEdited, &d.ThemeDescription, &brief)
	if err != nil {
		return nil, err
	}
	if len(brief) > 0 {
		var vb models.VisualBrief
		if err := json.Unmarshal(brief, &vb); err != nil {
			return nil, fmt.Errorf("decode visual brief: %w", err)
		}
		d.VisualBrief = &vb
	}
	d.Slides = []models.Slide{}
	return &d, nil
}

// ListDecks returns every deck owned by owner, most recently edited first,
// each with its slides in position order.
func (s *DeckStore) ListDecks(ctx context.Context, owner uuid.UUID) ([]models.Deck, error) {
	if owner == uuid.Nil {
		return nil, fmt.Errorf("list decks: %w", apperr.ErrAuth)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+deckColumns+`
		FROM decks
		WHERE owner_id = $1
		ORDER BY last_edited DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	var decks []models.Deck
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deck: %w", err)
		}
		index[d.ID] = len(decks)
		decks = append(decks, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	if len(decks) == 0 {
		return decks, nil
	}

	slides, err := s.db.QueryContext(ctx, `
		SELECT `+slideColumns+`
		FROM slides
		WHERE owner_id = $1
		ORDER BY deck_id, position
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	defer slides.Close()

	types := pgtype.NewMap()
	for slides.Next() {
		deckID, slide, err := scanSlide(types, slides)
		if err != nil {
			return nil, fmt.Errorf("scan slide: %w", err)
		}
		if i, ok := index[deckID]; ok {
			decks[i].Slides = append(decks[i].Slides, slide)
		}
	}
	return decks, slides.Err()
}

// scanSlide scans one slides row. content is a text[] column, which needs
// pgx's type map to land in a []string through database/sql.
func scanSlide(types *pgtype.Map, scanner interface{ Scan(...any) error }) (uuid.UUID, models.Slide, error) {
	var (
		id, deckID uuid.UUID
		sl         models.Slide
	)
	if err := scanner.Scan(&id, &deckID, &sl.Title, types.SQLScanner(&sl.Content), &sl.Image); err != nil {
		return uuid.Nil, sl, err
	}
	sl.ID = &id
	if sl.Content == nil {
		sl.Content = []string{}
	}
	return deckID, sl, nil
}

// GetDeck returns one deck with its slides ordered by position. Returns nil
// (not an error) if the deck does not exist or belongs to someone else.
func (s *DeckStore) GetDeck(ctx context.Context, owner, id uuid.UUID) (*models.Deck, error) {
	if owner == uuid.Nil {
		return nil, fmt.Errorf("get deck: %w", apperr.ErrAuth)
	}
	d, err := getDeck(ctx, s.db, owner, id)
	if err != nil {
		return nil, fmt.Errorf("get deck: %w", err)
	}
	return d, nil
}

func getDeck(ctx context.Context, q querier, owner, id uuid.UUID) (*models.Deck, error) {
	d, err := scanDeck(q.QueryRowContext(ctx, `
		SELECT `+deckColumns+`
		FROM decks
		WHERE id = $1 AND owner_id = $2
	`, id, owner))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+slideColumns+`
		FROM slides
		WHERE deck_id = $1 AND owner_id = $2
		ORDER BY position
	`, id, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := pgtype.NewMap()
	for rows.Next() {
		_, slide, err := scanSlide(types, rows)
		if err != nil {
			return nil, err
		}
		d.Slides = append(d.Slides, slide)
	}
	return d, rows.Err()
}

// SaveDeck upserts the deck row and reconciles its slide set in a single
// transaction: persisted slides missing from deck.Slides are deleted (even
// when deck.Slides is empty), and every incoming slide is upserted with its
// array index as position. Slides without an id get a fresh one. The saved
// deck is re-read and returned.
//
// last_edited never moves backwards: a save stamps max(deck.LastEdited,
// previous+1). The caller's deck is not modified.
func (s *DeckStore) SaveDeck(ctx context.Context, owner uuid.UUID, deck *models.Deck) (*models.Deck, error) {
	if owner == uuid.Nil {
		return nil, fmt.Errorf("save deck: %w", apperr.ErrAuth)
	}
	if deck == nil {
		return nil, fmt.Errorf("save deck: no deck: %w", apperr.ErrValidation)
	}
	deck = deck.Clone()
	if deck.Template == "" {
		deck.Template = models.TemplateStartup
	}
	if !deck.Template.Valid() {
		return nil, fmt.Errorf("save deck: template %q: %w", deck.Template, apperr.ErrValidation)
	}
	if deck.ID == uuid.Nil {
		deck.ID = uuid.New()
	}
	if deck.LastEdited == 0 {
		deck.LastEdited = models.NowMillis()
	}

	var brief []byte
	if deck.VisualBrief != nil {
		b, err := json.Marshal(deck.VisualBrief)
		if err != nil {
			return nil, fmt.Errorf("save deck: encode visual brief: %w", err)
		}
		brief = b
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("save deck: begin: %w", err)
	}
	defer tx.Rollback()

	var lastEdited int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO decks (id, owner_id, name, template, last_edited, theme_description, visual_brief)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			template = EXCLUDED.template,
			last_edited = GREATEST(EXCLUDED.last_edited, decks.last_edited + 1),
			theme_description = EXCLUDED.theme_description,
			visual_brief = EXCLUDED.visual_brief
		WHERE decks.owner_id = EXCLUDED.owner_id
		RETURNING last_edited
	`, deck.ID, owner, deck.Name, deck.Template, deck.LastEdited, deck.ThemeDescription, brief).Scan(&lastEdited)
	if err == sql.ErrNoRows {
		// The id exists but belongs to another user.
		return nil, fmt.Errorf("save deck %s: %w", deck.ID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("save deck: upsert: %w", err)
	}

	keep := make([]string, 0, len(deck.Slides))
	for i := range deck.Slides {
		if deck.Slides[i].ID == nil {
			id := uuid.New()
			deck.Slides[i].ID = &id
		}
		keep = append(keep, deck.Slides[i].ID.String())
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM slides
		WHERE deck_id = $1 AND owner_id = $2 AND NOT (id = ANY($3::uuid[]))
	`, deck.ID, owner, keep)
	if err != nil {
		return nil, fmt.Errorf("save deck: prune slides: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("slides pruned", "deck_id", deck.ID, "count", n)
	}

	for i, sl := range deck.Slides {
		content := models.NormalizeContent(sl.Content)
		res, err := tx.ExecContext(ctx, `
			INSERT INTO slides (id, deck_id, owner_id, title, content, image, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				content = EXCLUDED.content,
				image = EXCLUDED.image,
				position = EXCLUDED.position
			WHERE slides.deck_id = EXCLUDED.deck_id AND slides.owner_id = EXCLUDED.owner_id
		`, *sl.ID, deck.ID, owner, sl.Title, content, sl.Image, i)
		if err != nil {
			return nil, fmt.Errorf("save deck: upsert slide %d: %w", i, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// The slide id is taken by another deck; never steal it.
			return nil, fmt.Errorf("save deck: slide %s: %w", sl.ID, apperr.ErrNotFound)
		}
	}

	saved, err := getDeck(ctx, tx, owner, deck.ID)
	if err != nil {
		return nil, fmt.Errorf("save deck: reload: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("save deck: commit: %w", err)
	}

	slog.Debug("deck saved", "deck_id", deck.ID, "slides", len(saved.Slides), "last_edited", lastEdited)
	return saved, nil
}

// CreateDeck inserts a brand-new deck with the given slides. Every slide
// gets a fresh id; the caller's slice is left as it was.
func (s *DeckStore) CreateDeck(ctx context.Context, owner uuid.UUID, name string, tmpl models.Template, slides []models.Slide) (*models.Deck, error) {
	fresh := make([]models.Slide, len(slides))
	copy(fresh, slides)
	for i := range fresh {
		fresh[i].ID = nil
	}
	return s.SaveDeck(ctx, owner, &models.Deck{
		Name:       name,
		Template:   tmpl,
		Slides:     fresh,
		LastEdited: models.NowMillis(),
	})
}

// DeleteDeck removes a deck. Slides go first so no orphan rows remain.
func (s *DeckStore) DeleteDeck(ctx context.Context, owner, id uuid.UUID) error {
	if owner == uuid.Nil {
		return fmt.Errorf("delete deck: %w", apperr.ErrAuth)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete deck: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM slides WHERE deck_id = $1 AND owner_id = $2`, id, owner); err != nil {
		return fmt.Errorf("delete deck slides: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM decks WHERE id = $1 AND owner_id = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete deck: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete deck %s: %w", id, apperr.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete deck: commit: %w", err)
	}
	return nil
}

// DuplicateDeck copies a deck under a new id. Slides get new identities and
// the copy is named "<name> (Copy)".
func (s *DeckStore) DuplicateDeck(ctx context.Context, owner, id uuid.UUID) (*models.Deck, error) {
	src, err := s.GetDeck(ctx, owner, id)
	if err != nil {
		return nil, fmt.Errorf("duplicate deck: %w", err)
	}
	if src == nil {
		return nil, fmt.Errorf("duplicate deck %s: %w", id, apperr.ErrNotFound)
	}

	dup := src.Clone()
	dup.ID = uuid.New()
	dup.Name = src.Name + " (Copy)"
	dup.LastEdited = models.NowMillis()
	for i := range dup.Slides {
		dup.Slides[i].ID = nil
	}

	saved, err := s.SaveDeck(ctx, owner, dup)
	if err != nil {
		return nil, fmt.Errorf("duplicate deck: %w", err)
	}
	return saved, nil
}
