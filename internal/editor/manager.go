// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pitchdeck/internal/apperr"
	"pitchdeck/internal/command"
)

// DefaultIdleTTL is how long an untouched editing session is kept.
const DefaultIdleTTL = 30 * time.Minute

// SessionAI is what an editing session needs from the AI gateway.
type SessionAI interface {
	AI
	command.Agents
}

// Session is one user's editing session on one deck.
type Session struct {
	Editor   *Editor
	Commands *command.Router

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed.Before(cutoff)
}

type sessionKey struct {
	owner uuid.UUID
	deck  uuid.UUID
}

// Manager keeps editing sessions in memory and evicts idle ones.
type Manager struct {
	store   Store
	newAI   func(owner uuid.UUID) SessionAI
	opts    Options
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[sessionKey]*Session
	stopCh   chan struct{}
}

// NewManager creates a session manager. newAI returns the gateway bound to
// an owner. It starts a background goroutine that evicts sessions idle for
// longer than idleTTL; call Stop to end it.
func NewManager(store Store, newAI func(owner uuid.UUID) SessionAI, opts Options, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	m := &Manager{
		store:    store,
		newAI:    newAI,
		opts:     opts,
		idleTTL:  idleTTL,
		sessions: make(map[sessionKey]*Session),
		stopCh:   make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(max(min(idleTTL/2, time.Minute), time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep(time.Now())
			case <-m.stopCh:
				return
			}
		}
	}()

	return m
}

// Stop ends the eviction goroutine and closes every session.
func (m *Manager) Stop() {
	close(m.stopCh)

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.sessions {
		s.Editor.Close()
		delete(m.sessions, key)
	}
}

// Open returns the owner's session on deckID, loading the deck from the
// store if no session exists yet.
func (m *Manager) Open(ctx context.Context, owner, deckID uuid.UUID) (*Session, error) {
	if owner == uuid.Nil {
		return nil, apperr.ErrAuth
	}
	key := sessionKey{owner: owner, deck: deckID}

	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if ok {
		s.touch(time.Now())
		return s, nil
	}

	deck, err := m.store.GetDeck(ctx, owner, deckID)
	if err != nil {
		return nil, fmt.Errorf("open editor: %w", err)
	}
	if deck == nil {
		return nil, fmt.Errorf("deck %s: %w", deckID, apperr.ErrNotFound)
	}

	ai := m.newAI(owner)
	ed := New(owner, deck, ai, m.store, m.opts)
	s = &Session{
		Editor: ed,
		Commands: command.New(ai, deckID, command.Hooks{
			BeforeEdit: func(ctx context.Context) error {
				_, err := ed.Save(ctx)
				return err
			},
			AfterEdit: ed.Refresh,
		}),
		lastUsed: time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[key]; ok {
		// Lost a race with a concurrent Open.
		ed.Close()
		existing.touch(time.Now())
		return existing, nil
	}
	m.sessions[key] = s
	slog.Debug("editing session opened", "deck_id", deckID)
	return s, nil
}

// Close discards the owner's session on deckID, if any.
func (m *Manager) Close(owner, deckID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{owner: owner, deck: deckID}
	if s, ok := m.sessions[key]; ok {
		s.Editor.Close()
		delete(m.sessions, key)
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle since before now-idleTTL. Sessions with a
// command in flight are kept. It returns the number evicted.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for key, s := range m.sessions {
		if !s.idleSince(cutoff) || s.Commands.Loading() {
			continue
		}
		s.Editor.Close()
		delete(m.sessions, key)
		evicted++
	}
	if evicted > 0 {
		slog.Info("idle editing sessions evicted", "count", evicted)
	}
	return evicted
}
