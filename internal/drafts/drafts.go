// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package drafts persists unsubmitted form state (the deck wizard and job
// applications) in Valkey so a user can resume where they left off.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pitchdeck/internal/apperr"
)

const (
	keyPrefix = "draft:"

	// DefaultTTL is how long an untouched draft is kept.
	DefaultTTL = 7 * 24 * time.Hour

	// MaxSize bounds a single draft document.
	MaxSize = 256 << 10
)

// WizardKey returns the key of a user's deck wizard draft.
func WizardKey(user uuid.UUID) string {
	return keyPrefix + "wizard:" + user.String()
}

// JobKey returns the key of a user's draft application to a job.
func JobKey(user uuid.UUID, jobID string) string {
	return keyPrefix + "job:" + user.String() + ":" + jobID
}

// Store keeps drafts as opaque JSON documents.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a draft store backed by the given Valkey client.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Load returns the draft stored under key, or nil if there is none.
func (s *Store) Load(ctx context.Context, key string) (json.RawMessage, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return json.RawMessage(val), nil
}

// Save replaces the draft under key and resets its TTL. The document must
// be a JSON object.
func (s *Store) Save(ctx context.Context, key string, doc json.RawMessage) error {
	if len(doc) > MaxSize {
		return fmt.Errorf("draft exceeds %d bytes: %w", MaxSize, apperr.ErrValidation)
	}
	if !json.Valid(doc) || !strings.HasPrefix(strings.TrimSpace(string(doc)), "{") {
		return fmt.Errorf("draft must be a JSON object: %w", apperr.ErrValidation)
	}
	if err := s.client.Set(ctx, key, []byte(doc), s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Clear removes the draft under key. Clearing a missing draft is not an
// error.
func (s *Store) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
