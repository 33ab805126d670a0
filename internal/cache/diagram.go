// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	diagramKeyPrefix = "diagram:"

	// DefaultDiagramTTL is how long a generated diagram stays cached.
	DefaultDiagramTTL = 24 * time.Hour
)

// DiagramCache keeps generated workflow diagrams in Valkey. Entries are
// keyed by deck id and the deck's last-edited stamp, so any committed edit
// makes the previous diagram unreachable.
type DiagramCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDiagramCache creates a diagram cache backed by the given Valkey client.
func NewDiagramCache(client *redis.Client, ttl time.Duration) *DiagramCache {
	if ttl <= 0 {
		ttl = DefaultDiagramTTL
	}
	return &DiagramCache{client: client, ttl: ttl}
}

// DiagramKey returns the cache key for a deck version.
func DiagramKey(deckID uuid.UUID, lastEdited int64) string {
	return fmt.Sprintf("%s%s:%d", diagramKeyPrefix, deckID, lastEdited)
}

// GetDiagram returns the cached diagram for a deck version. Errors are
// logged and reported as a miss.
func (c *DiagramCache) GetDiagram(ctx context.Context, deckID uuid.UUID, lastEdited int64) (string, bool) {
	key := DiagramKey(deckID, lastEdited)
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		slog.Warn("diagram cache get error", "key", key, "error", err)
		return "", false
	}
	slog.Debug("diagram cache hit", "key", key)
	return val, true
}

// SetDiagram stores a diagram for a deck version with the configured TTL.
func (c *DiagramCache) SetDiagram(ctx context.Context, deckID uuid.UUID, lastEdited int64, code string) {
	key := DiagramKey(deckID, lastEdited)
	if err := c.client.Set(ctx, key, code, c.ttl).Err(); err != nil {
		slog.Warn("diagram cache set error", "key", key, "error", err)
	}
}

// InvalidateDeck removes every cached diagram of a deck, whatever its
// version. Used when a deck is deleted.
func (c *DiagramCache) InvalidateDeck(ctx context.Context, deckID uuid.UUID) {
	var cursor uint64
	var deleted int
	pattern := fmt.Sprintf("%s%s:*", diagramKeyPrefix, deckID)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			slog.Warn("diagram cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("diagram cache delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Debug("diagram cache invalidated", "deck_id", deckID, "deleted", deleted)
	}
}
