// Package aicache is a content-addressed cache for AI responses, backed by
// the ai_cache table. Repeated identical calls to the generative service are
// served from the cache, which keeps quota usage down and responses fast.
//
// Staleness is controlled by the Version field of a Key: bumping the version
// at a call site when its prompt or parsing logic changes makes every old
// entry unreachable without deleting anything.
package aicache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"log/slog"
)

// Key identifies one logical AI call: the operation name, its arguments, and
// a logic-version tag. Two calls with equal keys are expected to produce
// equivalent results.
type Key struct {
	Op      string   `json:"op"`
	Args    []string `json:"args"`
	Version string   `json:"version"`
}

// hash derives the storage key: canonical JSON of the Key fed through SHA-256.
func (k Key) hash() string {
	b, _ := json.Marshal(k)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Cache wraps the ai_cache table.
type Cache struct {
	db *sql.DB
}

// New wraps an existing *sql.DB for cache operations.
// The ai_cache table must already exist (created via migrations).
func New(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// GetOrCompute returns the cached value for key, or invokes compute and
// persists its non-empty result. Storage errors are logged and swallowed:
// a broken cache degrades to pass-through, it never fails a request.
//
// Values for the same key are deterministically equivalent, so the
// re-check before the write only avoids duplicate inserts; last-check-wins
// is fine and no lock is taken.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (string, error)) (string, error) {
	h := key.hash()

	var cached string
	err := c.db.QueryRowContext(ctx, `SELECT response FROM ai_cache WHERE key = ?`, h).Scan(&cached)
	switch {
	case err == nil:
		return cached, nil
	case err != sql.ErrNoRows:
		slog.Warn("cache read failed, treating as miss", "op", key.Op, "error", err)
	}

	value, err := compute(ctx)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", nil
	}

	// Re-check before writing: a concurrent request may have stored the
	// same key already.
	var exists int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ai_cache WHERE key = ?`, h).Scan(&exists); err != nil {
		slog.Warn("cache existence check failed, skipping write", "op", key.Op, "error", err)
		return value, nil
	}
	if exists == 0 {
		if _, err := c.db.ExecContext(ctx, `INSERT OR IGNORE INTO ai_cache (key, response) VALUES (?, ?)`, h, value); err != nil {
			slog.Warn("cache write failed", "op", key.Op, "error", err)
		}
	}

	return value, nil
}

// Count returns the number of cached responses.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ai_cache`).Scan(&count)
	return count, err
}
