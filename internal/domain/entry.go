package domain

import (
	"encoding/json"
	"time"
)

// DefaultCategory is applied to cache entries stored without a category.
const DefaultCategory = "general"

// CacheEntry is a persisted snapshot of a domain value, valid for a bounded
// time after it was captured.
type CacheEntry struct {
	// Key identifies the logical resource (e.g., "order-7")
	Key string `json:"key"`

	// Payload is the opaque JSON value
	Payload json.RawMessage `json:"payload"`

	// Category is a free-form tag such as "general", "order" or "profile"
	Category string `json:"category"`

	// CapturedAt is the time the entry was created or refreshed
	CapturedAt time.Time `json:"captured_at"`

	// Synced records whether the value was reconciled with the server.
	// It is carried for compatibility and not acted on.
	Synced bool `json:"synced"`
}

// NewCacheEntry creates an entry captured at now.
func NewCacheEntry(key string, payload json.RawMessage, category string, now time.Time) CacheEntry {
	if category == "" {
		category = DefaultCategory
	}
	return CacheEntry{
		Key:        key,
		Payload:    payload,
		Category:   category,
		CapturedAt: now,
	}
}

// Expired reports whether the entry is no longer readable at now.
// An entry captured at T is valid in [T, T+maxAge).
func (e CacheEntry) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.CapturedAt) >= maxAge
}
