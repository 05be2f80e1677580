// Package codec encodes cache entries and the operation queue into storage
// records and names those records.
//
// Cache entries live in one record per key, prefixed with [CachePrefix].
// The queue lives in a single record named [QueueRecord] that is rewritten
// wholesale on every mutation.
package codec

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/bft-labs/courier/internal/domain"
)

const (
	// CachePrefix namespaces cache entry records.
	CachePrefix = "offline_cache_"

	// QueueRecord is the well-known name of the queue record.
	QueueRecord = "offline_queue"

	queueVersion = 1
)

// CacheRecordName returns the storage name for a cache key.
func CacheRecordName(key string) string {
	return CachePrefix + key
}

// CacheKey extracts the cache key from a storage name.
// Returns false for names that are not cache records.
func CacheKey(name string) (string, bool) {
	if !strings.HasPrefix(name, CachePrefix) {
		return "", false
	}
	key := strings.TrimPrefix(name, CachePrefix)
	return key, key != ""
}

// EncodeEntry serializes a cache entry.
func EncodeEntry(e domain.CacheEntry) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry %s: %w", e.Key, err)
	}
	return b, nil
}

// DecodeEntry deserializes a cache entry.
func DecodeEntry(b []byte) (domain.CacheEntry, error) {
	var e domain.CacheEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return e, nil
}

// queueRecord is the persisted form of the queue.
type queueRecord struct {
	Version int                      `json:"version"`
	SavedAt time.Time                `json:"saved_at"`
	Items   []domain.QueuedOperation `json:"items"`
}

// EncodeQueue serializes the full queue in order.
func EncodeQueue(items []domain.QueuedOperation, savedAt time.Time) ([]byte, error) {
	if items == nil {
		items = []domain.QueuedOperation{}
	}
	b, err := json.Marshal(queueRecord{Version: queueVersion, SavedAt: savedAt, Items: items})
	if err != nil {
		return nil, fmt.Errorf("encode queue: %w", err)
	}
	return b, nil
}

// DecodeQueue deserializes a queue record. A bare JSON array is also accepted.
func DecodeQueue(b []byte) ([]domain.QueuedOperation, error) {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "[") {
		var items []domain.QueuedOperation
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, fmt.Errorf("decode queue: %w", err)
		}
		return items, nil
	}

	var rec queueRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	if rec.Version > queueVersion {
		return nil, fmt.Errorf("decode queue: unsupported version %d", rec.Version)
	}
	return rec.Items, nil
}
