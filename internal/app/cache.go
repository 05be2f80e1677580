package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/courier/internal/codec"
	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/internal/ports"
	"github.com/bft-labs/courier/pkg/log"
)

// DefaultMaxCacheAge is how long a cache entry stays readable.
const DefaultMaxCacheAge = 24 * time.Hour

// Cache is a persisted key/value store of domain snapshots with a fixed
// maximum age. Memory is authoritative for reads; storage is written
// through on every mutation and consulted on a memory miss.
type Cache struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
	maxAge  time.Duration

	// persistMu serializes every storage access that can race a memory
	// change. Lock order is persistMu then mu.
	persistMu sync.Mutex

	storage ports.Storage
	events  *Events
	logger  log.Logger
	now     func() time.Time
}

// NewCache creates an empty cache. Call Load to rehydrate from storage.
func NewCache(storage ports.Storage, events *Events, logger log.Logger, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Cache{
		entries: make(map[string]domain.CacheEntry),
		maxAge:  DefaultMaxCacheAge,
		storage: storage,
		events:  events,
		logger:  log.With(logger, log.String("component", "cache")),
		now:     now,
	}
}

// SetMaxAge changes the expiry window for all entries.
func (c *Cache) SetMaxAge(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.maxAge = d
	c.mu.Unlock()
}

// MaxAge returns the current expiry window.
func (c *Cache) MaxAge() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxAge
}

// Put stores payload under key, replacing any prior entry, and persists it
// before returning. A storage failure is logged; the memory write stands.
func (c *Cache) Put(ctx context.Context, key string, payload json.RawMessage, category string) {
	entry := domain.NewCacheEntry(key, payload, category, c.now())

	c.persistMu.Lock()
	c.mu.Lock()
	c.entries[key] = entry
	count := len(c.entries)
	c.mu.Unlock()

	c.write(ctx, entry)
	c.persistMu.Unlock()

	if c.events != nil {
		c.events.Emit(domain.ChannelDataCached, domain.DataCached{
			Key:      key,
			Category: entry.Category,
			Count:    count,
		})
	}
}

func (c *Cache) write(ctx context.Context, entry domain.CacheEntry) {
	b, err := codec.EncodeEntry(entry)
	if err != nil {
		c.logger.Warn("encode entry failed", log.String("key", entry.Key), log.Err(err))
		return
	}
	if err := c.storage.Set(ctx, codec.CacheRecordName(entry.Key), b); err != nil {
		c.logger.Warn("persist entry failed", log.String("key", entry.Key), log.Err(err))
	}
}

// Get returns the payload for key. Expired entries are evicted from memory
// and storage and reported absent, as is any storage or decode failure.
func (c *Cache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	entry, ok := c.lookup(ctx, key)
	if !ok {
		return nil, false
	}
	return entry.Payload, true
}

// Entry is like Get but returns the whole entry.
func (c *Cache) Entry(ctx context.Context, key string) (domain.CacheEntry, bool) {
	return c.lookup(ctx, key)
}

func (c *Cache) lookup(ctx context.Context, key string) (domain.CacheEntry, bool) {
	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	fresh := ok && !entry.Expired(now, c.maxAge)
	c.mu.Unlock()
	if fresh {
		return entry, true
	}

	// Eviction and hydration touch storage, so they are ordered with Put
	// and Remove through persistMu and re-check memory under it.
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	entry, ok = c.entries[key]
	maxAge := c.maxAge
	if ok && !entry.Expired(now, maxAge) {
		c.mu.Unlock()
		return entry, true
	}
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if ok {
		c.removeRecord(ctx, key)
		return domain.CacheEntry{}, false
	}

	b, err := c.storage.Get(ctx, codec.CacheRecordName(key))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("read entry failed", log.String("key", key), log.Err(err))
		}
		return domain.CacheEntry{}, false
	}
	entry, err = codec.DecodeEntry(b)
	if err != nil {
		c.logger.Warn("corrupt entry", log.String("key", key), log.Err(err))
		return domain.CacheEntry{}, false
	}
	if entry.Expired(now, maxAge) {
		c.removeRecord(ctx, key)
		return domain.CacheEntry{}, false
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return entry, true
}

// removeRecord deletes the stored record. Callers hold persistMu.
func (c *Cache) removeRecord(ctx context.Context, key string) {
	if err := c.storage.Remove(ctx, codec.CacheRecordName(key)); err != nil {
		c.logger.Warn("remove entry failed", log.String("key", key), log.Err(err))
	}
}

// Remove deletes key from memory and storage. Absent keys are ignored.
func (c *Cache) Remove(ctx context.Context, key string) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	c.removeRecord(ctx, key)
}

// SweepExpired evicts every expired entry and returns how many were removed.
func (c *Cache) SweepExpired(ctx context.Context) int {
	now := c.now()

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	var expired []string
	for key, entry := range c.entries {
		if entry.Expired(now, c.maxAge) {
			expired = append(expired, key)
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	for _, key := range expired {
		c.removeRecord(ctx, key)
	}
	if len(expired) > 0 {
		c.logger.Debug("swept expired entries", log.Int("count", len(expired)))
	}
	return len(expired)
}

// Load rehydrates memory from every cache record in storage. Expired and
// unreadable records are removed.
func (c *Cache) Load(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	names, err := c.storage.ListKeys(ctx)
	if err != nil {
		return err
	}

	now := c.now()
	c.mu.Lock()
	maxAge := c.maxAge
	c.mu.Unlock()
	loaded := make(map[string]domain.CacheEntry)
	var stale []string

	for _, name := range names {
		key, ok := codec.CacheKey(name)
		if !ok {
			continue
		}
		b, err := c.storage.Get(ctx, name)
		if err != nil {
			c.logger.Warn("read entry failed", log.String("key", key), log.Err(err))
			continue
		}
		entry, err := codec.DecodeEntry(b)
		if err != nil {
			c.logger.Warn("dropping corrupt entry", log.String("key", key), log.Err(err))
			stale = append(stale, key)
			continue
		}
		if entry.Expired(now, maxAge) {
			stale = append(stale, key)
			continue
		}
		entry.Key = key
		loaded[key] = entry
	}

	c.mu.Lock()
	for key, entry := range loaded {
		if _, ok := c.entries[key]; !ok {
			c.entries[key] = entry
		}
	}
	// Keys put before Load own their record.
	var drop []string
	for _, key := range stale {
		if _, ok := c.entries[key]; !ok {
			drop = append(drop, key)
		}
	}
	c.mu.Unlock()
	for _, key := range drop {
		c.removeRecord(ctx, key)
	}

	c.logger.Info("cache loaded",
		log.Int("entries", len(loaded)),
		log.Int("dropped", len(stale)),
	)
	return nil
}

// Len returns the number of entries in memory, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the keys currently held in memory.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}
