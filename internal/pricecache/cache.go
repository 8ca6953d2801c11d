// Package pricecache keeps short-lived price snapshots per hotel and stay,
// and refreshes them from providers on demand.
package pricecache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/obs"
	"github.com/mschlosser22/travel-bids-sub001/internal/storage"
	"github.com/mschlosser22/travel-bids-sub001/internal/validator"
)

const (
	DefaultFreshness = 5 * time.Minute
	DefaultTTL       = 10 * time.Minute
)

// Cache reads and writes price entries in a storage.PriceStore. An entry
// is served until ExpiresAt; it only counts as fresh while younger than
// the freshness window.
type Cache struct {
	store     storage.PriceStore
	freshness time.Duration
	ttl       time.Duration
	metrics   *obs.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewCache(store storage.PriceStore, freshness, ttl time.Duration, m *obs.Metrics, logger *slog.Logger) *Cache {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, freshness: freshness, ttl: ttl, metrics: m, logger: logger, now: time.Now}
}

// SetClock replaces the time source.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

// Lookup returns the entry for key, or nil when absent or past hard
// expiry. fresh reports whether the entry may be served without a
// re-fetch. Store errors read as a miss.
func (c *Cache) Lookup(ctx context.Context, key models.PriceKey) (entry *models.PriceCacheEntry, fresh bool) {
	e, err := c.store.GetPriceEntry(ctx, normalizeKey(key))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.metrics.IncPriceCacheLookup("miss")
		} else {
			c.logger.Warn("price cache read failed", "key", key.String(), "error", err)
			c.metrics.IncPriceCacheLookup("error")
		}
		return nil, false
	}

	now := c.now()
	if !now.Before(e.ExpiresAt) {
		c.metrics.IncPriceCacheLookup("expired")
		return nil, false
	}
	if now.Sub(e.CachedAt) < c.freshness {
		c.metrics.IncPriceCacheLookup("hit")
		return &e, true
	}
	c.metrics.IncPriceCacheLookup("stale")
	return &e, false
}

// Store stamps entry with CachedAt and ExpiresAt and upserts it,
// replacing any entry under the same key. The stamped entry is returned
// even when the write fails.
func (c *Cache) Store(ctx context.Context, entry models.PriceCacheEntry) (models.PriceCacheEntry, error) {
	now := c.now()
	entry.Key = normalizeKey(entry.Key)
	entry.CachedAt = now
	entry.ExpiresAt = now.Add(c.ttl)
	if err := c.store.UpsertPriceEntry(ctx, entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// Prune removes entries past hard expiry.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	return c.store.PruneExpiredPrices(ctx, c.now())
}

func normalizeKey(k models.PriceKey) models.PriceKey {
	k.CheckIn = validator.DateOnly(k.CheckIn)
	k.CheckOut = validator.DateOnly(k.CheckOut)
	return k
}
