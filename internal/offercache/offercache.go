// Package offercache holds frozen room offers between room selection and
// booking confirmation.
package offercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mschlosser22/travel-bids-sub001/internal/kv"
	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/obs"
)

const DefaultTTL = 15 * time.Minute

const keyPrefix = "offer:"

// Cache stores offers in a kv.Store. Each entry carries its own ExpiresAt,
// so expiry does not depend on the backend's clock.
type Cache struct {
	store   kv.Store
	ttl     time.Duration
	metrics *obs.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func New(store kv.Store, ttl time.Duration, m *obs.Metrics, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, metrics: m, logger: logger, now: time.Now}
}

// SetClock replaces the time source.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

// Put freezes an offer and returns its key. Two puts of identical offers
// yield different keys.
func (c *Cache) Put(ctx context.Context, provider, providerHotelID string, room models.RoomOffer, search models.SearchContext, hotel models.HotelInfo) (string, error) {
	now := c.now()
	key := fmt.Sprintf("%s%s:%s:%s:%d:%s", keyPrefix, provider, providerHotelID, room.RoomID, now.UnixNano(), uuid.NewString())
	offer := models.CachedOffer{
		Key:             key,
		Provider:        provider,
		ProviderHotelID: providerHotelID,
		Room:            room,
		Search:          search,
		Hotel:           hotel,
		CreatedAt:       now,
		ExpiresAt:       now.Add(c.ttl),
	}
	b, err := json.Marshal(offer)
	if err != nil {
		c.metrics.IncOfferCacheOp("put", "error")
		return "", fmt.Errorf("encode offer: %w", err)
	}
	if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
		c.metrics.IncOfferCacheOp("put", "error")
		return "", fmt.Errorf("store offer: %w", err)
	}
	c.metrics.IncOfferCacheOp("put", "ok")
	return key, nil
}

// Get returns the offer under key. Absent, expired and unreadable entries
// all report false; an expired entry is deleted on the way out.
func (c *Cache) Get(ctx context.Context, key string) (*models.CachedOffer, bool) {
	b, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.logger.Warn("offer cache read failed", "key", key, "error", err)
			c.metrics.IncOfferCacheOp("get", "error")
			return nil, false
		}
		c.metrics.IncOfferCacheOp("get", "miss")
		return nil, false
	}

	var offer models.CachedOffer
	if err := json.Unmarshal(b, &offer); err != nil {
		c.logger.Warn("dropping undecodable offer", "key", key, "error", err)
		c.metrics.IncOfferCacheOp("get", "error")
		c.evict(ctx, key)
		return nil, false
	}
	if !c.now().Before(offer.ExpiresAt) {
		c.metrics.IncOfferCacheOp("get", "expired")
		c.evict(ctx, key)
		return nil, false
	}
	c.metrics.IncOfferCacheOp("get", "hit")
	return &offer, true
}

// Delete removes key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		c.metrics.IncOfferCacheOp("delete", "error")
		return fmt.Errorf("delete offer: %w", err)
	}
	c.metrics.IncOfferCacheOp("delete", "ok")
	return nil
}

func (c *Cache) evict(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("offer eviction failed", "key", key, "error", err)
	}
}
