// Package storage persists canonical hotels, their provider mappings and
// price cache rows.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mschlosser22/travel-bids-sub001/internal/models"
)

var ErrNotFound = errors.New("not found")

// HotelStore holds canonical hotel identities.
type HotelStore interface {
	GetHotel(ctx context.Context, id string) (models.CanonicalHotel, error)
	FindByMapping(ctx context.Context, provider, providerHotelID string) (models.CanonicalHotel, error)
	FindByExternalRef(ctx context.Context, ref string) (models.CanonicalHotel, error)
	// FindNear returns hotels within radius meters of (lat, lng).
	FindNear(ctx context.Context, lat, lng, radius float64) ([]models.CanonicalHotel, error)
	// CreateHotel stores h with a fresh id. When a hotel with the same
	// external ref exists it is returned instead, with created=false.
	CreateHotel(ctx context.Context, h models.CanonicalHotel) (hotel models.CanonicalHotel, created bool, err error)
	UpsertMapping(ctx context.Context, hotelID string, m models.ProviderMapping) error
}

// PriceStore holds price cache rows keyed by the five-part price key.
type PriceStore interface {
	GetPriceEntry(ctx context.Context, key models.PriceKey) (models.PriceCacheEntry, error)
	UpsertPriceEntry(ctx context.Context, e models.PriceCacheEntry) error
	PruneExpiredPrices(ctx context.Context, now time.Time) (int64, error)
}

// Store is everything the service persists.
type Store interface {
	HotelStore
	PriceStore
	Close() error
}
