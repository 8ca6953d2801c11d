package pricecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/search"
	"github.com/mschlosser22/travel-bids-sub001/internal/storage"
)

var (
	ErrHotelNotFound = errors.New("canonical hotel not found")
	ErrNoOffers      = errors.New("no provider offers for hotel")
)

// Fanout is the part of search.Coordinator the refresh path needs.
type Fanout interface {
	Search(ctx context.Context, params models.SearchParams, targets ...string) (search.Fanout, error)
}

// RefreshResult is a price entry plus where it came from.
type RefreshResult struct {
	Entry  models.PriceCacheEntry `json:"entry"`
	Cached bool                   `json:"cached"`
	Stale  bool                   `json:"stale"`
}

// Refresher serves price entries for one canonical hotel, re-fetching
// from the hotel's mapped providers when the cache is not fresh.
type Refresher struct {
	cache  *Cache
	hotels storage.HotelStore
	fanout Fanout
	known  func(provider string) bool
	logger *slog.Logger
	group  singleflight.Group
}

// NewRefresher creates a Refresher. known filters mapped providers down to
// those currently registered.
func NewRefresher(cache *Cache, hotels storage.HotelStore, fanout Fanout, known func(provider string) bool, logger *slog.Logger) *Refresher {
	return &Refresher{cache: cache, hotels: hotels, fanout: fanout, known: known, logger: logger}
}

// Refresh returns a fresh cached entry when there is one. Otherwise it
// queries every registered provider mapped to the hotel, keeps each
// provider's offer for exactly the mapped hotel id, stores the new entry
// and returns it. When the live fetch yields nothing a stale entry is
// returned if one exists. Concurrent refreshes of one key share a fetch.
func (r *Refresher) Refresh(ctx context.Context, key models.PriceKey) (RefreshResult, error) {
	key = normalizeKey(key)
	v, err, _ := r.group.Do(key.String(), func() (any, error) {
		// shared by every waiter, so one caller going away must not cancel it
		return r.refresh(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return RefreshResult{}, err
	}
	return v.(RefreshResult), nil
}

func (r *Refresher) refresh(ctx context.Context, key models.PriceKey) (RefreshResult, error) {
	cached, fresh := r.cache.Lookup(ctx, key)
	if fresh {
		return RefreshResult{Entry: *cached, Cached: true}, nil
	}
	fallback := func(cause error) (RefreshResult, error) {
		if cached != nil {
			r.logger.Warn("serving stale price entry", "key", key.String(), "cause", cause)
			return RefreshResult{Entry: *cached, Stale: true}, nil
		}
		return RefreshResult{}, cause
	}

	hotel, err := r.hotels.GetHotel(ctx, key.HotelID)
	if errors.Is(err, storage.ErrNotFound) {
		return RefreshResult{}, fmt.Errorf("%w: %s", ErrHotelNotFound, key.HotelID)
	}
	if err != nil {
		return fallback(fmt.Errorf("load hotel %s: %w", key.HotelID, err))
	}

	want := make(map[string]string, len(hotel.Mappings))
	var targets []string
	for _, m := range hotel.Mappings {
		if r.known != nil && !r.known(m.Provider) {
			continue
		}
		if _, dup := want[m.Provider]; dup {
			continue
		}
		want[m.Provider] = m.ProviderHotelID
		targets = append(targets, m.Provider)
	}
	if len(targets) == 0 {
		return fallback(fmt.Errorf("%w: %s has no registered provider mappings", ErrNoOffers, key.HotelID))
	}

	params := models.SearchParams{
		City:      hotel.City,
		CheckIn:   key.CheckIn,
		CheckOut:  key.CheckOut,
		Adults:    key.Adults,
		Rooms:     key.Rooms,
		HotelName: hotel.Name,
	}
	fan, err := r.fanout.Search(ctx, params, targets...)
	if errors.Is(err, search.ErrInvalidParams) {
		return RefreshResult{}, err
	}
	if err != nil {
		return fallback(fmt.Errorf("price fan-out: %w", err))
	}

	entry, ok := aggregate(key, fan.Results, want)
	if !ok {
		return fallback(fmt.Errorf("%w: %s", ErrNoOffers, key.HotelID))
	}

	stored, err := r.cache.Store(ctx, entry)
	if err != nil {
		r.logger.Warn("price cache write failed", "key", key.String(), "error", err)
	}
	r.logger.Info("price entry refreshed",
		"key", key.String(),
		"providers", len(targets),
		"observations", len(stored.Prices),
		"lowest_provider", stored.LowestProvider,
		"lowest_price", stored.LowestPrice)
	return RefreshResult{Entry: stored}, nil
}

// aggregate keeps the first result per provider whose id matches the
// mapping and picks the lowest available price. Results arrive in
// provider registration order, so ties go to the first registered.
func aggregate(key models.PriceKey, results []models.RawHotelResult, want map[string]string) (models.PriceCacheEntry, bool) {
	entry := models.PriceCacheEntry{Key: key, Prices: []models.PriceObservation{}}
	seen := make(map[string]bool, len(want))
	lowest := -1
	for _, res := range results {
		id, ok := want[res.Provider]
		if !ok || seen[res.Provider] || res.ProviderHotelID != id {
			continue
		}
		if !(res.Price > 0) {
			continue
		}
		seen[res.Provider] = true
		entry.Prices = append(entry.Prices, models.PriceObservation{
			Provider:        res.Provider,
			ProviderHotelID: res.ProviderHotelID,
			Price:           res.Price,
			PricePerNight:   res.PricePerNight,
			Currency:        res.Currency,
			Available:       res.Available,
		})
		i := len(entry.Prices) - 1
		if res.Available && (lowest < 0 || res.Price < entry.Prices[lowest].Price) {
			lowest = i
		}
	}
	if lowest < 0 {
		return entry, false
	}
	entry.LowestPrice = entry.Prices[lowest].Price
	entry.LowestProvider = entry.Prices[lowest].Provider
	entry.Currency = entry.Prices[lowest].Currency
	return entry, true
}
