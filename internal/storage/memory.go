package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mschlosser22/travel-bids-sub001/internal/geo"
	"github.com/mschlosser22/travel-bids-sub001/internal/models"
)

// Memory is an in-process Store used when no database is configured and in
// tests. It enforces the same uniqueness rules as the relational schema.
type Memory struct {
	mu        sync.RWMutex
	hotels    map[string]*models.CanonicalHotel
	byRef     map[string]string
	byMapping map[string]string
	prices    map[string]models.PriceCacheEntry
}

func NewMemory() *Memory {
	return &Memory{
		hotels:    make(map[string]*models.CanonicalHotel),
		byRef:     make(map[string]string),
		byMapping: make(map[string]string),
		prices:    make(map[string]models.PriceCacheEntry),
	}
}

func mappingKey(provider, providerHotelID string) string {
	return provider + "\x00" + providerHotelID
}

func refKey(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}

func cloneHotel(h *models.CanonicalHotel) models.CanonicalHotel {
	out := *h
	out.Mappings = slices.Clone(h.Mappings)
	return out
}

func (m *Memory) GetHotel(_ context.Context, id string) (models.CanonicalHotel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hotels[id]
	if !ok {
		return models.CanonicalHotel{}, fmt.Errorf("hotel %s: %w", id, ErrNotFound)
	}
	return cloneHotel(h), nil
}

func (m *Memory) FindByMapping(_ context.Context, provider, providerHotelID string) (models.CanonicalHotel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byMapping[mappingKey(provider, providerHotelID)]
	if !ok {
		return models.CanonicalHotel{}, ErrNotFound
	}
	return cloneHotel(m.hotels[id]), nil
}

func (m *Memory) FindByExternalRef(_ context.Context, ref string) (models.CanonicalHotel, error) {
	if refKey(ref) == "" {
		return models.CanonicalHotel{}, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRef[refKey(ref)]
	if !ok {
		return models.CanonicalHotel{}, ErrNotFound
	}
	return cloneHotel(m.hotels[id]), nil
}

func (m *Memory) FindNear(_ context.Context, lat, lng, radius float64) ([]models.CanonicalHotel, error) {
	box := geo.BoundingBox(lat, lng, radius)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.CanonicalHotel
	for _, h := range m.hotels {
		if !box.Contains(h.Latitude, h.Longitude) {
			continue
		}
		if geo.Distance(lat, lng, h.Latitude, h.Longitude) <= radius {
			out = append(out, cloneHotel(h))
		}
	}
	// map iteration order is random; keep results stable
	slices.SortFunc(out, func(a, b models.CanonicalHotel) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) CreateHotel(_ context.Context, h models.CanonicalHotel) (models.CanonicalHotel, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rk := refKey(h.ExternalRef); rk != "" {
		if id, ok := m.byRef[rk]; ok {
			return cloneHotel(m.hotels[id]), false, nil
		}
	}
	for _, mp := range h.Mappings {
		if id, ok := m.byMapping[mappingKey(mp.Provider, mp.ProviderHotelID)]; ok {
			return models.CanonicalHotel{}, false, fmt.Errorf("mapping %s/%s already belongs to hotel %s", mp.Provider, mp.ProviderHotelID, id)
		}
	}

	stored := h
	stored.ID = uuid.NewString()
	stored.ExternalRef = refKey(h.ExternalRef)
	stored.Mappings = slices.Clone(h.Mappings)
	m.hotels[stored.ID] = &stored
	if rk := refKey(h.ExternalRef); rk != "" {
		m.byRef[rk] = stored.ID
	}
	for _, mp := range stored.Mappings {
		m.byMapping[mappingKey(mp.Provider, mp.ProviderHotelID)] = stored.ID
	}
	return cloneHotel(&stored), true, nil
}

func (m *Memory) UpsertMapping(_ context.Context, hotelID string, mp models.ProviderMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hotels[hotelID]
	if !ok {
		return fmt.Errorf("hotel %s: %w", hotelID, ErrNotFound)
	}
	key := mappingKey(mp.Provider, mp.ProviderHotelID)
	if owner, ok := m.byMapping[key]; ok && owner != hotelID {
		return fmt.Errorf("mapping %s/%s already belongs to hotel %s", mp.Provider, mp.ProviderHotelID, owner)
	}
	for i, existing := range h.Mappings {
		if existing.Provider == mp.Provider {
			delete(m.byMapping, mappingKey(existing.Provider, existing.ProviderHotelID))
			h.Mappings[i] = mp
			m.byMapping[key] = hotelID
			return nil
		}
	}
	h.Mappings = append(h.Mappings, mp)
	m.byMapping[key] = hotelID
	return nil
}

func (m *Memory) GetPriceEntry(_ context.Context, key models.PriceKey) (models.PriceCacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.prices[key.String()]
	if !ok {
		return models.PriceCacheEntry{}, ErrNotFound
	}
	e.Prices = slices.Clone(e.Prices)
	return e, nil
}

func (m *Memory) UpsertPriceEntry(_ context.Context, e models.PriceCacheEntry) error {
	e.Prices = slices.Clone(e.Prices)
	m.mu.Lock()
	m.prices[e.Key.String()] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) PruneExpiredPrices(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.prices {
		if !now.Before(e.ExpiresAt) {
			delete(m.prices, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
