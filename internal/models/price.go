package models

import (
	"fmt"
	"time"
)

// PriceKey identifies a price cache entry.
type PriceKey struct {
	HotelID  string    `json:"hotelId"`
	CheckIn  time.Time `json:"checkIn"`
	CheckOut time.Time `json:"checkOut"`
	Adults   int       `json:"adults"`
	Rooms    int       `json:"rooms"`
}

func (k PriceKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d|%d", k.HotelID, k.CheckIn.Format("2006-01-02"), k.CheckOut.Format("2006-01-02"), k.Adults, k.Rooms)
}

// PriceObservation is one provider's price for the keyed stay.
type PriceObservation struct {
	Provider        string  `json:"provider"`
	ProviderHotelID string  `json:"providerHotelId"`
	Price           float64 `json:"price"`
	PricePerNight   float64 `json:"pricePerNight"`
	Currency        string  `json:"currency"`
	Available       bool    `json:"available"`
}

// PriceCacheEntry is an aggregated price snapshot for one hotel and stay.
type PriceCacheEntry struct {
	Key            PriceKey           `json:"key"`
	Prices         []PriceObservation `json:"prices"`
	LowestPrice    float64            `json:"lowestPrice"`
	LowestProvider string             `json:"lowestProvider"`
	Currency       string             `json:"currency"`
	CachedAt       time.Time          `json:"cachedAt"`
	ExpiresAt      time.Time          `json:"expiresAt"`
}
