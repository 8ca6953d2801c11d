package models

import "time"

// RoomOffer is a provider's quote for one room.
type RoomOffer struct {
	RoomID       string  `json:"roomId"`
	Type         string  `json:"type"`
	Description  string  `json:"description,omitempty"`
	BedType      string  `json:"bedType,omitempty"`
	MaxOccupancy int     `json:"maxOccupancy"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
}

// SearchContext is the stay an offer was quoted for.
type SearchContext struct {
	CheckIn  time.Time `json:"checkIn"`
	CheckOut time.Time `json:"checkOut"`
	Adults   int       `json:"adults"`
	Rooms    int       `json:"rooms"`
}

// HotelInfo is the hotel display data captured with an offer.
type HotelInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// CachedOffer is a frozen room offer held between room selection and booking.
type CachedOffer struct {
	Key             string        `json:"key"`
	Provider        string        `json:"provider"`
	ProviderHotelID string        `json:"providerHotelId"`
	Room            RoomOffer     `json:"room"`
	Search          SearchContext `json:"search"`
	Hotel           HotelInfo     `json:"hotel"`
	CreatedAt       time.Time     `json:"createdAt"`
	ExpiresAt       time.Time     `json:"expiresAt"`
}
