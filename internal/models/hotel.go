package models

// RawHotelResult is one provider's view of one hotel for one search.
type RawHotelResult struct {
	Provider        string   `json:"provider"`
	ProviderHotelID string   `json:"providerHotelId"`
	Name            string   `json:"name"`
	Address         string   `json:"address"`
	City            string   `json:"city"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	// ExternalRef is a cross-provider identifier (e.g. a places id) when the
	// provider supplies one.
	ExternalRef    string   `json:"externalRef,omitempty"`
	Description    string   `json:"description,omitempty"`
	Price          float64  `json:"price"`
	PricePerNight  float64  `json:"pricePerNight"`
	Currency       string   `json:"currency"`
	Available      bool     `json:"available"`
	RoomsAvailable int      `json:"roomsAvailable"`
	Images         []string `json:"images,omitempty"`
	Amenities      []string `json:"amenities,omitempty"`

	// Populated by detail lookups only.
	Rooms              []RoomOffer `json:"rooms,omitempty"`
	CancellationPolicy string      `json:"cancellationPolicy,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (r RawHotelResult) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// ProviderMapping links a canonical hotel to one provider's local id.
type ProviderMapping struct {
	Provider        string `json:"provider"`
	ProviderHotelID string `json:"providerHotelId"`
	IncludeInAds    bool   `json:"includeInAds"`
}

// CanonicalHotel is the provider-independent identity of a physical hotel.
type CanonicalHotel struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	City        string            `json:"city"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	ExternalRef string            `json:"externalRef,omitempty"`
	Mappings    []ProviderMapping `json:"mappings"`
}

// Mapping returns the hotel's mapping for provider, if any.
func (h CanonicalHotel) Mapping(provider string) (ProviderMapping, bool) {
	for _, m := range h.Mappings {
		if m.Provider == provider {
			return m, true
		}
	}
	return ProviderMapping{}, false
}

type MatchMethod string

const (
	MatchNone    MatchMethod = "none"
	MatchMapping MatchMethod = "mapping"
	MatchExact   MatchMethod = "exact"
	MatchGeo     MatchMethod = "geo"
	MatchCreated MatchMethod = "created"
)

// MatchResult is the outcome of resolving one RawHotelResult. An empty
// CanonicalID means the result could not be matched or created.
type MatchResult struct {
	CanonicalID     string      `json:"canonicalId,omitempty"`
	CanonicalName   string      `json:"canonicalName,omitempty"`
	Confidence      float64     `json:"confidence"`
	ShouldAdvertise bool        `json:"shouldAdvertise"`
	Method          MatchMethod `json:"method"`
}

// Matched pairs a raw result with its match.
type Matched struct {
	Raw   RawHotelResult
	Match MatchResult
}

// Offer is one contributing provider price inside a unified listing.
type Offer struct {
	Provider        string  `json:"provider"`
	ProviderHotelID string  `json:"providerHotelId"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	Confidence      float64 `json:"confidence"`
}

// Data facets recorded in UnifiedHotelListing.DataSources.
const (
	FacetPricing     = "pricing"
	FacetImages      = "images"
	FacetAmenities   = "amenities"
	FacetDescription = "description"
)

// UnifiedHotelListing is the merged, user-facing record for one canonical hotel.
type UnifiedHotelListing struct {
	CanonicalID     string              `json:"canonicalId"`
	Name            string              `json:"name"`
	Address         string              `json:"address,omitempty"`
	Price           float64             `json:"price"`
	PricePerNight   float64             `json:"pricePerNight"`
	Currency        string              `json:"currency"`
	Provider        string              `json:"provider"`
	ProviderHotelID string              `json:"providerHotelId"`
	AllOffers       []Offer             `json:"allOffers"`
	Images          []string            `json:"images"`
	Amenities       []string            `json:"amenities"`
	Description     string              `json:"description,omitempty"`
	DataSources     map[string][]string `json:"dataSources"`
	ShouldAdvertise bool                `json:"shouldAdvertise"`
}
