package providers

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/mschlosser22/travel-bids-sub001/internal/models"
)

// property is a physical hotel in the mock catalog. Each mock provider lists
// it under its own id, name spelling and price level.
type property struct {
	key       string
	names     []string
	dLat      float64
	dLng      float64
	ref       string
	base      float64
	images    []string
	amenities []string
}

var catalog = []property{
	{key: "atlas", names: []string{"Hotel Atlas", "Atlas Hotel", "The Atlas"}, dLat: 0.0012, dLng: 0.0031, ref: "ref-atlas", base: 129.90,
		images: []string{"atlas/front.jpg", "atlas/lobby.jpg"}, amenities: []string{"WiFi", "Pool", "Breakfast"}},
	{key: "sunset", names: []string{"Riad Sunset", "Sunset Riad", "Riad Sunset & Spa"}, dLat: -0.0042, dLng: 0.0015, ref: "ref-sunset", base: 99.50,
		images: []string{"sunset/pool.jpg"}, amenities: []string{"wifi", "Spa"}},
	{key: "pearl", names: []string{"Kasbah Pearl", "Pearl Kasbah Hotel", "Kasbah Pearl"}, dLat: 0.0071, dLng: -0.0026, ref: "ref-pearl", base: 132.00,
		images: []string{"pearl/room.jpg", "pearl/terrace.jpg"}, amenities: []string{"Parking", "WiFi"}},
}

// MockProvider serves a deterministic catalog with simulated latency and
// failures. Used when no provider registry file is configured.
type MockProvider struct {
	name       string
	index      int
	avgLatency float64
	failRate   float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockProvider creates a mock provider. index selects its name spelling
// and price level within the catalog.
func NewMockProvider(name string, index int, avgLatency, failRate float64, seedOffset int64) *MockProvider {
	seed := time.Now().UnixNano() + seedOffset
	return &MockProvider{name: name, index: index, avgLatency: avgLatency, failRate: failRate, rng: rand.New(rand.NewSource(seed))}
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) Search(ctx context.Context, params models.SearchParams) ([]models.RawHotelResult, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	hotels := make([]models.RawHotelResult, 0, len(catalog))
	for _, p := range catalog {
		hotels = append(hotels, m.result(p, params))
	}
	return hotels, nil
}

func (m *MockProvider) GetDetails(ctx context.Context, hotelID string, params models.SearchParams) (*models.RawHotelResult, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	for _, p := range catalog {
		if m.localID(p) != hotelID {
			continue
		}
		r := m.result(p, params)
		r.Rooms = []models.RoomOffer{
			{RoomID: hotelID + "-STD", Type: "standard", Description: "Standard double room", BedType: "double", MaxOccupancy: 2, Price: r.Price, Currency: r.Currency},
			{RoomID: hotelID + "-DLX", Type: "deluxe", Description: "Deluxe king room", BedType: "king", MaxOccupancy: 3, Price: r.Price * 1.4, Currency: r.Currency},
		}
		r.CancellationPolicy = "Free cancellation up to 48 hours before check-in"
		return &r, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrHotelNotFound, m.name, hotelID)
}

func (m *MockProvider) CancelBooking(ctx context.Context, providerBookingID string) (CancelResult, error) {
	if err := m.simulate(ctx); err != nil {
		return CancelResult{}, err
	}
	return CancelResult{Success: true, Message: "booking " + providerBookingID + " cancelled"}, nil
}

func (m *MockProvider) simulate(ctx context.Context) error {
	m.mu.Lock()
	latency := SampleLatencyFromRng(m.rng, m.avgLatency)
	fail := ShouldFailFromRng(m.rng, m.failRate)
	m.mu.Unlock()

	// variable latency and context cancelable
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return ctx.Err()
	}
	if fail {
		return errors.New("provider error (simulated)")
	}
	return nil
}

func (m *MockProvider) localID(p property) string {
	return fmt.Sprintf("%s-%s", m.name, p.key)
}

func (m *MockProvider) result(p property, params models.SearchParams) models.RawHotelResult {
	lat, lng := cityOrigin(params.City)
	lat += p.dLat
	lng += p.dLng
	nights := max(params.Nights(), 1)
	perNight := p.base * (1 + 0.05*float64(m.index)) * float64(max(params.Rooms, 1))
	r := models.RawHotelResult{
		Provider:        m.name,
		ProviderHotelID: m.localID(p),
		Name:            p.names[m.index%len(p.names)],
		Address:         fmt.Sprintf("%d Main Street, %s", 10+len(p.key), params.City),
		City:            params.City,
		Latitude:        &lat,
		Longitude:       &lng,
		Price:           perNight * float64(nights),
		PricePerNight:   perNight,
		Currency:        params.CurrencyOrDefault(),
		Available:       true,
		RoomsAvailable:  3 + m.index,
		Images:          p.images,
		Amenities:       p.amenities,
	}
	// every catalog shares the cross reference id, scoped to the city since
	// each city has its own copy of the property
	if p.ref != "" {
		r.ExternalRef = p.ref + "-" + strings.ToLower(strings.Join(strings.Fields(params.City), "-"))
	}
	return r
}

// cityOrigin spreads cities deterministically over the map so each city
// gets its own set of canonical hotels.
func cityOrigin(city string) (float64, float64) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(city))
	v := h.Sum32()
	return -40 + float64(v%8000)/100, -120 + float64((v/8000)%24000)/100
}

func SampleLatencyFromRng(rng *rand.Rand, avg float64) time.Duration {
	ms := float64(50) + rng.ExpFloat64()*avg*200.0
	return time.Duration(ms) * time.Millisecond
}

func ShouldFailFromRng(rng *rand.Rand, rate float64) bool {
	return rng.Float64() < rate
}
