package search_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mschlosser22/travel-bids-sub001/internal/matching"
	"github.com/mschlosser22/travel-bids-sub001/internal/merge"
	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/obs"
	"github.com/mschlosser22/travel-bids-sub001/internal/providers"
	"github.com/mschlosser22/travel-bids-sub001/internal/search"
	"github.com/mschlosser22/travel-bids-sub001/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	atlasLat = 48.8606
	atlasLng = 2.3376
)

func located(id string, price float64) models.RawHotelResult {
	lat, lng := atlasLat, atlasLng
	return models.RawHotelResult{
		ProviderHotelID: id,
		Name:            "Grand Atlas",
		Latitude:        &lat,
		Longitude:       &lng,
		Price:           price,
		PricePerNight:   price / 2,
		Currency:        "USD",
		Available:       true,
	}
}

// pipeline wires a Service with the real matching and merge engines over
// an in-memory store seeded with the Grand Atlas.
func pipeline(t *testing.T, ps ...providers.Provider) (*search.Service, *storage.Memory, string) {
	t.Helper()
	reg, err := providers.NewRegistry(ps...)
	if err != nil {
		t.Fatal(err)
	}
	m := obs.NewMetrics(prometheus.NewRegistry())
	store := storage.NewMemory()
	h, _, err := store.CreateHotel(context.Background(), models.CanonicalHotel{
		Name: "Grand Atlas", City: "Paris", Latitude: atlasLat, Longitude: atlasLng,
	})
	if err != nil {
		t.Fatal(err)
	}

	coord := search.NewCoordinator(reg, time.Second, m, discard)
	engine := matching.NewEngine(store, matching.DefaultConfig(), m, discard)
	merger := merge.NewMerger(reg.Rank, m, discard)
	return search.NewService(coord, engine, merger, m, discard, 5*time.Second), store, h.ID
}

func TestService_ThreeProvidersOneHotel(t *testing.T) {
	a := &stubProvider{name: "alpha", results: []models.RawHotelResult{located("a-1", 150)}}
	b := &stubProvider{name: "bravo", results: []models.RawHotelResult{located("b-1", 140)}}
	c := &stubProvider{name: "charlie", results: []models.RawHotelResult{located("c-1", 160)}}
	svc, store, id := pipeline(t, a, b, c)

	res, err := svc.Search(context.Background(), params(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Hotels) != 1 {
		t.Fatalf("expected 1 listing, got %d: %+v", len(res.Hotels), res.Hotels)
	}
	l := res.Hotels[0]
	if l.CanonicalID != id || l.Price != 140 || l.Provider != "bravo" || len(l.AllOffers) != 3 || !l.ShouldAdvertise {
		t.Fatalf("unexpected listing: %+v", l)
	}
	for _, o := range l.AllOffers {
		if o.Confidence < 0.99 {
			t.Errorf("offer %s confidence %v below advertise threshold", o.Provider, o.Confidence)
		}
	}
	if res.Stats.RawResults != 3 || res.Stats.Matched != 3 || res.Stats.Listed != 1 {
		t.Fatalf("unexpected stats: %+v", res.Stats)
	}

	// mappings were recorded, so the next search resolves by mapping
	h, err := store.GetHotel(context.Background(), id)
	if err != nil || len(h.Mappings) != 3 {
		t.Fatalf("expected 3 mappings, got %+v, %v", h.Mappings, err)
	}
	again, err := svc.Search(context.Background(), params(), "")
	if err != nil || len(again.Hotels) != 1 || again.Hotels[0].Price != 140 {
		t.Fatalf("second search = %+v, %v", again.Hotels, err)
	}
}

func TestService_FailingProviderDoesNotFailSearch(t *testing.T) {
	a := &stubProvider{name: "alpha", results: []models.RawHotelResult{located("a-1", 150)}}
	bad := &stubProvider{name: "broken", err: errors.New("always down")}
	c := &stubProvider{name: "charlie", results: []models.RawHotelResult{located("c-1", 160)}}
	svc, _, _ := pipeline(t, a, bad, c)

	for range 3 {
		res, err := svc.Search(context.Background(), params(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Hotels) != 1 || len(res.Hotels[0].AllOffers) != 2 || res.Hotels[0].Price != 150 {
			t.Fatalf("unexpected hotels: %+v", res.Hotels)
		}
		if res.Stats.ProvidersFailed != 1 || res.Stats.Failed[0] != "broken" {
			t.Fatalf("unexpected stats: %+v", res.Stats)
		}
	}
}

func TestService_InvalidParams(t *testing.T) {
	a := &stubProvider{name: "alpha"}
	svc, _, _ := pipeline(t, a)

	p := params()
	p.CheckOut = p.CheckIn
	if _, err := svc.Search(context.Background(), p, ""); !errors.Is(err, search.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	if a.calls.Load() != 0 {
		t.Fatal("provider called for invalid params")
	}
}

type panickingMatcher struct{}

func (panickingMatcher) MatchAll(context.Context, []models.RawHotelResult) []models.MatchResult {
	panic("index out of range")
}

func TestService_PanicBecomesSearchFailed(t *testing.T) {
	a := &stubProvider{name: "alpha", results: []models.RawHotelResult{located("a-1", 150)}}
	reg, _ := providers.NewRegistry(a)
	m := obs.NewMetrics(prometheus.NewRegistry())
	coord := search.NewCoordinator(reg, time.Second, m, discard)
	svc := search.NewService(coord, panickingMatcher{}, merge.NewMerger(reg.Rank, m, discard), m, discard, time.Second)

	if _, err := svc.Search(context.Background(), params(), ""); !errors.Is(err, search.ErrSearchFailed) {
		t.Fatalf("expected ErrSearchFailed, got %v", err)
	}
}

func TestService_SingleProvider(t *testing.T) {
	a := &stubProvider{name: "alpha", results: []models.RawHotelResult{located("a-1", 150)}}
	b := &stubProvider{name: "bravo", results: []models.RawHotelResult{located("b-1", 140)}}
	svc, _, _ := pipeline(t, a, b)

	res, err := svc.Search(context.Background(), params(), "alpha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.calls.Load() != 0 || len(res.Hotels) != 1 || res.Hotels[0].Provider != "alpha" {
		t.Fatalf("expected alpha only, got %+v", res.Hotels)
	}
}
