package matching_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/mschlosser22/travel-bids-sub001/internal/matching"
	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/obs"
	"github.com/mschlosser22/travel-bids-sub001/internal/storage"
)

// meters per degree of latitude on the haversine sphere
const metersPerDegree = 6371000.0 * 3.141592653589793 / 180.0

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newEngine(st storage.HotelStore) *matching.Engine {
	return matching.NewEngine(st, matching.DefaultConfig(), obs.NewNop(), discardLogger())
}

func raw(provider, id, name string, lat, lng float64) models.RawHotelResult {
	return models.RawHotelResult{
		Provider: provider, ProviderHotelID: id, Name: name, City: "paris",
		Latitude: &lat, Longitude: &lng, Price: 100, Currency: "EUR",
	}
}

func seed(t *testing.T, st *storage.Memory, h models.CanonicalHotel) models.CanonicalHotel {
	t.Helper()
	out, _, err := st.CreateHotel(context.Background(), h)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return out
}

func TestEngine_ExistingMapping(t *testing.T) {
	st := storage.NewMemory()
	h := seed(t, st, models.CanonicalHotel{Name: "Atlas", Latitude: 10, Longitude: 10,
		Mappings: []models.ProviderMapping{{Provider: "p1", ProviderHotelID: "A1", IncludeInAds: false}}})

	res := newEngine(st).Match(context.Background(), raw("p1", "A1", "Completely Different", 50, 50))
	if res.CanonicalID != h.ID || res.Confidence != 1 || res.Method != models.MatchMapping {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ShouldAdvertise {
		t.Fatal("mapping excluded from ads must not advertise")
	}
}

func TestEngine_ExternalRef(t *testing.T) {
	st := storage.NewMemory()
	h := seed(t, st, models.CanonicalHotel{Name: "Atlas", ExternalRef: "place-1", Latitude: 10, Longitude: 10})

	r := raw("p2", "B1", "Atlas", 11, 11)
	r.ExternalRef = "PLACE-1"
	res := newEngine(st).Match(context.Background(), r)
	if res.CanonicalID != h.ID || res.Confidence != 1 || !res.ShouldAdvertise || res.Method != models.MatchExact {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := st.FindByMapping(context.Background(), "p2", "B1"); err != nil {
		t.Fatalf("expected the mapping to be recorded: %v", err)
	}
}

func TestEngine_GeoAndName(t *testing.T) {
	tests := []struct {
		name          string
		rawName       string
		offsetMeters  float64
		wantSame      bool
		wantAdvertise bool
		wantMethod    models.MatchMethod
	}{
		{"IdenticalSpot", "Atlas Hotel", 0, true, true, models.MatchGeo},
		{"NearButNotExact", "Hotel Atlas", 100, true, false, models.MatchGeo},
		{"TooFarForSameName", "Hotel Atlas", 200, false, true, models.MatchCreated},
		{"DifferentName", "Grand Plaza", 0, false, true, models.MatchCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := storage.NewMemory()
			h := seed(t, st, models.CanonicalHotel{Name: "Hotel Atlas", Latitude: 48.85, Longitude: 2.35})

			r := raw("p2", "B1", tt.rawName, 48.85+tt.offsetMeters/metersPerDegree, 2.35)
			res := newEngine(st).Match(context.Background(), r)

			if (res.CanonicalID == h.ID) != tt.wantSame {
				t.Fatalf("same=%v, got %+v", tt.wantSame, res)
			}
			if res.CanonicalID == "" {
				t.Fatal("expected a canonical id")
			}
			if res.ShouldAdvertise != tt.wantAdvertise {
				t.Fatalf("advertise=%v, got %+v", tt.wantAdvertise, res)
			}
			if res.Method != tt.wantMethod {
				t.Fatalf("method=%s, got %s", tt.wantMethod, res.Method)
			}
		})
	}
}

func TestEngine_SkipsCandidateAlreadyMappedForProvider(t *testing.T) {
	st := storage.NewMemory()
	h := seed(t, st, models.CanonicalHotel{Name: "Atlas", Latitude: 48.85, Longitude: 2.35,
		Mappings: []models.ProviderMapping{{Provider: "p1", ProviderHotelID: "A1"}}})

	res := newEngine(st).Match(context.Background(), raw("p1", "A2", "Atlas", 48.85, 2.35))
	if res.CanonicalID == h.ID {
		t.Fatal("a second listing from the same provider must not merge into the same hotel")
	}
}

func TestEngine_NoCoordinatesNoMatch(t *testing.T) {
	st := storage.NewMemory()
	r := models.RawHotelResult{Provider: "p1", ProviderHotelID: "A1", Name: "Atlas"}

	res := newEngine(st).Match(context.Background(), r)
	if res.CanonicalID != "" || res.ShouldAdvertise || res.Method != models.MatchNone {
		t.Fatalf("expected empty match, got %+v", res)
	}
}

type failingStore struct {
	*storage.Memory
	createErr error
}

func (f failingStore) CreateHotel(context.Context, models.CanonicalHotel) (models.CanonicalHotel, bool, error) {
	return models.CanonicalHotel{}, false, f.createErr
}

func TestEngine_CreateFailureDegradesToNoMatch(t *testing.T) {
	st := failingStore{Memory: storage.NewMemory(), createErr: errors.New("db down")}

	res := newEngine(st).Match(context.Background(), raw("p1", "A1", "Atlas", 1, 1))
	if res.CanonicalID != "" || res.ShouldAdvertise {
		t.Fatalf("expected empty match, got %+v", res)
	}
}

func TestEngine_MatchAllIsIndexAligned(t *testing.T) {
	st := storage.NewMemory()
	var raws []models.RawHotelResult
	for i := 0; i < 40; i++ {
		raws = append(raws, raw("p1", fmt.Sprintf("H%d", i), fmt.Sprintf("Hotel %d", i), float64(i), float64(i)))
	}
	raws = append(raws, models.RawHotelResult{Provider: "p1", ProviderHotelID: "nocoords", Name: "X"})

	res := newEngine(st).MatchAll(context.Background(), raws)
	if len(res) != len(raws) {
		t.Fatalf("expected %d results, got %d", len(raws), len(res))
	}
	for i := 0; i < 40; i++ {
		h, err := st.FindByMapping(context.Background(), "p1", fmt.Sprintf("H%d", i))
		if err != nil || h.ID != res[i].CanonicalID {
			t.Fatalf("result %d not aligned with its input: %+v", i, res[i])
		}
	}
	if res[40].CanonicalID != "" {
		t.Fatal("expected the last result to be unmatched")
	}
}
