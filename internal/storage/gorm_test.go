package storage

import (
	"testing"
	"time"

	"github.com/mschlosser22/travel-bids-sub001/internal/models"
)

func TestHotelRecord_EmptyRefIsNull(t *testing.T) {
	rec := hotelFromModel(models.CanonicalHotel{ID: "h1", Name: "A", ExternalRef: "  "})
	if rec.ExternalRef != nil {
		t.Fatal("blank external refs must be stored as NULL so the unique index ignores them")
	}
	if got := rec.toModel(); got.ExternalRef != "" || got.Mappings == nil {
		t.Fatalf("unexpected model %+v", got)
	}
}

func TestPriceRecord_KeepsObservations(t *testing.T) {
	in := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)
	e := models.PriceCacheEntry{
		Key: models.PriceKey{HotelID: "h1", CheckIn: in, CheckOut: in.AddDate(0, 0, 3), Adults: 2, Rooms: 1},
		Prices: []models.PriceObservation{
			{Provider: "p1", Price: 150}, {Provider: "p2", Price: 140},
		},
		LowestPrice: 140, LowestProvider: "p2", Currency: "EUR",
	}
	rec, err := priceFromModel(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := rec.toModel()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Prices) != 2 || got.Prices[1].Provider != "p2" || got.Key.String() != e.Key.String() {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestHotelRecord_FoldsRefCase(t *testing.T) {
	rec := hotelFromModel(models.CanonicalHotel{ID: "h1", Name: "A", ExternalRef: " REF-1 "})
	if rec.ExternalRef == nil || *rec.ExternalRef != "ref-1" {
		t.Fatalf("expected folded ref, got %v", rec.ExternalRef)
	}
}
