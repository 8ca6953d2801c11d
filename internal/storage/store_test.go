package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/storage"
)

// backends runs fn against every Store implementation. The gorm store is
// backed by a throwaway SQLite file; its upserts use the same ON CONFLICT
// clauses as on postgres.
func backends(t *testing.T, fn func(t *testing.T, st storage.Store)) {
	t.Run("Memory", func(t *testing.T) {
		fn(t, storage.NewMemory())
	})
	t.Run("Gorm", func(t *testing.T) {
		db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		st := storage.NewGorm(db)
		if err := st.Migrate(); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		fn(t, st)
	})
}

func TestStore_CreateAndFind(t *testing.T) {
	backends(t, func(t *testing.T, st storage.Store) {
		ctx := context.Background()
		h, created, err := st.CreateHotel(ctx, models.CanonicalHotel{
			Name: "Hotel Atlas", City: "paris", Latitude: 48.85, Longitude: 2.35, ExternalRef: "REF-1",
			Mappings: []models.ProviderMapping{{Provider: "p1", ProviderHotelID: "A1", IncludeInAds: true}},
		})
		if err != nil || !created {
			t.Fatalf("expected creation, got created=%v err=%v", created, err)
		}
		if h.ID == "" {
			t.Fatal("expected an id to be assigned")
		}

		byRef, err := st.FindByExternalRef(ctx, " ref-1 ")
		if err != nil || byRef.ID != h.ID {
			t.Fatalf("expected lookup by ref to find %s, got %+v err=%v", h.ID, byRef, err)
		}
		byMap, err := st.FindByMapping(ctx, "p1", "A1")
		if err != nil || byMap.ID != h.ID {
			t.Fatalf("expected lookup by mapping to find %s, got %+v err=%v", h.ID, byMap, err)
		}
		if len(byMap.Mappings) != 1 || !byMap.Mappings[0].IncludeInAds {
			t.Fatalf("expected the mapping to be loaded, got %+v", byMap.Mappings)
		}
		if _, err := st.FindByMapping(ctx, "p2", "A1"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := st.FindByExternalRef(ctx, "  "); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for blank ref, got %v", err)
		}
		if _, err := st.GetHotel(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_CreateHotelReturnsExistingOnRefConflict(t *testing.T) {
	backends(t, func(t *testing.T, st storage.Store) {
		ctx := context.Background()
		first, _, err := st.CreateHotel(ctx, models.CanonicalHotel{Name: "A", ExternalRef: "REF-1", Latitude: 1, Longitude: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, created, err := st.CreateHotel(ctx, models.CanonicalHotel{Name: "A again", ExternalRef: "ref-1", Latitude: 1, Longitude: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created {
			t.Fatal("expected existing hotel, not a new one")
		}
		if second.ID != first.ID || second.Name != "A" {
			t.Fatalf("expected %s, got %+v", first.ID, second)
		}
	})
}

func TestStore_BlankRefsDoNotCollide(t *testing.T) {
	backends(t, func(t *testing.T, st storage.Store) {
		ctx := context.Background()
		a, createdA, errA := st.CreateHotel(ctx, models.CanonicalHotel{Name: "A", Latitude: 1, Longitude: 1})
		b, createdB, errB := st.CreateHotel(ctx, models.CanonicalHotel{Name: "B", Latitude: 1, Longitude: 1})
		if errA != nil || errB != nil || !createdA || !createdB || a.ID == b.ID {
			t.Fatalf("expected two hotels, got %+v %+v (%v, %v)", a, b, errA, errB)
		}
	})
}

func TestStore_UpsertMapping(t *testing.T) {
	backends(t, func(t *testing.T, st storage.Store) {
		ctx := context.Background()
		h, _, _ := st.CreateHotel(ctx, models.CanonicalHotel{Name: "A", Latitude: 1, Longitude: 1})
		other, _, _ := st.CreateHotel(ctx, models.CanonicalHotel{Name: "B", Latitude: 2, Longitude: 2})

		if err := st.UpsertMapping(ctx, h.ID, models.ProviderMapping{Provider: "p1", ProviderHotelID: "old"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := st.UpsertMapping(ctx, h.ID, models.ProviderMapping{Provider: "p1", ProviderHotelID: "new", IncludeInAds: true}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := st.GetHotel(ctx, h.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Mappings) != 1 || got.Mappings[0].ProviderHotelID != "new" || !got.Mappings[0].IncludeInAds {
			t.Fatalf("expected the p1 mapping to be replaced, got %+v", got.Mappings)
		}
		if _, err := st.FindByMapping(ctx, "p1", "old"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected old mapping to be gone, got %v", err)
		}
		if found, err := st.FindByMapping(ctx, "p1", "new"); err != nil || found.ID != h.ID {
			t.Fatalf("expected new mapping on %s, got %+v err=%v", h.ID, found, err)
		}
		if err := st.UpsertMapping(ctx, other.ID, models.ProviderMapping{Provider: "p1", ProviderHotelID: "new"}); err == nil {
			t.Fatal("expected conflict when mapping already belongs to another hotel")
		}
		if err := st.UpsertMapping(ctx, "missing", models.ProviderMapping{Provider: "p9", ProviderHotelID: "x"}); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_FindNear(t *testing.T) {
	backends(t, func(t *testing.T, st storage.Store) {
		ctx := context.Background()
		near, _, _ := st.CreateHotel(ctx, models.CanonicalHotel{Name: "Near", Latitude: 48.8584, Longitude: 2.2945})
		_, _, _ = st.CreateHotel(ctx, models.CanonicalHotel{Name: "Far", Latitude: 48.8606, Longitude: 2.3376})
		// inside the bounding box corner but outside the circle
		_, _, _ = st.CreateHotel(ctx, models.CanonicalHotel{Name: "Corner", Latitude: 48.8610, Longitude: 2.2975})

		got, err := st.FindNear(ctx, 48.8590, 2.2945, 250)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].ID != near.ID {
			t.Fatalf("expected only the near hotel, got %+v", got)
		}
	})
}

func TestStore_PriceEntries(t *testing.T) {
	backends(t, func(t *testing.T, st storage.Store) {
		ctx := context.Background()
		now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
		in := time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC)
		key := models.PriceKey{HotelID: "h1", CheckIn: in, CheckOut: in.AddDate(0, 0, 2), Adults: 2, Rooms: 1}
		otherKey := key
		otherKey.Adults = 3

		if _, err := st.GetPriceEntry(ctx, key); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		entry := func(k models.PriceKey, price float64, expires time.Time) models.PriceCacheEntry {
			return models.PriceCacheEntry{
				Key:         k,
				Prices:      []models.PriceObservation{{Provider: "p1", Price: price}},
				LowestPrice: price, LowestProvider: "p1", Currency: "EUR",
				CachedAt: now, ExpiresAt: expires,
			}
		}
		for _, e := range []models.PriceCacheEntry{
			entry(key, 100, now.Add(time.Minute)),
			entry(key, 90, now.Add(time.Minute)),
			entry(otherKey, 70, now.Add(time.Hour)),
		} {
			if err := st.UpsertPriceEntry(ctx, e); err != nil {
				t.Fatalf("upsert: %v", err)
			}
		}

		got, err := st.GetPriceEntry(ctx, key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.LowestPrice != 90 || len(got.Prices) != 1 || got.Prices[0].Price != 90 {
			t.Fatalf("expected last write to win, got %+v", got)
		}
		if got.Key.String() != key.String() || !got.ExpiresAt.Equal(now.Add(time.Minute)) {
			t.Fatalf("unexpected key or expiry: %+v", got)
		}
		if other, err := st.GetPriceEntry(ctx, otherKey); err != nil || other.LowestPrice != 70 {
			t.Fatalf("expected the other key to be separate, got %+v err=%v", other, err)
		}

		n, err := st.PruneExpiredPrices(ctx, now.Add(time.Minute))
		if err != nil || n != 1 {
			t.Fatalf("expected one pruned entry, got %d err=%v", n, err)
		}
		if _, err := st.GetPriceEntry(ctx, key); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected pruned entry to be gone, got %v", err)
		}
		if _, err := st.GetPriceEntry(ctx, otherKey); err != nil {
			t.Fatalf("expected unexpired entry to survive: %v", err)
		}
	})
}
