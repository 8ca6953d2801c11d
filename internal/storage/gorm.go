package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mschlosser22/travel-bids-sub001/internal/geo"
	"github.com/mschlosser22/travel-bids-sub001/internal/models"
)

type hotelRecord struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)"`
	Name        string          `gorm:"type:varchar(256);not null"`
	City        string          `gorm:"type:varchar(128);index"`
	Latitude    float64         `gorm:"not null;index:idx_hotel_geo"`
	Longitude   float64         `gorm:"not null;index:idx_hotel_geo"`
	ExternalRef *string         `gorm:"type:varchar(128);uniqueIndex"`
	Mappings    []mappingRecord `gorm:"foreignKey:HotelID"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (hotelRecord) TableName() string { return "canonical_hotels" }

type mappingRecord struct {
	ID              uint   `gorm:"primaryKey"`
	HotelID         string `gorm:"type:varchar(64);not null;uniqueIndex:uq_hotel_provider"`
	Provider        string `gorm:"type:varchar(64);not null;uniqueIndex:uq_hotel_provider;uniqueIndex:uq_provider_hotel"`
	ProviderHotelID string `gorm:"type:varchar(128);not null;uniqueIndex:uq_provider_hotel"`
	IncludeInAds    bool   `gorm:"not null;default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (mappingRecord) TableName() string { return "provider_mappings" }

type priceRecord struct {
	ID             uint           `gorm:"primaryKey"`
	HotelID        string         `gorm:"type:varchar(64);not null;uniqueIndex:uq_price_key"`
	CheckIn        time.Time      `gorm:"type:date;not null;uniqueIndex:uq_price_key"`
	CheckOut       time.Time      `gorm:"type:date;not null;uniqueIndex:uq_price_key"`
	Adults         int            `gorm:"not null;uniqueIndex:uq_price_key"`
	Rooms          int            `gorm:"not null;uniqueIndex:uq_price_key"`
	Prices         datatypes.JSON `gorm:"type:jsonb"`
	LowestPrice    float64
	LowestProvider string `gorm:"type:varchar(64)"`
	Currency       string `gorm:"type:varchar(3)"`
	CachedAt       time.Time
	ExpiresAt      time.Time `gorm:"index"`
}

func (priceRecord) TableName() string { return "price_cache_entries" }

// Gorm is the postgres-backed Store.
type Gorm struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	g := NewGorm(db)
	if err := g.Migrate(); err != nil {
		_ = g.Close()
		return nil, err
	}
	return g, nil
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Migrate() error {
	// hotels first, mappings reference them
	if err := g.db.AutoMigrate(&hotelRecord{}, &mappingRecord{}, &priceRecord{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (g *Gorm) GetHotel(ctx context.Context, id string) (models.CanonicalHotel, error) {
	var rec hotelRecord
	if err := g.db.WithContext(ctx).Preload("Mappings").First(&rec, "id = ?", id).Error; err != nil {
		return models.CanonicalHotel{}, fmt.Errorf("hotel %s: %w", id, notFound(err))
	}
	return rec.toModel(), nil
}

func (g *Gorm) FindByMapping(ctx context.Context, provider, providerHotelID string) (models.CanonicalHotel, error) {
	var rec hotelRecord
	err := g.db.WithContext(ctx).
		Joins("JOIN provider_mappings pm ON pm.hotel_id = canonical_hotels.id").
		Where("pm.provider = ? AND pm.provider_hotel_id = ?", provider, providerHotelID).
		Preload("Mappings").
		First(&rec).Error
	if err != nil {
		return models.CanonicalHotel{}, notFound(err)
	}
	return rec.toModel(), nil
}

func (g *Gorm) FindByExternalRef(ctx context.Context, ref string) (models.CanonicalHotel, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.CanonicalHotel{}, ErrNotFound
	}
	var rec hotelRecord
	err := g.db.WithContext(ctx).
		Where("LOWER(external_ref) = LOWER(?)", ref).
		Preload("Mappings").
		First(&rec).Error
	if err != nil {
		return models.CanonicalHotel{}, notFound(err)
	}
	return rec.toModel(), nil
}

func (g *Gorm) FindNear(ctx context.Context, lat, lng, radius float64) ([]models.CanonicalHotel, error) {
	box := geo.BoundingBox(lat, lng, radius)
	var recs []hotelRecord
	err := g.db.WithContext(ctx).
		Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?", box.MinLat, box.MaxLat, box.MinLng, box.MaxLng).
		Preload("Mappings").
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.CanonicalHotel, 0, len(recs))
	for _, r := range recs {
		if geo.Distance(lat, lng, r.Latitude, r.Longitude) <= radius {
			out = append(out, r.toModel())
		}
	}
	return out, nil
}

func (g *Gorm) CreateHotel(ctx context.Context, h models.CanonicalHotel) (models.CanonicalHotel, bool, error) {
	rec := hotelFromModel(h)
	rec.ID = uuid.NewString()
	mappings := rec.Mappings
	rec.Mappings = nil

	created := false
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_ref"}},
			DoNothing: true,
		}).Create(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		for i := range mappings {
			mappings[i].HotelID = rec.ID
		}
		if len(mappings) > 0 {
			return tx.Create(&mappings).Error
		}
		return nil
	})
	if err != nil {
		return models.CanonicalHotel{}, false, fmt.Errorf("create hotel: %w", err)
	}
	if !created {
		existing, err := g.FindByExternalRef(ctx, h.ExternalRef)
		if err != nil {
			return models.CanonicalHotel{}, false, fmt.Errorf("load hotel for ref %s: %w", h.ExternalRef, err)
		}
		return existing, false, nil
	}
	rec.Mappings = mappings
	return rec.toModel(), true, nil
}

func (g *Gorm) UpsertMapping(ctx context.Context, hotelID string, m models.ProviderMapping) error {
	rec := mappingRecord{
		HotelID:         hotelID,
		Provider:        m.Provider,
		ProviderHotelID: m.ProviderHotelID,
		IncludeInAds:    m.IncludeInAds,
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&hotelRecord{}).Where("id = ?", hotelID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("hotel %s: %w", hotelID, ErrNotFound)
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hotel_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"provider_hotel_id", "include_in_ads", "updated_at"}),
		}).Create(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("upsert mapping %s/%s: %w", m.Provider, m.ProviderHotelID, err)
	}
	return nil
}

func (g *Gorm) GetPriceEntry(ctx context.Context, key models.PriceKey) (models.PriceCacheEntry, error) {
	var rec priceRecord
	err := g.db.WithContext(ctx).
		Where("hotel_id = ? AND check_in = ? AND check_out = ? AND adults = ? AND rooms = ?",
			key.HotelID, day(key.CheckIn), day(key.CheckOut), key.Adults, key.Rooms).
		First(&rec).Error
	if err != nil {
		return models.PriceCacheEntry{}, notFound(err)
	}
	return rec.toModel()
}

func (g *Gorm) UpsertPriceEntry(ctx context.Context, e models.PriceCacheEntry) error {
	rec, err := priceFromModel(e)
	if err != nil {
		return err
	}
	err = g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "hotel_id"}, {Name: "check_in"}, {Name: "check_out"}, {Name: "adults"}, {Name: "rooms"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"prices", "lowest_price", "lowest_provider", "currency", "cached_at", "expires_at",
		}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert price entry %s: %w", e.Key, err)
	}
	return nil
}

func (g *Gorm) PruneExpiredPrices(ctx context.Context, now time.Time) (int64, error) {
	res := g.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&priceRecord{})
	return res.RowsAffected, res.Error
}

func hotelFromModel(h models.CanonicalHotel) hotelRecord {
	rec := hotelRecord{
		ID:        h.ID,
		Name:      h.Name,
		City:      h.City,
		Latitude:  h.Latitude,
		Longitude: h.Longitude,
	}
	// the unique index is case-sensitive, so refs are stored folded
	if ref := strings.ToLower(strings.TrimSpace(h.ExternalRef)); ref != "" {
		rec.ExternalRef = &ref
	}
	for _, m := range h.Mappings {
		rec.Mappings = append(rec.Mappings, mappingRecord{
			HotelID:         h.ID,
			Provider:        m.Provider,
			ProviderHotelID: m.ProviderHotelID,
			IncludeInAds:    m.IncludeInAds,
		})
	}
	return rec
}

func (r hotelRecord) toModel() models.CanonicalHotel {
	h := models.CanonicalHotel{
		ID:        r.ID,
		Name:      r.Name,
		City:      r.City,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Mappings:  make([]models.ProviderMapping, 0, len(r.Mappings)),
	}
	if r.ExternalRef != nil {
		h.ExternalRef = *r.ExternalRef
	}
	for _, m := range r.Mappings {
		h.Mappings = append(h.Mappings, models.ProviderMapping{
			Provider:        m.Provider,
			ProviderHotelID: m.ProviderHotelID,
			IncludeInAds:    m.IncludeInAds,
		})
	}
	return h
}

func priceFromModel(e models.PriceCacheEntry) (priceRecord, error) {
	prices, err := json.Marshal(e.Prices)
	if err != nil {
		return priceRecord{}, fmt.Errorf("encode price observations: %w", err)
	}
	return priceRecord{
		HotelID:        e.Key.HotelID,
		CheckIn:        day(e.Key.CheckIn),
		CheckOut:       day(e.Key.CheckOut),
		Adults:         e.Key.Adults,
		Rooms:          e.Key.Rooms,
		Prices:         datatypes.JSON(prices),
		LowestPrice:    e.LowestPrice,
		LowestProvider: e.LowestProvider,
		Currency:       e.Currency,
		CachedAt:       e.CachedAt.UTC(),
		ExpiresAt:      e.ExpiresAt.UTC(),
	}, nil
}

// day truncates t to its calendar date, matching the date columns.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r priceRecord) toModel() (models.PriceCacheEntry, error) {
	e := models.PriceCacheEntry{
		Key: models.PriceKey{
			HotelID:  r.HotelID,
			CheckIn:  r.CheckIn.UTC(),
			CheckOut: r.CheckOut.UTC(),
			Adults:   r.Adults,
			Rooms:    r.Rooms,
		},
		LowestPrice:    r.LowestPrice,
		LowestProvider: r.LowestProvider,
		Currency:       r.Currency,
		CachedAt:       r.CachedAt,
		ExpiresAt:      r.ExpiresAt,
	}
	if len(r.Prices) > 0 {
		if err := json.Unmarshal(r.Prices, &e.Prices); err != nil {
			return models.PriceCacheEntry{}, fmt.Errorf("decode price observations: %w", err)
		}
	}
	return e, nil
}
