package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/mschlosser22/travel-bids-sub001/internal/geo"
	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/obs"
	"github.com/mschlosser22/travel-bids-sub001/internal/storage"
)

// Config holds the matching thresholds. AdvertiseThreshold must be at least
// MatchThreshold: a false merge corrupts advertising attribution, so both
// err on the side of not matching.
type Config struct {
	MatchThreshold     float64
	AdvertiseThreshold float64
	RadiusMeters       float64
	NameWeight         float64
	Concurrency        int
}

func DefaultConfig() Config {
	return Config{
		MatchThreshold:     0.85,
		AdvertiseThreshold: 0.99,
		RadiusMeters:       250,
		NameWeight:         0.75,
		Concurrency:        16,
	}
}

// Engine resolves raw provider results to canonical hotels.
type Engine struct {
	store   storage.HotelStore
	cfg     Config
	metrics *obs.Metrics
	logger  *slog.Logger
}

func NewEngine(store storage.HotelStore, cfg Config, m *obs.Metrics, logger *slog.Logger) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.AdvertiseThreshold < cfg.MatchThreshold {
		cfg.AdvertiseThreshold = cfg.MatchThreshold
	}
	return &Engine{store: store, cfg: cfg, metrics: m, logger: logger}
}

// MatchAll matches every raw result concurrently. The output is aligned
// with raws; a failing match yields an empty MatchResult for that index only.
func (e *Engine) MatchAll(ctx context.Context, raws []models.RawHotelResult) []models.MatchResult {
	out := make([]models.MatchResult, len(raws))
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, raw := range raws {
		g.Go(func() error {
			out[i] = e.Match(ctx, raw)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Match resolves one raw result. It never fails: store errors degrade the
// result to an empty match, which is logged and later excluded.
func (e *Engine) Match(ctx context.Context, raw models.RawHotelResult) (res models.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("match panic", "provider", raw.Provider, "provider_hotel_id", raw.ProviderHotelID, "panic", r)
			res = models.MatchResult{Method: models.MatchNone}
		}
		e.metrics.IncMatch(string(res.Method), res.ShouldAdvertise)
	}()

	res, err := e.match(ctx, raw)
	if err != nil {
		e.logger.Warn("canonical match failed",
			"provider", raw.Provider,
			"provider_hotel_id", raw.ProviderHotelID,
			"error", err)
		return models.MatchResult{Method: models.MatchNone}
	}
	return res
}

func (e *Engine) match(ctx context.Context, raw models.RawHotelResult) (models.MatchResult, error) {
	h, err := e.store.FindByMapping(ctx, raw.Provider, raw.ProviderHotelID)
	switch {
	case err == nil:
		m, _ := h.Mapping(raw.Provider)
		return e.result(h, 1.0, models.MatchMapping, m.IncludeInAds), nil
	case !errors.Is(err, storage.ErrNotFound):
		return models.MatchResult{}, fmt.Errorf("find by mapping: %w", err)
	}

	if raw.ExternalRef != "" {
		h, err := e.store.FindByExternalRef(ctx, raw.ExternalRef)
		switch {
		case err == nil:
			e.link(ctx, h, raw, 1.0)
			return e.result(h, 1.0, models.MatchExact, true), nil
		case !errors.Is(err, storage.ErrNotFound):
			return models.MatchResult{}, fmt.Errorf("find by external ref: %w", err)
		}
	}

	if !raw.HasCoordinates() {
		return models.MatchResult{Method: models.MatchNone}, nil
	}

	candidates, err := e.store.FindNear(ctx, *raw.Latitude, *raw.Longitude, e.cfg.RadiusMeters)
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("find near: %w", err)
	}
	if best, score, ok := e.best(raw, candidates); ok && score >= e.cfg.MatchThreshold {
		e.link(ctx, best, raw, score)
		return e.result(best, score, models.MatchGeo, true), nil
	}

	h, created, err := e.store.CreateHotel(ctx, models.CanonicalHotel{
		Name:        raw.Name,
		City:        raw.City,
		Latitude:    *raw.Latitude,
		Longitude:   *raw.Longitude,
		ExternalRef: raw.ExternalRef,
		Mappings: []models.ProviderMapping{
			{Provider: raw.Provider, ProviderHotelID: raw.ProviderHotelID, IncludeInAds: true},
		},
	})
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("create canonical hotel: %w", err)
	}
	if !created {
		// lost a creation race on the external ref; the winner is an exact match
		e.link(ctx, h, raw, 1.0)
		return e.result(h, 1.0, models.MatchExact, true), nil
	}
	e.logger.Info("canonical hotel created",
		"canonical_id", h.ID,
		"name", h.Name,
		"provider", raw.Provider,
		"provider_hotel_id", raw.ProviderHotelID)
	return e.result(h, 1.0, models.MatchCreated, true), nil
}

// best returns the highest scoring candidate. Candidates already mapped to a
// different hotel of the same provider are skipped: a provider does not list
// one property twice.
func (e *Engine) best(raw models.RawHotelResult, candidates []models.CanonicalHotel) (models.CanonicalHotel, float64, bool) {
	var (
		best  models.CanonicalHotel
		score = -1.0
	)
	for _, c := range candidates {
		if m, ok := c.Mapping(raw.Provider); ok && m.ProviderHotelID != raw.ProviderHotelID {
			continue
		}
		s := e.Score(raw, c)
		if s > score {
			best, score = c, s
		}
	}
	return best, score, score >= 0
}

// Score combines name similarity with closeness inside the match radius.
func (e *Engine) Score(raw models.RawHotelResult, c models.CanonicalHotel) float64 {
	if !raw.HasCoordinates() {
		return 0
	}
	d := geo.Distance(*raw.Latitude, *raw.Longitude, c.Latitude, c.Longitude)
	closeness := math.Max(0, 1-d/e.cfg.RadiusMeters)
	return e.cfg.NameWeight*NameSimilarity(raw.Name, c.Name) + (1-e.cfg.NameWeight)*closeness
}

func (e *Engine) link(ctx context.Context, h models.CanonicalHotel, raw models.RawHotelResult, confidence float64) {
	m := models.ProviderMapping{
		Provider:        raw.Provider,
		ProviderHotelID: raw.ProviderHotelID,
		IncludeInAds:    confidence >= e.cfg.AdvertiseThreshold,
	}
	if err := e.store.UpsertMapping(ctx, h.ID, m); err != nil {
		e.logger.Warn("record provider mapping failed",
			"canonical_id", h.ID,
			"provider", raw.Provider,
			"provider_hotel_id", raw.ProviderHotelID,
			"error", err)
	}
}

func (e *Engine) result(h models.CanonicalHotel, confidence float64, method models.MatchMethod, adsAllowed bool) models.MatchResult {
	return models.MatchResult{
		CanonicalID:     h.ID,
		CanonicalName:   h.Name,
		Confidence:      confidence,
		ShouldAdvertise: adsAllowed && confidence >= e.cfg.AdvertiseThreshold,
		Method:          method,
	}
}
