package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/obs"
)

var ErrSearchFailed = errors.New("search failed")

// Matcher resolves raw results to canonical hotels, index-aligned.
type Matcher interface {
	MatchAll(ctx context.Context, raws []models.RawHotelResult) []models.MatchResult
}

// Merger turns matched results into unified listings.
type Merger interface {
	Merge(pairs []models.Matched) []models.UnifiedHotelListing
}

type ServiceManagement interface {
	Search(ctx context.Context, params models.SearchParams, provider string) (Result, error)
}

// Service runs the search pipeline: fan-out, matching, merge.
type Service struct {
	coord          *Coordinator
	matcher        Matcher
	merger         Merger
	metrics        *obs.Metrics
	logger         *slog.Logger
	computeTimeout time.Duration
}

func NewService(coord *Coordinator, matcher Matcher, merger Merger, m *obs.Metrics, logger *slog.Logger, t time.Duration) *Service {
	return &Service{
		coord:          coord,
		matcher:        matcher,
		merger:         merger,
		metrics:        m,
		logger:         logger,
		computeTimeout: t,
	}
}

// Search runs a search against all providers, or only provider when set.
// Input errors wrap ErrInvalidParams or ErrUnknownProvider; anything
// unexpected in the pipeline surfaces as ErrSearchFailed.
func (s *Service) Search(ctx context.Context, params models.SearchParams, provider string) (res Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("search pipeline panic", "panic", r, "search", params.String())
			res, err = Result{}, fmt.Errorf("%w: %v", ErrSearchFailed, r)
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, s.computeTimeout)
	defer cancel()

	var targets []string
	if provider != "" {
		targets = []string{provider}
	}
	fan, err := s.coord.Search(cctx, params, targets...)
	if err != nil {
		return Result{}, err
	}

	matches := s.matcher.MatchAll(cctx, fan.Results)
	pairs := make([]models.Matched, len(fan.Results))
	matched := 0
	for i, raw := range fan.Results {
		pairs[i] = models.Matched{Raw: raw, Match: matches[i]}
		if matches[i].CanonicalID != "" {
			matched++
		}
	}
	listings := s.merger.Merge(pairs)
	if listings == nil {
		listings = []models.UnifiedHotelListing{}
	}

	res.Hotels = listings
	res.Stats.FanoutStats = fan.Stats
	res.Stats.RawResults = len(fan.Results)
	res.Stats.Matched = matched
	res.Stats.Listed = len(listings)
	res.Stats.DurationMs = time.Since(start).Milliseconds()
	s.metrics.ObserveListings(len(listings))

	s.logger.Info("search completed",
		"search", params.String(),
		"providers_failed", fan.Stats.ProvidersFailed,
		"raw_results", res.Stats.RawResults,
		"matched", matched,
		"listed", len(listings),
		"duration_ms", res.Stats.DurationMs)
	return res, nil
}
