// Package merge groups matched provider results by canonical hotel and
// merges each group into one listing.
package merge

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/obs"
)

var ErrMalformedGroup = errors.New("malformed group")

// Merger is stateless; Merge on the same input always yields the same output.
type Merger struct {
	rank    func(provider string) int
	metrics *obs.Metrics
	logger  *slog.Logger
}

// NewMerger creates a Merger. rank orders providers for tie-breaks, lowest
// first; it is normally the provider registration order.
func NewMerger(rank func(provider string) int, m *obs.Metrics, logger *slog.Logger) *Merger {
	return &Merger{rank: rank, metrics: m, logger: logger}
}

// Merge drops unmatched and non-advertisable results, groups the rest by
// canonical id and merges each group. A group that cannot be merged is
// dropped alone. Listings are sorted by price, then canonical id.
func (m *Merger) Merge(pairs []models.Matched) []models.UnifiedHotelListing {
	groups := make(map[string][]models.Matched)
	var order []string
	for _, p := range pairs {
		if p.Match.CanonicalID == "" || !p.Match.ShouldAdvertise {
			continue
		}
		id := p.Match.CanonicalID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], p)
	}

	out := make([]models.UnifiedHotelListing, 0, len(order))
	for _, id := range order {
		l, err := m.mergeGroup(id, groups[id])
		if err != nil {
			m.metrics.IncMergeFailure()
			m.logger.Warn("dropping canonical group", "canonical_id", id, "members", len(groups[id]), "error", err)
			continue
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].CanonicalID < out[j].CanonicalID
	})
	return out
}

func (m *Merger) mergeGroup(id string, members []models.Matched) (l models.UnifiedHotelListing, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrMalformedGroup, r)
		}
	}()

	members = append([]models.Matched(nil), members...)
	sort.SliceStable(members, func(i, j int) bool {
		return m.rank(members[i].Raw.Provider) < m.rank(members[j].Raw.Provider)
	})

	currency := ""
	selected := -1
	for i, mb := range members {
		r := mb.Raw
		if r.Provider == "" {
			return l, fmt.Errorf("%w: member without provider", ErrMalformedGroup)
		}
		if math.IsNaN(r.Price) || math.IsInf(r.Price, 0) || r.Price <= 0 {
			return l, fmt.Errorf("%w: provider %s has invalid price %v", ErrMalformedGroup, r.Provider, r.Price)
		}
		cur := strings.ToUpper(strings.TrimSpace(r.Currency))
		if currency == "" {
			currency = cur
		} else if cur != currency {
			return l, fmt.Errorf("%w: mixed currencies %s and %s", ErrMalformedGroup, currency, cur)
		}
		// strict < keeps the earliest registered provider on ties
		if selected < 0 || r.Price < members[selected].Raw.Price {
			selected = i
		}
	}

	sel := members[selected]
	l = models.UnifiedHotelListing{
		CanonicalID:     id,
		Name:            sel.Match.CanonicalName,
		Address:         sel.Raw.Address,
		Price:           sel.Raw.Price,
		PricePerNight:   sel.Raw.PricePerNight,
		Currency:        currency,
		Provider:        sel.Raw.Provider,
		ProviderHotelID: sel.Raw.ProviderHotelID,
		AllOffers:       make([]models.Offer, 0, len(members)),
		DataSources:     map[string][]string{models.FacetPricing: {sel.Raw.Provider}},
		ShouldAdvertise: true,
	}
	if l.Name == "" {
		l.Name = sel.Raw.Name
	}

	images := newUnion()
	amenities := newUnion()
	for _, mb := range members {
		r := mb.Raw
		l.AllOffers = append(l.AllOffers, models.Offer{
			Provider:        r.Provider,
			ProviderHotelID: r.ProviderHotelID,
			Price:           r.Price,
			Currency:        currency,
			Confidence:      mb.Match.Confidence,
		})
		images.add(r.Provider, r.Images)
		amenities.add(r.Provider, r.Amenities)
		if l.Address == "" {
			l.Address = r.Address
		}
		if l.Description == "" && strings.TrimSpace(r.Description) != "" {
			l.Description = strings.TrimSpace(r.Description)
			l.DataSources[models.FacetDescription] = []string{r.Provider}
		}
	}
	l.Images = images.values
	l.Amenities = amenities.values
	if len(images.sources) > 0 {
		l.DataSources[models.FacetImages] = images.sources
	}
	if len(amenities.sources) > 0 {
		l.DataSources[models.FacetAmenities] = amenities.sources
	}
	return l, nil
}

// union is an order-preserving set keyed by normalised value. It also
// tracks which providers contributed a kept value.
type union struct {
	seen    map[string]bool
	values  []string
	sources []string
}

func newUnion() *union {
	return &union{seen: make(map[string]bool), values: []string{}}
}

func (u *union) add(provider string, vs []string) {
	contributed := false
	for _, v := range vs {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if key == "" || u.seen[key] {
			continue
		}
		u.seen[key] = true
		u.values = append(u.values, v)
		contributed = true
	}
	if contributed {
		u.sources = append(u.sources, provider)
	}
}
