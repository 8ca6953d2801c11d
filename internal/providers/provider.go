package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/mschlosser22/travel-bids-sub001/internal/models"
)

// Provider is one inventory source. Every call may fail independently.
type Provider interface {
	Name() string
	Search(ctx context.Context, params models.SearchParams) ([]models.RawHotelResult, error)
	GetDetails(ctx context.Context, hotelID string, params models.SearchParams) (*models.RawHotelResult, error)
	CancelBooking(ctx context.Context, providerBookingID string) (CancelResult, error)
}

// CancelResult is a provider's answer to a cancellation.
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrHotelNotFound       = errors.New("hotel not found at provider")
	ErrDuplicateProvider   = errors.New("provider already registered")
)

// Registry maps provider names to clients, remembering registration order.
// It is built once at startup and read-only afterwards.
type Registry struct {
	order  []string
	byName map[string]Provider
}

func NewRegistry(ps ...Provider) (*Registry, error) {
	r := &Registry{byName: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(p Provider) error {
	if _, ok := r.byName[p.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, p.Name())
	}
	r.byName[p.Name()] = p
	r.order = append(r.order, p.Name())
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// All returns providers in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Rank is the registration position of name; unknown names sort last.
func (r *Registry) Rank(name string) int {
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return len(r.order)
}

func (r *Registry) Len() int { return len(r.order) }
