// Package booking drives the steps after search: freezing a room offer,
// confirming it once, and cancelling a booking with a refund quote.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mschlosser22/travel-bids-sub001/internal/cancellation"
	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/providers"
	"github.com/mschlosser22/travel-bids-sub001/internal/validator"
)

var (
	ErrInvalidRequest  = errors.New("invalid booking request")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrRoomNotFound    = errors.New("room not found")
	ErrOfferExpired    = errors.New("offer expired or unknown")
	ErrProviderFailed  = errors.New("provider call failed")
)

// Offers is the offer cache as booking uses it.
type Offers interface {
	Put(ctx context.Context, provider, providerHotelID string, room models.RoomOffer, search models.SearchContext, hotel models.HotelInfo) (string, error)
	Get(ctx context.Context, key string) (*models.CachedOffer, bool)
	Delete(ctx context.Context, key string) error
}

type SelectRequest struct {
	Provider        string `json:"provider" validate:"required"`
	ProviderHotelID string `json:"providerHotelId" validate:"required"`
	RoomID          string `json:"roomId" validate:"required"`
	CheckIn         string `json:"checkIn" validate:"required"`
	CheckOut        string `json:"checkOut" validate:"required"`
	Adults          int    `json:"adults" validate:"min=1,max=30"`
	Rooms           int    `json:"rooms" validate:"omitempty,min=1,max=10"`
}

type SelectResult struct {
	Key   string             `json:"key"`
	Offer models.CachedOffer `json:"offer"`
}

type CancelRequest struct {
	Provider          string  `json:"provider" validate:"required"`
	ProviderBookingID string  `json:"providerBookingId" validate:"required"`
	ProviderHotelID   string  `json:"providerHotelId"`
	Amount            float64 `json:"amount" validate:"gt=0"`
	CheckIn           string  `json:"checkIn" validate:"required"`
	// Policy is the provider's policy text when the caller already has it.
	Policy string `json:"policy"`
}

type CancelResult struct {
	Policy    cancellation.Policy     `json:"policy"`
	Refund    cancellation.Refund     `json:"refund"`
	Cancelled bool                    `json:"cancelled"`
	Provider  *providers.CancelResult `json:"provider,omitempty"`
}

type Service struct {
	registry    *providers.Registry
	offers      Offers
	adminPolicy string
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a booking Service. adminPolicy, when set, overrides
// every provider's cancellation policy.
func NewService(registry *providers.Registry, offers Offers, adminPolicy string, logger *slog.Logger) *Service {
	return &Service{registry: registry, offers: offers, adminPolicy: adminPolicy, logger: logger, now: time.Now}
}

// SelectRoom fetches live room quotes from the provider and freezes the
// requested one in the offer cache.
func (s *Service) SelectRoom(ctx context.Context, req SelectRequest) (SelectResult, error) {
	if req.Rooms == 0 {
		req.Rooms = 1
	}
	if err := validator.Struct(req); err != nil {
		return SelectResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	params, err := stay(req)
	if err != nil {
		return SelectResult{}, err
	}
	p, ok := s.registry.Get(req.Provider)
	if !ok {
		return SelectResult{}, fmt.Errorf("%w: %s", ErrUnknownProvider, req.Provider)
	}

	details, err := p.GetDetails(ctx, req.ProviderHotelID, params)
	if errors.Is(err, providers.ErrHotelNotFound) {
		return SelectResult{}, fmt.Errorf("%w: %v", ErrRoomNotFound, err)
	}
	if err != nil {
		return SelectResult{}, fmt.Errorf("%w: details from %s: %v", ErrProviderFailed, req.Provider, err)
	}

	var room *models.RoomOffer
	for i := range details.Rooms {
		if details.Rooms[i].RoomID == req.RoomID {
			room = &details.Rooms[i]
			break
		}
	}
	if room == nil {
		return SelectResult{}, fmt.Errorf("%w: %s at %s/%s", ErrRoomNotFound, req.RoomID, req.Provider, req.ProviderHotelID)
	}

	sc := models.SearchContext{CheckIn: params.CheckIn, CheckOut: params.CheckOut, Adults: params.Adults, Rooms: params.Rooms}
	hotel := models.HotelInfo{Name: details.Name, Address: details.Address}
	key, err := s.offers.Put(ctx, req.Provider, req.ProviderHotelID, *room, sc, hotel)
	if err != nil {
		return SelectResult{}, err
	}
	offer, ok := s.offers.Get(ctx, key)
	if !ok {
		return SelectResult{}, fmt.Errorf("%w: %s", ErrOfferExpired, key)
	}

	s.logger.Info("room offer frozen",
		"provider", req.Provider,
		"provider_hotel_id", req.ProviderHotelID,
		"room_id", req.RoomID,
		"price", room.Price,
		"key", key)
	return SelectResult{Key: key, Offer: *offer}, nil
}

func (s *Service) GetOffer(ctx context.Context, key string) (models.CachedOffer, error) {
	offer, ok := s.offers.Get(ctx, key)
	if !ok {
		return models.CachedOffer{}, fmt.Errorf("%w: %s", ErrOfferExpired, key)
	}
	return *offer, nil
}

// ConfirmOffer hands out the offer exactly once; the entry is deleted so
// the same quote cannot be booked twice.
func (s *Service) ConfirmOffer(ctx context.Context, key string) (models.CachedOffer, error) {
	offer, ok := s.offers.Get(ctx, key)
	if !ok {
		return models.CachedOffer{}, fmt.Errorf("%w: %s", ErrOfferExpired, key)
	}
	if err := s.offers.Delete(ctx, key); err != nil {
		return models.CachedOffer{}, err
	}
	s.logger.Info("offer confirmed", "key", key, "provider", offer.Provider, "price", offer.Room.Price)
	return *offer, nil
}

func (s *Service) ReleaseOffer(ctx context.Context, key string) error {
	return s.offers.Delete(ctx, key)
}

// Cancel resolves the cancellation policy, quotes the refund and, when the
// policy allows cancelling at all, cancels the booking at the provider.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (CancelResult, error) {
	if err := validator.Struct(req); err != nil {
		return CancelResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	checkIn, err := validator.ParseDate(req.CheckIn)
	if err != nil {
		return CancelResult{}, fmt.Errorf("%w: checkIn: %v", ErrInvalidRequest, err)
	}
	p, ok := s.registry.Get(req.Provider)
	if !ok {
		return CancelResult{}, fmt.Errorf("%w: %s", ErrUnknownProvider, req.Provider)
	}

	providerPolicy := req.Policy
	if providerPolicy == "" && s.adminPolicy == "" && req.ProviderHotelID != "" {
		providerPolicy = s.fetchPolicy(ctx, p, req.ProviderHotelID, checkIn)
	}
	policy := cancellation.Resolve(s.adminPolicy, providerPolicy)
	res := CancelResult{
		Policy: policy,
		Refund: cancellation.ComputeRefund(policy, req.Amount, checkIn, s.now()),
	}
	if !policy.CanCancel {
		return res, nil
	}

	pr, err := p.CancelBooking(ctx, req.ProviderBookingID)
	if err != nil {
		return CancelResult{}, fmt.Errorf("%w: cancel at %s: %v", ErrProviderFailed, req.Provider, err)
	}
	res.Provider = &pr
	res.Cancelled = pr.Success
	s.logger.Info("booking cancelled",
		"provider", req.Provider,
		"booking_id", req.ProviderBookingID,
		"policy_source", policy.Source,
		"refund", res.Refund.RefundAmount,
		"provider_success", pr.Success)
	return res, nil
}

// fetchPolicy asks the provider for the hotel's policy text. Failures
// fall through to the default policy.
func (s *Service) fetchPolicy(ctx context.Context, p providers.Provider, hotelID string, checkIn time.Time) string {
	params := models.SearchParams{CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 1), Adults: 1, Rooms: 1}
	d, err := p.GetDetails(ctx, hotelID, params)
	if err != nil {
		s.logger.Warn("policy lookup failed", "provider", p.Name(), "provider_hotel_id", hotelID, "error", err)
		return ""
	}
	return d.CancellationPolicy
}

func stay(req SelectRequest) (models.SearchParams, error) {
	in, err := validator.ParseDate(req.CheckIn)
	if err != nil {
		return models.SearchParams{}, fmt.Errorf("%w: checkIn: %v", ErrInvalidRequest, err)
	}
	out, err := validator.ParseDate(req.CheckOut)
	if err != nil {
		return models.SearchParams{}, fmt.Errorf("%w: checkOut: %v", ErrInvalidRequest, err)
	}
	if !out.After(in) {
		return models.SearchParams{}, fmt.Errorf("%w: checkOut must be after checkIn", ErrInvalidRequest)
	}
	return models.SearchParams{CheckIn: in, CheckOut: out, Adults: req.Adults, Rooms: req.Rooms}, nil
}
