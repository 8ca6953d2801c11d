package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mschlosser22/travel-bids-sub001/internal/booking"
	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/obs"
	"github.com/mschlosser22/travel-bids-sub001/internal/pricecache"
	"github.com/mschlosser22/travel-bids-sub001/internal/search"
	"github.com/mschlosser22/travel-bids-sub001/internal/validator"
)

type PriceRefresher interface {
	Refresh(ctx context.Context, key models.PriceKey) (pricecache.RefreshResult, error)
}

type Booker interface {
	SelectRoom(ctx context.Context, req booking.SelectRequest) (booking.SelectResult, error)
	GetOffer(ctx context.Context, key string) (models.CachedOffer, error)
	ConfirmOffer(ctx context.Context, key string) (models.CachedOffer, error)
	ReleaseOffer(ctx context.Context, key string) error
	Cancel(ctx context.Context, req booking.CancelRequest) (booking.CancelResult, error)
}

type Handler struct {
	search      search.ServiceManagement
	prices      PriceRefresher
	booking     Booker
	ratelimiter search.RateLimiter
	metrics     *obs.Metrics
	logger      *slog.Logger
}

func NewHandler(svc search.ServiceManagement, prices PriceRefresher, b Booker, rl search.RateLimiter, m *obs.Metrics, logger *slog.Logger) *Handler {
	return &Handler{search: svc, prices: prices, booking: b, ratelimiter: rl, metrics: m, logger: logger}
}

func (h *Handler) ipFromRequest(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func requestMeta(r *http.Request) map[string]string {
	// chi's middleware.RequestID stores the id in the request context
	reqID := middleware.GetReqID(r.Context())
	if reqID == "" {
		reqID = r.Header.Get("X-Request-Id")
	}
	if reqID == "" {
		reqID = uuid.New().String()
	}
	return map[string]string{"request_id": reqID}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	h.metrics.IncRequests()
	meta := requestMeta(r)

	var req models.SearchRequest
	if err := ReadJSON(w, r, &req); err != nil {
		BadRequest(w, err.Error(), meta)
		return
	}
	params, err := req.Params()
	if err != nil {
		BadRequest(w, err.Error(), meta)
		return
	}

	// rate limit
	ip := h.ipFromRequest(r)
	if !h.ratelimiter.Allow(ip) {
		h.metrics.IncRateLimitDrops()
		TooManyRequests(w, "rate limit exceeded", meta)
		return
	}

	res, err := h.search.Search(r.Context(), params, req.Provider)
	switch {
	case errors.Is(err, search.ErrInvalidParams), errors.Is(err, search.ErrUnknownProvider):
		BadRequest(w, err.Error(), meta)
		return
	case err != nil:
		h.logger.Error("search failed", "request_id", meta["request_id"], "error", err)
		InternalError(w, "search failed", meta)
		return
	}

	out := map[string]any{
		"search": params,
		"stats":  res.Stats,
		"hotels": res.Hotels,
	}
	WriteJSON(w, http.StatusOK, out)
}

type priceRefreshRequest struct {
	HotelID  string `json:"hotelId" validate:"required"`
	CheckIn  string `json:"checkIn" validate:"required"`
	CheckOut string `json:"checkOut" validate:"required"`
	Adults   int    `json:"adults" validate:"min=1,max=30"`
	Rooms    int    `json:"rooms" validate:"omitempty,min=1,max=10"`
}

func (h *Handler) RefreshPrice(w http.ResponseWriter, r *http.Request) {
	meta := requestMeta(r)

	var req priceRefreshRequest
	if err := ReadJSON(w, r, &req); err != nil {
		BadRequest(w, err.Error(), meta)
		return
	}
	if err := validator.Struct(req); err != nil {
		BadRequest(w, err.Error(), meta)
		return
	}
	checkIn, err := validator.ParseDate(req.CheckIn)
	if err != nil {
		BadRequest(w, "checkIn: "+err.Error(), meta)
		return
	}
	checkOut, err := validator.ParseDate(req.CheckOut)
	if err != nil {
		BadRequest(w, "checkOut: "+err.Error(), meta)
		return
	}
	if req.Rooms == 0 {
		req.Rooms = 1
	}

	res, err := h.prices.Refresh(r.Context(), models.PriceKey{
		HotelID:  req.HotelID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Adults:   req.Adults,
		Rooms:    req.Rooms,
	})
	switch {
	case errors.Is(err, pricecache.ErrHotelNotFound), errors.Is(err, pricecache.ErrNoOffers):
		NotFound(w, err.Error(), meta)
		return
	case errors.Is(err, search.ErrInvalidParams):
		BadRequest(w, err.Error(), meta)
		return
	case err != nil:
		h.logger.Error("price refresh failed", "request_id", meta["request_id"], "hotel_id", req.HotelID, "error", err)
		InternalError(w, "price refresh failed", meta)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) SelectOffer(w http.ResponseWriter, r *http.Request) {
	meta := requestMeta(r)

	var req booking.SelectRequest
	if err := ReadJSON(w, r, &req); err != nil {
		BadRequest(w, err.Error(), meta)
		return
	}
	res, err := h.booking.SelectRoom(r.Context(), req)
	if err != nil {
		h.bookingError(w, err, meta)
		return
	}
	WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	meta := requestMeta(r)
	offer, err := h.booking.GetOffer(r.Context(), offerKey(r))
	if err != nil {
		h.bookingError(w, err, meta)
		return
	}
	WriteJSON(w, http.StatusOK, offer)
}

func (h *Handler) ConfirmOffer(w http.ResponseWriter, r *http.Request) {
	meta := requestMeta(r)
	offer, err := h.booking.ConfirmOffer(r.Context(), offerKey(r))
	if err != nil {
		h.bookingError(w, err, meta)
		return
	}
	WriteJSON(w, http.StatusOK, offer)
}

func (h *Handler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	meta := requestMeta(r)
	if err := h.booking.ReleaseOffer(r.Context(), offerKey(r)); err != nil {
		h.bookingError(w, err, meta)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	meta := requestMeta(r)

	var req booking.CancelRequest
	if err := ReadJSON(w, r, &req); err != nil {
		BadRequest(w, err.Error(), meta)
		return
	}
	res, err := h.booking.Cancel(r.Context(), req)
	if err != nil {
		h.bookingError(w, err, meta)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) bookingError(w http.ResponseWriter, err error, meta map[string]string) {
	switch {
	case errors.Is(err, booking.ErrInvalidRequest), errors.Is(err, booking.ErrUnknownProvider):
		BadRequest(w, err.Error(), meta)
	case errors.Is(err, booking.ErrRoomNotFound):
		NotFound(w, err.Error(), meta)
	case errors.Is(err, booking.ErrOfferExpired):
		Gone(w, err.Error(), meta)
	case errors.Is(err, booking.ErrProviderFailed):
		BadGateway(w, err.Error(), meta)
	default:
		h.logger.Error("booking request failed", "request_id", meta["request_id"], "error", err)
		InternalError(w, "internal error", meta)
	}
}

func offerKey(r *http.Request) string {
	key := chi.URLParam(r, "key")
	if k, err := url.PathUnescape(key); err == nil {
		return k
	}
	return key
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
