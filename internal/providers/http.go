package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/validator"
)

// HTTPProvider queries a provider's JSON API.
type HTTPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPProvider creates a new HTTPProvider. timeout bounds every call.
func NewHTTPProvider(name, baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *HTTPProvider) Name() string {
	return p.name
}

// Search calls GET {base}/search.
func (p *HTTPProvider) Search(ctx context.Context, params models.SearchParams) ([]models.RawHotelResult, error) {
	var hotels []models.RawHotelResult
	if err := p.do(ctx, http.MethodGet, "/search", searchQuery(params), nil, &hotels); err != nil {
		return nil, err
	}
	for i := range hotels {
		hotels[i].Provider = p.name
	}
	return hotels, nil
}

// GetDetails calls GET {base}/hotels/{id}.
func (p *HTTPProvider) GetDetails(ctx context.Context, hotelID string, params models.SearchParams) (*models.RawHotelResult, error) {
	var hotel models.RawHotelResult
	if err := p.do(ctx, http.MethodGet, "/hotels/"+url.PathEscape(hotelID), searchQuery(params), nil, &hotel); err != nil {
		return nil, err
	}
	hotel.Provider = p.name
	if hotel.ProviderHotelID == "" {
		hotel.ProviderHotelID = hotelID
	}
	return &hotel, nil
}

// CancelBooking calls POST {base}/bookings/{id}/cancel.
func (p *HTTPProvider) CancelBooking(ctx context.Context, providerBookingID string) (CancelResult, error) {
	var res CancelResult
	err := p.do(ctx, http.MethodPost, "/bookings/"+url.PathEscape(providerBookingID)+"/cancel", nil, struct{}{}, &res)
	return res, err
}

func searchQuery(params models.SearchParams) url.Values {
	q := url.Values{}
	q.Set("city", params.City)
	q.Set("checkIn", params.CheckIn.Format(validator.DateLayout))
	q.Set("checkOut", params.CheckOut.Format(validator.DateLayout))
	q.Set("adults", strconv.Itoa(params.Adults))
	q.Set("rooms", strconv.Itoa(params.Rooms))
	q.Set("currency", params.CurrencyOrDefault())
	if params.HotelName != "" {
		q.Set("hotelName", params.HotelName)
	}
	return q
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u, err := url.Parse(p.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", p.name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s%s", ErrHotelNotFound, p.name, path)
	case resp.StatusCode >= 500:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned status %d: %s", ErrProviderUnavailable, p.name, resp.StatusCode, string(b))
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", p.name, resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to parse response: %w", p.name, err)
	}
	return nil
}
