package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mschlosser22/travel-bids-sub001/internal/validator"
)

const DefaultCurrency = "USD"

// SearchParams is a validated hotel search.
type SearchParams struct {
	City      string    `json:"city" validate:"required,min=2"`
	CheckIn   time.Time `json:"checkIn"`
	CheckOut  time.Time `json:"checkOut"`
	Adults    int       `json:"adults" validate:"min=1,max=30"`
	Rooms     int       `json:"rooms" validate:"min=1,max=10"`
	Currency  string    `json:"currency" validate:"omitempty,len=3,alpha"`
	HotelName string    `json:"hotelName,omitempty"`
}

// SearchRequest is the wire form of a search, dates as YYYY-MM-DD.
type SearchRequest struct {
	City      string `json:"city"`
	CheckIn   string `json:"checkIn"`
	CheckOut  string `json:"checkOut"`
	Adults    int    `json:"adults"`
	Rooms     int    `json:"rooms"`
	Currency  string `json:"currency"`
	HotelName string `json:"hotelName"`
	Provider  string `json:"provider"`
}

// Params converts the wire request into SearchParams. Only parsing happens
// here; invariants are checked by SearchParams.Validate.
func (r SearchRequest) Params() (SearchParams, error) {
	var errs []string
	checkIn, err := validator.ParseDate(r.CheckIn)
	if err != nil {
		errs = append(errs, "checkIn: "+err.Error())
	}
	checkOut, err := validator.ParseDate(r.CheckOut)
	if err != nil {
		errs = append(errs, "checkOut: "+err.Error())
	}
	if len(errs) > 0 {
		return SearchParams{}, errors.New(strings.Join(errs, ", "))
	}
	rooms := r.Rooms
	if rooms == 0 {
		rooms = 1
	}
	return SearchParams{
		City:      strings.TrimSpace(r.City),
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Adults:    r.Adults,
		Rooms:     rooms,
		Currency:  strings.ToUpper(strings.TrimSpace(r.Currency)),
		HotelName: strings.TrimSpace(r.HotelName),
	}, nil
}

// Validate checks field constraints and the date invariants: check-out
// strictly after check-in, check-in not before today. Dates are compared
// with the time of day zeroed.
func (p SearchParams) Validate(now time.Time) error {
	var errs []string
	if err := validator.Struct(p); err != nil {
		errs = append(errs, err.Error())
	}
	switch {
	case p.CheckIn.IsZero():
		errs = append(errs, "checkIn is required")
	case p.CheckOut.IsZero():
		errs = append(errs, "checkOut is required")
	default:
		in, out := validator.DateOnly(p.CheckIn), validator.DateOnly(p.CheckOut)
		if !out.After(in) {
			errs = append(errs, "checkOut must be after checkIn")
		}
		if in.Before(validator.DateOnly(now)) {
			errs = append(errs, "checkIn must not be in the past")
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, ", "))
	}
	return nil
}

// Nights is the length of stay in nights.
func (p SearchParams) Nights() int {
	d := validator.DateOnly(p.CheckOut).Sub(validator.DateOnly(p.CheckIn))
	return int(d.Hours() / 24)
}

// CurrencyOrDefault returns the requested currency, USD when unset.
func (p SearchParams) CurrencyOrDefault() string {
	if p.Currency == "" {
		return DefaultCurrency
	}
	return p.Currency
}

func (p SearchParams) String() string {
	return fmt.Sprintf("%s %s..%s adults=%d rooms=%d",
		p.City, p.CheckIn.Format(validator.DateLayout), p.CheckOut.Format(validator.DateLayout), p.Adults, p.Rooms)
}
