package models

import (
	"strings"
	"testing"
	"time"
)

func TestSearchRequest_Params(t *testing.T) {
	p, err := SearchRequest{City: " Paris ", CheckIn: "2030-05-01", CheckOut: "2030-05-04", Adults: 2, Currency: "eur"}.Params()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.City != "Paris" || p.Rooms != 1 || p.Currency != "EUR" || p.Nights() != 3 {
		t.Fatalf("unexpected params: %+v", p)
	}

	_, err = SearchRequest{City: "Paris", CheckIn: "tomorrow"}.Params()
	if err == nil || !strings.Contains(err.Error(), "checkIn") || !strings.Contains(err.Error(), "checkOut") {
		t.Fatalf("expected both date errors, got %v", err)
	}
}

func TestSearchParams_Validate(t *testing.T) {
	now := time.Date(2030, 5, 1, 23, 0, 0, 0, time.UTC)
	valid := SearchParams{
		City:     "Paris",
		CheckIn:  time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2030, 5, 2, 0, 0, 0, 0, time.UTC),
		Adults:   1,
		Rooms:    1,
	}
	if err := valid.Validate(now); err != nil {
		t.Fatalf("same-day check-in should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*SearchParams)
		want   string
	}{
		{"NoCity", func(p *SearchParams) { p.City = "" }, "city is required"},
		{"ShortCity", func(p *SearchParams) { p.City = "P" }, "city"},
		{"TooManyAdults", func(p *SearchParams) { p.Adults = 31 }, "adults"},
		{"NoRooms", func(p *SearchParams) { p.Rooms = 0 }, "rooms"},
		{"Currency", func(p *SearchParams) { p.Currency = "E1R" }, "currency"},
		{"ZeroCheckIn", func(p *SearchParams) { p.CheckIn = time.Time{} }, "checkIn is required"},
		{"ZeroCheckOut", func(p *SearchParams) { p.CheckOut = time.Time{} }, "checkOut is required"},
		{"SameDay", func(p *SearchParams) { p.CheckOut = p.CheckIn.Add(5 * time.Hour) }, "checkOut must be after checkIn"},
		{"Past", func(p *SearchParams) {
			p.CheckIn = p.CheckIn.AddDate(0, 0, -1)
		}, "past"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate(now)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestPriceKey_String(t *testing.T) {
	k := PriceKey{
		HotelID:  "H1",
		CheckIn:  time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2030, 5, 3, 0, 0, 0, 0, time.UTC),
		Adults:   2,
		Rooms:    1,
	}
	if got := k.String(); got != "H1|2030-05-01|2030-05-03|2|1" {
		t.Fatalf("String() = %q", got)
	}
}
