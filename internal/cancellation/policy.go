// Package cancellation interprets cancellation policy text and computes
// refunds. It does no I/O.
package cancellation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultDeadlineHours = 24

// Where a resolved policy came from.
const (
	SourceAdmin    = "admin"
	SourceProvider = "provider"
	SourceDefault  = "default"
)

// Policy is a parsed cancellation policy. A nil DeadlineHours means
// cancellation is allowed up to check-in.
type Policy struct {
	CanCancel        bool    `json:"canCancel"`
	RefundPercentage float64 `json:"refundPercentage"`
	DeadlineHours    *int    `json:"deadlineHours,omitempty"`
	Text             string  `json:"text,omitempty"`
	Source           string  `json:"source,omitempty"`
}

// Refund is the outcome of cancelling a booking under a Policy.
type Refund struct {
	RefundAmount      float64 `json:"refundAmount"`
	RefundPercentage  float64 `json:"refundPercentage"`
	CanRefund         bool    `json:"canRefund"`
	HoursUntilCheckIn float64 `json:"hoursUntilCheckIn"`
	Reason            string  `json:"reason,omitempty"`
}

var (
	deadlinePattern = regexp.MustCompile(`(\d+)\s*(hours?|hrs?|days?)`)
	percentPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%\s*refund`)
)

// Default is free cancellation up to 24 hours before check-in.
func Default() Policy {
	return Policy{CanCancel: true, RefundPercentage: 100, DeadlineHours: hours(defaultDeadlineHours), Source: SourceDefault}
}

// Resolve picks the admin override, else the provider's policy, else the
// default. Blank strings count as unset.
func Resolve(adminPolicy, providerPolicy string) Policy {
	if s := strings.TrimSpace(adminPolicy); s != "" {
		p := Parse(s)
		p.Source = SourceAdmin
		return p
	}
	if s := strings.TrimSpace(providerPolicy); s != "" {
		p := Parse(s)
		p.Source = SourceProvider
		return p
	}
	return Default()
}

// Parse reads a policy from free text by keyword:
//
//	"non-refundable", "no refund"       no cancellation, 0%
//	"free cancellation", "100% refund"  100%, deadline from "N hours"/"N days", else 24h
//	"N% refund"                         N%, no deadline
//
// Anything else falls back to the default policy.
func Parse(text string) Policy {
	lower := strings.ToLower(text)
	p := Policy{Text: text}

	switch {
	case strings.Contains(lower, "non-refundable"), strings.Contains(lower, "nonrefundable"), strings.Contains(lower, "no refund"):
		p.CanCancel = false
		p.RefundPercentage = 0
	case strings.Contains(lower, "free cancellation"), strings.Contains(lower, "100% refund"):
		p.CanCancel = true
		p.RefundPercentage = 100
		p.DeadlineHours = hours(deadline(lower))
	default:
		if m := percentPattern.FindStringSubmatch(lower); m != nil {
			pct, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				p.CanCancel = true
				p.RefundPercentage = math.Min(math.Max(pct, 0), 100)
				return p
			}
		}
		d := Default()
		d.Text = text
		d.Source = ""
		return d
	}
	return p
}

func deadline(lower string) int {
	m := deadlinePattern.FindStringSubmatch(lower)
	if m == nil {
		return defaultDeadlineHours
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return defaultDeadlineHours
	}
	if strings.HasPrefix(m[2], "day") {
		n *= 24
	}
	return n
}

// ComputeRefund applies p to a booking of amount checking in at checkIn,
// cancelled at now.
func ComputeRefund(p Policy, amount float64, checkIn, now time.Time) Refund {
	until := checkIn.Sub(now).Hours()
	r := Refund{HoursUntilCheckIn: until}

	if !p.CanCancel {
		r.Reason = "policy does not allow cancellation"
		return r
	}
	if p.DeadlineHours != nil && until < float64(*p.DeadlineHours) {
		r.Reason = fmt.Sprintf("cancellation deadline of %d hours before check-in has passed", *p.DeadlineHours)
		return r
	}
	r.RefundPercentage = p.RefundPercentage
	r.RefundAmount = math.Round(amount*p.RefundPercentage) / 100
	r.CanRefund = true
	return r
}

func hours(n int) *int { return &n }
