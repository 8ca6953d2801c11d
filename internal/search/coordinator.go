package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mschlosser22/travel-bids-sub001/internal/models"
	"github.com/mschlosser22/travel-bids-sub001/internal/obs"
	"github.com/mschlosser22/travel-bids-sub001/internal/providers"
)

var (
	ErrInvalidParams   = errors.New("invalid search parameters")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Coordinator fans a search out to providers concurrently. A failing
// provider is logged and left out; it never fails the whole search.
type Coordinator struct {
	registry *providers.Registry
	timeout  time.Duration
	metrics  *obs.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewCoordinator creates a Coordinator. timeout bounds each provider call.
func NewCoordinator(registry *providers.Registry, timeout time.Duration, m *obs.Metrics, logger *slog.Logger) *Coordinator {
	return &Coordinator{registry: registry, timeout: timeout, metrics: m, logger: logger, now: time.Now}
}

// Search validates params, then queries targets (all registered providers
// when none are given). Results are concatenated in registration order,
// each provider's own order preserved. Every provider failing yields an
// empty result, not an error.
func (c *Coordinator) Search(ctx context.Context, params models.SearchParams, targets ...string) (Fanout, error) {
	if err := params.Validate(c.now()); err != nil {
		return Fanout{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	ps, err := c.resolve(targets)
	if err != nil {
		return Fanout{}, err
	}

	slots := make([][]models.RawHotelResult, len(ps))
	errs := make([]error, len(ps))

	var wg sync.WaitGroup
	for i, p := range ps {
		wg.Go(func() {
			slots[i], errs[i] = c.call(ctx, p, params)
		})
	}
	wg.Wait()

	out := Fanout{Stats: FanoutStats{ProvidersTotal: len(ps)}}
	for i, p := range ps {
		if errs[i] != nil {
			out.Stats.ProvidersFailed++
			out.Stats.Failed = append(out.Stats.Failed, p.Name())
			continue
		}
		out.Stats.ProvidersSucceeded++
		for _, h := range slots[i] {
			if nh, ok := normalizeHotel(h, p.Name(), params); ok {
				out.Results = append(out.Results, nh)
			}
		}
	}

	if out.Stats.ProvidersFailed > 0 {
		c.logger.Warn("provider search errors",
			"city", params.City,
			"failed_count", out.Stats.ProvidersFailed,
			"failed", out.Stats.Failed)
	}
	return out, nil
}

func (c *Coordinator) resolve(targets []string) ([]providers.Provider, error) {
	if len(targets) == 0 {
		return c.registry.All(), nil
	}
	ps := make([]providers.Provider, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	// keep registration order regardless of the order targets were given in
	for _, name := range c.registry.Names() {
		for _, t := range targets {
			if t == name && !seen[name] {
				seen[name] = true
				p, _ := c.registry.Get(name)
				ps = append(ps, p)
			}
		}
	}
	for _, t := range targets {
		if !seen[t] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, t)
		}
	}
	return ps, nil
}

type providerReply struct {
	hotels []models.RawHotelResult
	err    error
}

// call runs one provider under its own timeout, converting panics into
// errors. A provider that ignores its context is abandoned at the deadline;
// its goroutine finishes into a buffered channel nobody reads.
func (c *Coordinator) call(ctx context.Context, p providers.Provider, params models.SearchParams) (hs []models.RawHotelResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		c.metrics.ObserveProviderLatency(p.Name(), time.Since(start).Seconds())
		if err != nil {
			c.metrics.IncProviderFailure(p.Name())
			c.logger.Error("provider search failed", "provider", p.Name(), "error", err)
		}
	}()

	replies := make(chan providerReply, 1)
	go func() {
		var r providerReply
		defer func() {
			if v := recover(); v != nil {
				r = providerReply{err: fmt.Errorf("provider %s panic: %v", p.Name(), v)}
			}
			replies <- r
		}()
		r.hotels, r.err = p.Search(ctx, params)
	}()

	select {
	case r := <-replies:
		return r.hotels, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("provider %s: %w", p.Name(), ctx.Err())
	}
}

func normalizeHotel(h models.RawHotelResult, provider string, params models.SearchParams) (models.RawHotelResult, bool) {
	h.ProviderHotelID = strings.TrimSpace(h.ProviderHotelID)
	if h.ProviderHotelID == "" {
		return h, false
	}
	h.Provider = provider
	h.Name = strings.TrimSpace(h.Name)
	h.ExternalRef = strings.TrimSpace(h.ExternalRef)
	h.Currency = strings.ToUpper(strings.TrimSpace(h.Currency))
	if h.Currency == "" {
		h.Currency = params.CurrencyOrDefault()
	}
	if h.City == "" {
		h.City = params.City
	}
	return h, true
}
