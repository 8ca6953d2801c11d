package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mschlosser22/travel-bids-sub001/internal/booking"
	"github.com/mschlosser22/travel-bids-sub001/internal/config"
	handlers "github.com/mschlosser22/travel-bids-sub001/internal/http"
	"github.com/mschlosser22/travel-bids-sub001/internal/kv"
	"github.com/mschlosser22/travel-bids-sub001/internal/matching"
	"github.com/mschlosser22/travel-bids-sub001/internal/merge"
	"github.com/mschlosser22/travel-bids-sub001/internal/obs"
	"github.com/mschlosser22/travel-bids-sub001/internal/offercache"
	"github.com/mschlosser22/travel-bids-sub001/internal/pricecache"
	"github.com/mschlosser22/travel-bids-sub001/internal/providers"
	"github.com/mschlosser22/travel-bids-sub001/internal/routes"
	"github.com/mschlosser22/travel-bids-sub001/internal/search"
	"github.com/mschlosser22/travel-bids-sub001/internal/storage"
)

type App struct {
	Router      http.Handler
	Search      *search.Service
	Prices      *pricecache.Refresher
	PriceCache  *pricecache.Cache
	Booking     *booking.Service
	RateLimiter search.RateLimiter
	Metrics     *obs.Metrics
	Registry    *providers.Registry

	cfg     config.Config
	logger  *slog.Logger
	closers []func() error
}

// SetAppConfig builds every component once. The persistent store and the
// offer backend are chosen here from DATABASE_URL and REDIS_URL, falling
// back to in-process implementations.
func SetAppConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	a.Registry = registry

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	offerStore, err := openKV(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, offerStore.Close)

	customRegistry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(customRegistry)
	a.Metrics = metrics

	coord := search.NewCoordinator(registry, cfg.ProviderTimeout, metrics, logger)
	engine := matching.NewEngine(store, matching.Config{
		MatchThreshold:     cfg.MatchThreshold,
		AdvertiseThreshold: cfg.AdvertiseThreshold,
		RadiusMeters:       cfg.MatchRadiusMeters,
		NameWeight:         matching.DefaultConfig().NameWeight,
		Concurrency:        cfg.MatchConcurrency,
	}, metrics, logger)
	merger := merge.NewMerger(registry.Rank, metrics, logger)
	a.Search = search.NewService(coord, engine, merger, metrics, logger, cfg.SearchTimeout)

	a.PriceCache = pricecache.NewCache(store, cfg.PriceFreshness, cfg.PriceTTL, metrics, logger)
	a.Prices = pricecache.NewRefresher(a.PriceCache, store, coord, func(p string) bool {
		_, ok := registry.Get(p)
		return ok
	}, logger)

	offers := offercache.New(offerStore, cfg.OfferTTL, metrics, logger)
	a.Booking = booking.NewService(registry, offers, cfg.AdminCancellationPolicy, logger)

	a.RateLimiter = search.NewIPRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	h := handlers.NewHandler(a.Search, a.Prices, a.Booking, a.RateLimiter, metrics, logger)
	a.Router = routes.GetRoutes(h, metrics, logger, cfg.SearchTimeout+5*time.Second)

	logger.Info("app configured",
		"providers", registry.Names(),
		"postgres", cfg.DatabaseURL != "",
		"redis", cfg.RedisURL != "")
	return a, nil
}

// closableKV is a kv.Store with a Close method; both backends are.
type closableKV interface {
	kv.Store
	Close() error
}

func openKV(ctx context.Context, cfg config.Config, logger *slog.Logger) (closableKV, error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, offers are kept in process memory")
		return kv.NewMemory(time.Minute), nil
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	r, err := kv.OpenRedis(pctx, cfg.RedisURL, "hotels:")
	if err != nil {
		return nil, fmt.Errorf("open offer store: %w", err)
	}
	return r, nil
}

func openStore(cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, canonical hotels are kept in process memory")
		return storage.NewMemory(), nil
	}
	g, err := storage.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return g, nil
}

func buildRegistry(cfg config.Config) (*providers.Registry, error) {
	registry, _ := providers.NewRegistry()
	for i, pc := range cfg.Providers {
		var p providers.Provider
		switch pc.Type {
		case config.ProviderMock:
			p = providers.NewMockProvider(pc.Name, i, pc.AvgLatency, pc.FailRate, int64(i))
		case config.ProviderHTTP:
			timeout := pc.Timeout
			if timeout <= 0 {
				timeout = cfg.ProviderTimeout
			}
			p = providers.NewHTTPProvider(pc.Name, pc.BaseURL, pc.APIKey, timeout)
		default:
			return nil, fmt.Errorf("provider %s: unknown type %q", pc.Name, pc.Type)
		}
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// RunMaintenance prunes expired price entries every interval until ctx
// is done.
func (a *App) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PricePruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := a.PriceCache.Prune(ctx)
			if err != nil {
				a.logger.Warn("price prune failed", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Info("pruned expired price entries", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close releases the store and the offer backend.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
