package routes

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	handlers "github.com/mschlosser22/travel-bids-sub001/internal/http"
	mid "github.com/mschlosser22/travel-bids-sub001/internal/middleware"
	"github.com/mschlosser22/travel-bids-sub001/internal/obs"
)

func GetRoutes(h *handlers.Handler, metrics *obs.Metrics, logger *slog.Logger, timeout time.Duration) *chi.Mux {
	r := chi.NewRouter()
	// Useful built-in middlewares
	r.Use(middleware.RealIP)    // proper client IP extraction
	r.Use(middleware.RequestID) // sets request ID in context
	r.Use(middleware.Recoverer) // built-in recoverer to avoid panics taking server down

	// our custom middlewares: metrics & logging
	r.Use(mid.MetricsMiddleware(metrics))
	r.Use(mid.LoggingMiddleware(logger))
	r.Use(middleware.Timeout(timeout))

	// endpoints
	r.Post("/search", h.Search)
	r.Post("/prices/refresh", h.RefreshPrice)
	r.Route("/offers", func(r chi.Router) {
		r.Post("/", h.SelectOffer)
		r.Get("/{key}", h.GetOffer)
		r.Post("/{key}/confirm", h.ConfirmOffer)
		r.Delete("/{key}", h.DeleteOffer)
	})
	r.Post("/cancellations", h.Cancel)
	r.Get("/healthz", h.Healthz)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	return r
}
