package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds and returns the Chi router with all routes configured.
// The health endpoint is unauthenticated; every other route requires bearer auth.
// Rate limiting is applied globally: 120 requests per minute per IP.
func NewRouter(h *Handlers, token string, store, remote pinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(store, remote, h.index, log))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(token))

		r.Post("/api/v1/catalog/refresh", h.RefreshCatalog)

		r.Route("/api/v1/tours", func(r chi.Router) {
			r.Get("/", h.ListTours)
			r.Get("/facets", h.TourFacets)
			r.Get("/{id}", h.GetTour)
		})

		r.Route("/api/v1/images", func(r chi.Router) {
			r.Get("/resolve", h.ResolveImage)
			r.Post("/preload", h.PreloadImages)
			r.Get("/stats", h.ImageStats)
		})

		r.Route("/api/v1/basket", func(r chi.Router) {
			r.Get("/", h.GetBasket)
			r.Delete("/", h.ClearBasket)
			r.Post("/items", h.AddBasketItem)
			r.Delete("/items/{id}", h.RemoveBasketItem)
			r.Post("/checkout", h.Checkout)
		})
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
