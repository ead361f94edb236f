package http

import (
	"crypto/rsa"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/observability"
)

// SetupRouter builds the API. rl and idemp may be nil, which disables rate limiting and
// response replay.
func SetupRouter(h *Handlers, logger observability.Logger, pubKey *rsa.PublicKey, rl Limiter, limits RateLimits, idemp IdempotencyStore) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(JWTMiddleware(pubKey))
	if rl != nil {
		r.Use(RateLimitMiddleware(rl, limits))
	}
	if idemp != nil {
		r.Use(IdempotencyMiddleware(idemp))
	}

	r.Get("/v1/events", h.ListEvents)
	r.Get("/v1/events/{id}", h.GetEvent)
	r.With(RequireCapability(domain.CapCreateEvent)).Post("/v1/events", h.CreateEvent)

	r.With(RequireCapability(domain.CapBookTickets)).Post("/v1/bookings", h.CreateBooking)
	r.With(RequireCapability(domain.CapViewOwnBookings)).Get("/v1/bookings/mine", h.MyBookings)
	r.With(RequireCapability(domain.CapViewAllBookings)).Get("/v1/bookings", h.AllBookings)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
