package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"golang.org/x/sync/errgroup"
)

type Reserver interface {
	Reserve(ctx context.Context, userID uuid.UUID, req domain.ReserveRequest) (*domain.Booking, error)
}

type EventStore interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	CreateEvent(ctx context.Context, event domain.Event) error
}

type BookingLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.BookingView, error)
	ListAll(ctx context.Context) ([]domain.BookingView, error)
}

// EventCache is an optional read-through cache for single events.
type EventCache interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, int64, error)
	SetEvent(ctx context.Context, event *domain.Event, gen int64) error
	InvalidateEvent(ctx context.Context, id uuid.UUID) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	engine   Reserver
	events   EventStore
	bookings BookingLister
	cache    EventCache
	logger   observability.Logger
	now      func() time.Time

	checks map[string]Pinger
}

// NewHandlers wires the HTTP handlers. cache may be nil.
func NewHandlers(engine Reserver, events EventStore, bookings BookingLister, cache EventCache, logger observability.Logger) *Handlers {
	return &Handlers{
		engine:   engine,
		events:   events,
		bookings: bookings,
		cache:    cache,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		checks:   map[string]Pinger{},
	}
}

// AddReadinessCheck registers a dependency that /v1/readyz pings.
func (h *Handlers) AddReadinessCheck(name string, p Pinger) {
	h.checks[name] = p
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		h.fail(w, r, domain.Persistence(err, "list events"))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	log := LoggerFrom(r.Context(), h.logger).WithField("event_id", id)

	var (
		gen  int64
		fill bool
	)
	if h.cache != nil {
		cached, g, err := h.cache.GetEvent(r.Context(), id)
		if err != nil {
			log.Warn("event cache read failed: ", err)
		}
		gen, fill = g, err == nil
		if cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	event, err := h.events.GetEvent(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		h.fail(w, r, domain.Persistence(err, "get event"))
		return
	}

	if fill {
		if err := h.cache.SetEvent(r.Context(), event, gen); err != nil {
			log.Warn("event cache write failed: ", err)
		}
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := domain.NewEvent(req, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.events.CreateEvent(r.Context(), event); err != nil {
		h.fail(w, r, domain.Persistence(err, "create event"))
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

type bookingResponse struct {
	Message string          `json:"message"`
	Booking *domain.Booking `json:"booking"`
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	var req domain.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	booking, err := h.engine.Reserve(r.Context(), p.UserID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.InvalidateEvent(r.Context(), booking.EventID); err != nil {
			LoggerFrom(r.Context(), h.logger).WithField("event_id", booking.EventID).Warn("event cache invalidation failed: ", err)
		}
	}
	writeJSON(w, http.StatusCreated, bookingResponse{Message: "booking successful", Booking: booking})
}

func (h *Handlers) MyBookings(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	bookings, err := h.bookings.ListByUser(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, domain.Persistence(err, "list user bookings"))
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *Handlers) AllBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, domain.Persistence(err, "list bookings"))
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz pings every registered dependency concurrently and fails on the first error.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for name, p := range h.checks {
		name, p := name, p
		g.Go(func() error {
			return errors.Wrap(p.Ping(ctx), name)
		})
	}
	if err := g.Wait(); err != nil {
		LoggerFrom(r.Context(), h.logger).Warn("not ready: ", err)
		writeError(w, http.StatusServiceUnavailable, "not ready: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

// fail maps an error category to a status code. Persistence details are logged, never
// returned.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, errors.UnwrapAll(err).Error())
	case errors.Is(err, domain.ErrEventExpired):
		writeError(w, http.StatusConflict, domain.ErrEventExpired.Error())
	case errors.Is(err, domain.ErrInsufficientInventory):
		writeError(w, http.StatusConflict, domain.ErrInsufficientInventory.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		LoggerFrom(r.Context(), h.logger).Error("request failed: ", err)
		writeError(w, http.StatusInternalServerError, domain.ErrPersistence.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
