// Package reservation takes seats from a ticket tier and records the booking.
//
// The only concurrency control is the store's atomic conditional update: a tier is
// decremented only if the event is still in the future and the tier has enough seats left,
// in a single document operation. Nothing in this package reads inventory and then writes it.
package reservation

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// EventStore is the inventory side of the document store.
type EventStore interface {
	// ReserveSeats decrements availableSeats of the named tier by qty if, in one atomic step,
	// the event exists, its date is after now and the tier has at least qty seats. It returns
	// the updated event, or domain.ErrNotFound when nothing matched.
	ReserveSeats(ctx context.Context, eventID uuid.UUID, tier string, qty int, now time.Time) (*domain.Event, error)
	// ReleaseSeats gives qty seats back to the tier without exceeding its total.
	ReleaseSeats(ctx context.Context, r domain.SeatRelease) error
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

type BookingStore interface {
	InsertBooking(ctx context.Context, b domain.Booking) error
	// BookingExists tells whether an insert that reported an error was stored anyway.
	BookingExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Notifier hands reservation facts to the outbox. Both calls may be nil-op.
type Notifier interface {
	BookingCreated(ctx context.Context, b domain.Booking) error
	ReleasePending(ctx context.Context, r domain.SeatRelease) error
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithReleaseRetry sets how often and how fast a failed booking insert is compensated.
func WithReleaseRetry(attempts int, backoff time.Duration) Option {
	return func(e *Engine) {
		e.releaseAttempts = attempts
		e.releaseBackoff = backoff
	}
}

type Engine struct {
	events   EventStore
	bookings BookingStore
	notifier Notifier
	logger   observability.Logger
	now      func() time.Time

	releaseAttempts int
	releaseBackoff  time.Duration
}

func NewEngine(events EventStore, bookings BookingStore, logger observability.Logger, opts ...Option) *Engine {
	e := &Engine{
		events:          events,
		bookings:        bookings,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
		releaseAttempts: 3,
		releaseBackoff:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reserve takes req.TicketCount seats from the requested tier and stores a booking for userID.
// Identical requests are not deduplicated: each successful call books and decrements again.
func (e *Engine) Reserve(ctx context.Context, userID uuid.UUID, req domain.ReserveRequest) (*domain.Booking, error) {
	ctx, span := otel.Tracer("reservation").Start(ctx, "reservation.Reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", req.EventID.String()),
		attribute.String("ticket.type", req.TicketTypeName),
		attribute.Int("ticket.count", req.TicketCount),
	)

	booking, err := e.reserve(ctx, userID, req)
	observability.ReservationsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	observability.SeatsReserved.Add(float64(booking.TicketCount))
	return booking, nil
}

func (e *Engine) reserve(ctx context.Context, userID uuid.UUID, req domain.ReserveRequest) (*domain.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	event, err := e.events.ReserveSeats(ctx, req.EventID, req.TicketTypeName, req.TicketCount, now)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, e.diagnose(ctx, req, now)
	}
	if err != nil {
		return nil, domain.Persistence(err, "reserve seats")
	}

	tier, ok := event.Tier(req.TicketTypeName)
	if !ok {
		// The store matched on this tier name, so the returned document must carry it.
		return nil, domain.Persistence(errors.Newf("tier %q missing from updated event %s", req.TicketTypeName, req.EventID), "reserve seats")
	}

	booking := domain.NewBooking(userID, req, tier, now)
	if err := e.bookings.InsertBooking(ctx, booking); err != nil {
		stored := e.compensate(ctx, domain.SeatRelease{
			ID:         uuid.New(),
			BookingID:  booking.ID,
			EventID:    req.EventID,
			TicketType: tier.Name,
			Quantity:   req.TicketCount,
			TotalSeats: tier.TotalSeats,
			UserID:     userID,
		})
		if !stored {
			return nil, domain.Persistence(err, "insert booking")
		}
		e.logger.WithField("booking_id", booking.ID).Warn("booking insert reported an error but was stored: ", err)
	}

	if e.notifier != nil {
		if err := e.notifier.BookingCreated(ctx, booking); err != nil {
			e.logger.WithField("booking_id", booking.ID).Warn("failed to enqueue booking.created: ", err)
		}
	}
	return &booking, nil
}

// diagnose explains a failed conditional update with a separate read. The read races with
// other reservations, so the answer is best effort.
func (e *Engine) diagnose(ctx context.Context, req domain.ReserveRequest, now time.Time) error {
	event, err := e.events.GetEvent(ctx, req.EventID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrEventNotFound
	}
	if err != nil {
		e.logger.WithField("event_id", req.EventID).Warn("diagnostic read failed: ", err)
		return domain.ErrInsufficientInventory
	}
	if !event.Date.After(now) {
		return domain.ErrEventExpired
	}
	if _, ok := event.Tier(req.TicketTypeName); !ok {
		return domain.ErrTierNotFound
	}
	return domain.ErrInsufficientInventory
}

// compensate settles seats taken for a booking whose insert failed. An insert error can be
// ambiguous (timeout, cancelled context, lost reply), so each attempt first looks the booking
// up and gives seats back only when it is absent. It reports whether the booking turned out
// to be stored. It outlives the caller's context; if every attempt fails the release is
// queued for the booking worker, which repeats the lookup.
func (e *Engine) compensate(ctx context.Context, r domain.SeatRelease) bool {
	ctx = context.WithoutCancel(ctx)
	log := e.logger.WithField("event_id", r.EventID).WithField("ticket_type", r.TicketType).WithField("booking_id", r.BookingID)

	var err error
	for i := 0; i < e.releaseAttempts; i++ {
		if i > 0 {
			time.Sleep(e.releaseBackoff * time.Duration(1<<(i-1)))
		}

		var exists bool
		exists, err = e.bookings.BookingExists(ctx, r.BookingID)
		if err != nil {
			continue
		}
		if exists {
			observability.Compensations.WithLabelValues("booking_stored").Inc()
			return true
		}

		err = e.events.ReleaseSeats(ctx, r)
		if err == nil {
			observability.Compensations.WithLabelValues("released").Inc()
			log.Info("released seats after failed booking insert")
			return false
		}
		if errors.Is(err, domain.ErrConflict) {
			// Tier is gone, already back at its total, or this release was applied.
			observability.Compensations.WithLabelValues("skipped").Inc()
			log.Warn("seat release refused: ", err)
			return false
		}
	}

	log.Error("failed to release seats: ", err)
	if e.notifier == nil {
		observability.Compensations.WithLabelValues("lost").Inc()
		return false
	}
	if err := e.notifier.ReleasePending(ctx, r); err != nil {
		observability.Compensations.WithLabelValues("lost").Inc()
		log.Error("failed to queue seat release: ", err)
		return false
	}
	observability.Compensations.WithLabelValues("queued").Inc()
	return false
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrEventExpired):
		return "expired"
	case errors.Is(err, domain.ErrInsufficientInventory):
		return "insufficient"
	default:
		return "error"
	}
}
